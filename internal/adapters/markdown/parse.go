// Package markdown converts between GitHub-flavored Markdown text and the
// canonical block model.
package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"github.com/jbctechsolutions/docsync/internal/domain/block"
)

// Converter parses and renders Markdown.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter creates a converter with strikethrough and task list support.
func NewConverter() *Converter {
	return &Converter{
		md: goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.TaskList)),
	}
}

// ToCanonical parses Markdown source into canonical blocks.
func (c *Converter) ToCanonical(src []byte) ([]block.Block, []block.Warning) {
	doc := c.md.Parser().Parse(text.NewReader(src))
	p := &parser{src: src}
	blocks := p.blocks(doc)
	return blocks, p.warnings
}

type parser struct {
	src      []byte
	warnings block.Warnings
}

func (p *parser) blocks(parent ast.Node) []block.Block {
	var out []block.Block
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		out = append(out, p.node(n)...)
	}
	return out
}

func (p *parser) node(n ast.Node) []block.Block {
	switch v := n.(type) {
	case *ast.Heading:
		return []block.Block{{Kind: block.KindHeading, Level: block.ClampLevel(v.Level), Runs: p.runs(v)}}
	case *ast.Paragraph, *ast.TextBlock:
		if img, ok := p.soleImage(n); ok {
			return []block.Block{{Kind: block.KindImage, URL: string(img.Destination), Runs: block.Text(p.plain(img))}}
		}
		runs := p.runs(n)
		if runs == nil {
			return nil
		}
		return []block.Block{{Kind: block.KindParagraph, Runs: runs}}
	case *ast.List:
		var items []block.Block
		for li := v.FirstChild(); li != nil; li = li.NextSibling() {
			items = append(items, p.listItem(li, v.IsOrdered()))
		}
		return items
	case *ast.FencedCodeBlock:
		lang := ""
		if v.Info != nil {
			lang = string(v.Language(p.src))
		}
		return []block.Block{block.Code(lang, p.lines(v))}
	case *ast.CodeBlock:
		return []block.Block{block.Code("", p.lines(v))}
	case *ast.Blockquote:
		return []block.Block{p.quote(v)}
	case *ast.ThematicBreak:
		return []block.Block{{Kind: block.KindDivider}}
	case *ast.HTMLBlock:
		raw := strings.TrimSpace(p.lines(v))
		p.warnings.Add(block.Unsupported("html", "raw HTML block kept as text"))
		return []block.Block{block.Paragraph(raw)}
	}

	p.warnings.Add(block.Unsupported(n.Kind().String(), "markdown node kept as text"))
	if s := strings.TrimSpace(p.plain(n)); s != "" {
		return []block.Block{block.Paragraph(s)}
	}
	return []block.Block{block.Paragraph("[unsupported block: " + n.Kind().String() + "]")}
}

// listItem maps the first paragraph of a list item to the item's runs and
// every following node to its children.
func (p *parser) listItem(li ast.Node, ordered bool) block.Block {
	b := block.Block{Kind: block.KindBulletedItem}
	if ordered {
		b.Kind = block.KindNumberedItem
	}

	first := li.FirstChild()
	if first != nil && isTextual(first) {
		if cb, ok := first.FirstChild().(*east.TaskCheckBox); ok {
			b.Kind = block.KindTodoItem
			b.Checked = cb.IsChecked
		}
		b.Runs = p.runs(first)
		first = first.NextSibling()
	}
	for n := first; n != nil; n = n.NextSibling() {
		b.Children = append(b.Children, p.node(n)...)
	}
	return b
}

// quote maps a blockquote's leading paragraph to runs and the rest to children.
func (p *parser) quote(bq *ast.Blockquote) block.Block {
	b := block.Block{Kind: block.KindQuote}
	first := bq.FirstChild()
	if first != nil && isTextual(first) {
		if _, img := p.soleImage(first); !img {
			b.Runs = p.runs(first)
			first = first.NextSibling()
		}
	}
	for n := first; n != nil; n = n.NextSibling() {
		b.Children = append(b.Children, p.node(n)...)
	}
	return b
}

type style struct {
	bold, italic, strike bool
	link                 string
}

func (s style) run(text string) block.Run {
	return block.Run{Text: text, Bold: s.bold, Italic: s.italic, Strikethrough: s.strike, Link: s.link}
}

// runs collects the inline content of n as trimmed, normalized runs.
func (p *parser) runs(n ast.Node) []block.Run {
	var out []block.Run
	p.inline(n, style{}, &out)
	out = block.Normalize(out)
	if len(out) == 0 {
		return nil
	}
	out[0].Text = strings.TrimLeft(out[0].Text, " \t\n")
	last := len(out) - 1
	out[last].Text = strings.TrimRight(out[last].Text, " \t\n")
	return block.Normalize(out)
}

func (p *parser) inline(parent ast.Node, st style, out *[]block.Run) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch v := n.(type) {
		case *ast.Text:
			s := string(unescape(v.Segment.Value(p.src)))
			switch {
			case v.HardLineBreak():
				s += "\n"
			case v.SoftLineBreak():
				s += " "
			}
			*out = append(*out, st.run(s))
		case *ast.String:
			*out = append(*out, st.run(string(v.Value)))
		case *ast.CodeSpan:
			r := st.run(p.raw(v))
			r.Code = true
			*out = append(*out, r)
		case *ast.Emphasis:
			next := st
			if v.Level >= 2 {
				next.bold = true
			} else {
				next.italic = true
			}
			p.inline(v, next, out)
		case *east.Strikethrough:
			next := st
			next.strike = true
			p.inline(v, next, out)
		case *ast.Link:
			next := st
			next.link = string(v.Destination)
			p.inline(v, next, out)
		case *ast.AutoLink:
			next := st
			next.link = string(v.URL(p.src))
			*out = append(*out, next.run(string(v.Label(p.src))))
		case *ast.Image:
			next := st
			next.link = string(v.Destination)
			*out = append(*out, next.run(p.plain(v)))
		case *ast.RawHTML:
			var buf bytes.Buffer
			for i := 0; i < v.Segments.Len(); i++ {
				seg := v.Segments.At(i)
				buf.Write(seg.Value(p.src))
			}
			*out = append(*out, st.run(buf.String()))
		case *east.TaskCheckBox:
		default:
			p.inline(v, st, out)
		}
	}
}

// plain returns the unformatted text beneath n.
func (p *parser) plain(n ast.Node) string {
	var runs []block.Run
	p.inline(n, style{}, &runs)
	return block.RunsText(runs)
}

// raw returns the literal text of a code span.
func (p *parser) raw(n ast.Node) string {
	var buf bytes.Buffer
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			buf.Write(v.Segment.Value(p.src))
		case *ast.String:
			buf.Write(v.Value)
		}
	}
	return buf.String()
}

// lines joins the raw lines of a block node without the final newline.
func (p *parser) lines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(p.src))
	}
	return strings.TrimRight(buf.String(), "\n")
}

func isTextual(n ast.Node) bool {
	switch n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		return true
	}
	return false
}

// soleImage reports whether a paragraph holds nothing but one image.
func (p *parser) soleImage(n ast.Node) (*ast.Image, bool) {
	var img *ast.Image
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Image:
			if img != nil {
				return nil, false
			}
			img = v
		case *ast.Text:
			if len(bytes.TrimSpace(v.Segment.Value(p.src))) > 0 {
				return nil, false
			}
		default:
			return nil, false
		}
	}
	return img, img != nil
}

func unescape(b []byte) []byte {
	b = util.UnescapePunctuations(b)
	b = util.ResolveNumericReferences(b)
	return util.ResolveEntityNames(b)
}
