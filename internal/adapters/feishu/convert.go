package feishu

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jbctechsolutions/docsync/internal/domain/block"
)

// ImageScheme prefixes canonical image URLs that reference uploaded media
// tokens of this service.
const ImageScheme = "feishu-image://"

// Converter maps native blocks to and from canonical blocks.
type Converter struct{}

// NewConverter creates a converter.
func NewConverter() *Converter {
	return &Converter{}
}

// node is a canonical block under construction with mutable children.
type node struct {
	b    block.Block
	kids []*node
}

func (n *node) build() block.Block {
	b := n.b
	b.Children = nil
	for _, k := range n.kids {
		b.Children = append(b.Children, k.build())
	}
	return b
}

type frame struct {
	level int
	n     *node
}

// ToCanonical converts a flat block list. Blocks are nested under the nearest
// preceding block with a smaller indent level. A block indented deeper than
// any open parent is attached to structural container items, one per
// missing level.
func (c *Converter) ToCanonical(natives []Block) ([]block.Block, []block.Warning) {
	var warnings block.Warnings
	var roots []*node
	var stack []frame

	for _, nb := range natives {
		if nb.Type == TypePage {
			continue
		}
		n := &node{b: convertBlock(nb, &warnings)}
		level := max(nb.IndentLevel, 0)

		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}

		parentLevel := -1
		var parent *node
		if len(stack) > 0 {
			top := stack[len(stack)-1]
			parentLevel, parent = top.level, top.n
		}
		for l := parentLevel + 1; l < level; l++ {
			container := &node{b: block.Block{Kind: containerKind(n.b.Kind)}}
			attach(&roots, parent, container)
			stack = append(stack, frame{level: l, n: container})
			parent = container
		}

		attach(&roots, parent, n)
		stack = append(stack, frame{level: level, n: n})
	}

	out := make([]block.Block, 0, len(roots))
	for _, r := range roots {
		out = append(out, r.build())
	}
	return out, warnings
}

func attach(roots *[]*node, parent, child *node) {
	if parent == nil {
		*roots = append(*roots, child)
		return
	}
	parent.kids = append(parent.kids, child)
}

func containerKind(k block.Kind) block.Kind {
	if k.IsListItem() {
		return k
	}
	return block.KindBulletedItem
}

func convertBlock(nb Block, warnings *block.Warnings) block.Block {
	switch {
	case nb.Type == TypeText && nb.Text != nil:
		return block.Block{Kind: block.KindParagraph, Runs: runs(nb.Text)}
	case nb.Type >= TypeHeading1 && nb.Type <= TypeHeading9 && nb.Text != nil:
		level := nb.Type - TypeHeading1 + 1
		if level > block.MaxHeadingLevel {
			warnings.Add(block.Degraded(TypeName(nb.Type), fmt.Sprintf("heading level %d clamped to %d", level, block.MaxHeadingLevel)))
		}
		return block.Block{Kind: block.KindHeading, Level: block.ClampLevel(level), Runs: runs(nb.Text)}
	case nb.Type == TypeBullet && nb.Text != nil:
		return block.Block{Kind: block.KindBulletedItem, Runs: runs(nb.Text)}
	case nb.Type == TypeOrdered && nb.Text != nil:
		return block.Block{Kind: block.KindNumberedItem, Runs: runs(nb.Text)}
	case nb.Type == TypeTodo && nb.Text != nil:
		return block.Block{Kind: block.KindTodoItem, Checked: nb.Text.Style != nil && nb.Text.Style.Done, Runs: runs(nb.Text)}
	case nb.Type == TypeCode && nb.Text != nil:
		lang := ""
		if nb.Text.Style != nil {
			lang = LanguageName(nb.Text.Style.Language)
		}
		return block.Code(lang, block.RunsText(runs(nb.Text)))
	case nb.Type == TypeQuote && nb.Text != nil:
		return block.Block{Kind: block.KindQuote, Runs: runs(nb.Text)}
	case nb.Type == TypeDivider:
		return block.Block{Kind: block.KindDivider}
	case nb.Type == TypeImage && nb.Image != nil && nb.Image.Token != "":
		return block.Block{Kind: block.KindImage, URL: ImageScheme + nb.Image.Token}
	}

	warnings.Add(block.Unsupported(TypeName(nb.Type), "block kept as text"))
	text := rawText(nb)
	if text == "" {
		text = fmt.Sprintf("[unsupported block: %s]", TypeName(nb.Type))
	}
	return block.Paragraph(text)
}

func runs(t *Text) []block.Run {
	var out []block.Run
	for _, el := range t.Elements {
		switch {
		case el.TextRun != nil:
			r := block.Run{Text: el.TextRun.Content}
			if s := el.TextRun.TextElementStyle; s != nil {
				r.Bold = s.Bold
				r.Italic = s.Italic
				r.Strikethrough = s.Strikethrough
				r.Code = s.InlineCode
				if s.Link != nil {
					r.Link = decodeURL(s.Link.URL)
				}
			}
			out = append(out, r)
		case el.MentionDoc != nil:
			title := el.MentionDoc.Title
			if title == "" {
				title = el.MentionDoc.Token
			}
			out = append(out, block.Run{Text: title, Link: decodeURL(el.MentionDoc.URL)})
		case el.Equation != nil:
			out = append(out, block.Run{Text: el.Equation.Content})
		}
	}
	return block.Normalize(out)
}

// rawText collects every "content" string of an unmodelled block.
func rawText(nb Block) string {
	if len(nb.Raw) == 0 {
		return ""
	}
	var parts []string
	collect(gjson.ParseBytes(nb.Raw), &parts)
	return block.CollapseSpace(strings.Join(parts, " "))
}

func collect(v gjson.Result, parts *[]string) {
	v.ForEach(func(k, e gjson.Result) bool {
		switch {
		case e.IsObject() || e.IsArray():
			collect(e, parts)
		case k.String() == "content" && e.Type == gjson.String:
			if s := strings.TrimSpace(e.String()); s != "" {
				*parts = append(*parts, s)
			}
		}
		return true
	})
}

// encodeURL percent-encodes a link the way the service expects.
func encodeURL(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func decodeURL(s string) string {
	if u, err := url.PathUnescape(s); err == nil {
		return u
	}
	return s
}

// FromCanonical flattens canonical blocks into the service's indent-levelled
// list. Structural container items are not emitted; their children keep
// their indent level.
func (c *Converter) FromCanonical(blocks []block.Block) (Blocks, []block.Warning) {
	var warnings block.Warnings
	var out Blocks
	flatten(blocks, 0, &out, &warnings)
	return out, warnings
}

func flatten(blocks []block.Block, indent int, out *Blocks, warnings *block.Warnings) {
	for _, b := range blocks {
		if !b.IsContainer() {
			nb := encodeBlock(b, warnings)
			nb.IndentLevel = indent
			*out = append(*out, nb)
		}
		flatten(b.Children, indent+1, out, warnings)
	}
}

func encodeBlock(b block.Block, warnings *block.Warnings) Block {
	switch b.Kind {
	case block.KindHeading:
		return Block{Type: TypeHeading1 + block.ClampLevel(b.Level) - 1, Text: text(b.Runs)}
	case block.KindBulletedItem:
		return Block{Type: TypeBullet, Text: text(b.Runs)}
	case block.KindNumberedItem:
		return Block{Type: TypeOrdered, Text: text(b.Runs)}
	case block.KindTodoItem:
		t := text(b.Runs)
		t.Style = &TextStyle{Done: b.Checked}
		return Block{Type: TypeTodo, Text: t}
	case block.KindCode:
		t := text(block.Text(b.PlainText()))
		t.Style = &TextStyle{Language: LanguageID(b.Language)}
		return Block{Type: TypeCode, Text: t}
	case block.KindQuote:
		return Block{Type: TypeQuote, Text: text(b.Runs)}
	case block.KindDivider:
		return Block{Type: TypeDivider}
	case block.KindImage:
		if token, ok := strings.CutPrefix(b.URL, ImageScheme); ok && token != "" {
			return Block{Type: TypeImage, Image: &Image{Token: token}}
		}
		warnings.Add(block.Degraded(string(b.Kind), "image media cannot be uploaded; kept as a link"))
		return Block{Type: TypeText, Text: text(linkRuns(b))}
	case block.KindLink:
		warnings.Add(block.Degraded(string(b.Kind), "link block kept as linked text"))
		return Block{Type: TypeText, Text: text(linkRuns(b))}
	}
	return Block{Type: TypeText, Text: text(b.Runs)}
}

func linkRuns(b block.Block) []block.Run {
	label := b.PlainText()
	if label == "" {
		label = b.URL
	}
	return []block.Run{{Text: label, Link: b.URL}}
}

// text builds a payload from runs; an empty block carries one empty run.
func text(runs []block.Run) *Text {
	t := &Text{}
	for _, r := range block.Normalize(runs) {
		tr := &TextRun{Content: r.Text}
		if !r.Plain() {
			tr.TextElementStyle = &TextElementStyle{
				Bold:          r.Bold,
				Italic:        r.Italic,
				Strikethrough: r.Strikethrough,
				InlineCode:    r.Code,
			}
			if r.Link != "" {
				tr.TextElementStyle.Link = &Link{URL: encodeURL(r.Link)}
			}
		}
		t.Elements = append(t.Elements, TextElement{TextRun: tr})
	}
	if len(t.Elements) == 0 {
		t.Elements = []TextElement{{TextRun: &TextRun{Content: ""}}}
	}
	return t
}
