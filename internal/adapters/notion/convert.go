package notion

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/jbctechsolutions/docsync/internal/domain/block"
)

// maxNesting is how many levels of children one append request may carry.
const maxNesting = 2

// Converter maps native blocks to and from canonical blocks.
type Converter struct{}

// NewConverter creates a converter.
func NewConverter() *Converter {
	return &Converter{}
}

// ToCanonical converts a page body. Unknown block types become paragraphs
// holding their best textual rendering, with one warning each.
func (c *Converter) ToCanonical(blocks []Block) ([]block.Block, []block.Warning) {
	in := &ingest{}
	return in.blocks(blocks), in.warnings
}

// FromCanonical converts canonical blocks into an appendable page body.
func (c *Converter) FromCanonical(blocks []block.Block) (Blocks, []block.Warning) {
	out := &egress{}
	return out.blocks(blocks, 0), out.warnings
}

type ingest struct {
	warnings block.Warnings
}

func (in *ingest) blocks(natives []Block) []block.Block {
	var out []block.Block
	for _, nb := range natives {
		out = append(out, in.block(nb)...)
	}
	return out
}

func (in *ingest) block(nb Block) []block.Block {
	if p := nb.Text(); p != nil {
		return []block.Block{in.text(nb, p)}
	}

	switch nb.Type {
	case TypeDivider:
		return []block.Block{{Kind: block.KindDivider}}
	case TypeImage:
		if nb.Image != nil && nb.Image.URL() != "" {
			return []block.Block{{Kind: block.KindImage, URL: nb.Image.URL(), Runs: runs(nb.Image.Caption)}}
		}
	case TypeBookmark, TypeLinkPreview, TypeEmbed:
		if p := urlPayload(nb); p != nil && p.URL != "" {
			return []block.Block{{Kind: block.KindLink, URL: p.URL, Runs: runs(p.Caption)}}
		}
	case TypeChildPage:
		if nb.ChildPage != nil {
			in.warnings.Add(block.Degraded(nb.Type, "sub-page kept as a link"))
			return []block.Block{{Kind: block.KindLink, URL: PageURL(nb.ID), Runs: block.Text(nb.ChildPage.Title)}}
		}
	case TypeChildDatabase:
		title := "Untitled"
		if nb.ChildDatabase != nil && nb.ChildDatabase.Title != "" {
			title = nb.ChildDatabase.Title
		}
		in.warnings.Add(block.Unsupported(nb.Type, "database replaced by its title"))
		return []block.Block{block.Paragraph(fmt.Sprintf("[database: %s]", title))}
	case TypeTable:
		in.warnings.Add(block.Unsupported(nb.Type, "table flattened to text rows"))
		return []block.Block{block.Paragraph(tableText(nb.Children))}
	}

	in.warnings.Add(block.Unsupported(nb.Type, "block kept as text"))
	text := extractText(nb.Raw)
	if text == "" {
		text = fmt.Sprintf("[unsupported block: %s]", nb.Type)
	}
	return []block.Block{block.Paragraph(text)}
}

func (in *ingest) text(nb Block, p *TextPayload) block.Block {
	children := nb.Children
	if len(children) == 0 {
		children = p.Children
	}
	b := block.Block{Runs: runs(p.RichText), Children: in.blocks(children)}

	switch nb.Type {
	case TypeParagraph:
		b.Kind = block.KindParagraph
	case TypeHeading1, TypeHeading2, TypeHeading3:
		b.Kind = block.KindHeading
		b.Level = int(nb.Type[len(nb.Type)-1] - '0')
	case TypeBulletedListItem:
		b.Kind = block.KindBulletedItem
	case TypeNumberedListItem:
		b.Kind = block.KindNumberedItem
	case TypeToDo:
		b.Kind = block.KindTodoItem
		b.Checked = p.Checked
	case TypeToggle:
		b.Kind = block.KindBulletedItem
		in.warnings.Add(block.Degraded(nb.Type, "toggle kept as a bulleted item"))
	case TypeQuote:
		b.Kind = block.KindQuote
	case TypeCallout:
		b.Kind = block.KindQuote
		in.warnings.Add(block.Degraded(nb.Type, "callout kept as a quote"))
	case TypeCode:
		b.Kind = block.KindCode
		b.Language = canonicalLanguage(p.Language)
		b.Runs = block.Text(block.RunsText(b.Runs))
	}
	return b
}

func urlPayload(nb Block) *URLPayload {
	switch nb.Type {
	case TypeBookmark:
		return nb.Bookmark
	case TypeLinkPreview:
		return nb.LinkPreview
	case TypeEmbed:
		return nb.Embed
	}
	return nil
}

func runs(rt []RichText) []block.Run {
	var out []block.Run
	for _, r := range rt {
		run := block.Run{Text: r.Content(), Link: r.URL()}
		if a := r.Annotations; a != nil {
			run.Bold = a.Bold
			run.Italic = a.Italic
			run.Strikethrough = a.Strikethrough
			run.Code = a.Code
		}
		out = append(out, run)
	}
	return block.Normalize(out)
}

func tableText(rows []Block) string {
	var lines []string
	for _, row := range rows {
		if row.TableRow == nil {
			continue
		}
		cells := make([]string, len(row.TableRow.Cells))
		for i, cell := range row.TableRow.Cells {
			cells[i] = block.RunsText(runs(cell))
		}
		lines = append(lines, strings.Join(cells, " | "))
	}
	if len(lines) == 0 {
		return "[table]"
	}
	return strings.Join(lines, "\n")
}

var textKeys = map[string]bool{
	"plain_text": true,
	"content":    true,
	"url":        true,
	"title":      true,
	"expression": true,
}

// extractText collects human-readable strings from an arbitrary payload.
// Rich text objects contribute their plain_text only.
func extractText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var parts []string
	var walk func(v gjson.Result)
	walk = func(v gjson.Result) {
		switch {
		case v.IsArray():
			v.ForEach(func(_, e gjson.Result) bool {
				walk(e)
				return true
			})
		case v.IsObject():
			if pt := v.Get("plain_text"); pt.Exists() {
				parts = append(parts, pt.String())
				return
			}
			v.ForEach(func(k, e gjson.Result) bool {
				if e.Type == gjson.String && textKeys[k.String()] {
					if s := strings.TrimSpace(e.String()); s != "" {
						parts = append(parts, s)
					}
				} else if e.IsObject() || e.IsArray() {
					walk(e)
				}
				return true
			})
		}
	}
	walk(gjson.ParseBytes(raw))
	return block.CollapseSpace(strings.Join(parts, " "))
}

type egress struct {
	warnings block.Warnings
}

func (out *egress) blocks(blocks []block.Block, depth int) []Block {
	var natives []Block
	for _, b := range blocks {
		natives = append(natives, out.block(b, depth)...)
	}
	return natives
}

// block converts one canonical block. Children that cannot nest at this
// depth, or under this type, follow the block as siblings.
func (out *egress) block(b block.Block, depth int) []Block {
	var nb Block
	nestable := true

	switch b.Kind {
	case block.KindHeading:
		nb = NewTextBlock(fmt.Sprintf("heading_%d", block.ClampLevel(b.Level)), &TextPayload{RichText: richText(b.Runs)})
		nestable = false
	case block.KindBulletedItem:
		nb = NewTextBlock(TypeBulletedListItem, &TextPayload{RichText: richText(b.Runs)})
	case block.KindNumberedItem:
		nb = NewTextBlock(TypeNumberedListItem, &TextPayload{RichText: richText(b.Runs)})
	case block.KindTodoItem:
		nb = NewTextBlock(TypeToDo, &TextPayload{RichText: richText(b.Runs), Checked: b.Checked})
	case block.KindQuote:
		nb = NewTextBlock(TypeQuote, &TextPayload{RichText: richText(b.Runs)})
	case block.KindCode:
		nb = NewTextBlock(TypeCode, &TextPayload{
			RichText: richText(block.Text(b.PlainText())),
			Language: ServiceLanguage(b.Language),
		})
		nestable = false
	case block.KindDivider:
		nb = Block{Object: "block", Type: TypeDivider, Divider: &struct{}{}}
		nestable = false
	case block.KindImage:
		if !strings.HasPrefix(b.URL, "http://") && !strings.HasPrefix(b.URL, "https://") {
			out.warnings.Add(block.Degraded(string(b.Kind), "image is not web-hosted; kept as text"))
			nb = NewTextBlock(TypeParagraph, &TextPayload{RichText: richText(block.Text("[image: " + b.URL + "]"))})
		} else {
			nb = Block{Object: "block", Type: TypeImage, Image: &MediaPayload{
				Type:     "external",
				External: &FileRef{URL: b.URL},
				Caption:  richText(b.Runs),
			}}
		}
		nestable = false
	case block.KindLink:
		nb = Block{Object: "block", Type: TypeBookmark, Bookmark: &URLPayload{URL: b.URL, Caption: richText(b.Runs)}}
		nestable = false
	default:
		nb = NewTextBlock(TypeParagraph, &TextPayload{RichText: richText(b.Runs)})
	}

	if len(b.Children) == 0 {
		return []Block{nb}
	}
	if nestable && depth < maxNesting {
		nb.Text().Children = out.blocks(b.Children, depth+1)
		return []Block{nb}
	}
	if nestable {
		out.warnings.Add(block.Degraded(string(b.Kind), "nesting deeper than the service accepts was flattened"))
	}
	return append([]Block{nb}, out.blocks(b.Children, depth)...)
}

// richText converts runs to rich text objects, splitting content longer than
// MaxTextLength. It never returns nil.
func richText(runs []block.Run) []RichText {
	out := []RichText{}
	for _, r := range block.Normalize(runs) {
		for _, chunk := range splitText(r.Text, MaxTextLength) {
			rt := RichText{Type: "text", Text: &TextContent{Content: chunk}}
			if r.Link != "" {
				rt.Text.Link = &Link{URL: r.Link}
			}
			if !r.Plain() {
				rt.Annotations = &Annotations{
					Bold:          r.Bold,
					Italic:        r.Italic,
					Strikethrough: r.Strikethrough,
					Code:          r.Code,
				}
			}
			out = append(out, rt)
		}
	}
	return out
}

// splitText cuts s into pieces of at most n characters.
func splitText(s string, n int) []string {
	rs := []rune(s)
	if len(rs) <= n {
		return []string{s}
	}
	var out []string
	for len(rs) > 0 {
		end := min(n, len(rs))
		out = append(out, string(rs[:end]))
		rs = rs[end:]
	}
	return out
}
