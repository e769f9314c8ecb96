package markdown

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jbctechsolutions/docsync/internal/adapters/feishu"
	"github.com/jbctechsolutions/docsync/internal/adapters/notion"
	"github.com/jbctechsolutions/docsync/internal/domain/block"
)

const sample = "# Title\n\n" +
	"##### Deep\n\n" +
	"Some **bold** and *it* and ~~gone~~ and `code` [link](https://x.test).\n\n" +
	"- one\n" +
	"  - nested\n" +
	"- [x] done\n\n" +
	"1. first\n\n" +
	"> quoted\n\n" +
	"---\n\n" +
	"![alt](https://img.test/a.png)\n\n" +
	"```go\n" +
	"x := 1\n" +
	"```\n"

func TestToCanonical(t *testing.T) {
	c := NewConverter()
	got, warnings := c.ToCanonical([]byte(sample))
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}

	want := []block.Block{
		block.Heading(1, "Title"),
		block.Heading(3, "Deep"),
		{Kind: block.KindParagraph, Runs: []block.Run{
			{Text: "Some "},
			{Text: "bold", Bold: true},
			{Text: " and "},
			{Text: "it", Italic: true},
			{Text: " and "},
			{Text: "gone", Strikethrough: true},
			{Text: " and "},
			{Text: "code", Code: true},
			{Text: " "},
			{Text: "link", Link: "https://x.test"},
			{Text: "."},
		}},
		block.Item(block.KindBulletedItem, "one", block.Item(block.KindBulletedItem, "nested")),
		{Kind: block.KindTodoItem, Checked: true, Runs: block.Text("done")},
		block.Item(block.KindNumberedItem, "first"),
		{Kind: block.KindQuote, Runs: block.Text("quoted")},
		{Kind: block.KindDivider},
		{Kind: block.KindImage, URL: "https://img.test/a.png", Runs: block.Text("alt")},
		block.Code("go", "x := 1"),
	}

	if !block.EqualStyled(got, want) {
		t.Errorf("ToCanonical mismatch\ngot:  %+v\nwant: %+v", got, want)
	}
}

func TestFromCanonical(t *testing.T) {
	c := NewConverter()
	blocks := []block.Block{
		block.Heading(1, "Title"),
		{Kind: block.KindParagraph, Runs: []block.Run{
			{Text: "Hello "},
			{Text: "world", Bold: true},
			{Text: "!"},
		}},
		block.Item(block.KindBulletedItem, "one", block.Item(block.KindBulletedItem, "nested")),
		block.Code("go", "fmt.Println(1)"),
	}

	got, _ := c.FromCanonical(blocks)
	want := "# Title\n\nHello **world**!\n\n- one\n  - nested\n\n```go\nfmt.Println(1)\n```\n"
	if got != want {
		t.Errorf("FromCanonical mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	docs := map[string]string{
		"sample":               sample,
		"nested lists":         "- a\n  1. b\n     - [ ] c\n- d\n",
		"setext":               "Title\n=====\n\nbody text\nwrapped line\n",
		"quote with children":  "> lead\n>\n> - item\n>\n> more\n",
		"hard break":           "line one\\\nline two\n",
		"escapes":              "1\\. not a list\n\n\\# not a heading\n\n\\*literal\\* stars and a\\_b\n",
		"entities":             "fish &amp; chips &#169;\n",
		"autolink":             "see <https://auto.test/path>\n",
		"indented code":        "    plain code\n    second line\n",
		"backticks in code":    "````\n```\ninner\n```\n````\n",
		"inline image":         "text ![pic](https://img.test/p.png) more\n",
		"mixed styles":         "**bold *both*** then *italic* and ~~**strong strike**~~\n",
		"item paragraph":       "- a\n\n  para under a\n",
		"numbered paragraph":   "1. a\n\n   second para\n",
		"task note":            "- [ ] t\n\n  note\n",
		"item divider":         "- a\n\n  ---\n",
		"item heading":         "- a\n\n  ## sub\n",
		"item code":            "- a\n\n  ```sh\n  make\n  ```\n",
		"list then paragraph":  "- a\n  - b\n\n  tail para\n- c\n",
		"quote item paragraph": "> q\n>\n> - a\n>\n>   para\n",
	}

	c := NewConverter()
	for name, md := range docs {
		t.Run(name, func(t *testing.T) {
			first, _ := c.ToCanonical([]byte(md))
			rendered, _ := c.FromCanonical(first)
			second, _ := c.ToCanonical([]byte(rendered))

			if !block.Equal(first, second) {
				t.Errorf("round trip changed content\nsource:\n%s\nrendered:\n%s\nfirst:  %+v\nsecond: %+v",
					md, rendered, first, second)
			}
		})
	}
}

func TestRoundTrip_PreservesLiteralText(t *testing.T) {
	c := NewConverter()
	texts := []string{
		"1. not a list",
		"# not a heading",
		"*stars* and _underscores_",
		"a [bracket] and `tick` and <angle>",
		"back\\slash",
		"- dash",
		"+ plus",
		"AT&T",
	}

	for _, s := range texts {
		t.Run(s, func(t *testing.T) {
			md, _ := c.FromCanonical([]block.Block{block.Paragraph(s)})
			got, _ := c.ToCanonical([]byte(md))
			if len(got) != 1 || got[0].Kind != block.KindParagraph || got[0].PlainText() != s {
				t.Errorf("rendered %q re-parsed as %+v", md, got)
			}
		})
	}
}

func TestFromCanonical_WhitespaceOutsideEmphasis(t *testing.T) {
	c := NewConverter()
	got, _ := c.FromCanonical([]block.Block{{Kind: block.KindParagraph, Runs: []block.Run{
		{Text: "a"},
		{Text: " b ", Bold: true},
		{Text: "c"},
	}}})

	if want := "a **b** c\n"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestFromCanonical_CodeFenceLongerThanBody(t *testing.T) {
	c := NewConverter()
	body := "```\nnested\n```"
	md, _ := c.FromCanonical([]block.Block{block.Code("md", body)})

	if !strings.HasPrefix(md, "````md\n") {
		t.Errorf("expected four-backtick fence, got %q", md)
	}

	got, _ := c.ToCanonical([]byte(md))
	if len(got) != 1 || got[0].PlainText() != body || got[0].Language != "md" {
		t.Errorf("code block did not survive: %+v", got)
	}
}

func TestContainerItemRoundTrip(t *testing.T) {
	c := NewConverter()
	blocks := []block.Block{
		{Kind: block.KindBulletedItem, Children: []block.Block{block.Item(block.KindBulletedItem, "deep")}},
		block.Item(block.KindBulletedItem, "top"),
	}

	md, _ := c.FromCanonical(blocks)
	got, _ := c.ToCanonical([]byte(md))
	if !block.Equal(got, blocks) {
		t.Errorf("container item changed\nmarkdown:\n%s\ngot: %+v", md, got)
	}
	if !got[0].IsContainer() {
		t.Error("expected structural container item")
	}
}

func TestToCanonical_HTMLBlockWarns(t *testing.T) {
	c := NewConverter()
	got, warnings := c.ToCanonical([]byte("<div>hi</div>\n"))

	if len(got) != 1 || got[0].Kind != block.KindParagraph {
		t.Fatalf("expected one paragraph, got %+v", got)
	}
	if len(warnings) != 1 || warnings[0].Code != block.WarnUnsupported {
		t.Errorf("expected one unsupported warning, got %v", warnings)
	}
}

func TestFromCanonical_LinkBlock(t *testing.T) {
	c := NewConverter()
	md, _ := c.FromCanonical([]block.Block{{Kind: block.KindLink, URL: "https://x.test/a b", Runs: block.Text("site")}})

	if want := "[site](https://x.test/a%20b)\n"; md != want {
		t.Errorf("got %q, want %q", md, want)
	}
}

func TestFromCanonical_ItemWithParagraph(t *testing.T) {
	c := NewConverter()
	blocks := []block.Block{block.Item(block.KindBulletedItem, "toggle", block.Paragraph("body"))}

	md, warnings := c.FromCanonical(blocks)
	if want := "- toggle\n\n  body\n"; md != want {
		t.Errorf("got %q, want %q", md, want)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	got, _ := c.ToCanonical([]byte(md))
	if !block.Equal(got, blocks) {
		t.Errorf("item with paragraph changed: %+v", got)
	}
}

func TestFromCanonical_FlattenedChildrenWarn(t *testing.T) {
	c := NewConverter()
	para := block.Paragraph("parent")
	para.Children = []block.Block{block.Paragraph("child")}
	heading := block.Heading(2, "toggle heading")
	heading.Children = []block.Block{block.Item(block.KindBulletedItem, "inside")}

	md, warnings := c.FromCanonical([]block.Block{para, heading})

	if want := "parent\n\nchild\n\n## toggle heading\n\n- inside\n"; md != want {
		t.Errorf("got %q, want %q", md, want)
	}
	if len(warnings) != 2 {
		t.Fatalf("expected 2 warnings, got %v", warnings)
	}
	for _, w := range warnings {
		if w.Code != block.WarnDegraded {
			t.Errorf("unexpected warning code %s", w.Code)
		}
	}
}

func TestFromCanonical_EmptyItemWithParagraphWarns(t *testing.T) {
	c := NewConverter()
	blocks := []block.Block{{Kind: block.KindBulletedItem, Children: []block.Block{block.Paragraph("orphan")}}}

	md, warnings := c.FromCanonical(blocks)
	if len(warnings) != 1 || warnings[0].Code != block.WarnDegraded {
		t.Errorf("expected one degraded warning, got %v", warnings)
	}
	got, _ := c.ToCanonical([]byte(md))
	if len(got) != 1 || got[0].PlainText() != "orphan" {
		t.Errorf("rendered %q re-parsed as %+v", md, got)
	}
}

// Trees produced by the service converters survive a trip through Markdown.
func TestRoundTrip_ConvertedTrees(t *testing.T) {
	const pageJSON = `[
  {"type":"toggle","toggle":{"rich_text":[{"type":"text","plain_text":"toggle"}],
   "children":[{"type":"paragraph","paragraph":{"rich_text":[{"type":"text","plain_text":"body"}]}}]}},
  {"type":"callout","callout":{"rich_text":[{"type":"text","plain_text":"note"}],
   "children":[{"type":"bulleted_list_item","bulleted_list_item":{"rich_text":[{"type":"text","plain_text":"point"}],
     "children":[{"type":"divider","divider":{}}]}}]}},
  {"type":"numbered_list_item","numbered_list_item":{"rich_text":[{"type":"text","plain_text":"step"}],
   "children":[
     {"type":"code","code":{"rich_text":[{"type":"text","plain_text":"make build"}],"language":"shell"}},
     {"type":"heading_3","heading_3":{"rich_text":[{"type":"text","plain_text":"after"}]}}]}}
]`
	var pages []notion.Block
	if err := json.Unmarshal([]byte(pageJSON), &pages); err != nil {
		t.Fatalf("decode page: %v", err)
	}
	fromPage, _ := notion.NewConverter().ToCanonical(pages)

	text := func(typ, indent int, content string) feishu.Block {
		return feishu.Block{Type: typ, IndentLevel: indent, Text: &feishu.Text{
			Elements: []feishu.TextElement{{TextRun: &feishu.TextRun{Content: content}}},
		}}
	}
	fromDoc, _ := feishu.NewConverter().ToCanonical([]feishu.Block{
		text(feishu.TypeBullet, 0, "a"),
		text(feishu.TypeText, 1, "para under a"),
		text(feishu.TypeBullet, 1, "nested"),
		text(feishu.TypeOrdered, 0, "b"),
		text(feishu.TypeQuote, 1, "quoted under b"),
	})

	trees := map[string][]block.Block{"page": fromPage, "document": fromDoc}
	c := NewConverter()
	for name, tree := range trees {
		t.Run(name, func(t *testing.T) {
			if len(tree) == 0 {
				t.Fatal("converter produced no blocks")
			}
			md, warnings := c.FromCanonical(tree)
			if len(warnings) != 0 {
				t.Errorf("unexpected warnings: %v", warnings)
			}
			got, _ := c.ToCanonical([]byte(md))
			if !block.Equal(got, tree) {
				t.Errorf("tree changed through markdown\nmarkdown:\n%s\ngot:  %+v\nwant: %+v", md, got, tree)
			}
		})
	}
}
