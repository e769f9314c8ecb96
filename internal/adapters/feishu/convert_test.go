package feishu

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jbctechsolutions/docsync/internal/domain/block"
)

func textBlock(typ, indent int, content string) Block {
	return Block{Type: typ, IndentLevel: indent, Text: &Text{Elements: []TextElement{{TextRun: &TextRun{Content: content}}}}}
}

func indents(blocks Blocks) []int {
	out := make([]int, len(blocks))
	for i, b := range blocks {
		out[i] = b.IndentLevel
	}
	return out
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestToCanonical_IndentLevels(t *testing.T) {
	natives := []Block{
		{Type: TypePage},
		textBlock(TypeBullet, 0, "a"),
		textBlock(TypeBullet, 1, "b"),
		textBlock(TypeBullet, 1, "c"),
		textBlock(TypeBullet, 1, "d"),
		textBlock(TypeBullet, 0, "e"),
	}

	got, warnings := NewConverter().ToCanonical(natives)
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}

	want := []block.Block{
		block.Item(block.KindBulletedItem, "a",
			block.Item(block.KindBulletedItem, "b"),
			block.Item(block.KindBulletedItem, "c"),
			block.Item(block.KindBulletedItem, "d"),
		),
		block.Item(block.KindBulletedItem, "e"),
	}
	if !block.Equal(got, want) {
		t.Fatalf("ToCanonical() = %+v, want %+v", got, want)
	}

	back, _ := NewConverter().FromCanonical(got)
	if want := []int{0, 1, 1, 1, 0}; !sameInts(indents(back), want) {
		t.Errorf("indent levels = %v, want %v", indents(back), want)
	}
}

func TestToCanonical_LeadingOrphansGetContainer(t *testing.T) {
	natives := []Block{
		textBlock(TypeOrdered, 1, "x"),
		textBlock(TypeOrdered, 1, "y"),
		textBlock(TypeOrdered, 1, "z"),
		textBlock(TypeText, 0, "after"),
		textBlock(TypeText, 0, "end"),
	}

	got, _ := NewConverter().ToCanonical(natives)
	if len(got) != 3 {
		t.Fatalf("got %d top-level blocks, want 3", len(got))
	}
	if !got[0].IsContainer() || got[0].Kind != block.KindNumberedItem || len(got[0].Children) != 3 {
		t.Errorf("first block should be a numbered container of 3 items, got %+v", got[0])
	}

	back, _ := NewConverter().FromCanonical(got)
	if want := []int{1, 1, 1, 0, 0}; !sameInts(indents(back), want) {
		t.Errorf("indent levels = %v, want %v", indents(back), want)
	}
}

func TestToCanonical_SkipsLevels(t *testing.T) {
	natives := []Block{
		textBlock(TypeBullet, 0, "top"),
		textBlock(TypeBullet, 3, "deep"),
	}

	got, _ := NewConverter().ToCanonical(natives)
	depth := 0
	block.Walk(got, func(b block.Block, d int) {
		if b.PlainText() == "deep" {
			depth = d
		}
	})
	if depth != 3 {
		t.Errorf("deep item at depth %d, want 3", depth)
	}
	if n := block.Count(got); n != 4 {
		t.Errorf("Count() = %d, want 4 (two containers)", n)
	}
}

func TestConvert_Fixture(t *testing.T) {
	const fixture = `[
		{"block_id":"doc","block_type":1,"page":{"elements":[{"text_run":{"content":"Title"}}]}},
		{"block_id":"h","block_type":4,"heading2":{"elements":[{"text_run":{"content":"Section"}}]}},
		{"block_id":"p","block_type":2,"text":{"elements":[
			{"text_run":{"content":"see "}},
			{"text_run":{"content":"docs","text_element_style":{"bold":true,"link":{"url":"https%3A%2F%2Fx.test%2Fa%20b"}}}}
		]}},
		{"block_id":"t","block_type":17,"todo":{"elements":[{"text_run":{"content":"ship"}}],"style":{"done":true}}},
		{"block_id":"c","block_type":14,"code":{"elements":[{"text_run":{"content":"print(1)"}}],"style":{"language":49}}},
		{"block_id":"d","block_type":22,"divider":{}},
		{"block_id":"i","block_type":27,"image":{"token":"boxcn123"}},
		{"block_id":"s","block_type":31,"table":{"cells":["c1"]},"extra":{"content":"cell text"}},
		{"block_id":"h7","block_type":9,"heading7":{"elements":[{"text_run":{"content":"Deep"}}]}}
	]`

	var natives []Block
	if err := json.Unmarshal([]byte(fixture), &natives); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}

	got, warnings := NewConverter().ToCanonical(natives)
	want := []block.Block{
		block.Heading(2, "Section"),
		{Kind: block.KindParagraph, Runs: []block.Run{{Text: "see "}, {Text: "docs", Bold: true, Link: "https://x.test/a b"}}},
		{Kind: block.KindTodoItem, Checked: true, Runs: block.Text("ship")},
		block.Code("python", "print(1)"),
		{Kind: block.KindDivider},
		{Kind: block.KindImage, URL: "feishu-image://boxcn123"},
		block.Paragraph("cell text"),
		block.Heading(3, "Deep"),
	}
	if !block.EqualStyled(got, want) {
		t.Fatalf("ToCanonical() =\n%+v\nwant\n%+v", got, want)
	}

	if len(warnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %v", len(warnings), warnings)
	}
	if warnings[0].Code != block.WarnUnsupported || warnings[0].BlockType != "block_type_31" {
		t.Errorf("warnings[0] = %+v", warnings[0])
	}
	if warnings[1].Code != block.WarnDegraded {
		t.Errorf("warnings[1] = %+v", warnings[1])
	}
}

func TestFromCanonical_Encoding(t *testing.T) {
	blocks := []block.Block{
		block.Heading(1, "Intro"),
		{Kind: block.KindParagraph, Runs: []block.Run{{Text: "go ", Italic: true}, {Text: "here", Link: "https://x.test/a b"}}},
		{Kind: block.KindTodoItem, Checked: true, Runs: block.Text("done")},
		block.Code("bash", "ls"),
		{Kind: block.KindImage, URL: "https://x.test/p.png"},
		{Kind: block.KindParagraph},
	}

	got, warnings := NewConverter().FromCanonical(blocks)
	if len(got) != len(blocks) {
		t.Fatalf("got %d native blocks, want %d", len(got), len(blocks))
	}
	if got[0].Type != TypeHeading1 {
		t.Errorf("heading type = %d", got[0].Type)
	}
	link := got[1].Text.Elements[1].TextRun.TextElementStyle.Link
	if link == nil || link.URL != "https%3A%2F%2Fx.test%2Fa%20b" {
		t.Errorf("link = %+v", link)
	}
	if got[2].Type != TypeTodo || !got[2].Text.Style.Done {
		t.Errorf("todo = %+v", got[2])
	}
	if got[3].Text.Style.Language != 7 {
		t.Errorf("bash language id = %d, want 7", got[3].Text.Style.Language)
	}
	if got[4].Type != TypeText {
		t.Errorf("external image should degrade to text, got type %d", got[4].Type)
	}
	if len(warnings) != 1 || warnings[0].Code != block.WarnDegraded {
		t.Errorf("warnings = %v", warnings)
	}
	if n := len(got[5].Text.Elements); n != 1 {
		t.Errorf("empty paragraph has %d elements, want 1", n)
	}

	data, err := json.Marshal(got)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, key := range []string{`"heading1":`, `"todo":`, `"code":`, `"block_type":17`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("encoded JSON missing %s: %s", key, data)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	docs := [][]block.Block{
		{block.Heading(1, "A"), block.Paragraph("text")},
		{block.Item(block.KindNumberedItem, "one", block.Item(block.KindNumberedItem, "inner")), block.Item(block.KindNumberedItem, "two")},
		{{Kind: block.KindTodoItem, Runs: block.Text("open")}, {Kind: block.KindTodoItem, Checked: true, Runs: block.Text("closed")}},
		{block.Code("go", "func main() {}\n\treturn"), {Kind: block.KindDivider}},
		{{Kind: block.KindImage, URL: "feishu-image://tok"}},
		{{Kind: block.KindQuote, Runs: []block.Run{{Text: "q", Strikethrough: true}, {Text: " x", Code: true}}}},
	}

	conv := NewConverter()
	for i, doc := range docs {
		natives, warnings := conv.FromCanonical(doc)
		if len(warnings) != 0 {
			t.Errorf("doc %d: unexpected warnings %v", i, warnings)
		}

		data, err := json.Marshal(natives)
		if err != nil {
			t.Fatalf("doc %d: marshal: %v", i, err)
		}
		var decoded []Block
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("doc %d: unmarshal: %v", i, err)
		}

		got, _ := conv.ToCanonical(decoded)
		if !block.EqualStyled(got, doc) {
			t.Errorf("doc %d: round trip =\n%+v\nwant\n%+v", i, got, doc)
		}
	}
}

func TestLanguage(t *testing.T) {
	tests := []struct {
		in   string
		id   int
		name string
	}{
		{"go", 22, "go"},
		{"golang", 22, "go"},
		{"JS", 30, "javascript"},
		{"python", 49, "python"},
		{"", 1, ""},
		{"klingon", 1, ""},
	}
	for _, tt := range tests {
		id := LanguageID(tt.in)
		if id != tt.id {
			t.Errorf("LanguageID(%q) = %d, want %d", tt.in, id, tt.id)
		}
		if name := LanguageName(id); name != tt.name {
			t.Errorf("LanguageName(%d) = %q, want %q", id, name, tt.name)
		}
	}
}

func TestURLEncoding(t *testing.T) {
	for _, u := range []string{"https://x.test/a b?q=1+2&r=é", "mailto:a@b.test"} {
		if got := decodeURL(encodeURL(u)); got != u {
			t.Errorf("decode(encode(%q)) = %q", u, got)
		}
	}
}
