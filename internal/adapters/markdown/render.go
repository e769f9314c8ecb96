package markdown

import (
	"strings"

	"github.com/jbctechsolutions/docsync/internal/domain/block"
)

// FromCanonical renders canonical blocks as GitHub-flavored Markdown. The output
// re-parses to an equivalent block sequence.
func (c *Converter) FromCanonical(blocks []block.Block) (string, []block.Warning) {
	r := &renderer{}
	lines := r.blocks(blocks)
	if len(lines) == 0 {
		return "", r.warnings
	}
	return strings.Join(lines, "\n") + "\n", r.warnings
}

type renderer struct {
	warnings block.Warnings
}

// blocks renders a sequence of sibling blocks separated by blank lines.
func (r *renderer) blocks(blocks []block.Block) []string {
	var out []string
	for i, b := range blocks {
		if i > 0 {
			out = append(out, "")
		}
		out = append(out, r.block(b)...)
	}
	return out
}

func (r *renderer) block(b block.Block) []string {
	lines := r.own(b)
	if len(b.Children) == 0 || nestsChildren(b.Kind) {
		return lines
	}
	r.warnings.Add(block.Degraded(string(b.Kind), "nested blocks rendered after their parent"))
	if len(lines) > 0 {
		lines = append(lines, "")
	}
	return append(lines, r.blocks(b.Children)...)
}

// nestsChildren reports whether Markdown can hold children under kind.
func nestsChildren(k block.Kind) bool {
	return k.IsListItem() || k == block.KindQuote
}

// own renders b without the children of kinds that cannot nest them.
func (r *renderer) own(b block.Block) []string {
	switch b.Kind {
	case block.KindHeading:
		text := strings.Join(strings.Fields(inline(b.Runs)), " ")
		return []string{strings.TrimSpace(strings.Repeat("#", block.ClampLevel(b.Level)) + " " + text)}
	case block.KindBulletedItem:
		return r.item("- ", "  ", b)
	case block.KindNumberedItem:
		return r.item("1. ", "   ", b)
	case block.KindTodoItem:
		box := "- [ ] "
		if b.Checked {
			box = "- [x] "
		}
		return r.item(box, "  ", b)
	case block.KindCode:
		return codeFence(b.Language, b.PlainText())
	case block.KindQuote:
		var body []string
		if len(b.Runs) > 0 {
			body = paragraph(b.Runs)
		}
		if len(b.Children) > 0 {
			if len(body) > 0 {
				body = append(body, "")
			}
			body = append(body, r.blocks(b.Children)...)
		}
		return prefix(body, "> ", ">")
	case block.KindDivider:
		return []string{"---"}
	case block.KindImage:
		return []string{"![" + escape(b.PlainText()) + "](" + destination(b.URL) + ")"}
	case block.KindLink:
		label := inline(b.Runs)
		if label == "" {
			label = escape(b.URL)
		}
		return []string{"[" + label + "](" + destination(b.URL) + ")"}
	case block.KindParagraph:
		return paragraph(b.Runs)
	}

	r.warnings.Add(block.Unsupported(string(b.Kind), "rendered as plain paragraph"))
	return paragraph(b.Runs)
}

// item renders a list item: the marker on the first line, children indented
// under the item's content column. Item text is separated by a blank line from
// a first child that is not a list item, so a paragraph child stays a separate
// block and a divider child is not read as a setext underline.
func (r *renderer) item(marker, indent string, b block.Block) []string {
	head := paragraph(b.Runs)
	empty := len(head) == 0
	if empty {
		head = []string{""}
	}
	lines := []string{strings.TrimRight(marker+head[0], " ")}
	lines = append(lines, prefix(head[1:], indent, "")...)
	if len(b.Children) == 0 {
		return lines
	}

	first := b.Children[0].Kind
	switch {
	case first.IsListItem():
	case !empty:
		lines = append(lines, "")
	case first == block.KindParagraph || first == block.KindImage || first == block.KindLink:
		// An item cannot open with a blank line, so a leading paragraph
		// becomes the item text.
		r.warnings.Add(block.Degraded(string(b.Kind), "empty item merged with its first paragraph"))
	}
	return append(lines, prefix(r.blocks(b.Children), indent, "")...)
}

// paragraph renders runs as one or more lines; hard breaks become a trailing
// backslash.
func paragraph(runs []block.Run) []string {
	text := strings.TrimSpace(inline(runs))
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i := 0; i < len(lines)-1; i++ {
		lines[i] += `\`
	}
	return lines
}

// prefix prepends p to every non-empty line and empty to blank lines.
func prefix(lines []string, p, empty string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		if l == "" {
			out[i] = empty
			continue
		}
		out[i] = p + l
	}
	return out
}

func codeFence(lang, body string) []string {
	fence := strings.Repeat("`", max(3, longestRun(body, '`')+1))
	lines := []string{fence + lang}
	if body != "" {
		lines = append(lines, strings.Split(strings.TrimRight(body, "\n"), "\n")...)
	}
	return append(lines, fence)
}

// inline renders runs with emphasis delimiters. Runs sharing a link are
// grouped into one link; formatting opens and closes at run boundaries with
// whitespace kept outside the delimiters.
func inline(runs []block.Run) string {
	runs = block.Normalize(runs)
	var sb strings.Builder
	for i := 0; i < len(runs); {
		j := i + 1
		for j < len(runs) && runs[j].Link == runs[i].Link {
			j++
		}
		group := styled(runs[i:j])
		if link := runs[i].Link; link != "" {
			lead, core, trail := splitSpace(group)
			sb.WriteString(lead + "[" + core + "](" + destination(link) + ")" + trail)
		} else {
			sb.WriteString(group)
		}
		i = j
	}
	return sb.String()
}

type delim struct {
	mark string
	on   func(block.Run) bool
}

var delims = []delim{
	{"~~", func(r block.Run) bool { return r.Strikethrough }},
	{"**", func(r block.Run) bool { return r.Bold }},
	{"*", func(r block.Run) bool { return r.Italic }},
}

// styled renders a link-free sequence of runs. Open delimiters are tracked on
// a stack so nested styles close in reverse order.
func styled(runs []block.Run) string {
	var sb strings.Builder
	var open []delim
	pending := ""

	closeTo := func(n int) {
		for len(open) > n {
			sb.WriteString(open[len(open)-1].mark)
			open = open[:len(open)-1]
		}
	}

	for _, r := range runs {
		lead, core, trail := splitSpace(r.Text)
		if core == "" {
			pending += r.Text
			continue
		}

		// Keep the longest prefix of open delimiters still active.
		keep := 0
		for keep < len(open) && open[keep].on(r) {
			keep++
		}
		closeTo(keep)
		sb.WriteString(pending + lead)
		pending = trail

		for _, d := range delims {
			if d.on(r) && !contains(open, d.mark) {
				sb.WriteString(d.mark)
				open = append(open, d)
			}
		}
		if r.Code {
			sb.WriteString(codeSpan(core))
		} else {
			sb.WriteString(escape(core))
		}
	}
	closeTo(0)
	sb.WriteString(pending)
	return sb.String()
}

func contains(open []delim, mark string) bool {
	for _, d := range open {
		if d.mark == mark {
			return true
		}
	}
	return false
}

func codeSpan(s string) string {
	ticks := strings.Repeat("`", longestRun(s, '`')+1)
	if strings.HasPrefix(s, "`") || strings.HasSuffix(s, "`") {
		return ticks + " " + s + " " + ticks
	}
	return ticks + s + ticks
}

func splitSpace(s string) (lead, core, trail string) {
	core = strings.TrimLeft(s, " \t\n")
	lead = s[:len(s)-len(core)]
	trimmed := strings.TrimRight(core, " \t\n")
	trail = core[len(trimmed):]
	return lead, trimmed, trail
}

func longestRun(s string, c byte) int {
	best, cur := 0, 0
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			cur++
			best = max(best, cur)
			continue
		}
		cur = 0
	}
	return best
}

// escape backslash-escapes Markdown punctuation so text re-parses literally.
// Characters that only matter at the start of a line are escaped there.
func escape(s string) string {
	var sb strings.Builder
	lineStart := true
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\\', '`', '*', '_', '[', ']', '<', '>', '~', '|', '&':
			sb.WriteByte('\\')
		case '#', '-', '+', '=':
			if lineStart {
				sb.WriteByte('\\')
			}
		case '.', ')':
			if i > 0 && isDigit(s[i-1]) && digitsFromLineStart(s[:i]) {
				sb.WriteByte('\\')
			}
		}
		sb.WriteByte(c)
		lineStart = c == '\n' || (lineStart && c == ' ')
	}
	return sb.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// digitsFromLineStart reports whether the current line so far is an optional
// indent followed only by digits, which would make the next dot an
// ordered-list marker.
func digitsFromLineStart(s string) bool {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimLeft(s, " ")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

var urlReplacer = strings.NewReplacer(" ", "%20", "(", "%28", ")", "%29", "<", "%3C", ">", "%3E")

func destination(url string) string {
	return urlReplacer.Replace(url)
}
