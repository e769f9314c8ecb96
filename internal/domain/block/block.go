// Package block defines the canonical block model shared by every document
// converter. A document is an ordered sequence of top-level blocks; list items
// and quotes may carry nested children, and leaf content is held as inline runs.
package block

import (
	"fmt"
	"strings"
)

// Kind identifies the type of a canonical block.
type Kind string

const (
	KindParagraph    Kind = "paragraph"
	KindHeading      Kind = "heading"
	KindBulletedItem Kind = "bulleted_item"
	KindNumberedItem Kind = "numbered_item"
	KindTodoItem     Kind = "todo_item"
	KindCode         Kind = "code"
	KindQuote        Kind = "quote"
	KindDivider      Kind = "divider"
	KindImage        Kind = "image"
	KindLink         Kind = "link"
)

// Heading levels supported by the canonical model. Sources with deeper
// headings are clamped into this range on the way in.
const (
	MinHeadingLevel = 1
	MaxHeadingLevel = 3
)

// Run is an inline text run with formatting.
type Run struct {
	Text          string `json:"text"`
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Code          bool   `json:"code,omitempty"`
	Link          string `json:"link,omitempty"`
}

// SameStyle reports whether two runs carry identical formatting.
func (r Run) SameStyle(o Run) bool {
	return r.Bold == o.Bold &&
		r.Italic == o.Italic &&
		r.Strikethrough == o.Strikethrough &&
		r.Code == o.Code &&
		r.Link == o.Link
}

// Plain reports whether the run has no formatting at all.
func (r Run) Plain() bool {
	return r.SameStyle(Run{})
}

// Block is a canonical document node.
//
// Attribute fields are only meaningful for some kinds: Level for headings,
// Checked for todo items, Language for code, URL for images and links.
type Block struct {
	Kind     Kind    `json:"kind"`
	Level    int     `json:"level,omitempty"`
	Checked  bool    `json:"checked,omitempty"`
	Language string  `json:"language,omitempty"`
	URL      string  `json:"url,omitempty"`
	Runs     []Run   `json:"runs,omitempty"`
	Children []Block `json:"children,omitempty"`
}

// Paragraph builds a paragraph from plain text.
func Paragraph(text string) Block {
	return Block{Kind: KindParagraph, Runs: Text(text)}
}

// Heading builds a heading, clamping level into the supported range.
func Heading(level int, text string) Block {
	return Block{Kind: KindHeading, Level: ClampLevel(level), Runs: Text(text)}
}

// Item builds a list item of the given kind.
func Item(kind Kind, text string, children ...Block) Block {
	return Block{Kind: kind, Runs: Text(text), Children: children}
}

// Code builds a code block.
func Code(language, body string) Block {
	return Block{Kind: KindCode, Language: language, Runs: Text(body)}
}

// Text returns a single plain run, or nil for empty text.
func Text(s string) []Run {
	if s == "" {
		return nil
	}
	return []Run{{Text: s}}
}

// ClampLevel forces a heading level into [MinHeadingLevel, MaxHeadingLevel].
func ClampLevel(level int) int {
	if level < MinHeadingLevel {
		return MinHeadingLevel
	}
	if level > MaxHeadingLevel {
		return MaxHeadingLevel
	}
	return level
}

// IsListItem reports whether the kind is one of the list item kinds.
func (k Kind) IsListItem() bool {
	return k == KindBulletedItem || k == KindNumberedItem || k == KindTodoItem
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindParagraph, KindHeading, KindBulletedItem, KindNumberedItem, KindTodoItem,
		KindCode, KindQuote, KindDivider, KindImage, KindLink:
		return true
	}
	return false
}

// PlainText returns the concatenated text of the block's runs.
func (b Block) PlainText() string {
	return RunsText(b.Runs)
}

// IsContainer reports whether b is a structural list item: no text of its own,
// only nested children. Such items appear when a flat indented list starts
// deeper than level zero.
func (b Block) IsContainer() bool {
	return b.Kind.IsListItem() && len(b.Runs) == 0 && len(b.Children) > 0
}

// RunsText concatenates the text of runs.
func RunsText(runs []Run) string {
	var sb strings.Builder
	for _, r := range runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Validate checks structural invariants of a block tree.
func Validate(blocks []Block) error {
	for i, b := range blocks {
		if !b.Kind.Valid() {
			return fmt.Errorf("block %d: unknown kind %q", i, b.Kind)
		}
		if b.Kind == KindHeading && (b.Level < MinHeadingLevel || b.Level > MaxHeadingLevel) {
			return fmt.Errorf("block %d: heading level %d out of range", i, b.Level)
		}
		if (b.Kind == KindImage || b.Kind == KindLink) && b.URL == "" {
			return fmt.Errorf("block %d: %s requires a url", i, b.Kind)
		}
		if err := Validate(b.Children); err != nil {
			return fmt.Errorf("block %d: %w", i, err)
		}
	}
	return nil
}

// Count returns the total number of blocks in the tree, children included.
func Count(blocks []Block) int {
	n := 0
	for _, b := range blocks {
		n += 1 + Count(b.Children)
	}
	return n
}

// Walk visits every block depth-first in document order. The depth of
// top-level blocks is zero.
func Walk(blocks []Block, fn func(b Block, depth int)) {
	walk(blocks, 0, fn)
}

func walk(blocks []Block, depth int, fn func(b Block, depth int)) {
	for _, b := range blocks {
		fn(b, depth)
		walk(b.Children, depth+1, fn)
	}
}
