// Package feishu adapts the block-based cloud-document service: its flat,
// indent-levelled block list, conversion to and from canonical blocks, an
// HTTP client and the sync endpoint.
package feishu

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Native block types.
const (
	TypePage     = 1
	TypeText     = 2
	TypeHeading1 = 3
	TypeHeading9 = 11
	TypeBullet   = 12
	TypeOrdered  = 13
	TypeCode     = 14
	TypeQuote    = 15
	TypeTodo     = 17
	TypeDivider  = 22
	TypeImage    = 27
)

// MaxWriteBlocks is the most blocks one write request may carry.
const MaxWriteBlocks = 50

// PayloadKey returns the JSON field holding the payload of a block type, or
// "" for types this package does not model.
func PayloadKey(blockType int) string {
	switch {
	case blockType == TypePage:
		return "page"
	case blockType == TypeText:
		return "text"
	case blockType >= TypeHeading1 && blockType <= TypeHeading9:
		return fmt.Sprintf("heading%d", blockType-TypeHeading1+1)
	case blockType == TypeBullet:
		return "bullet"
	case blockType == TypeOrdered:
		return "ordered"
	case blockType == TypeCode:
		return "code"
	case blockType == TypeQuote:
		return "quote"
	case blockType == TypeTodo:
		return "todo"
	case blockType == TypeDivider:
		return "divider"
	case blockType == TypeImage:
		return "image"
	}
	return ""
}

// TypeName labels a block type in warnings.
func TypeName(blockType int) string {
	if key := PayloadKey(blockType); key != "" {
		return key
	}
	return fmt.Sprintf("block_type_%d", blockType)
}

// Link is an inline hyperlink. URL is percent-encoded on the wire.
type Link struct {
	URL string `json:"url"`
}

// TextElementStyle holds inline formatting.
type TextElementStyle struct {
	Bold          bool  `json:"bold,omitempty"`
	Italic        bool  `json:"italic,omitempty"`
	Strikethrough bool  `json:"strikethrough,omitempty"`
	Underline     bool  `json:"underline,omitempty"`
	InlineCode    bool  `json:"inline_code,omitempty"`
	Link          *Link `json:"link,omitempty"`
}

// TextRun is a run of formatted text.
type TextRun struct {
	Content          string            `json:"content"`
	TextElementStyle *TextElementStyle `json:"text_element_style,omitempty"`
}

// MentionDoc is an inline reference to another document.
type MentionDoc struct {
	Token string `json:"token"`
	Title string `json:"title,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Equation is an inline formula.
type Equation struct {
	Content string `json:"content"`
}

// TextElement is one inline element. Exactly one field is set.
type TextElement struct {
	TextRun    *TextRun    `json:"text_run,omitempty"`
	MentionDoc *MentionDoc `json:"mention_doc,omitempty"`
	Equation   *Equation   `json:"equation,omitempty"`
}

// TextStyle holds block-level attributes of text-bearing blocks.
type TextStyle struct {
	Done     bool `json:"done,omitempty"`
	Language int  `json:"language,omitempty"`
	Wrap     bool `json:"wrap,omitempty"`
}

// Text is the payload of every text-bearing block type.
type Text struct {
	Elements []TextElement `json:"elements"`
	Style    *TextStyle    `json:"style,omitempty"`
}

// Image is the payload of an image block; Token references uploaded media.
type Image struct {
	Token  string `json:"token"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Block is one native block. The payload lives under the JSON key named by
// PayloadKey(Type).
type Block struct {
	ID          string
	ParentID    string
	Type        int
	IndentLevel int
	Text        *Text
	Image       *Image

	// Raw is the block as received.
	Raw json.RawMessage
}

type blockHeader struct {
	ID          string `json:"block_id,omitempty"`
	ParentID    string `json:"parent_id,omitempty"`
	Type        int    `json:"block_type"`
	IndentLevel int    `json:"indent_level,omitempty"`
}

// MarshalJSON writes the header fields and the payload under its type key.
func (b Block) MarshalJSON() ([]byte, error) {
	m := map[string]any{"block_type": b.Type}
	if b.ID != "" {
		m["block_id"] = b.ID
	}
	if b.IndentLevel > 0 {
		m["indent_level"] = b.IndentLevel
	}

	key := PayloadKey(b.Type)
	if key == "" {
		return nil, fmt.Errorf("cannot encode block type %d", b.Type)
	}
	switch {
	case b.Type == TypeDivider:
		m[key] = struct{}{}
	case b.Image != nil:
		m[key] = b.Image
	case b.Text != nil:
		m[key] = b.Text
	default:
		m[key] = &Text{Elements: []TextElement{}}
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads the header fields, decodes modelled payloads and keeps
// the raw block for everything else.
func (b *Block) UnmarshalJSON(data []byte) error {
	var h blockHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	*b = Block{
		ID:          h.ID,
		ParentID:    h.ParentID,
		Type:        h.Type,
		IndentLevel: h.IndentLevel,
		Raw:         append(json.RawMessage(nil), data...),
	}

	key := PayloadKey(h.Type)
	if key == "" || h.Type == TypeDivider {
		return nil
	}
	payload := gjson.GetBytes(data, key)
	if !payload.Exists() {
		return nil
	}
	if h.Type == TypeImage {
		b.Image = &Image{}
		return json.Unmarshal([]byte(payload.Raw), b.Image)
	}
	b.Text = &Text{}
	return json.Unmarshal([]byte(payload.Raw), b.Text)
}

// Document is the metadata of a document.
type Document struct {
	ID         string
	Title      string
	RevisionID int64
}

// Blocks is an encoded document body ready to be written in windows.
type Blocks []Block

// Len returns the number of native blocks.
func (b Blocks) Len() int { return len(b) }
