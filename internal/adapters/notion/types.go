// Package notion adapts the hierarchical-page document service: its native
// block shapes, conversion to and from canonical blocks, an HTTP client and
// the sync endpoint.
package notion

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// Block types understood by the converter.
const (
	TypeParagraph        = "paragraph"
	TypeHeading1         = "heading_1"
	TypeHeading2         = "heading_2"
	TypeHeading3         = "heading_3"
	TypeBulletedListItem = "bulleted_list_item"
	TypeNumberedListItem = "numbered_list_item"
	TypeToDo             = "to_do"
	TypeToggle           = "toggle"
	TypeQuote            = "quote"
	TypeCallout          = "callout"
	TypeCode             = "code"
	TypeDivider          = "divider"
	TypeImage            = "image"
	TypeBookmark         = "bookmark"
	TypeLinkPreview      = "link_preview"
	TypeEmbed            = "embed"
	TypeChildPage        = "child_page"
	TypeChildDatabase    = "child_database"
	TypeTable            = "table"
	TypeTableRow         = "table_row"
)

// MaxTextLength is the service's limit on one rich text object's content.
const MaxTextLength = 2000

// RichText is one inline text object.
type RichText struct {
	Type        string       `json:"type"`
	Text        *TextContent `json:"text,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
	PlainText   string       `json:"plain_text,omitempty"`
	Href        string       `json:"href,omitempty"`
}

// TextContent is the payload of a text-typed rich text object.
type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// Link is a hyperlink target.
type Link struct {
	URL string `json:"url"`
}

// Annotations holds inline formatting flags.
type Annotations struct {
	Bold          bool   `json:"bold,omitempty"`
	Italic        bool   `json:"italic,omitempty"`
	Strikethrough bool   `json:"strikethrough,omitempty"`
	Underline     bool   `json:"underline,omitempty"`
	Code          bool   `json:"code,omitempty"`
	Color         string `json:"color,omitempty"`
}

// Content returns the text of the object, preferring plain_text.
func (r RichText) Content() string {
	if r.PlainText != "" {
		return r.PlainText
	}
	if r.Text != nil {
		return r.Text.Content
	}
	return ""
}

// URL returns the object's link target, if any.
func (r RichText) URL() string {
	if r.Href != "" {
		return r.Href
	}
	if r.Text != nil && r.Text.Link != nil {
		return r.Text.Link.URL
	}
	return ""
}

// TextPayload is shared by every block type whose content is rich text.
type TextPayload struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked,omitempty"`
	Language string     `json:"language,omitempty"`
	Children []Block    `json:"children,omitempty"`
}

// FileRef points to an externally hosted or service-hosted file.
type FileRef struct {
	URL string `json:"url"`
}

// MediaPayload describes an image.
type MediaPayload struct {
	Type     string     `json:"type"`
	External *FileRef   `json:"external,omitempty"`
	File     *FileRef   `json:"file,omitempty"`
	Caption  []RichText `json:"caption,omitempty"`
}

// URL returns the media location regardless of hosting.
func (m *MediaPayload) URL() string {
	if m.External != nil && m.External.URL != "" {
		return m.External.URL
	}
	if m.File != nil {
		return m.File.URL
	}
	return ""
}

// URLPayload is the payload of bookmark, link_preview and embed blocks.
type URLPayload struct {
	URL     string     `json:"url"`
	Caption []RichText `json:"caption,omitempty"`
}

// TitlePayload is the payload of child_page and child_database blocks.
type TitlePayload struct {
	Title string `json:"title"`
}

// TableRowPayload is the payload of a table_row block.
type TableRowPayload struct {
	Cells [][]RichText `json:"cells"`
}

// Block is one native block. Exactly one payload field, named by Type, is set.
// Children holds nested blocks fetched separately on read; on write, nested
// blocks travel inside the payload.
type Block struct {
	Object      string `json:"object,omitempty"`
	ID          string `json:"id,omitempty"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children,omitempty"`

	Paragraph        *TextPayload     `json:"paragraph,omitempty"`
	Heading1         *TextPayload     `json:"heading_1,omitempty"`
	Heading2         *TextPayload     `json:"heading_2,omitempty"`
	Heading3         *TextPayload     `json:"heading_3,omitempty"`
	BulletedListItem *TextPayload     `json:"bulleted_list_item,omitempty"`
	NumberedListItem *TextPayload     `json:"numbered_list_item,omitempty"`
	ToDo             *TextPayload     `json:"to_do,omitempty"`
	Toggle           *TextPayload     `json:"toggle,omitempty"`
	Quote            *TextPayload     `json:"quote,omitempty"`
	Callout          *TextPayload     `json:"callout,omitempty"`
	Code             *TextPayload     `json:"code,omitempty"`
	Divider          *struct{}        `json:"divider,omitempty"`
	Image            *MediaPayload    `json:"image,omitempty"`
	Bookmark         *URLPayload      `json:"bookmark,omitempty"`
	LinkPreview      *URLPayload      `json:"link_preview,omitempty"`
	Embed            *URLPayload      `json:"embed,omitempty"`
	ChildPage        *TitlePayload    `json:"child_page,omitempty"`
	ChildDatabase    *TitlePayload    `json:"child_database,omitempty"`
	TableRow         *TableRowPayload `json:"table_row,omitempty"`

	// Raw is the payload object of the block's type as received, kept so
	// that types without a typed field can still be rendered as text.
	Raw json.RawMessage `json:"-"`

	Children []Block `json:"-"`
}

// UnmarshalJSON decodes the typed fields and captures the raw payload.
func (b *Block) UnmarshalJSON(data []byte) error {
	type plain Block
	if err := json.Unmarshal(data, (*plain)(b)); err != nil {
		return err
	}
	if b.Type != "" {
		if raw := gjson.GetBytes(data, gjson.Escape(b.Type)); raw.Exists() {
			b.Raw = json.RawMessage(raw.Raw)
		}
	}
	return nil
}

// Text returns the rich text payload for text-bearing types, or nil.
func (b *Block) Text() *TextPayload {
	switch b.Type {
	case TypeParagraph:
		return b.Paragraph
	case TypeHeading1:
		return b.Heading1
	case TypeHeading2:
		return b.Heading2
	case TypeHeading3:
		return b.Heading3
	case TypeBulletedListItem:
		return b.BulletedListItem
	case TypeNumberedListItem:
		return b.NumberedListItem
	case TypeToDo:
		return b.ToDo
	case TypeToggle:
		return b.Toggle
	case TypeQuote:
		return b.Quote
	case TypeCallout:
		return b.Callout
	case TypeCode:
		return b.Code
	}
	return nil
}

// NewTextBlock builds a block of a text-bearing type.
func NewTextBlock(typ string, p *TextPayload) Block {
	b := Block{Object: "block", Type: typ}
	switch typ {
	case TypeParagraph:
		b.Paragraph = p
	case TypeHeading1:
		b.Heading1 = p
	case TypeHeading2:
		b.Heading2 = p
	case TypeHeading3:
		b.Heading3 = p
	case TypeBulletedListItem:
		b.BulletedListItem = p
	case TypeNumberedListItem:
		b.NumberedListItem = p
	case TypeToDo:
		b.ToDo = p
	case TypeToggle:
		b.Toggle = p
	case TypeQuote:
		b.Quote = p
	case TypeCallout:
		b.Callout = p
	case TypeCode:
		b.Code = p
	}
	return b
}

// Page is the metadata of a page.
type Page struct {
	ID    string
	Title string
	URL   string
}

// Blocks is an encoded page body ready to be appended in windows.
type Blocks []Block

// Len returns the number of top-level blocks.
func (b Blocks) Len() int { return len(b) }
