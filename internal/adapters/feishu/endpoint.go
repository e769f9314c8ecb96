package feishu

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/jbctechsolutions/docsync/internal/application/ports"
	"github.com/jbctechsolutions/docsync/internal/domain/block"
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,}$`)

// NormalizeID accepts a bare document token or a document URL and returns
// the token.
func NormalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if u, err := url.Parse(id); err == nil && u.Host != "" {
		id = path.Base(strings.TrimRight(u.Path, "/"))
	}
	if !tokenPattern.MatchString(id) {
		return "", errors.NewError(errors.CodeValidation, fmt.Sprintf("invalid document token %q", id), nil)
	}
	return id, nil
}

// Endpoint exposes the document service as a sync source and a destination
// that is cleared and rewritten on every sync.
type Endpoint struct {
	client Client
	conv   *Converter
	window int
	folder string
}

// NewEndpoint creates an endpoint. window is clamped to MaxWriteBlocks;
// folder is where new documents are created when no parent is given.
func NewEndpoint(client Client, window int, folder string) *Endpoint {
	if window <= 0 || window > MaxWriteBlocks {
		window = MaxWriteBlocks
	}
	return &Endpoint{client: client, conv: NewConverter(), window: window, folder: folder}
}

// System implements ports.SourcePort.
func (e *Endpoint) System() mapping.System { return mapping.SystemB }

// NormalizeID implements ports.SourcePort.
func (e *Endpoint) NormalizeID(id string) (string, error) { return NormalizeID(id) }

// Fetch implements ports.SourcePort.
func (e *Endpoint) Fetch(ctx context.Context, id string) (*ports.Fetched, error) {
	doc, err := e.client.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	blocks, err := e.client.GetDocumentBlocks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ports.Fetched{ID: id, Title: doc.Title, Native: blocks}, nil
}

// ToCanonical implements ports.SourcePort.
func (e *Endpoint) ToCanonical(doc *ports.Fetched) ([]block.Block, []block.Warning) {
	natives, ok := doc.Native.([]Block)
	if !ok {
		return nil, []block.Warning{block.Unsupported("document", fmt.Sprintf("unexpected payload %T", doc.Native))}
	}
	return e.conv.ToCanonical(natives)
}

// WriteMode implements ports.DestinationPort.
func (e *Endpoint) WriteMode() ports.WriteMode { return ports.WriteReplace }

// WindowSize implements ports.DestinationPort.
func (e *Endpoint) WindowSize() int { return e.window }

// Encode implements ports.DestinationPort.
func (e *Endpoint) Encode(blocks []block.Block, _ string) (ports.Encoded, []block.Warning) {
	return e.conv.FromCanonical(blocks)
}

// Create implements ports.DestinationPort.
func (e *Endpoint) Create(ctx context.Context, title, parent string) (string, error) {
	if parent == "" {
		parent = e.folder
	}
	return e.client.CreateDocument(ctx, title, parent)
}

// Clear implements ports.DestinationPort.
func (e *Endpoint) Clear(ctx context.Context, id string) error {
	return e.client.ClearDocument(ctx, id)
}

// WriteWindow implements ports.DestinationPort. Windows are inserted at their
// start offset so a resumed write lands after the committed prefix.
func (e *Endpoint) WriteWindow(ctx context.Context, id string, enc ports.Encoded, start, end int) error {
	natives, ok := enc.(Blocks)
	if !ok {
		return errors.NewError(errors.CodeValidation, fmt.Sprintf("unexpected payload %T", enc), nil)
	}
	return e.client.WriteBlocks(ctx, id, start, natives[start:end])
}
