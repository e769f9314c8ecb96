package notion

import (
	"context"
	"fmt"

	"github.com/jbctechsolutions/docsync/internal/application/ports"
	"github.com/jbctechsolutions/docsync/internal/domain/block"
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

// Endpoint exposes the page service as a sync source and an append-only
// destination.
type Endpoint struct {
	client Client
	conv   *Converter
	window int
}

// NewEndpoint creates an endpoint. window is clamped to MaxAppendBlocks.
func NewEndpoint(client Client, window int) *Endpoint {
	if window <= 0 || window > MaxAppendBlocks {
		window = MaxAppendBlocks
	}
	return &Endpoint{client: client, conv: NewConverter(), window: window}
}

// System implements ports.SourcePort.
func (e *Endpoint) System() mapping.System { return mapping.SystemA }

// NormalizeID implements ports.SourcePort.
func (e *Endpoint) NormalizeID(id string) (string, error) { return NormalizeID(id) }

// Fetch implements ports.SourcePort.
func (e *Endpoint) Fetch(ctx context.Context, id string) (*ports.Fetched, error) {
	page, err := e.client.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	blocks, err := e.client.GetPageBlocks(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ports.Fetched{ID: id, Title: page.Title, Native: blocks}, nil
}

// ToCanonical implements ports.SourcePort.
func (e *Endpoint) ToCanonical(doc *ports.Fetched) ([]block.Block, []block.Warning) {
	natives, ok := doc.Native.([]Block)
	if !ok {
		return nil, []block.Warning{block.Unsupported("document", fmt.Sprintf("unexpected payload %T", doc.Native))}
	}
	return e.conv.ToCanonical(natives)
}

// WriteMode implements ports.DestinationPort. The service only appends.
func (e *Endpoint) WriteMode() ports.WriteMode { return ports.WriteAppend }

// WindowSize implements ports.DestinationPort.
func (e *Endpoint) WindowSize() int { return e.window }

// Encode implements ports.DestinationPort.
func (e *Endpoint) Encode(blocks []block.Block, _ string) (ports.Encoded, []block.Warning) {
	return e.conv.FromCanonical(blocks)
}

// Create implements ports.DestinationPort. Pages must already exist.
func (e *Endpoint) Create(_ context.Context, title, _ string) (string, error) {
	return "", errors.NewError(errors.CodeDestinationNotFound,
		fmt.Sprintf("no page is linked for %q; pass an existing page id", title), errors.ErrCreateUnsupported)
}

// Clear implements ports.DestinationPort. Appending never clears.
func (e *Endpoint) Clear(context.Context, string) error { return nil }

// WriteWindow implements ports.DestinationPort.
func (e *Endpoint) WriteWindow(ctx context.Context, id string, enc ports.Encoded, start, end int) error {
	natives, ok := enc.(Blocks)
	if !ok {
		return errors.NewError(errors.CodeValidation, fmt.Sprintf("unexpected payload %T", enc), nil)
	}
	return e.client.AppendBlocks(ctx, id, natives[start:end])
}
