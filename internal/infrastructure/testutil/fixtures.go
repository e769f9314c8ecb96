package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jbctechsolutions/docsync/internal/application/ports"
	"github.com/jbctechsolutions/docsync/internal/domain/block"
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

// Paragraphs returns n paragraphs with the texts "p0" ... "p<n-1>".
func Paragraphs(n int) []block.Block {
	out := make([]block.Block, n)
	for i := range out {
		out[i] = block.Paragraph(fmt.Sprintf("p%d", i))
	}
	return out
}

// Payload is the encoded form produced by FakeEndpoint: one unit per
// top-level block.
type Payload struct {
	Blocks []block.Block
}

// Len implements ports.Encoded.
func (p Payload) Len() int { return len(p.Blocks) }

// Window records one WriteWindow call.
type Window struct {
	ID         string
	Start, End int
}

// FakeEndpoint is an in-memory endpoint. Documents are stored as canonical
// blocks keyed by id.
type FakeEndpoint struct {
	Sys    mapping.System
	Mode   ports.WriteMode
	Window int

	// FailAt makes the n-th WriteWindow call (1-based) fail with FailErr.
	FailAt  int
	FailErr error

	// CreateErr is returned by Create when set.
	CreateErr error

	mu       sync.Mutex
	docs     map[string][]block.Block
	titles   map[string]string
	warnings map[string][]block.Warning
	windows  []Window
	created  []string
	cleared  []string
	calls    int
}

// NewFakeEndpoint creates an empty endpoint for sys.
func NewFakeEndpoint(sys mapping.System, mode ports.WriteMode, window int) *FakeEndpoint {
	return &FakeEndpoint{
		Sys:      sys,
		Mode:     mode,
		Window:   window,
		docs:     make(map[string][]block.Block),
		titles:   make(map[string]string),
		warnings: make(map[string][]block.Warning),
	}
}

// Put stores a document, with the warnings its conversion reports.
func (f *FakeEndpoint) Put(id, title string, blocks []block.Block, warnings ...block.Warning) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[id] = blocks
	f.titles[id] = title
	f.warnings[id] = warnings
}

// Doc returns the blocks stored under id.
func (f *FakeEndpoint) Doc(id string) []block.Block {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]block.Block(nil), f.docs[id]...)
}

// Windows returns the recorded WriteWindow calls.
func (f *FakeEndpoint) Windows() []Window {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Window(nil), f.windows...)
}

// Created returns the ids returned by Create.
func (f *FakeEndpoint) Created() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

// Cleared returns the ids passed to Clear.
func (f *FakeEndpoint) Cleared() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cleared...)
}

// System implements ports.SourcePort.
func (f *FakeEndpoint) System() mapping.System { return f.Sys }

// NormalizeID implements ports.SourcePort.
func (f *FakeEndpoint) NormalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewError(errors.CodeValidation, "empty id", nil)
	}
	return id, nil
}

// Fetch implements ports.SourcePort.
func (f *FakeEndpoint) Fetch(_ context.Context, id string) (*ports.Fetched, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blocks, ok := f.docs[id]
	if !ok {
		return nil, errors.NewError(errors.CodeSourceNotFound, fmt.Sprintf("%s not found", id), nil)
	}
	return &ports.Fetched{ID: id, Title: f.titles[id], Native: append([]block.Block(nil), blocks...)}, nil
}

// ToCanonical implements ports.SourcePort.
func (f *FakeEndpoint) ToCanonical(doc *ports.Fetched) ([]block.Block, []block.Warning) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blocks, _ := doc.Native.([]block.Block)
	return blocks, f.warnings[doc.ID]
}

// WriteMode implements ports.DestinationPort.
func (f *FakeEndpoint) WriteMode() ports.WriteMode { return f.Mode }

// WindowSize implements ports.DestinationPort.
func (f *FakeEndpoint) WindowSize() int { return f.Window }

// Encode implements ports.DestinationPort.
func (f *FakeEndpoint) Encode(blocks []block.Block, _ string) (ports.Encoded, []block.Warning) {
	return Payload{Blocks: blocks}, nil
}

// Create implements ports.DestinationPort.
func (f *FakeEndpoint) Create(_ context.Context, title, _ string) (string, error) {
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	id := fmt.Sprintf("%s-doc-%d", string(f.Sys), len(f.created)+1)
	f.docs[id] = nil
	f.titles[id] = title
	f.created = append(f.created, id)
	return id, nil
}

// Clear implements ports.DestinationPort.
func (f *FakeEndpoint) Clear(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return errors.NewError(errors.CodeSourceNotFound, fmt.Sprintf("%s not found", id), nil)
	}
	f.docs[id] = nil
	f.cleared = append(f.cleared, id)
	return nil
}

// WriteWindow implements ports.DestinationPort.
func (f *FakeEndpoint) WriteWindow(_ context.Context, id string, enc ports.Encoded, start, end int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.FailAt > 0 && f.calls == f.FailAt {
		return f.FailErr
	}
	if _, ok := f.docs[id]; !ok {
		return errors.NewError(errors.CodeSourceNotFound, fmt.Sprintf("%s not found", id), nil)
	}
	payload := enc.(Payload)
	f.docs[id] = append(f.docs[id], payload.Blocks[start:end]...)
	f.windows = append(f.windows, Window{ID: id, Start: start, End: end})
	return nil
}
