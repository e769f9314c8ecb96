package localfs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"

	"github.com/jbctechsolutions/docsync/internal/adapters/markdown"
	"github.com/jbctechsolutions/docsync/internal/application/ports"
	"github.com/jbctechsolutions/docsync/internal/domain/block"
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
	"github.com/jbctechsolutions/docsync/internal/infrastructure/security"
)

const (
	untitled = "untitled"

	// maxNameAttempts bounds the search for a free file name.
	maxNameAttempts = 1000
)

// Document is rendered Markdown ready to be written. It is written as one
// unit; Len counts its top-level blocks for progress reporting.
type Document struct {
	Text   string
	Blocks int
}

// Len implements ports.Encoded.
func (d Document) Len() int { return max(d.Blocks, 1) }

// Endpoint exposes Markdown files under a base directory as a sync source and
// a replace-mode destination. Created files always land inside the base
// directory.
type Endpoint struct {
	files  *FileAccess
	dir    string
	conv   *markdown.Converter
	create *security.PathValidator
}

// NewEndpoint creates an endpoint rooted at dir.
func NewEndpoint(files *FileAccess, dir string) *Endpoint {
	dir = filepath.Clean(dir)
	return &Endpoint{
		files:  files,
		dir:    dir,
		conv:   markdown.NewConverter(),
		create: security.NewPathValidator(dir),
	}
}

// System implements ports.SourcePort.
func (e *Endpoint) System() mapping.System { return mapping.SystemLocal }

// NormalizeID resolves relative paths against the base directory and cleans
// the result, so one file always maps to the same identifier.
func (e *Endpoint) NormalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewError(errors.CodeValidation, "empty file path", nil)
	}
	if !filepath.IsAbs(id) {
		id = filepath.Join(e.dir, id)
	}
	return filepath.Clean(id), nil
}

// Documents lists every Markdown file under the base directory.
func (e *Endpoint) Documents() ([]string, error) {
	return e.files.Glob(e.dir, "**/*"+Extension)
}

// Dir returns the base directory.
func (e *Endpoint) Dir() string { return e.dir }

// Fetch implements ports.SourcePort. The title is the file name without its
// extension.
func (e *Endpoint) Fetch(_ context.Context, id string) (*ports.Fetched, error) {
	text, err := e.files.ReadText(id)
	if err != nil {
		return nil, err
	}
	return &ports.Fetched{ID: id, Title: Title(id), Native: text}, nil
}

// Title derives a document title from a file path.
func Title(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ToCanonical implements ports.SourcePort.
func (e *Endpoint) ToCanonical(doc *ports.Fetched) ([]block.Block, []block.Warning) {
	text, ok := doc.Native.(string)
	if !ok {
		return nil, []block.Warning{block.Unsupported("document", fmt.Sprintf("unexpected payload %T", doc.Native))}
	}
	return e.conv.ToCanonical([]byte(text))
}

// WriteMode implements ports.DestinationPort.
func (e *Endpoint) WriteMode() ports.WriteMode { return ports.WriteReplace }

// WindowSize implements ports.DestinationPort. Files are written whole.
func (e *Endpoint) WindowSize() int { return 0 }

// Encode implements ports.DestinationPort.
func (e *Endpoint) Encode(blocks []block.Block, _ string) (ports.Encoded, []block.Warning) {
	text, warnings := e.conv.FromCanonical(blocks)
	return Document{Text: text, Blocks: len(blocks)}, warnings
}

// Create implements ports.DestinationPort. It reserves <dir>/<slug>.md by
// writing an empty file, adding a numeric suffix when the name is taken.
func (e *Endpoint) Create(_ context.Context, title, parent string) (string, error) {
	dir := e.dir
	if parent != "" {
		var err error
		if dir, err = e.NormalizeID(parent); err != nil {
			return "", err
		}
		if err := e.create.Validate(dir); err != nil {
			return "", errors.NewError(errors.CodeValidation, "folder for new files", err)
		}
	}

	name := slug.Make(title)
	if name == "" {
		name = untitled
	}

	for i := 1; i <= maxNameAttempts; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s-%d", name, i)
		}
		path := filepath.Join(dir, candidate+Extension)
		exists, err := e.files.Exists(path)
		if err != nil {
			return "", err
		}
		if exists {
			continue
		}
		if err := e.files.WriteTextAtomic(path, ""); err != nil {
			return "", err
		}
		return path, nil
	}
	return "", errors.NewError(errors.CodeValidation, fmt.Sprintf("no free file name for %q in %s", title, dir), nil)
}

// Clear implements ports.DestinationPort. WriteWindow replaces the whole file.
func (e *Endpoint) Clear(context.Context, string) error { return nil }

// WriteWindow implements ports.DestinationPort.
func (e *Endpoint) WriteWindow(_ context.Context, id string, enc ports.Encoded, start, _ int) error {
	doc, ok := enc.(Document)
	if !ok {
		return errors.NewError(errors.CodeValidation, fmt.Sprintf("unexpected payload %T", enc), nil)
	}
	if start != 0 {
		return nil
	}
	return e.files.WriteTextAtomic(id, doc.Text)
}
