package ports

import (
	"context"

	"github.com/jbctechsolutions/docsync/internal/domain/block"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

// WriteMode declares how a destination applies new content.
type WriteMode string

const (
	// WriteAppend adds blocks after the destination's existing content.
	WriteAppend WriteMode = "append"
	// WriteReplace discards existing content before writing.
	WriteReplace WriteMode = "replace"
)

// Fetched is a source document in its native form.
type Fetched struct {
	ID     string
	Title  string
	Native any
}

// Encoded is destination-native content ready to be written in windows.
// Len is the number of native units that windows are cut from.
type Encoded interface {
	Len() int
}

// SourcePort reads documents from one system and converts them to canonical blocks.
type SourcePort interface {
	// System identifies the system this endpoint serves.
	System() mapping.System

	// NormalizeID converts user input into the identifier stored in mappings.
	NormalizeID(id string) (string, error)

	// Fetch retrieves the native document.
	Fetch(ctx context.Context, id string) (*Fetched, error)

	// ToCanonical converts a fetched document. It never fails; unsupported
	// native blocks degrade to paragraphs and are reported as warnings.
	ToCanonical(doc *Fetched) ([]block.Block, []block.Warning)
}

// DestinationPort writes canonical blocks into one system.
type DestinationPort interface {
	// System identifies the system this endpoint serves.
	System() mapping.System

	// NormalizeID converts user input into the identifier stored in mappings.
	NormalizeID(id string) (string, error)

	// WriteMode declares whether writes append to or replace existing content.
	WriteMode() WriteMode

	// WindowSize is the maximum number of native units per write request.
	// Zero means the whole payload is written at once.
	WindowSize() int

	// Encode converts canonical blocks into the native payload.
	Encode(blocks []block.Block, title string) (Encoded, []block.Warning)

	// Create makes a new empty destination document and returns its id.
	// Destinations that cannot create documents return errors.ErrCreateUnsupported.
	Create(ctx context.Context, title, parent string) (string, error)

	// Clear removes existing content ahead of a replace-mode write.
	Clear(ctx context.Context, id string) error

	// WriteWindow writes native units [start, end) of enc at position start.
	WriteWindow(ctx context.Context, id string, enc Encoded, start, end int) error
}

// Endpoint is a system that can act as both source and destination.
type Endpoint interface {
	SourcePort
	DestinationPort
}

// MappingStorePort persists mapping records and resume cursors. Every
// mutation is an atomic read-modify-write of the backing store.
type MappingStorePort interface {
	// FindBy returns the record holding key, or errors.ErrMappingNotFound.
	FindBy(ctx context.Context, key mapping.Key) (*mapping.Record, error)

	// Upsert inserts rec or merges it into the record(s) sharing any of its
	// identifiers, and returns the stored record.
	Upsert(ctx context.Context, rec *mapping.Record) (*mapping.Record, error)

	// ListAll returns every record, most recently synced first.
	ListAll(ctx context.Context) ([]mapping.Record, error)

	// SavePending stores the resume cursor for a direction and source.
	SavePending(ctx context.Context, p *mapping.PendingWrite) error

	// FindPending returns the cursor, or errors.ErrPendingNotFound.
	FindPending(ctx context.Context, d mapping.Direction, sourceID string) (*mapping.PendingWrite, error)

	// ClearPending removes the cursor if present.
	ClearPending(ctx context.Context, d mapping.Direction, sourceID string) error

	// Close releases resources held by the store.
	Close() error
}

// FileAccessPort reads and writes local text files.
type FileAccessPort interface {
	// ReadText returns the file content.
	ReadText(path string) (string, error)

	// WriteTextAtomic replaces the file content so that readers observe either
	// the old or the new content, never a truncated file.
	WriteTextAtomic(path, text string) error

	// Exists reports whether path exists.
	Exists(path string) (bool, error)
}
