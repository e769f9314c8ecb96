// Package jsonfile provides the JSON file mapping store. Every mutation is a
// locked read-modify-write that replaces the file atomically.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/jbctechsolutions/docsync/internal/domain/errors"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

// FormatVersion is the version written to new files.
const FormatVersion = 1

const lockRetryDelay = 50 * time.Millisecond

// document is the on-disk layout.
type document struct {
	Version int                    `json:"version"`
	Records []mapping.Record       `json:"records"`
	Pending []mapping.PendingWrite `json:"pending,omitempty"`
}

// Store implements ports.MappingStorePort on a JSON file.
type Store struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
	now  func() time.Time
}

// New creates a store backed by path. The file is created on first write;
// its lock lives beside it in <path>.lock.
func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.NewError(errors.CodeValidation, "mapping file path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not create mapping directory", err)
	}
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
		now:  time.Now,
	}, nil
}

// Path returns the mapping file path.
func (s *Store) Path() string { return s.path }

// FindBy implements ports.MappingStorePort.
func (s *Store) FindBy(ctx context.Context, key mapping.Key) (*mapping.Record, error) {
	var found *mapping.Record
	err := s.view(ctx, func(doc *document) {
		for i := range doc.Records {
			if doc.Records[i].Matches(key) {
				rec := doc.Records[i]
				found = &rec
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errors.ErrMappingNotFound
	}
	return found, nil
}

// Upsert implements ports.MappingStorePort. Records sharing any identifier
// with rec are folded into one.
func (s *Store) Upsert(ctx context.Context, rec *mapping.Record) (*mapping.Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, errors.NewError(errors.CodeValidation, "invalid mapping record", err)
	}

	incoming := *rec
	if incoming.LastSyncedAt.IsZero() {
		incoming.LastSyncedAt = s.now().UTC()
	}

	var stored mapping.Record
	err := s.update(ctx, func(doc *document) error {
		matches, rest := mapping.Partition(doc.Records, &incoming)
		stored = mapping.Fold(matches, incoming)
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		doc.Records = append(rest, stored)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// ListAll implements ports.MappingStorePort.
func (s *Store) ListAll(ctx context.Context) ([]mapping.Record, error) {
	var out []mapping.Record
	err := s.view(ctx, func(doc *document) {
		out = append(out, doc.Records...)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastSyncedAt.After(out[j].LastSyncedAt)
	})
	return out, nil
}

// SavePending implements ports.MappingStorePort.
func (s *Store) SavePending(ctx context.Context, p *mapping.PendingWrite) error {
	return s.update(ctx, func(doc *document) error {
		cursor := *p
		if cursor.UpdatedAt.IsZero() {
			cursor.UpdatedAt = s.now().UTC()
		}
		for i := range doc.Pending {
			if doc.Pending[i].Matches(p.Direction, p.SourceID) {
				doc.Pending[i] = cursor
				return nil
			}
		}
		doc.Pending = append(doc.Pending, cursor)
		return nil
	})
}

// FindPending implements ports.MappingStorePort.
func (s *Store) FindPending(ctx context.Context, d mapping.Direction, sourceID string) (*mapping.PendingWrite, error) {
	var found *mapping.PendingWrite
	err := s.view(ctx, func(doc *document) {
		for i := range doc.Pending {
			if doc.Pending[i].Matches(d, sourceID) {
				p := doc.Pending[i]
				found = &p
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, errors.ErrPendingNotFound
	}
	return found, nil
}

// ClearPending implements ports.MappingStorePort.
func (s *Store) ClearPending(ctx context.Context, d mapping.Direction, sourceID string) error {
	return s.update(ctx, func(doc *document) error {
		kept := doc.Pending[:0]
		for _, p := range doc.Pending {
			if !p.Matches(d, sourceID) {
				kept = append(kept, p)
			}
		}
		doc.Pending = kept
		return nil
	})
}

// Close implements ports.MappingStorePort.
func (s *Store) Close() error {
	return s.lock.Close()
}

// view runs fn on the current file content under the shared lock.
func (s *Store) view(ctx context.Context, fn func(doc *document)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lock.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return errors.NewError(errors.CodeStore, "could not lock mapping file", err)
	}
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	fn(doc)
	return nil
}

// update runs fn under the exclusive lock and writes the result back.
func (s *Store) update(ctx context.Context, fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lock.TryLockContext(ctx, lockRetryDelay); err != nil {
		return errors.NewError(errors.CodeStore, "could not lock mapping file", err)
	}
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

func (s *Store) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &document{Version: FormatVersion}, nil
	}
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not read mapping file", err)
	}
	if len(data) == 0 {
		return &document{Version: FormatVersion}, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.NewError(errors.CodeStore, fmt.Sprintf("mapping file %s is not valid JSON", s.path), nil)
	}

	version := gjson.GetBytes(data, "version")
	if !version.Exists() {
		return legacy(data), nil
	}
	if version.Int() > FormatVersion {
		return nil, errors.NewError(errors.CodeStore,
			fmt.Sprintf("mapping file version %d is newer than supported version %d", version.Int(), FormatVersion), nil)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not decode mapping file", err)
	}
	doc.Version = FormatVersion
	return &doc, nil
}

// legacyTimeLayouts are the timestamp formats of unversioned mapping files.
var legacyTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"}

// legacy converts an unversioned file, an object keyed by A page id holding
// feishu_token, md_file and last_sync, into records.
func legacy(data []byte) *document {
	doc := &document{Version: FormatVersion}
	gjson.ParseBytes(data).ForEach(func(key, value gjson.Result) bool {
		rec := mapping.Record{
			ID:           uuid.NewString(),
			SourceAID:    key.String(),
			SourceBToken: value.Get("feishu_token").String(),
			LocalPath:    value.Get("md_file").String(),
		}
		if rec.SourceBToken != "" {
			rec.LastSyncedDirection = mapping.AToB
		}
		for _, layout := range legacyTimeLayouts {
			if t, err := time.Parse(layout, value.Get("last_sync").String()); err == nil {
				rec.LastSyncedAt = t.UTC()
				break
			}
		}
		doc.Records = append(doc.Records, rec)
		return true
	})
	return doc
}

// write replaces the file atomically: temp file in the same directory, fsync,
// rename.
func (s *Store) write(doc *document) (err error) {
	doc.Version = FormatVersion
	if doc.Records == nil {
		doc.Records = []mapping.Record{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.NewError(errors.CodeStore, "could not encode mapping file", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.NewError(errors.CodeStore, "could not create temporary mapping file", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return errors.NewError(errors.CodeStore, "could not write mapping file", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.NewError(errors.CodeStore, "could not sync mapping file", err)
	}
	if err = tmp.Close(); err != nil {
		return errors.NewError(errors.CodeStore, "could not close mapping file", err)
	}
	if err = os.Rename(tmp.Name(), s.path); err != nil {
		return errors.NewError(errors.CodeStore, "could not replace mapping file", err)
	}
	return nil
}
