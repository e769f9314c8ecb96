package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jbctechsolutions/docsync/internal/domain/errors"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

const recordColumns = `id, source_a_id, source_b_token, local_path, last_synced_direction, last_synced_at`

// Store implements ports.MappingStorePort on SQLite.
type Store struct {
	conn *Connection
	now  func() time.Time
}

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	conn, err := NewConnection(dbPath)
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not resolve database path", err)
	}
	if err := conn.Open(); err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not open mapping database", err)
	}
	return &Store{conn: conn, now: time.Now}, nil
}

// Close implements ports.MappingStorePort.
func (s *Store) Close() error {
	return s.conn.Close()
}

// FindBy implements ports.MappingStorePort.
func (s *Store) FindBy(ctx context.Context, key mapping.Key) (*mapping.Record, error) {
	column, ok := keyColumn(key.System)
	if !ok || key.ID == "" {
		return nil, errors.ErrMappingNotFound
	}
	db, err := s.conn.DB()
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "mapping database unavailable", err)
	}

	row := db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM mappings WHERE "+column+" = ?", key.ID)
	rec, err := scanRecord(row)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrMappingNotFound
	}
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not query mapping", err)
	}
	return rec, nil
}

// Upsert implements ports.MappingStorePort. Matching rows are folded into one
// inside a single transaction.
func (s *Store) Upsert(ctx context.Context, rec *mapping.Record) (*mapping.Record, error) {
	if err := rec.Validate(); err != nil {
		return nil, errors.NewError(errors.CodeValidation, "invalid mapping record", err)
	}
	incoming := *rec
	if incoming.LastSyncedAt.IsZero() {
		incoming.LastSyncedAt = s.now().UTC()
	}

	db, err := s.conn.DB()
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "mapping database unavailable", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not begin transaction", err)
	}
	defer tx.Rollback()

	matches, err := matching(ctx, tx, &incoming)
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not query mappings", err)
	}

	stored := mapping.Fold(matches, incoming)
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	for _, m := range matches {
		if _, err := tx.ExecContext(ctx, "DELETE FROM mappings WHERE id = ?", m.ID); err != nil {
			return nil, errors.NewError(errors.CodeStore, "could not fold mapping", err)
		}
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO mappings ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		stored.ID,
		nullable(stored.SourceAID),
		nullable(stored.SourceBToken),
		nullable(stored.LocalPath),
		string(stored.LastSyncedDirection),
		stored.LastSyncedAt.UnixNano(),
	)
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not save mapping", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not commit mapping", err)
	}
	return &stored, nil
}

// matching loads the rows holding any identifier of rec in insertion order.
func matching(ctx context.Context, tx *sql.Tx, rec *mapping.Record) ([]mapping.Record, error) {
	var clauses []string
	var args []any
	for _, k := range rec.Keys() {
		column, _ := keyColumn(k.System)
		clauses = append(clauses, column+" = ?")
		args = append(args, k.ID)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM mappings WHERE "+strings.Join(clauses, " OR ")+" ORDER BY rowid", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []mapping.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// ListAll implements ports.MappingStorePort.
func (s *Store) ListAll(ctx context.Context) ([]mapping.Record, error) {
	db, err := s.conn.DB()
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "mapping database unavailable", err)
	}
	rows, err := db.QueryContext(ctx, "SELECT "+recordColumns+" FROM mappings ORDER BY last_synced_at DESC, rowid")
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not list mappings", err)
	}
	defer rows.Close()

	var out []mapping.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, errors.NewError(errors.CodeStore, "could not read mapping", err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not list mappings", err)
	}
	return out, nil
}

// SavePending implements ports.MappingStorePort.
func (s *Store) SavePending(ctx context.Context, p *mapping.PendingWrite) error {
	db, err := s.conn.DB()
	if err != nil {
		return errors.NewError(errors.CodeStore, "mapping database unavailable", err)
	}
	updated := p.UpdatedAt
	if updated.IsZero() {
		updated = s.now().UTC()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO pending_writes (direction, source_id, destination_id, content_hash, committed, total, created_destination, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(direction, source_id) DO UPDATE SET
			destination_id = excluded.destination_id,
			content_hash = excluded.content_hash,
			committed = excluded.committed,
			total = excluded.total,
			created_destination = excluded.created_destination,
			updated_at = excluded.updated_at`,
		string(p.Direction), p.SourceID, p.DestinationID, p.ContentHash,
		p.Committed, p.Total, p.CreatedDestination, updated.UnixNano(),
	)
	if err != nil {
		return errors.NewError(errors.CodeStore, "could not save pending write", err)
	}
	return nil
}

// FindPending implements ports.MappingStorePort.
func (s *Store) FindPending(ctx context.Context, d mapping.Direction, sourceID string) (*mapping.PendingWrite, error) {
	db, err := s.conn.DB()
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "mapping database unavailable", err)
	}

	var (
		p       mapping.PendingWrite
		dir     string
		updated int64
	)
	err = db.QueryRowContext(ctx, `
		SELECT direction, source_id, destination_id, content_hash, committed, total, created_destination, updated_at
		FROM pending_writes WHERE direction = ? AND source_id = ?`, string(d), sourceID,
	).Scan(&dir, &p.SourceID, &p.DestinationID, &p.ContentHash, &p.Committed, &p.Total, &p.CreatedDestination, &updated)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.ErrPendingNotFound
	}
	if err != nil {
		return nil, errors.NewError(errors.CodeStore, "could not query pending write", err)
	}
	p.Direction = mapping.Direction(dir)
	p.UpdatedAt = time.Unix(0, updated).UTC()
	return &p, nil
}

// ClearPending implements ports.MappingStorePort.
func (s *Store) ClearPending(ctx context.Context, d mapping.Direction, sourceID string) error {
	db, err := s.conn.DB()
	if err != nil {
		return errors.NewError(errors.CodeStore, "mapping database unavailable", err)
	}
	if _, err := db.ExecContext(ctx, "DELETE FROM pending_writes WHERE direction = ? AND source_id = ?", string(d), sourceID); err != nil {
		return errors.NewError(errors.CodeStore, "could not clear pending write", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*mapping.Record, error) {
	var (
		rec            mapping.Record
		a, b, local    sql.NullString
		direction      string
		lastSyncedNano int64
	)
	if err := row.Scan(&rec.ID, &a, &b, &local, &direction, &lastSyncedNano); err != nil {
		return nil, err
	}
	rec.SourceAID = a.String
	rec.SourceBToken = b.String
	rec.LocalPath = local.String
	rec.LastSyncedDirection = mapping.Direction(direction)
	rec.LastSyncedAt = time.Unix(0, lastSyncedNano).UTC()
	return &rec, nil
}

func keyColumn(s mapping.System) (string, bool) {
	switch s {
	case mapping.SystemA:
		return "source_a_id", true
	case mapping.SystemB:
		return "source_b_token", true
	case mapping.SystemLocal:
		return "local_path", true
	}
	return "", false
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
