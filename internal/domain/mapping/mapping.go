// Package mapping defines the records that correlate one logical document
// across the page service (A), the cloud-document service (B) and local files.
package mapping

import (
	"fmt"
	"strings"
	"time"

	"github.com/jbctechsolutions/docsync/internal/domain/errors"
)

// System identifies one of the synchronized document systems.
type System string

const (
	SystemA     System = "a"
	SystemB     System = "b"
	SystemLocal System = "local"
)

// String returns a human label for the system.
func (s System) String() string {
	switch s {
	case SystemA:
		return "notion"
	case SystemB:
		return "feishu"
	case SystemLocal:
		return "local"
	}
	return string(s)
}

// Direction is one of the six directed sync operations.
type Direction string

const (
	AToB        Direction = "a-to-b"
	AToLocal    Direction = "a-to-local"
	BToA        Direction = "b-to-a"
	BToLocal    Direction = "b-to-local"
	LocalToA    Direction = "local-to-a"
	LocalToB    Direction = "local-to-b"
	NoDirection Direction = ""
)

const directionSep = "-to-"

// Directions lists every valid direction.
var Directions = []Direction{AToB, AToLocal, BToA, BToLocal, LocalToA, LocalToB}

// ParseSystem accepts a system code or one of its labels.
func ParseSystem(s string) (System, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "a", "notion":
		return SystemA, true
	case "b", "feishu", "lark":
		return SystemB, true
	case "local", "markdown", "md":
		return SystemLocal, true
	}
	return "", false
}

// ParseDirection validates a direction string. Either side may use a system
// label, so "notion-to-feishu" and "markdown-to-notion" are accepted.
func ParseDirection(s string) (Direction, error) {
	from, to, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), directionSep)
	if ok {
		src, okSrc := ParseSystem(from)
		dst, okDst := ParseSystem(to)
		if okSrc && okDst {
			if d := Direction(string(src) + directionSep + string(dst)); d.Valid() {
				return d, nil
			}
		}
	}
	return NoDirection, fmt.Errorf("%w: %q", errors.ErrUnknownDirection, s)
}

// Valid reports whether d is one of the six directions.
func (d Direction) Valid() bool {
	for _, v := range Directions {
		if d == v {
			return true
		}
	}
	return false
}

// Source returns the system the direction reads from.
func (d Direction) Source() System {
	from, _, _ := strings.Cut(string(d), directionSep)
	return System(from)
}

// Destination returns the system the direction writes to.
func (d Direction) Destination() System {
	_, to, _ := strings.Cut(string(d), directionSep)
	return System(to)
}

// Record correlates one logical document across the three systems.
type Record struct {
	ID                  string    `json:"id"`
	SourceAID           string    `json:"source_a_id,omitempty"`
	SourceBToken        string    `json:"source_b_token,omitempty"`
	LocalPath           string    `json:"local_path,omitempty"`
	LastSyncedDirection Direction `json:"last_synced_direction"`
	LastSyncedAt        time.Time `json:"last_synced_at"`
}

// Validate checks that the record has at least one identifier.
func (r *Record) Validate() error {
	if r.SourceAID == "" && r.SourceBToken == "" && r.LocalPath == "" {
		return errors.ErrInvalidRecord
	}
	if r.LastSyncedDirection != NoDirection && !r.LastSyncedDirection.Valid() {
		return fmt.Errorf("%w: %q", errors.ErrUnknownDirection, r.LastSyncedDirection)
	}
	return nil
}

// IDFor returns the record's identifier in the given system.
func (r *Record) IDFor(s System) string {
	switch s {
	case SystemA:
		return r.SourceAID
	case SystemB:
		return r.SourceBToken
	case SystemLocal:
		return r.LocalPath
	}
	return ""
}

// SetID sets the record's identifier in the given system.
func (r *Record) SetID(s System, id string) {
	switch s {
	case SystemA:
		r.SourceAID = id
	case SystemB:
		r.SourceBToken = id
	case SystemLocal:
		r.LocalPath = id
	}
}

// Keys returns a lookup key for every non-empty identifier.
func (r *Record) Keys() []Key {
	var keys []Key
	for _, s := range []System{SystemA, SystemB, SystemLocal} {
		if id := r.IDFor(s); id != "" {
			keys = append(keys, Key{System: s, ID: id})
		}
	}
	return keys
}

// Matches reports whether the record holds the identifier named by k.
func (r *Record) Matches(k Key) bool {
	return k.ID != "" && r.IDFor(k.System) == k.ID
}

// Merge folds the non-empty identifiers of other into r. Direction and
// timestamp are taken from other when it is newer.
func (r *Record) Merge(other *Record) {
	for _, s := range []System{SystemA, SystemB, SystemLocal} {
		if id := other.IDFor(s); id != "" {
			r.SetID(s, id)
		}
	}
	if other.LastSyncedAt.After(r.LastSyncedAt) || r.LastSyncedAt.IsZero() {
		r.LastSyncedAt = other.LastSyncedAt
		r.LastSyncedDirection = other.LastSyncedDirection
	}
}

// Key names a single identifier in one system.
type Key struct {
	System System
	ID     string
}

// KeyA builds a lookup key for an A page id.
func KeyA(id string) Key { return Key{System: SystemA, ID: id} }

// KeyB builds a lookup key for a B document token.
func KeyB(token string) Key { return Key{System: SystemB, ID: token} }

// KeyLocal builds a lookup key for a local path.
func KeyLocal(path string) Key { return Key{System: SystemLocal, ID: path} }

// String renders the key for logs.
func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.System, k.ID)
}

// PendingWrite is a resume cursor for a destination write that committed some
// but not all of its windows. It is stored beside the mapping records but is
// never reported as one.
type PendingWrite struct {
	Direction          Direction `json:"direction"`
	SourceID           string    `json:"source_id"`
	DestinationID      string    `json:"destination_id"`
	ContentHash        string    `json:"content_hash"`
	Committed          int       `json:"committed"`
	Total              int       `json:"total"`
	CreatedDestination bool      `json:"created_destination"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Matches reports whether the cursor belongs to the given direction and source.
func (p *PendingWrite) Matches(d Direction, sourceID string) bool {
	return p.Direction == d && p.SourceID == sourceID
}

// Partition splits records into those sharing an identifier with rec and
// the rest, preserving order.
func Partition(records []Record, rec *Record) (matches, rest []Record) {
	keys := rec.Keys()
	for _, r := range records {
		matched := false
		for _, k := range keys {
			if r.Matches(k) {
				matched = true
				break
			}
		}
		if matched {
			matches = append(matches, r)
		} else {
			rest = append(rest, r)
		}
	}
	return matches, rest
}

// Fold merges rec into the records it matches, producing the single record
// that replaces them. The first match keeps its ID; with no matches rec is
// returned unchanged.
func Fold(matches []Record, rec Record) Record {
	if len(matches) == 0 {
		return rec
	}
	out := matches[0]
	for i := 1; i < len(matches); i++ {
		out.Merge(&matches[i])
	}
	out.Merge(&rec)
	return out
}
