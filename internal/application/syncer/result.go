package syncer

import (
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

// State is a step of the sync state machine.
type State string

const (
	StateFetchSource        State = "FETCH_SOURCE"
	StateConvertToCanonical State = "CONVERT_TO_CANONICAL"
	StateResolveDestination State = "RESOLVE_DESTINATION"
	StateWriteDestination   State = "WRITE_DESTINATION"
	StatePersistMapping     State = "PERSIST_MAPPING"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// Status is the overall outcome of a sync.
type Status string

const (
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
)

// Operation describes what happened to the destination document.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationResume Operation = "resume"
)

// Request names one sync invocation.
type Request struct {
	Direction mapping.Direction
	SourceID  string

	// DestinationID overrides the mapping lookup when set.
	DestinationID string

	// Title is used when a destination document is created. Defaults to the
	// source document's title.
	Title string

	// Folder is the parent for created documents (B folder token or a local
	// subdirectory).
	Folder string

	// Link names documents in the third system that belong to the same
	// mapping. They are recorded with the source and destination once the
	// write succeeds.
	Link []mapping.Key
}

// Result is the structured report of a sync invocation.
type Result struct {
	Direction      mapping.Direction `json:"direction"`
	SourceID       string            `json:"source_id"`
	CorrelationID  string            `json:"correlation_id"`
	Status         Status            `json:"status"`
	DestinationID  string            `json:"destination_id,omitempty"`
	Operation      Operation         `json:"operation,omitempty"`
	CommittedCount int               `json:"committed_count"`
	TotalCount     int               `json:"total_count"`
	Warnings       []string          `json:"warnings"`
	Err            *errors.SyncError `json:"-"`
	FailedState    State             `json:"failed_state,omitempty"`
}

// Error returns the failure message, or "" on success.
func (r *Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// OK reports whether every block was written and the mapping persisted.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}

// StatusReport describes what is known about one document.
type StatusReport struct {
	Key     mapping.Key
	Record  *mapping.Record
	Pending []mapping.PendingWrite
}

// Linked reports whether the document has a mapping record.
func (s *StatusReport) Linked() bool {
	return s.Record != nil
}
