// Package syncer runs one directed sync between two document systems: fetch,
// convert through the canonical block model, resolve the destination, write in
// windows and record the mapping.
package syncer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jbctechsolutions/docsync/internal/application/ports"
	"github.com/jbctechsolutions/docsync/internal/domain/block"
	"github.com/jbctechsolutions/docsync/internal/domain/errors"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
	"github.com/jbctechsolutions/docsync/internal/infrastructure/logging"
	"github.com/jbctechsolutions/docsync/internal/infrastructure/tracing"
)

// Endpoints resolves the endpoints taking part in a sync.
type Endpoints interface {
	Resolve(d mapping.Direction) (ports.SourcePort, ports.DestinationPort, error)
	Get(sys mapping.System) ports.Endpoint
}

// Engine orchestrates sync invocations.
type Engine struct {
	endpoints Endpoints
	store     ports.MappingStorePort
	logger    *logging.Logger
	tracer    *tracing.Tracer
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithTracer sets the engine's tracer.
func WithTracer(t *tracing.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// WithClock sets the time source used for mapping timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine.
func New(endpoints Endpoints, store ports.MappingStorePort, opts ...Option) *Engine {
	e := &Engine{
		endpoints: endpoints,
		store:     store,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	if e.tracer == nil {
		e.tracer = tracing.Default()
	}
	return e
}

// run carries the state of one invocation between states.
type run struct {
	req    Request
	result *Result

	src      ports.SourcePort
	dst      ports.DestinationPort
	sourceID string
	doc      *ports.Fetched

	blocks   []block.Block
	enc      ports.Encoded
	hash     string
	warnings block.Warnings

	links []mapping.Key

	destID  string
	start   int
	created bool
}

// Sync performs one directed sync. It never returns nil; failures are
// reported through Result.Err and Result.FailedState.
func (e *Engine) Sync(ctx context.Context, req Request) *Result {
	started := time.Now()
	correlationID := uuid.NewString()

	r := &run{
		req: req,
		result: &Result{
			Direction:     req.Direction,
			SourceID:      req.SourceID,
			CorrelationID: correlationID,
			Warnings:      []string{},
		},
	}

	ctx = logging.WithCorrelationID(ctx, correlationID)
	ctx = logging.WithSync(ctx, string(req.Direction), req.SourceID)
	ctx, span := e.tracer.StartSyncSpan(ctx, string(req.Direction), req.SourceID, correlationID)
	logging.LogSyncStart(ctx, e.logger, string(req.Direction), req.SourceID)

	steps := []struct {
		state State
		fn    func(context.Context, *run) error
	}{
		{StateFetchSource, e.fetchSource},
		{StateConvertToCanonical, e.convert},
		{StateResolveDestination, e.resolveDestination},
		{StateWriteDestination, e.writeDestination},
		{StatePersistMapping, e.persistMapping},
	}

	for _, step := range steps {
		if err := e.runState(ctx, step.state, r, step.fn); err != nil {
			r.fail(step.state, err)
			break
		}
	}

	res := r.result
	res.Warnings = append(res.Warnings, r.warnings.Strings()...)
	if res.Err == nil {
		res.Status = StatusSuccess
	}

	span.SetResult(string(res.Status), string(res.Operation), res.DestinationID,
		res.CommittedCount, res.TotalCount, len(res.Warnings))
	if res.Err != nil {
		logging.LogSyncFailed(ctx, e.logger, string(res.FailedState), res.Err, time.Since(started))
		span.EndWithError(res.Err)
	} else {
		logging.LogSyncComplete(ctx, e.logger, string(res.Status), res.DestinationID,
			res.CommittedCount, res.TotalCount, len(res.Warnings), time.Since(started))
		span.End()
	}
	return res
}

func (e *Engine) runState(ctx context.Context, state State, r *run, fn func(context.Context, *run) error) error {
	ctx = logging.WithState(ctx, string(state))
	ctx, span := e.tracer.StartStateSpan(ctx, string(state))
	logging.LogStateEnter(ctx, e.logger, string(state))
	started := time.Now()

	if err := fn(ctx, r); err != nil {
		span.EndWithError(err)
		return err
	}
	logging.LogStateExit(ctx, e.logger, string(state), time.Since(started))
	span.End()
	return nil
}

// fail records err as the outcome. A failure after some windows were
// committed is partial.
func (r *run) fail(state State, err error) {
	se := classify(err)
	r.result.Err = se
	r.result.FailedState = state
	if se.Code == errors.CodePartialWrite && r.result.CommittedCount > 0 {
		r.result.Status = StatusPartial
		return
	}
	r.result.Status = StatusFailure
}

func classify(err error) *errors.SyncError {
	var se *errors.SyncError
	if errors.As(err, &se) {
		return se
	}
	return errors.NewError(errors.CodeTransient, "sync failed", err)
}

func (e *Engine) fetchSource(ctx context.Context, r *run) error {
	if !r.req.Direction.Valid() {
		return errors.NewError(errors.CodeValidation,
			fmt.Sprintf("unknown direction %q", r.req.Direction), errors.ErrUnknownDirection)
	}
	src, dst, err := e.endpoints.Resolve(r.req.Direction)
	if err != nil {
		return err
	}
	r.src, r.dst = src, dst

	if r.sourceID, err = src.NormalizeID(r.req.SourceID); err != nil {
		return err
	}
	r.result.SourceID = r.sourceID

	if r.links, err = e.normalizeLinks(r.req.Link, src.System(), dst.System()); err != nil {
		return err
	}

	doc, err := src.Fetch(ctx, r.sourceID)
	if err != nil {
		return errors.AsSourceError(err)
	}
	r.doc = doc
	return nil
}

// normalizeLinks validates the linked keys of a request. A link may only name
// the system the sync does not touch, and its id is normalized by that
// system's endpoint when one is configured.
func (e *Engine) normalizeLinks(keys []mapping.Key, src, dst mapping.System) ([]mapping.Key, error) {
	var out []mapping.Key
	for _, k := range keys {
		if strings.TrimSpace(k.ID) == "" {
			continue
		}
		if sys, ok := mapping.ParseSystem(string(k.System)); !ok || sys != k.System {
			return nil, errors.NewError(errors.CodeValidation, fmt.Sprintf("cannot link unknown system %q", k.System), nil)
		}
		if k.System == src || k.System == dst {
			return nil, errors.NewError(errors.CodeValidation,
				fmt.Sprintf("cannot link a %s document to a %s to %s sync", k.System, src, dst), nil)
		}
		id := strings.TrimSpace(k.ID)
		if ep := e.endpoints.Get(k.System); ep != nil {
			var err error
			if id, err = ep.NormalizeID(id); err != nil {
				return nil, err
			}
		}
		out = append(out, mapping.Key{System: k.System, ID: id})
	}
	return out, nil
}

func (e *Engine) convert(ctx context.Context, r *run) error {
	blocks, warnings := r.src.ToCanonical(r.doc)
	r.blocks = blocks

	title := r.title()
	enc, encWarnings := r.dst.Encode(blocks, title)
	r.enc = enc
	r.result.TotalCount = enc.Len()

	for _, w := range append(warnings, encWarnings...) {
		logging.LogConversionWarning(ctx, e.logger, string(w.Code), w.BlockType, w.Message)
		tracing.AddEvent(ctx, "sync.conversion_warning",
			attribute.String("warning.code", string(w.Code)),
			attribute.String("warning.block_type", w.BlockType))
		r.warnings.Add(w)
	}

	hash, err := contentHash(r.req.Direction, title, blocks)
	if err != nil {
		return errors.NewError(errors.CodeValidation, "failed to hash converted content", err)
	}
	r.hash = hash
	return nil
}

func (r *run) title() string {
	if r.req.Title != "" {
		return r.req.Title
	}
	if r.doc != nil && r.doc.Title != "" {
		return r.doc.Title
	}
	return "Untitled"
}

// contentHash identifies the payload of a write so that a resume cursor is only
// honoured for the same content.
func contentHash(d mapping.Direction, title string, blocks []block.Block) (string, error) {
	data, err := json.Marshal(struct {
		Direction mapping.Direction `json:"direction"`
		Title     string            `json:"title"`
		Blocks    []block.Block     `json:"blocks"`
	}{d, title, blocks})
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (e *Engine) resolveDestination(ctx context.Context, r *run) error {
	d := r.req.Direction
	dstSys := r.dst.System()

	if r.req.DestinationID != "" {
		id, err := r.dst.NormalizeID(r.req.DestinationID)
		if err != nil {
			return err
		}
		r.destID = id
	} else {
		rec, err := e.store.FindBy(ctx, mapping.Key{System: r.src.System(), ID: r.sourceID})
		switch {
		case err == nil:
			r.destID = rec.IDFor(dstSys)
		case errors.Is(err, errors.ErrMappingNotFound):
		default:
			return storeError("failed to look up mapping", err)
		}
	}

	pending, err := e.store.FindPending(ctx, d, r.sourceID)
	switch {
	case err == nil:
		if r.destID == "" {
			r.destID = pending.DestinationID
			r.created = pending.CreatedDestination
		}
		if pending.DestinationID == r.destID && pending.ContentHash == r.hash &&
			pending.Total == r.result.TotalCount && pending.Committed < pending.Total {
			r.start = pending.Committed
			r.created = pending.CreatedDestination
		}
	case errors.Is(err, errors.ErrPendingNotFound):
	default:
		return storeError("failed to look up pending write", err)
	}

	switch {
	case r.start > 0:
		r.result.Operation = OperationResume
		e.logger.InfoContext(ctx, "resuming interrupted write",
			"destination_id", r.destID, "committed", r.start, "total", r.result.TotalCount)
	case r.destID != "":
		r.result.Operation = OperationUpdate
	default:
		id, err := r.dst.Create(ctx, r.title(), r.req.Folder)
		if err != nil {
			return errors.AsDestinationError(err)
		}
		r.destID = id
		r.created = true
		r.result.Operation = OperationCreate
		e.logger.InfoContext(ctx, "destination created", "destination_id", id)
	}

	r.result.DestinationID = r.destID
	r.result.CommittedCount = r.start
	tracing.SetAttribute(ctx, "sync.destination_id", r.destID)
	tracing.SetAttribute(ctx, "sync.operation", string(r.result.Operation))
	return nil
}

func (e *Engine) writeDestination(ctx context.Context, r *run) error {
	total := r.result.TotalCount
	dstName := r.dst.System().String()

	if r.start == 0 && r.result.Operation == OperationUpdate {
		switch r.dst.WriteMode() {
		case ports.WriteReplace:
			if err := r.dst.Clear(ctx, r.destID); err != nil {
				e.savePending(ctx, r, 0)
				return errors.AsDestinationError(err)
			}
		case ports.WriteAppend:
			r.warnings.Add(block.Degraded("document", fmt.Sprintf(
				"%s pages are append-only; content was appended after the existing blocks of %s", dstName, r.destID)))
		}
	}

	size := r.dst.WindowSize()
	if size <= 0 {
		size = max(total, 1)
	}

	for start := r.start; start < total; start += size {
		end := min(start+size, total)

		if err := ctx.Err(); err != nil {
			return e.interrupted(ctx, r, start, errors.NewError(errors.CodeTransient, "sync cancelled", err))
		}

		wctx, span := e.tracer.StartWindowSpan(ctx, dstName, start, end)
		if err := r.dst.WriteWindow(wctx, r.destID, r.enc, start, end); err != nil {
			span.EndWithError(err)
			return e.interrupted(ctx, r, start, errors.AsDestinationError(err))
		}
		span.End()

		r.result.CommittedCount = end
		logging.LogWindowCommitted(ctx, e.logger, start, end, total)
	}
	return nil
}

// interrupted records a cursor for the windows already committed and builds
// the error reported for the failed window.
func (e *Engine) interrupted(ctx context.Context, r *run, committed int, cause *errors.SyncError) error {
	r.result.CommittedCount = committed
	e.savePending(ctx, r, committed)
	if committed == 0 {
		return cause
	}
	return errors.PartialWrite(committed, r.result.TotalCount, cause)
}

// savePending stores a resume cursor when there is something to resume: a
// committed prefix or a destination this sync created.
func (e *Engine) savePending(ctx context.Context, r *run, committed int) {
	if committed == 0 && !r.created {
		return
	}
	p := &mapping.PendingWrite{
		Direction:          r.req.Direction,
		SourceID:           r.sourceID,
		DestinationID:      r.destID,
		ContentHash:        r.hash,
		Committed:          committed,
		Total:              r.result.TotalCount,
		CreatedDestination: r.created,
		UpdatedAt:          e.now().UTC(),
	}
	if err := e.store.SavePending(ctx, p); err != nil {
		e.logger.WarnContext(ctx, "failed to save resume cursor", "error", err.Error())
		tracing.RecordError(ctx, err)
	}
}

func (e *Engine) persistMapping(ctx context.Context, r *run) error {
	rec := &mapping.Record{
		LastSyncedDirection: r.req.Direction,
		LastSyncedAt:        e.now().UTC(),
	}
	rec.SetID(r.src.System(), r.sourceID)
	rec.SetID(r.dst.System(), r.destID)
	for _, k := range r.links {
		rec.SetID(k.System, k.ID)
	}

	stored, err := e.store.Upsert(ctx, rec)
	if err != nil {
		return storeError("failed to record mapping", err)
	}
	if err := e.store.ClearPending(ctx, r.req.Direction, r.sourceID); err != nil {
		e.logger.WarnContext(ctx, "failed to clear resume cursor", "error", err.Error())
		tracing.RecordError(ctx, err)
	}
	e.logger.DebugContext(ctx, "mapping recorded", "mapping_id", stored.ID)
	return nil
}

func storeError(msg string, err error) error {
	var se *errors.SyncError
	if errors.As(err, &se) && se.Code == errors.CodeStore {
		return se
	}
	return errors.NewError(errors.CodeStore, msg, err)
}

// Status reports the mapping record and any resume cursors for key. The key's
// identifier is normalized by the endpoint of its system when one is
// configured.
func (e *Engine) Status(ctx context.Context, key mapping.Key) (*StatusReport, error) {
	if ep := e.endpoints.Get(key.System); ep != nil {
		id, err := ep.NormalizeID(key.ID)
		if err != nil {
			return nil, err
		}
		key.ID = id
	}

	report := &StatusReport{Key: key}
	rec, err := e.store.FindBy(ctx, key)
	switch {
	case err == nil:
		report.Record = rec
	case errors.Is(err, errors.ErrMappingNotFound):
	default:
		return nil, storeError("failed to look up mapping", err)
	}

	for _, d := range mapping.Directions {
		if d.Source() != key.System {
			continue
		}
		p, err := e.store.FindPending(ctx, d, key.ID)
		switch {
		case err == nil:
			report.Pending = append(report.Pending, *p)
		case errors.Is(err, errors.ErrPendingNotFound):
		default:
			return nil, storeError("failed to look up pending write", err)
		}
	}
	return report, nil
}

// Mappings lists every mapping record, most recently synced first.
func (e *Engine) Mappings(ctx context.Context) ([]mapping.Record, error) {
	records, err := e.store.ListAll(ctx)
	if err != nil {
		return nil, storeError("failed to list mappings", err)
	}
	return records, nil
}
