package output

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jbctechsolutions/docsync/internal/application/syncer"
	"github.com/jbctechsolutions/docsync/internal/domain/mapping"
)

// ErrorView is the JSON shape of a classified error.
type ErrorView struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Context   map[string]any `json:"context,omitempty"`
}

// ResultView is the JSON shape of a sync result.
type ResultView struct {
	*syncer.Result
	Error *ErrorView `json:"error,omitempty"`
}

// NewResultView wraps a result for JSON output.
func NewResultView(res *syncer.Result) ResultView {
	view := ResultView{Result: res}
	if res.Err != nil {
		view.Error = &ErrorView{
			Code:      string(res.Err.Code),
			Message:   res.Err.Error(),
			Retryable: res.Err.Retryable(),
			Context:   res.Err.Context,
		}
	}
	return view
}

// SyncResult renders the outcome of one sync.
func (f *Formatter) SyncResult(res *syncer.Result) error {
	if f.Format() == FormatJSON {
		return f.JSON(NewResultView(res))
	}

	label := fmt.Sprintf("%s %s", res.Direction, f.Bold(res.SourceID))
	switch res.Status {
	case syncer.StatusSuccess:
		_ = f.Success("%s: %s %s", label, res.Operation, res.DestinationID)
	case syncer.StatusPartial:
		_ = f.Warning("%s: partially written to %s", label, res.DestinationID)
	default:
		_ = f.Error("%s: failed", label)
	}

	_ = f.Item("Blocks", fmt.Sprintf("%d/%d", res.CommittedCount, res.TotalCount))
	if res.Operation != "" {
		_ = f.Item("Operation", string(res.Operation))
	}
	if res.FailedState != "" {
		_ = f.Item("Failed in", string(res.FailedState))
	}
	if res.Err != nil {
		_ = f.Item("Error", res.Err.Error())
		if res.Err.Retryable() || res.Status == syncer.StatusPartial {
			_ = f.Item("Hint", "re-run the same command to continue")
		}
	}
	_ = f.Item("Correlation ID", f.Dim(res.CorrelationID))

	if len(res.Warnings) > 0 {
		_ = f.SubHeader(fmt.Sprintf("Warnings (%d)", len(res.Warnings)))
		for _, w := range res.Warnings {
			_ = f.BulletItem(w)
		}
	}
	return nil
}

// SyncResults renders related syncs run by one command: a JSON array, or each
// text report in turn.
func (f *Formatter) SyncResults(results ...*syncer.Result) error {
	if len(results) == 1 {
		return f.SyncResult(results[0])
	}
	if f.Format() == FormatJSON {
		views := make([]ResultView, 0, len(results))
		for _, res := range results {
			views = append(views, NewResultView(res))
		}
		return f.JSON(views)
	}
	for i, res := range results {
		if i > 0 {
			_ = f.Println("")
		}
		if err := f.SyncResult(res); err != nil {
			return err
		}
	}
	return nil
}

// BatchView is the JSON shape of a batch of syncs.
type BatchView struct {
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []ResultView `json:"results"`
}

// Batch renders one line per sync and a count summary. Source paths are shown
// relative to base.
func (f *Formatter) Batch(results []*syncer.Result, base string) error {
	view := BatchView{Results: make([]ResultView, 0, len(results))}
	for _, res := range results {
		if res.OK() {
			view.Succeeded++
		} else {
			view.Failed++
		}
		view.Results = append(view.Results, NewResultView(res))
	}
	if f.Format() == FormatJSON {
		return f.JSON(view)
	}

	if len(results) == 0 {
		return f.Info("No Markdown files found in %s.", base)
	}
	for _, res := range results {
		name := relativeTo(base, res.SourceID)
		switch res.Status {
		case syncer.StatusSuccess:
			_ = f.Success("%s: %s %s", name, res.Operation, res.DestinationID)
		case syncer.StatusPartial:
			_ = f.Warning("%s: %d/%d blocks written to %s", name, res.CommittedCount, res.TotalCount, res.DestinationID)
		default:
			_ = f.Error("%s: %s", name, res.Err.Error())
		}
	}
	return f.Println("\n%s succeeded, %s failed", f.Bold(strconv.Itoa(view.Succeeded)), f.Bold(strconv.Itoa(view.Failed)))
}

func relativeTo(base, path string) string {
	if base == "" {
		return path
	}
	rel, err := filepath.Rel(base, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

// Mappings renders every mapping record, as JSON or as a table.
func (f *Formatter) Mappings(records []mapping.Record) error {
	if records == nil {
		records = []mapping.Record{}
	}
	jsonMode := f.Format() == FormatJSON
	if len(records) == 0 && !jsonMode {
		return f.Info("No mappings found.")
	}
	if err := f.FormatAuto(records, mappingTable(records)); err != nil {
		return err
	}
	if jsonMode {
		return nil
	}
	return f.Println("\n%s mapping(s)", strconv.Itoa(len(records)))
}

func mappingTable(records []mapping.Record) *TableData {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			dash(r.SourceAID),
			dash(r.SourceBToken),
			dash(r.LocalPath),
			dash(string(r.LastSyncedDirection)),
			formatTime(r.LastSyncedAt),
		})
	}
	return &TableData{
		Columns: []TableColumn{
			{Header: mapping.SystemA.String()},
			{Header: mapping.SystemB.String()},
			{Header: mapping.SystemLocal.String()},
			{Header: "Direction"},
			{Header: "Last synced"},
		},
		Rows: rows,
	}
}

// Status renders what is known about one document.
func (f *Formatter) Status(report *syncer.StatusReport) error {
	if f.Format() == FormatJSON {
		pending := report.Pending
		if pending == nil {
			pending = []mapping.PendingWrite{}
		}
		return f.JSON(map[string]any{
			"system":  report.Key.System.String(),
			"id":      report.Key.ID,
			"linked":  report.Linked(),
			"record":  report.Record,
			"pending": pending,
		})
	}

	_ = f.Header(fmt.Sprintf("%s %s", report.Key.System, report.Key.ID))
	if !report.Linked() {
		_ = f.Item("Linked", "no")
	} else {
		r := report.Record
		_ = f.Item("Linked", f.Bold("yes"))
		_ = f.Item(mapping.SystemA.String(), dash(r.SourceAID))
		_ = f.Item(mapping.SystemB.String(), dash(r.SourceBToken))
		_ = f.Item(mapping.SystemLocal.String(), dash(r.LocalPath))
		_ = f.Item("Last direction", dash(string(r.LastSyncedDirection)))
		_ = f.Item("Last synced", formatTime(r.LastSyncedAt))
	}

	for _, p := range report.Pending {
		_ = f.Warning("%s interrupted at %d/%d blocks into %s (updated %s)",
			p.Direction, p.Committed, p.Total, p.DestinationID, formatTime(p.UpdatedAt))
	}
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
