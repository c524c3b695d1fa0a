// Package audit keeps the per-run audit trail. The Auditor only observes:
// it records what other stages report and derives the run summary from it.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/ports"
)

// Auditor collects the records of one run and forwards each one to an
// optional durable sink.
type Auditor struct {
	runID  string
	sink   ports.AuditSink
	logger ports.Logger
	now    func() time.Time

	mu      sync.Mutex
	records []domain.AuditRecord
}

// NewAuditor creates an auditor for runID. sink and logger may be nil.
func NewAuditor(runID string, sink ports.AuditSink, logger ports.Logger) *Auditor {
	return &Auditor{runID: runID, sink: sink, logger: logger, now: time.Now}
}

// Record appends a record, filling in the run ID and timestamp. Sink
// failures are logged and never reach the caller.
func (a *Auditor) Record(ctx context.Context, record domain.AuditRecord) domain.AuditRecord {
	record.RunID = a.runID
	if record.Timestamp.IsZero() {
		record.Timestamp = a.now()
	}
	if record.Event == "" {
		record.Event = domain.EventNote
	}

	a.mu.Lock()
	a.records = append(a.records, record)
	a.mu.Unlock()

	if a.sink != nil {
		if err := a.sink.Write(context.WithoutCancel(ctx), record); err != nil && a.logger != nil {
			a.logger.Warn("audit sink write failed", map[string]interface{}{"run_id": a.runID, "error": err.Error()})
		}
	}
	a.log(record)
	return record
}

// Note records a free-form detail for a stage.
func (a *Auditor) Note(ctx context.Context, stage domain.Stage, detail string) {
	a.Record(ctx, domain.AuditRecord{Stage: stage, Event: domain.EventNote, Detail: detail})
}

// Records returns a copy of the trail in insertion order.
func (a *Auditor) Records() []domain.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.AuditRecord, len(a.records))
	copy(out, a.records)
	return out
}

// Summarize aggregates the step_finished records of the trail.
func (a *Auditor) Summarize() domain.RunSummary {
	return Summarize(a.Records())
}

// Summarize computes a run summary from any ordered list of records, so
// the CLI can summarize runs read back from the durable log.
func Summarize(records []domain.AuditRecord) domain.RunSummary {
	var summary domain.RunSummary
	if len(records) == 0 {
		return summary
	}
	summary.Elapsed = records[len(records)-1].Timestamp.Sub(records[0].Timestamp)

	for _, record := range records {
		if record.Event != domain.EventStepFinished || record.Result == nil {
			continue
		}
		result := record.Result
		summary.Total++
		switch {
		case result.TimedOut:
			summary.TimedOut++
			summary.Failed++
		case result.ExitCode != 0:
			summary.Failed++
		default:
			summary.Succeeded++
		}
		summary.Busy += result.Duration
		summary.Steps = append(summary.Steps, domain.StepTiming{
			Ordinal:  result.StepOrdinal,
			Revision: result.Revision,
			Command:  result.Command,
			Duration: result.Duration,
			Failed:   result.Failed(),
			TimedOut: result.TimedOut,
		})
	}
	return summary
}

func (a *Auditor) log(record domain.AuditRecord) {
	if a.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"run_id": record.RunID,
		"stage":  string(record.Stage),
		"event":  string(record.Event),
	}
	if record.State != "" {
		fields["state"] = string(record.State)
	}
	if record.StepOrdinal != 0 {
		fields["ordinal"] = record.StepOrdinal
		fields["revision"] = record.Revision
	}
	if record.Error != "" {
		fields["error"] = record.Error
		a.logger.Warn(record.Detail, fields)
		return
	}
	a.logger.Debug(record.Detail, fields)
}

// Tee fans records out to several sinks. Every sink is tried; the first
// error is returned.
type Tee []ports.AuditSink

// Write implements ports.AuditSink.
func (t Tee) Write(ctx context.Context, record domain.AuditRecord) error {
	var first error
	for _, sink := range t {
		if sink == nil {
			continue
		}
		if err := sink.Write(ctx, record); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// SinkFunc adapts a function to ports.AuditSink.
type SinkFunc func(context.Context, domain.AuditRecord) error

// Write implements ports.AuditSink.
func (f SinkFunc) Write(ctx context.Context, record domain.AuditRecord) error {
	return f(ctx, record)
}

var (
	_ ports.AuditSink = Tee(nil)
	_ ports.AuditSink = SinkFunc(nil)
)
