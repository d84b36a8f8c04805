package pipeline

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/pressworks/disseminator/internal/eligibility"
	"github.com/pressworks/disseminator/internal/export"
	"github.com/pressworks/disseminator/internal/model"
	"github.com/pressworks/disseminator/internal/packaging"
	"github.com/pressworks/disseminator/internal/registry"
)

// Journal records attempt outcomes for audit and bulk exclusion lists.
// Recording is best effort: a journal failure never fails the attempt.
type Journal interface {
	Record(ctx context.Context, outcome *Outcome) error
}

// Orchestrator runs single dissemination attempts against a registry.
type Orchestrator struct {
	registry registry.Client
	builder  *packaging.Builder
	journal  Journal
	clock    func() time.Time
}

// NewOrchestrator wires the attempt runner. journal may be nil (the CLI
// without a database); clock may be nil, defaulting to UTC now.
func NewOrchestrator(reg registry.Client, builder *packaging.Builder, journal Journal, clock func() time.Time) *Orchestrator {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Orchestrator{registry: reg, builder: builder, journal: journal, clock: clock}
}

// Run executes one attempt for one work on one platform and always returns
// a terminal Outcome. The returned error is non-nil only for failed
// attempts, carrying the classified *Error; skips return a nil error.
func (o *Orchestrator) Run(ctx context.Context, adapter *Adapter, workID string) (*Outcome, error) {
	outcome := &Outcome{
		AttemptID: uuid.New(),
		WorkID:    workID,
		Platform:  adapter.Platform,
		StartedAt: o.clock(),
	}

	err := o.run(ctx, adapter, workID, outcome)
	outcome.FinishedAt = o.clock()

	var stageErr *Error
	switch {
	case err == nil:
		// run set the status (success or a skip).
	case errors.As(err, &stageErr):
		outcome.Status = StatusFailed
		outcome.Stage = stageErr.Stage
		outcome.Kind = stageErr.Kind
		outcome.Reason = stageErr.Err.Error()
	default:
		outcome.Status = StatusFailed
		outcome.Reason = err.Error()
	}

	o.record(ctx, outcome)
	log.Printf("attempt %s: %s", outcome.AttemptID, outcome.Diagnostic())

	if outcome.Failed() {
		return outcome, err
	}
	return outcome, nil
}

func (o *Orchestrator) run(ctx context.Context, adapter *Adapter, workID string, outcome *Outcome) error {
	rec, err := o.registry.GetWork(ctx, workID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return stageErr(KindNotFound, StageFetch, err)
		}
		return stageErr(KindUpstream, StageFetch, err)
	}

	if err := eligibility.CheckDuplicate(rec, string(adapter.Platform)); err != nil {
		outcome.Status = StatusSkippedDuplicate
		outcome.Stage = StageValidate
		outcome.Reason = err.Error()
		return nil
	}
	if err := adapter.Rules.Validate(rec); err != nil {
		outcome.Status = StatusSkippedIneligible
		outcome.Stage = StageValidate
		outcome.Kind = KindEligibility
		outcome.Reason = err.Error()
		return nil
	}

	artifact, err := adapter.Transform(rec)
	if err != nil {
		return stageErr(KindTransform, StageTransform, err)
	}

	pkg, err := o.builder.Build(ctx, rec, artifact, adapter.Spec)
	if err != nil {
		if errors.Is(err, export.ErrDerivation) {
			return stageErr(KindTransform, StagePackage, err)
		}
		return stageErr(KindPackage, StagePackage, err)
	}

	loc, err := adapter.Client.Deliver(ctx, pkg)
	if err != nil {
		return stageErr(KindTransport, StageDeliver, err)
	}

	record := model.LocationRecord{
		WorkID:     workID,
		Platform:   string(adapter.Platform),
		Location:   loc.Value(),
		RecordedAt: o.clock(),
	}
	// The files are on the platform; a registry failure here must surface
	// loudly rather than silently losing the location.
	if err := o.registry.PutLocation(ctx, record); err != nil {
		return stageErr(KindUpstream, StageRecord, err)
	}

	outcome.Status = StatusSuccess
	outcome.Location = &record
	return nil
}

// record writes the outcome to the journal using a detached context: the
// attempt context may already be cancelled when a terminal outcome exists.
func (o *Orchestrator) record(ctx context.Context, outcome *Outcome) {
	if o.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.journal.Record(jctx, outcome); err != nil {
		log.Printf("journal attempt %s: %v", outcome.AttemptID, err)
	}
}
