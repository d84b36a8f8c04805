package pipeline

import (
	"context"
	"errors"
	"sync"
)

// BulkRunner fans a list of works out across a bounded worker pool, one
// attempt per work, all against the same platform adapter. Attempts are
// isolated: one work's failure never stops the others. The exception is an
// upstream (registry) failure, which aborts the batch since every
// remaining attempt would hit the same outage.
type BulkRunner struct {
	orchestrator *Orchestrator
	concurrency  int
}

// NewBulkRunner bounds the pool at concurrency workers (minimum one).
func NewBulkRunner(orchestrator *Orchestrator, concurrency int) *BulkRunner {
	if concurrency < 1 {
		concurrency = 1
	}
	return &BulkRunner{orchestrator: orchestrator, concurrency: concurrency}
}

// BulkResult summarizes one batch.
type BulkResult struct {
	Outcomes []*Outcome
	// Aborted is set when the batch stopped before every work was
	// attempted, either from an upstream failure or cancellation.
	Aborted bool
}

// Failed counts attempts with a failed terminal status.
func (r *BulkResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}

// Run processes workIDs in order of submission. Cancelling ctx stops new
// attempts from starting; in-flight attempts run to their own completion.
func (b *BulkRunner) Run(ctx context.Context, adapter *Adapter, workIDs []string) *BulkResult {
	jobs := make(chan string)
	results := make(chan *Outcome, len(workIDs))
	stop := make(chan struct{})
	var stopOnce sync.Once
	abort := func() { stopOnce.Do(func() { close(stop) }) }

	var wg sync.WaitGroup
	for i := 0; i < b.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for workID := range jobs {
				// Detached so an aborting batch does not cancel a
				// delivery that is already half transmitted.
				outcome, err := b.orchestrator.Run(context.WithoutCancel(ctx), adapter, workID)
				results <- outcome
				var stageErr *Error
				if errors.As(err, &stageErr) && stageErr.Kind == KindUpstream {
					abort()
				}
			}
		}()
	}

	submitted := 0
feed:
	for _, workID := range workIDs {
		select {
		case <-ctx.Done():
			break feed
		case <-stop:
			break feed
		case jobs <- workID:
			submitted++
		}
	}
	close(jobs)
	wg.Wait()
	close(results)

	result := &BulkResult{Outcomes: make([]*Outcome, 0, submitted)}
	for outcome := range results {
		result.Outcomes = append(result.Outcomes, outcome)
	}
	result.Aborted = len(result.Outcomes) < len(workIDs)
	return result
}
