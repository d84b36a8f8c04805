// Package worker plugs the dissemination pipeline into the asynq loop so
// bulk runs can be scheduled instead of driven from a terminal.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/hibiken/asynq"

	"github.com/pressworks/disseminator/internal/config"
	"github.com/pressworks/disseminator/internal/pipeline"
	"github.com/pressworks/disseminator/internal/queue"
	"github.com/pressworks/disseminator/internal/secrets"
)

// Processor handles dissemination tasks. Adapters are built lazily per
// platform and cached; a credential problem surfaces on the first task for
// that platform and is not retried.
type Processor struct {
	cfg          *config.Config
	store        *secrets.Store
	orchestrator *pipeline.Orchestrator

	mu       sync.Mutex
	adapters map[pipeline.Platform]*pipeline.Adapter
}

// NewProcessor constructs a worker processor.
func NewProcessor(cfg *config.Config, store *secrets.Store, orchestrator *pipeline.Orchestrator) *Processor {
	return &Processor{
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		adapters:     make(map[pipeline.Platform]*pipeline.Adapter),
	}
}

// Handler registers the dissemination task handler.
func (p *Processor) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.DisseminateWorkTask, p.handleDisseminate)
	return mux
}

func (p *Processor) handleDisseminate(ctx context.Context, task *asynq.Task) error {
	var payload queue.DisseminatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	platform, err := pipeline.ParsePlatform(payload.Platform)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	adapter, err := p.adapter(platform)
	if err != nil {
		return fmt.Errorf("build %s adapter: %v: %w", platform, err, asynq.SkipRetry)
	}

	outcome, err := p.orchestrator.Run(ctx, adapter, payload.WorkID)
	if err == nil {
		return nil
	}
	log.Printf("task for work %s on %s: %s", payload.WorkID, platform, outcome.Diagnostic())

	// Deterministic failures will fail identically on every retry.
	// Ineligible and duplicate works surface as skip outcomes with a nil
	// error and never reach this point.
	switch outcome.Kind {
	case pipeline.KindNotFound, pipeline.KindTransform:
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return err
}

func (p *Processor) adapter(platform pipeline.Platform) (*pipeline.Adapter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if adapter, ok := p.adapters[platform]; ok {
		return adapter, nil
	}
	adapter, err := pipeline.BuildAdapter(p.cfg, p.store, platform)
	if err != nil {
		return nil, err
	}
	p.adapters[platform] = adapter
	return adapter, nil
}
