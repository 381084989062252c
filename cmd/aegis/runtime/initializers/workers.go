package initializers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aegis-run/aegis/internal/concurrency"
	"github.com/aegis-run/aegis/internal/config"
	"github.com/aegis-run/aegis/internal/ingress"
	"github.com/aegis-run/aegis/internal/nexus"
	"github.com/aegis-run/aegis/internal/orchestrator"
	"github.com/aegis-run/aegis/internal/store"
	"github.com/aegis-run/aegis/internal/worker"
)

type WorkersInitializer struct {
	ingress      *ingress.Ingress
	orchestrator orchestrator.Kernel
	storeWorker  *store.Worker
}

func NewWorkersInitializer(ingress *ingress.Ingress, orchestrator orchestrator.Kernel, storeWorker *store.Worker) *WorkersInitializer {
	return &WorkersInitializer{
		ingress:      ingress,
		orchestrator: orchestrator,
		storeWorker:  storeWorker,
	}
}

func (wi *WorkersInitializer) Name() string {
	return "workers"
}

func (wi *WorkersInitializer) Dependencies() []string {
	return []string{"store", "orchestrator"}
}

func (wi *WorkersInitializer) Initialize(ctx context.Context, cfg *config.Config, workspaceID string) (interface{}, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	interactiveQueueSize := cfg.Ingress.InteractiveQueueSize
	backgroundQueueSize := cfg.Ingress.BackgroundQueueSize
	if interactiveQueueSize <= 0 {
		interactiveQueueSize = config.DefaultIngressInteractiveQueue
	}
	if backgroundQueueSize <= 0 {
		backgroundQueueSize = config.DefaultIngressBackgroundQueue
	}
	interactiveSubmitTimeout, err := config.DurationOrDefault(cfg.Ingress.InteractiveSubmitTimeout, config.DefaultIngressInteractiveSubmitTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse ingress interactive submit timeout: %w", err)
	}
	drainTimeout, err := config.DurationOrDefault(cfg.Ingress.DrainTimeout, config.DefaultIngressDrainTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse ingress drain timeout: %w", err)
	}
	drainPollInterval, err := config.DurationOrDefault(cfg.Ingress.DrainPollInterval, config.DefaultIngressDrainPollInterval)
	if err != nil {
		return nil, fmt.Errorf("parse ingress drain poll interval: %w", err)
	}
	idempotencyTTL, err := config.DurationOrDefault(cfg.Governance.IdempotencyTTL, config.DefaultGovernanceIdempotencyTTL)
	if err != nil {
		return nil, fmt.Errorf("parse governance idempotency ttl: %w", err)
	}
	workerShutdownTimeout, err := config.DurationOrDefault(cfg.Worker.ShutdownTimeout, config.DefaultWorkerShutdownTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse worker shutdown timeout: %w", err)
	}

	if wi.ingress == nil {
		wi.ingress = ingress.NewIngress(
			interactiveQueueSize,
			backgroundQueueSize,
			ingress.RuntimeConfig{
				InteractiveSubmitTimeout: interactiveSubmitTimeout,
				DrainTimeout:             drainTimeout,
				DrainPollInterval:        drainPollInterval,
				IdempotencyTTL:           idempotencyTTL,
			},
			wi.storeWorker,
		)
	}

	if wi.orchestrator == nil {
		return nil, fmt.Errorf("orchestrator not initialized")
	}

	locks := concurrency.NewSimpleSessionLockManager()

	nexusSubmitTimeout, err := config.DurationOrDefault(cfg.Nexus.SubmitTimeout, config.DefaultNexusSubmitTimeout)
	if err != nil {
		return nil, fmt.Errorf("parse nexus submit timeout: %w", err)
	}
	queue := nexus.NewQueue(cfg.Nexus.UrgentQueueSize, cfg.Nexus.StandardQueueSize, cfg.Nexus.ProactiveQueueSize, nexusSubmitTimeout)

	concurrency.SafeGo(func() { forwardIngressLane(ctx, queue, wi.ingress.InteractiveQueue(), nexus.PriorityUrgent) }, nil)
	concurrency.SafeGo(func() { forwardIngressLane(ctx, queue, wi.ingress.BackgroundQueue(), nexus.PriorityProactive) }, nil)

	interactiveWorker := worker.NewWorker(
		"interactive",
		queue,
		wi.storeWorker,
		wi.orchestrator,
		locks,
		worker.RuntimeConfig{ShutdownTimeout: workerShutdownTimeout},
	)

	backgroundWorker := worker.NewWorker(
		"background",
		queue,
		wi.storeWorker,
		wi.orchestrator,
		locks,
		worker.RuntimeConfig{ShutdownTimeout: workerShutdownTimeout},
	)

	return struct {
		Ingress           *ingress.Ingress
		InteractiveWorker *worker.Worker
		BackgroundWorker  *worker.Worker
		Locks             *concurrency.SimpleSessionLockManager
	}{
		Ingress:           wi.ingress,
		InteractiveWorker: interactiveWorker,
		BackgroundWorker:  backgroundWorker,
		Locks:             locks,
	}, nil
}

// forwardIngressLane bridges one of ingress's plain-channel lanes into the
// shared nexus priority queue until ctx is cancelled or the lane closes.
func forwardIngressLane(ctx context.Context, queue *nexus.Queue, ch <-chan *ingress.Event, priority nexus.Priority) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := queue.Submit(ctx, evt, priority); err != nil {
				slog.Warn("Failed to forward event into nexus queue", "priority", priority.String(), "error", err)
			}
		}
	}
}
