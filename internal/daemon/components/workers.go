package components

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aegis-run/aegis/internal/concurrency"
	"github.com/aegis-run/aegis/internal/config"
	"github.com/aegis-run/aegis/internal/daemon"
	"github.com/aegis-run/aegis/internal/ingress"
	"github.com/aegis-run/aegis/internal/nexus"
	"github.com/aegis-run/aegis/internal/worker"
)

type WorkersComponent struct {
	interactiveWorker *worker.Worker
	backgroundWorker  *worker.Worker
	queue             *nexus.Queue
	forwardCancel     context.CancelFunc
	forwardWG         sync.WaitGroup
	ingressComp       *IngressComponent
	orchestratorComp  *OrchestratorComponent
	storeWorkerComp   *StoreWorkerComponent
	cfg               *config.Config
	locks             *concurrency.SimpleSessionLockManager
	initialized       bool
	started           bool
	mu                sync.RWMutex
	startTime         time.Time
}

func NewWorkersComponent(cfg *config.Config, ingComp *IngressComponent, orchComp *OrchestratorComponent, storeComp *StoreWorkerComponent) *WorkersComponent {
	locks := concurrency.NewSimpleSessionLockManager()
	return &WorkersComponent{
		ingressComp:      ingComp,
		orchestratorComp: orchComp,
		storeWorkerComp:  storeComp,
		cfg:              cfg,
		locks:            locks,
		initialized:      false,
		started:          false,
	}
}

func (w *WorkersComponent) Name() string {
	return "Workers"
}

func (w *WorkersComponent) Dependencies() []string {
	return []string{"Ingress", "Orchestrator"}
}

func (w *WorkersComponent) Init(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ingressComp == nil || w.orchestratorComp == nil || w.storeWorkerComp == nil {
		return fmt.Errorf("required component dependencies not provided")
	}
	if w.cfg == nil {
		return fmt.Errorf("config not provided")
	}

	ing := w.ingressComp.GetIngress()
	orch := w.orchestratorComp.GetKernel()
	storeW := w.storeWorkerComp.GetWorker()
	if ing == nil || orch == nil || storeW == nil {
		return fmt.Errorf("required dependencies not initialized")
	}

	workerShutdownTimeout, err := config.DurationOrDefault(w.cfg.Worker.ShutdownTimeout, config.DefaultWorkerShutdownTimeout)
	if err != nil {
		return fmt.Errorf("parse worker shutdown timeout: %w", err)
	}

	nexusSubmitTimeout, err := config.DurationOrDefault(w.cfg.Nexus.SubmitTimeout, config.DefaultNexusSubmitTimeout)
	if err != nil {
		return fmt.Errorf("parse nexus submit timeout: %w", err)
	}

	w.queue = nexus.NewQueue(w.cfg.Nexus.UrgentQueueSize, w.cfg.Nexus.StandardQueueSize, w.cfg.Nexus.ProactiveQueueSize, nexusSubmitTimeout)

	w.interactiveWorker = worker.NewWorker("interactive", w.queue, storeW, orch, w.locks, worker.RuntimeConfig{ShutdownTimeout: workerShutdownTimeout})
	w.backgroundWorker = worker.NewWorker("background", w.queue, storeW, orch, w.locks, worker.RuntimeConfig{ShutdownTimeout: workerShutdownTimeout})

	w.initialized = true
	slog.Info("Workers initialized", "component", w.Name())
	return nil
}

// forwardLoop bridges an ingress lane into the shared nexus priority queue,
// so ingress's interactive/background split becomes the queue's Urgent and
// Proactive tiers rather than a second, parallel dispatch mechanism.
func (w *WorkersComponent) forwardLoop(ctx context.Context, ch <-chan *ingress.Event, priority nexus.Priority) {
	defer w.forwardWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			if err := w.queue.Submit(ctx, evt, priority); err != nil {
				slog.Warn("Failed to forward event into nexus queue", "priority", priority.String(), "error", err)
			}
		}
	}
}

func (w *WorkersComponent) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.initialized {
		return fmt.Errorf("Workers not initialized")
	}

	if _, err := w.interactiveWorker.Start(ctx); err != nil {
		return fmt.Errorf("start interactive worker: %w", err)
	}
	if _, err := w.backgroundWorker.Start(ctx); err != nil {
		return fmt.Errorf("start background worker: %w", err)
	}

	ing := w.ingressComp.GetIngress()
	forwardCtx, cancel := context.WithCancel(context.Background())
	w.forwardCancel = cancel
	w.forwardWG.Add(2)
	concurrency.SafeGo(func() { w.forwardLoop(forwardCtx, ing.InteractiveQueue(), nexus.PriorityUrgent) }, nil)
	concurrency.SafeGo(func() { w.forwardLoop(forwardCtx, ing.BackgroundQueue(), nexus.PriorityProactive) }, nil)

	w.started = true
	w.startTime = time.Now()
	slog.Info("Workers started", "component", w.Name())
	return nil
}

func (w *WorkersComponent) Stop(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.started {
		slog.Info("Workers not started, skipping stop", "component", w.Name())
		return nil
	}

	slog.Info("Stopping Workers...", "component", w.Name())
	if w.forwardCancel != nil {
		w.forwardCancel()
	}
	w.forwardWG.Wait()
	w.interactiveWorker.Stop(ctx)
	w.backgroundWorker.Stop(ctx)
	w.started = false
	slog.Info("Workers stopped", "component", w.Name())
	return nil
}

func (w *WorkersComponent) Health(ctx context.Context) (*daemon.ComponentHealth, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.initialized {
		return &daemon.ComponentHealth{
			Name:    w.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not initialized"),
		}, nil
	}

	if !w.started {
		return &daemon.ComponentHealth{
			Name:    w.Name(),
			Healthy: false,
			Error:   fmt.Errorf("not started"),
		}, nil
	}

	return &daemon.ComponentHealth{
		Name:    w.Name(),
		Healthy: true,
		Error:   nil,
	}, nil
}
