package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SoumadeepCh/FlowSync/pkg/backpressure"
	flowcmd "github.com/SoumadeepCh/FlowSync/pkg/cmd"
	"github.com/SoumadeepCh/FlowSync/pkg/config"
	"github.com/SoumadeepCh/FlowSync/pkg/consumer"
	"github.com/SoumadeepCh/FlowSync/pkg/dlq"
	"github.com/SoumadeepCh/FlowSync/pkg/eventbus"
	"github.com/SoumadeepCh/FlowSync/pkg/events"
	"github.com/SoumadeepCh/FlowSync/pkg/heartbeat"
	"github.com/SoumadeepCh/FlowSync/pkg/idempotency"
	"github.com/SoumadeepCh/FlowSync/pkg/models"
	"github.com/SoumadeepCh/FlowSync/pkg/observability"
	"github.com/SoumadeepCh/FlowSync/pkg/orchestrator"
	"github.com/SoumadeepCh/FlowSync/pkg/otelhelper"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence"
	"github.com/SoumadeepCh/FlowSync/pkg/persistence/postgresql"
	"github.com/SoumadeepCh/FlowSync/pkg/publisher"
	"github.com/SoumadeepCh/FlowSync/pkg/queue"
	"github.com/SoumadeepCh/FlowSync/pkg/results"
	"github.com/SoumadeepCh/FlowSync/pkg/scheduler"
	"github.com/SoumadeepCh/FlowSync/pkg/webhook"
	"go.opentelemetry.io/otel/trace"
)

// Options carries the binary's wiring inputs.
type Options struct {
	DatabaseURL string
	RedisURL    string
	WebhookAddr string
	Tracing     bool
	LogBuffer   *observability.LogBuffer
}

// EngineManager owns the engine's components and their lifecycle. Startup:
// DB -> queue -> consumer -> scheduler -> webhook ingress. Shutdown: scheduler
// -> webhook ingress -> consumer drain, then the idempotency store, event bus
// and persistence are closed.
type EngineManager struct {
	id          string
	logger      *slog.Logger
	store       persistence.Persistence
	bus         eventbus.EventBus
	idem        idempotency.Store
	consumer    *consumer.Consumer
	scheduler   *scheduler.Scheduler
	webhook     *webhook.Server
	webhookAddr string
}

func NewEngineManager(ctx context.Context, id string, opts Options) (*EngineManager, error) {
	logger := slog.Default().With("engine_id", id)
	cfg := config.FromEnv()

	store, err := flowcmd.NewPersistence(ctx, logger, opts.DatabaseURL)
	if err != nil {
		return nil, err
	}

	bus := flowcmd.NewEventBus(logger)

	notify := func(ctx context.Context, job *models.WorkerJob) {
		event := events.JobEnqueued{
			BaseEvent: events.BaseEvent{
				ID:        bus.GenerateID(),
				Type:      events.JobEnqueuedEvent,
				Timestamp: time.Now(),
			},
			JobID:       job.ID,
			ExecutionID: job.ExecutionID,
			NodeID:      job.Node.ID,
		}

		if err := bus.Publish(ctx, "job:"+job.ID, event); err != nil {
			logger.Warn("Failed to publish job.enqueued", "job_id", job.ID, "error", err)
		}
	}

	var jobQueue queue.Queue

	if pg, ok := store.(*postgresql.Persistence); ok {
		jobQueue, err = queue.NewPostgresQueue(pg.DB(), logger, notify)
		if err != nil {
			return nil, err
		}
	} else {
		jobQueue = queue.NewMemoryQueue(notify)
	}

	idem, err := flowcmd.NewIdempotencyStore(opts.RedisURL, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	audit := observability.NewAuditLogger(store.Audit(), logger)
	controller := backpressure.NewController(cfg.BackpressureLow, cfg.BackpressureHigh, cfg.BackpressureMax)
	monitor := heartbeat.NewMonitor(cfg.HeartbeatStall)
	sink := dlq.NewSink()
	reg := flowcmd.NewRegistry(logger)
	hub := eventbus.NewCompletionHub()

	if err := hub.Attach(bus); err != nil {
		return nil, err
	}

	pub := publisher.NewPublisher(store.Steps(), jobQueue, idem, controller, metrics, logger, cfg.IdempotencyTTL)
	resultHandler := results.NewHandler(store, pub, bus, metrics, audit, logger)
	orch := orchestrator.NewOrchestrator(store, pub, hub, bus, metrics, audit, logger, cfg.OrchestratorTimeout)

	var tracer trace.Tracer

	if opts.Tracing {
		tracer, err = otelhelper.NewTracer(ctx, "flowsync")
		if err != nil {
			return nil, err
		}
	}

	cons := consumer.NewConsumer(id, jobQueue, reg, store.Steps(), resultHandler,
		monitor, sink, idem, metrics, audit, bus, tracer, logger, cfg)

	if err := bus.Handle(events.JobEnqueuedEvent, cons.OnJobEnqueued); err != nil {
		return nil, err
	}

	sched := scheduler.NewScheduler(store, orch, bus, metrics, audit, logger, cfg.SchedulerTick)
	ingress := webhook.NewServer(store, orch, logger)

	return &EngineManager{
		id:          id,
		logger:      logger,
		store:       store,
		bus:         bus,
		idem:        idem,
		consumer:    cons,
		scheduler:   sched,
		webhook:     ingress,
		webhookAddr: opts.WebhookAddr,
	}, nil
}

// Run starts every component and blocks until SIGINT/SIGTERM.
func (m *EngineManager) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := m.bus.Subscribe(ctx); err != nil {
		return err
	}

	m.consumer.Start(ctx)
	m.scheduler.Start(ctx)

	go func() {
		if err := m.webhook.Listen(m.webhookAddr); err != nil {
			m.logger.Error("Webhook server stopped", "error", err)
		}
	}()

	m.logger.InfoContext(ctx, "Engine started")

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signals:
		m.logger.Info("Shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Minute)
	defer shutdownCancel()

	m.scheduler.Stop(shutdownCtx)

	if err := m.webhook.Shutdown(shutdownCtx); err != nil {
		m.logger.Warn("Webhook shutdown failed", "error", err)
	}

	m.consumer.Stop(shutdownCtx)
	cancel()

	if err := m.idem.Close(); err != nil {
		m.logger.Warn("Idempotency store close failed", "error", err)
	}

	if err := m.bus.Close(); err != nil {
		m.logger.Warn("Event bus close failed", "error", err)
	}

	if err := m.store.Close(shutdownCtx); err != nil {
		m.logger.Warn("Persistence close failed", "error", err)
	}

	m.logger.Info("Engine stopped")

	return nil
}
