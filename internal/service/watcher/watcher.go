package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/service"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
	"github.com/talx-hub/gopher-billpay/internal/utils/logger"
)

type pendingSource interface {
	FetchPendingCodes(ctx context.Context, service order.ServiceType, limit int,
	) ([]order.PendingCode, error)
}

type batchStarter interface {
	TryStart(ctx context.Context, req service.Request) (string, error)
	Running() bool
}

// Watcher pulls pending codes on a schedule and runs them as batches.
type Watcher struct {
	cron    *cron.Cron
	source  pendingSource
	batches batchStarter
	log     *slog.Logger
	limit   int
}

func New(source pendingSource, batches batchStarter, limit int, log *slog.Logger) *Watcher {
	if limit <= 0 {
		limit = model.DefaultPendingLimit
	}
	cl := cronLogger{log: log.With("service", "watcher")}
	return &Watcher{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		source:  source,
		batches: batches,
		log:     log,
		limit:   limit,
	}
}

// Schedule registers one job per service. Every spec is checked before
// any job is added.
func (w *Watcher) Schedule(ctx context.Context, schedules map[order.ServiceType]string) error {
	parser := cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for s, spec := range schedules {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("bad schedule %q for %s: %w", spec, s, err)
		}
	}

	for s, spec := range schedules {
		svc := s
		if _, err := w.cron.AddFunc(spec, func() { w.Tick(ctx, svc) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", svc, err)
		}
		w.log.LogAttrs(ctx, slog.LevelInfo, "service scheduled",
			slog.String("service", string(svc)),
			slog.String("spec", spec),
		)
	}
	return nil
}

// Tick runs one pull for the service. It is a no-op while another batch
// holds the browser session; the session is taken without waiting, so a
// batch started between the check and the start leaves the codes pending.
func (w *Watcher) Tick(ctx context.Context, s order.ServiceType) {
	log := w.log.With(slog.String("service", string(s)))
	ctx = logger.WithContext(ctx, log)

	if w.batches.Running() {
		log.LogAttrs(ctx, slog.LevelDebug, "a batch is running, tick skipped")
		return
	}

	codes, err := w.source.FetchPendingCodes(ctx, s, w.limit)
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "failed to fetch pending codes",
			slog.Any(model.KeyLoggerError, err))
		return
	}
	if len(codes) == 0 {
		log.LogAttrs(ctx, slog.LevelDebug, "nothing pending")
		return
	}

	lines := make([]string, len(codes))
	for i, c := range codes {
		lines[i] = c.Line()
	}
	id, err := w.batches.TryStart(ctx, service.Request{Service: s, Lines: lines})
	if errors.Is(err, serviceerrs.ErrSessionBusy) {
		log.LogAttrs(ctx, slog.LevelInfo, "session busy, pending codes left for next tick")
		return
	}
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "failed to start batch",
			slog.Any(model.KeyLoggerError, err))
		return
	}
	log.LogAttrs(ctx, slog.LevelInfo, "scheduled batch started",
		slog.String("batch_id", id),
		slog.Int("codes", len(lines)),
	)
}

// Run starts the scheduler and blocks until ctx is done and running jobs return.
func (w *Watcher) Run(ctx context.Context) {
	w.log.LogAttrs(ctx, slog.LevelInfo, "running", slog.Int("jobs", len(w.cron.Entries())))
	w.cron.Start()

	<-ctx.Done()
	w.log.LogAttrs(ctx, slog.LevelInfo, "stop signal received, exiting...")
	<-w.cron.Stop().Done()
	w.log.LogAttrs(ctx, slog.LevelInfo, "stopped")
}

// cronLogger routes cron's own logs to slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error(msg, append(keysAndValues, model.KeyLoggerError, err)...)
}
