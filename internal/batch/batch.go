// Package batch runs one service flow over a list of input lines.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/talx-hub/gopher-billpay/internal/automation"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
	"github.com/talx-hub/gopher-billpay/internal/utils/logger"
)

type Flow interface {
	Service() order.ServiceType
	Prepare(ctx context.Context, s automation.Session) error
	Attempt(ctx context.Context, s automation.Session, item model.Item) (outcome.Outcome, error)
}

// Reconciler reports outcomes to the order store. It never fails the batch.
type Reconciler interface {
	// Begin resolves the order of every item once and marks it processing.
	Begin(ctx context.Context, service order.ServiceType, items []model.Item) map[string]string
	Reconcile(ctx context.Context,
		service order.ServiceType, item model.Item, orderID string, o outcome.Outcome)
}

type Exporter interface {
	Export(ctx context.Context, label string, rows []outcome.Row) (string, error)
}

// Progress observes every processed line.
type Progress interface {
	Processed(item model.Item, o outcome.Outcome)
}

type StopToken struct {
	stopped atomic.Bool
}

func NewStopToken() *StopToken {
	return &StopToken{}
}

func (t *StopToken) Stop() {
	t.stopped.Store(true)
}

func (t *StopToken) Stopped() bool {
	return t != nil && t.stopped.Load()
}

// RunContext carries what a single run needs besides its input.
type RunContext struct {
	Stop     *StopToken
	Session  automation.Session
	Progress Progress
}

type Config struct {
	Attempts    int
	Backoff     time.Duration
	ReloadPause time.Duration
}

func DefaultConfig() Config {
	return Config{
		Attempts:    model.DefaultAttemptCount,
		Backoff:     model.DefaultRetryBackoff,
		ReloadPause: model.DefaultReloadPause,
	}
}

type Result struct {
	ExportPath string        `json:"export_path,omitempty"`
	Rows       []outcome.Row `json:"rows"`
	Stopped    bool          `json:"stopped"`
}

type Driver struct {
	flow       Flow
	reconciler Reconciler
	exporter   Exporter
	cfg        Config
}

// NewDriver builds a driver. A nil reconciler disables order updates.
func NewDriver(flow Flow, reconciler Reconciler, exporter Exporter, cfg Config) *Driver {
	if cfg.Attempts <= 0 {
		cfg.Attempts = model.DefaultAttemptCount
	}
	return &Driver{
		flow:       flow,
		reconciler: reconciler,
		exporter:   exporter,
		cfg:        cfg,
	}
}

// Run processes lines in order and exports the rows once at the end.
// The stop token is checked before every line; an attempt in flight is
// finished first.
func (d *Driver) Run(ctx context.Context, rc RunContext, lines []string) (Result, error) {
	service := d.flow.Service()
	log := logger.FromContext(ctx).With(slog.String("service", string(service)))
	ctx = logger.WithContext(ctx, log)

	items := make([]model.Item, 0, len(lines))
	for _, l := range lines {
		if item, ok := model.ParseItem(l); ok {
			items = append(items, item)
		}
	}

	var res Result
	if len(items) == 0 {
		return res, nil
	}
	// A failed first prepare is repeated by the first attempt; it never
	// aborts the batch.
	ready := true
	if err := d.flow.Prepare(ctx, rc.Session); err != nil {
		ready = false
		log.LogAttrs(ctx, slog.LevelWarn, "failed to prepare, retrying with the first code",
			slog.Any(model.KeyLoggerError, err))
	}

	mapping := map[string]string{}
	if d.reconciler != nil {
		mapping = d.reconciler.Begin(ctx, service, items)
	}

	for _, item := range items {
		if rc.Stop.Stopped() {
			log.LogAttrs(ctx, slog.LevelInfo, "stop requested, skipping the rest")
			res.Stopped = true
			break
		}

		o := d.process(ctx, rc.Session, item, &ready)
		res.Rows = append(res.Rows, outcome.NewRow(item.Code, o))

		if d.reconciler != nil {
			orderID := mapping[item.Code]
			if orderID == "" {
				orderID = item.OrderID
			}
			d.reconciler.Reconcile(ctx, service, item, orderID, o)
		}
		if rc.Progress != nil {
			rc.Progress.Processed(item, o)
		}
	}

	if len(res.Rows) == 0 || d.exporter == nil {
		return res, nil
	}
	path, err := d.exporter.Export(ctx, service.Label(), res.Rows)
	if err != nil {
		return res, fmt.Errorf("failed to export %s: %w", service, err)
	}
	res.ExportPath = path
	return res, nil
}

// process runs the retry loop of one code and always yields one outcome.
// ready tracks whether the last prepare succeeded.
func (d *Driver) process(ctx context.Context,
	s automation.Session, item model.Item, ready *bool,
) outcome.Outcome {
	log := logger.FromContext(ctx).With(slog.String("code", item.Code))

	var lastErr error
	for try := 0; try < d.cfg.Attempts; try++ {
		if try > 0 {
			log.LogAttrs(ctx, slog.LevelInfo, "retrying", slog.Int("attempt", try+1))
		}

		o, err := d.attempt(ctx, s, item, try, ready)
		if err == nil {
			return o
		}
		lastErr = err
		log.LogAttrs(ctx, slog.LevelWarn, "attempt failed",
			slog.Int("attempt", try+1),
			slog.Any(model.KeyLoggerError, err),
		)

		if try == d.cfg.Attempts-1 {
			break
		}
		if err = automation.Pause(ctx, d.cfg.Backoff); err != nil {
			lastErr = errors.Join(lastErr, err)
			break
		}
	}

	log.LogAttrs(ctx, slog.LevelError, "code failed after retries",
		slog.Any(model.KeyLoggerError, lastErr))
	return outcome.Failure(lastErr.Error())
}

// attempt is one try; a panic in the flow counts as a failed try.
// Retries reload first; a first try after a failed prepare only prepares.
func (d *Driver) attempt(ctx context.Context,
	s automation.Session, item model.Item, try int, ready *bool,
) (o outcome.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("flow panicked: %v", r)
		}
	}()

	if try > 0 {
		if err = s.Reload(ctx); err != nil {
			return outcome.Outcome{}, err //nolint: wrapcheck // session errors carry the step
		}
		if err = automation.Pause(ctx, d.cfg.ReloadPause); err != nil {
			return outcome.Outcome{}, err //nolint: wrapcheck // plain context error
		}
	}
	if try > 0 || !*ready {
		if err = d.flow.Prepare(ctx, s); err != nil {
			*ready = false
			return outcome.Outcome{}, err //nolint: wrapcheck // flow errors carry the step
		}
		*ready = true
	}
	return d.flow.Attempt(ctx, s, item)
}
