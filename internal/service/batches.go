// Package service runs batches in the background over the shared browser session.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talx-hub/gopher-billpay/internal/automation"
	"github.com/talx-hub/gopher-billpay/internal/automation/flows"
	"github.com/talx-hub/gopher-billpay/internal/batch"
	"github.com/talx-hub/gopher-billpay/internal/model"
	"github.com/talx-hub/gopher-billpay/internal/model/order"
	"github.com/talx-hub/gopher-billpay/internal/model/outcome"
	"github.com/talx-hub/gopher-billpay/internal/serviceerrs"
	"github.com/talx-hub/gopher-billpay/internal/utils/logger"
	"github.com/talx-hub/gopher-billpay/internal/utils/semaphore"
)

type State string

const (
	StateRunning  State = "running"
	StateFinished State = "finished"
	StateStopped  State = "stopped"
	StateFailed   State = "failed"
)

type Request struct {
	Service order.ServiceType `json:"service"`
	PIN     string            `json:"pin,omitempty"`
	Amount  string            `json:"amount,omitempty"`
	Lines   []string          `json:"lines"`
}

type ProcessedLine struct {
	Code   string       `json:"code"`
	Status string       `json:"status"`
	Notes  string       `json:"notes"`
	Amount model.Amount `json:"amount"`
}

// Snapshot is a copy of a batch state safe to hand out.
type Snapshot struct {
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt *time.Time        `json:"finished_at,omitempty"`
	ID         string            `json:"id"`
	Service    order.ServiceType `json:"service"`
	State      State             `json:"state"`
	Error      string            `json:"error,omitempty"`
	ExportPath string            `json:"export_path,omitempty"`
	Processed  []ProcessedLine   `json:"processed"`
	Total      int               `json:"total"`
	Succeeded  int               `json:"succeeded"`
	Failed     int               `json:"failed"`
}

type FlowFactory func(service order.ServiceType, opts flows.Options) (batch.Flow, error)

type Deps struct {
	Session    automation.Session
	Reconciler batch.Reconciler
	Exporter   batch.Exporter
	NewFlow    FlowFactory
	FlowOpts   flows.Options
	Driver     batch.Config
	// AcquireTimeout bounds the wait for the browser session.
	AcquireTimeout time.Duration
	// History is how many finished batches are kept for Get and List.
	History int
}

type Batches struct {
	deps Deps
	sema *semaphore.Semaphore
	runs map[string]*run
	wg   sync.WaitGroup
	mu   sync.RWMutex
}

func NewBatches(deps Deps) *Batches {
	if deps.NewFlow == nil {
		deps.NewFlow = func(service order.ServiceType, opts flows.Options) (batch.Flow, error) {
			return flows.New(service, opts)
		}
	}
	if deps.AcquireTimeout <= 0 {
		deps.AcquireTimeout = model.DefaultSessionAcquireTimeout
	}
	if deps.History <= 0 {
		deps.History = model.DefaultBatchHistory
	}
	return &Batches{
		deps: deps,
		sema: semaphore.New(1),
		runs: make(map[string]*run),
	}
}

// Start launches the batch on its own goroutine and returns its id.
// It fails with serviceerrs.ErrSessionBusy when another batch holds the
// browser session longer than the acquire timeout.
func (b *Batches) Start(ctx context.Context, req Request) (string, error) {
	return b.start(ctx, req, func() bool {
		return b.sema.AcquireWithTimeout(b.deps.AcquireTimeout) == nil
	})
}

// TryStart is Start without waiting: it fails with
// serviceerrs.ErrSessionBusy at once when the session is taken.
func (b *Batches) TryStart(ctx context.Context, req Request) (string, error) {
	return b.start(ctx, req, b.sema.TryAcquire)
}

func (b *Batches) start(ctx context.Context, req Request, acquire func() bool) (string, error) {
	if !req.Service.Valid() {
		return "", fmt.Errorf("%s: %w", req.Service, serviceerrs.ErrUnknownService)
	}

	opts := b.deps.FlowOpts
	if req.PIN != "" {
		opts.PIN = req.PIN
	}
	if req.Amount != "" {
		opts.Amount = req.Amount
	}
	flow, err := b.deps.NewFlow(req.Service, opts)
	if err != nil {
		return "", fmt.Errorf("failed to build flow: %w", err)
	}

	if !acquire() {
		return "", serviceerrs.ErrSessionBusy
	}

	r := newRun(req)
	b.mu.Lock()
	b.runs[r.snap.ID] = r
	b.mu.Unlock()

	log := logger.FromContext(ctx).With(
		slog.String("batch_id", r.snap.ID),
		slog.String("service", string(req.Service)),
	)
	runCtx := logger.WithContext(context.WithoutCancel(ctx), log)
	driver := batch.NewDriver(flow, b.deps.Reconciler, b.deps.Exporter, b.deps.Driver)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.sema.Release()
		b.execute(runCtx, driver, r, req.Lines)
	}()

	log.LogAttrs(ctx, slog.LevelInfo, "batch started", slog.Int("lines", r.snap.Total))
	return r.snap.ID, nil
}

func (b *Batches) execute(ctx context.Context, driver *batch.Driver, r *run, lines []string) {
	log := logger.FromContext(ctx)
	var (
		res batch.Result
		err error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("batch panicked: %v", p)
			}
		}()
		res, err = driver.Run(ctx, batch.RunContext{
			Stop:     r.stop,
			Session:  b.deps.Session,
			Progress: r,
		}, lines)
	}()

	r.finish(res, err)
	b.prune()
	if err != nil {
		log.LogAttrs(ctx, slog.LevelError, "batch failed", slog.Any(model.KeyLoggerError, err))
		return
	}
	log.LogAttrs(ctx, slog.LevelInfo, "batch done",
		slog.Int("rows", len(res.Rows)),
		slog.Bool("stopped", res.Stopped),
		slog.String("export", res.ExportPath),
	)
}

func (b *Batches) Get(id string) (Snapshot, error) {
	b.mu.RLock()
	r, ok := b.runs[id]
	b.mu.RUnlock()
	if !ok {
		return Snapshot{}, serviceerrs.ErrBatchNotFound
	}
	return r.snapshot(), nil
}

// List returns every known batch, newest first.
func (b *Batches) List() []Snapshot {
	b.mu.RLock()
	snaps := make([]Snapshot, 0, len(b.runs))
	for _, r := range b.runs {
		snaps = append(snaps, r.snapshot())
	}
	b.mu.RUnlock()

	slices.SortFunc(snaps, func(a, c Snapshot) int {
		return c.StartedAt.Compare(a.StartedAt)
	})
	return snaps
}

// Stop requests a stop. The batch finishes its current code first.
func (b *Batches) Stop(id string) error {
	b.mu.RLock()
	r, ok := b.runs[id]
	b.mu.RUnlock()
	if !ok {
		return serviceerrs.ErrBatchNotFound
	}
	r.stop.Stop()
	return nil
}

// prune drops the oldest finished batches beyond the history size.
func (b *Batches) prune() {
	b.mu.Lock()
	defer b.mu.Unlock()

	type finished struct {
		at time.Time
		id string
	}
	var done []finished
	for id, r := range b.runs {
		if at := r.finishedAt(); at != nil {
			done = append(done, finished{at: *at, id: id})
		}
	}
	if len(done) <= b.deps.History {
		return
	}
	slices.SortFunc(done, func(a, c finished) int {
		return a.at.Compare(c.at)
	})
	for _, f := range done[:len(done)-b.deps.History] {
		delete(b.runs, f.id)
	}
}

// Running reports whether a batch holds the browser session.
func (b *Batches) Running() bool {
	return b.sema.Busy()
}

// Shutdown stops every batch and waits for them or for ctx.
func (b *Batches) Shutdown(ctx context.Context) error {
	b.mu.RLock()
	for _, r := range b.runs {
		r.stop.Stop()
	}
	b.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.New("batches did not stop in time")
	}
}

type run struct {
	stop *batch.StopToken
	snap Snapshot
	mu   sync.Mutex
}

func newRun(req Request) *run {
	total := 0
	for _, l := range req.Lines {
		if _, ok := model.ParseItem(l); ok {
			total++
		}
	}
	return &run{
		stop: batch.NewStopToken(),
		snap: Snapshot{
			ID:        uuid.NewString(),
			Service:   req.Service,
			State:     StateRunning,
			StartedAt: time.Now(),
			Total:     total,
			Processed: []ProcessedLine{},
		},
	}
}

// Processed implements batch.Progress.
func (r *run) Processed(item model.Item, o outcome.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snap.Processed = append(r.snap.Processed, ProcessedLine{
		Code:   item.Code,
		Status: o.Status(),
		Notes:  o.Notes,
		Amount: o.Amount,
	})
	if o.IsError() {
		r.snap.Failed++
	} else {
		r.snap.Succeeded++
	}
}

func (r *run) finish(res batch.Result, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.snap.FinishedAt = &now
	r.snap.ExportPath = res.ExportPath
	switch {
	case err != nil:
		r.snap.State = StateFailed
		r.snap.Error = err.Error()
	case res.Stopped:
		r.snap.State = StateStopped
	default:
		r.snap.State = StateFinished
	}
}

func (r *run) finishedAt() *time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap.FinishedAt
}

func (r *run) snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.snap
	s.Processed = slices.Clone(r.snap.Processed)
	if r.snap.FinishedAt != nil {
		t := *r.snap.FinishedAt
		s.FinishedAt = &t
	}
	return s
}
