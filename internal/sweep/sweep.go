// Package sweep runs the periodic scans that push reminders to the channel.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/m3rciful/sroki/core/logger"
	"github.com/m3rciful/sroki/internal/reminder"
)

// DiscountSuffix marks lookahead notices.
const DiscountSuffix = " (уценка)"

// Kind names a sweep in logs and CLI output.
type Kind string

const (
	KindDue       Kind = "due"
	KindLookahead Kind = "lookahead"
)

// Notifier delivers a notice to the destination channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, text string) error

func (f NotifierFunc) Notify(ctx context.Context, text string) error { return f(ctx, text) }

// DeliveryError reports a notice that could not be delivered; the reminder is kept.
type DeliveryError struct {
	ReminderID int64
	Err        error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver reminder %d: %v", e.ReminderID, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Options configures the scheduler. Zero values pick the defaults below.
type Options struct {
	DueInterval       time.Duration
	LookaheadInterval time.Duration
	LookaheadWindow   time.Duration
	SendTimeout       time.Duration
	Location          *time.Location
	Now               func() time.Time
}

const (
	DefaultDueInterval       = 24 * time.Hour
	DefaultLookaheadInterval = 604054 * time.Second
	DefaultLookaheadWindow   = 14 * 24 * time.Hour
	DefaultSendTimeout       = 5 * time.Second
)

// Result summarizes one sweep cycle.
type Result struct {
	Kind      Kind
	RunID     string
	Found     int
	Delivered int
	Failed    int
	Deleted   int
	// Skipped is set when another run of the same kind was still in progress.
	Skipped bool
	// Errors holds per-item delivery and delete failures.
	Errors []error
}

// Err joins the per-item errors.
func (r Result) Err() error { return errors.Join(r.Errors...) }

// Scheduler owns the due and lookahead sweeps. Runs of the same kind never
// overlap, so an on-demand sweep cannot deliver a reminder the ticker is delivering.
type Scheduler struct {
	store    reminder.Store
	notifier Notifier
	opts     Options

	dueMu       sync.Mutex
	lookaheadMu sync.Mutex
}

// New builds a scheduler over a store and a notifier.
func New(store reminder.Store, notifier Notifier, opts Options) *Scheduler {
	if opts.DueInterval <= 0 {
		opts.DueInterval = DefaultDueInterval
	}
	if opts.LookaheadInterval <= 0 {
		opts.LookaheadInterval = DefaultLookaheadInterval
	}
	if opts.LookaheadWindow <= 0 {
		opts.LookaheadWindow = DefaultLookaheadWindow
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = DefaultSendTimeout
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scheduler{store: store, notifier: notifier, opts: opts}
}

func (s *Scheduler) today() reminder.Date {
	return reminder.Today(s.opts.Now(), s.opts.Location)
}

func newRun(ctx context.Context, kind Kind) (context.Context, Result) {
	id := uuid.NewString()
	if logger.RIDFrom(ctx) == "" {
		ctx = logger.WithRID(ctx, "sweep-"+id[:8])
	}
	return ctx, Result{Kind: kind, RunID: id}
}

// RunDue delivers every reminder due today or earlier and deletes each one
// only after its delivery succeeded. A failed item never stops the batch.
func (s *Scheduler) RunDue(ctx context.Context) (Result, error) {
	ctx, res := newRun(ctx, KindDue)
	if !s.dueMu.TryLock() {
		return s.skip(ctx, res), nil
	}
	defer s.dueMu.Unlock()
	start := time.Now()
	today := s.today()

	items, err := s.store.DueOnOrBefore(ctx, today)
	if err != nil {
		s.logFailure(ctx, res, err)
		return res, err
	}
	res.Found = len(items)

	for _, r := range items {
		if ctx.Err() != nil {
			break
		}
		if err := s.deliver(ctx, r, r.Text); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Delivered++
		ok, err := s.store.Delete(ctx, r.ID)
		if err != nil {
			logger.Error(ctx, "sweep", "delete",
				slog.String("status", "fail"),
				slog.Int64("reminder_id", r.ID),
				slog.String("err", err.Error()),
			)
			res.Errors = append(res.Errors, err)
			continue
		}
		if ok {
			res.Deleted++
		}
	}

	s.logSummary(ctx, res, today, start)
	return res, ctx.Err()
}

// RunLookahead sends a discount notice for every reminder due within the window
// after today. Nothing is deleted, so the same reminder is announced again on
// every run until the due sweep removes it.
func (s *Scheduler) RunLookahead(ctx context.Context) (Result, error) {
	ctx, res := newRun(ctx, KindLookahead)
	if !s.lookaheadMu.TryLock() {
		return s.skip(ctx, res), nil
	}
	defer s.lookaheadMu.Unlock()
	start := time.Now()
	today := s.today()

	items, err := s.store.DueWithinWindow(ctx, today, s.opts.LookaheadWindow)
	if err != nil {
		s.logFailure(ctx, res, err)
		return res, err
	}
	res.Found = len(items)

	for _, r := range items {
		if ctx.Err() != nil {
			break
		}
		if err := s.deliver(ctx, r, r.Text+DiscountSuffix); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			continue
		}
		res.Delivered++
	}

	s.logSummary(ctx, res, today, start)
	return res, ctx.Err()
}

// Run executes both sweeps immediately and then on their intervals until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.loop(gctx, KindDue, s.opts.DueInterval, s.RunDue) })
	g.Go(func() error { return s.loop(gctx, KindLookahead, s.opts.LookaheadInterval, s.RunLookahead) })
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, kind Kind, every time.Duration, run func(context.Context) (Result, error)) error {
	logger.Info(ctx, "sweep", "loop.start",
		slog.String("sweep", string(kind)),
		slog.Duration("interval", every),
	)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		// Errors are logged inside run; the next tick retries from scratch.
		_, _ = run(ctx)
		select {
		case <-ctx.Done():
			logger.Info(context.WithoutCancel(ctx), "sweep", "loop.stop", slog.String("sweep", string(kind)))
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) deliver(ctx context.Context, r reminder.Reminder, text string) error {
	sendCtx, cancel := context.WithTimeout(ctx, s.opts.SendTimeout)
	defer cancel()
	if err := s.notifier.Notify(sendCtx, text); err != nil {
		derr := &DeliveryError{ReminderID: r.ID, Err: err}
		logger.Warn(ctx, "sweep", "deliver",
			slog.String("status", "fail"),
			slog.Int64("reminder_id", r.ID),
			slog.String("due_date", r.DueDate.String()),
			slog.String("err", err.Error()),
		)
		return derr
	}
	logger.Debug(ctx, "sweep", "deliver",
		slog.String("status", "ok"),
		slog.Int64("reminder_id", r.ID),
		slog.String("due_date", r.DueDate.String()),
	)
	return nil
}

func (s *Scheduler) skip(ctx context.Context, res Result) Result {
	res.Skipped = true
	logger.Info(ctx, "sweep", "run",
		slog.String("status", "skip"),
		slog.String("sweep", string(res.Kind)),
		slog.String("run_id", res.RunID),
		slog.String("reason", "busy"),
	)
	return res
}

func (s *Scheduler) logFailure(ctx context.Context, res Result, err error) {
	logger.Error(ctx, "sweep", "run",
		slog.String("status", "fail"),
		slog.String("sweep", string(res.Kind)),
		slog.String("run_id", res.RunID),
		slog.String("err", err.Error()),
	)
}

func (s *Scheduler) logSummary(ctx context.Context, res Result, today reminder.Date, start time.Time) {
	status := "ok"
	if res.Failed > 0 || len(res.Errors) > 0 {
		status = "partial"
	}
	logger.Info(ctx, "sweep", "run",
		slog.String("status", status),
		slog.String("sweep", string(res.Kind)),
		slog.String("run_id", res.RunID),
		slog.String("today", today.String()),
		slog.Int("found", res.Found),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed),
		slog.Int("deleted", res.Deleted),
		slog.Duration("duration", logger.Took(start)),
	)
}
