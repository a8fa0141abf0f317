// Package sender runs outbound Bot API calls off the update goroutine.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/sroki/core/logger"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned when the chat's lane has no room left.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options tune the dispatcher. Zero values pick the defaults.
type Options struct {
	QueueSize    int           // per lane
	Workers      int           // number of lanes
	MaxRetries   int           // extra attempts for retryable errors
	RetryBackoff time.Duration // multiplied by the attempt number
	MaxDuration  time.Duration // budget for one job including retries
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes queued sends on a fixed set of lanes. Jobs for one chat
// always share a lane, so a chat sees its replies in the order they were queued.
type Dispatcher struct {
	opts   Options
	lanes  []chan job
	wg     sync.WaitGroup
	failed atomic.Uint64

	mu     sync.RWMutex // guards closed against Enqueue racing Close
	closed bool
}

// NewDispatcher starts the lanes.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, lanes: make([]chan job, opts.Workers)}
	d.wg.Add(opts.Workers)
	for i := range d.lanes {
		lane := make(chan job, opts.QueueSize)
		d.lanes[i] = lane
		go func() {
			defer d.wg.Done()
			for j := range lane {
				d.handle(j)
			}
		}()
	}
	return d
}

// Enqueue schedules run on the lane of the chat recorded in ctx. run may be
// called more than once when it fails with a retryable error.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.laneFor(logger.ScopeFrom(ctx).ChatID) <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) laneFor(chatID int64) chan job {
	n := uint64(chatID)
	return d.lanes[n%uint64(len(d.lanes))]
}

// ErrorCount returns how many jobs failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close stops accepting jobs and waits for the queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, lane := range d.lanes {
		close(lane)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) handle(j job) {
	// Detached from the update's cancellation; only the budget bounds the job.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(j.ctx), d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attrs := []slog.Attr{slog.String("action", j.action), slog.String("endpoint", j.endpoint)}

	var err error
	attempt := 0
	for attempt < d.opts.MaxRetries+1 {
		attempt++
		if err = j.run(); err == nil {
			logger.Debug(ctx, "tg.sender", "send",
				append(attrs,
					slog.String("status", "ok"),
					slog.Int("attempt", attempt),
					slog.Duration("took", logger.Took(start)),
				)...,
			)
			return
		}
		if !Retryable(err) || attempt > d.opts.MaxRetries {
			break
		}
		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if wait := RetryAfter(err); wait > delay {
			delay = wait
		}
		logger.Debug(ctx, "tg.sender", "send.retry",
			append(attrs,
				slog.Int("attempt", attempt),
				slog.String("error_kind", Kind(err)),
				slog.Duration("backoff", delay),
			)...,
		)
		if waitErr := sleep(ctx, delay); waitErr != nil {
			err = waitErr
			break
		}
	}

	d.failed.Add(1)
	logger.Error(ctx, "tg.sender", "send",
		append(attrs,
			slog.String("status", "fail"),
			slog.String("err", Redact(err)),
			slog.String("error_kind", Kind(err)),
			slog.Int("attempts", attempt),
			slog.Duration("took", logger.Took(start)),
		)...,
	)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
