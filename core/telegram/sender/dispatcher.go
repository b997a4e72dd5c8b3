package sender

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/tandembot/core/logger"
	"github.com/m3rciful/tandembot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the shard queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const componentSender = "tg.sender"

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize bounds the backlog of each shard.
	QueueSize int
	// Workers is the number of shards. Jobs with the same endpoint always run
	// on the same shard, one at a time, in enqueue order.
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

// Stats counts jobs by outcome since the dispatcher started.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

// Dispatcher executes outbound Telegram calls asynchronously with retries.
// Each endpoint (typically "chat:<id>") is pinned to one shard so messages
// to the same chat are delivered in order.
type Dispatcher struct {
	opts    Options
	backoff netutil.Backoff

	mu     sync.RWMutex
	closed bool
	shards []chan job
	wg     sync.WaitGroup

	sent, failed, dropped atomic.Uint64
}

// NewDispatcher starts a dispatcher with sane defaults if options are zeroed.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts:    opts,
		backoff: netutil.Backoff{Step: opts.RetryBackoff, Max: opts.MaxDuration},
		shards:  make([]chan job, opts.Workers),
	}
	d.wg.Add(opts.Workers)
	for i := range d.shards {
		d.shards[i] = make(chan job, opts.QueueSize)
		go d.worker(d.shards[i])
	}
	return d
}

// Enqueue schedules run on the shard owning endpoint. The run closure must be
// idempotent if retries are desired.
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
	case d.shards[d.shardOf(endpoint)] <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		d.dropped.Add(1)
		logger.Warn(ctx, componentSender, "send.dropped",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("reason", "queue_full"),
		)
		return ErrQueueFull
	}
}

func (d *Dispatcher) shardOf(endpoint string) int {
	if len(d.shards) == 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(endpoint))
	return int(h.Sum32() % uint32(len(d.shards)))
}

// Stats returns job counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load(), Dropped: d.dropped.Load()}
}

// ErrorCount returns the number of jobs that failed after all retries.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, ch := range d.shards {
		close(ch)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		d.handle(j)
	}
}

func (d *Dispatcher) handle(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = j.run(); err == nil {
			d.sent.Add(1)
			logger.Debug(j.ctx, componentSender, "send.success", j.attrs(
				slog.Int("attempt", attempt),
				slog.Duration("duration", time.Since(start)),
			)...)
			return
		}
		if !netutil.ShouldRetry(err) || attempt == attempts {
			break
		}
		delay := d.backoff.Delay(attempt, err)
		logger.Debug(j.ctx, componentSender, "send.retry.backoff", j.attrs(
			slog.Int("attempt", attempt),
			slog.String("error_kind", netutil.Classify(err)),
			slog.Duration("delay", delay),
		)...)
		if waitErr := netutil.Sleep(ctx, delay); waitErr != nil {
			err = errors.Join(err, waitErr)
			break
		}
	}

	d.failed.Add(1)
	logger.Error(j.ctx, componentSender, "send.fail", j.attrs(
		slog.String("error", netutil.Redact(err)),
		slog.String("error_kind", netutil.Classify(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	)...)
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := make([]slog.Attr, 0, 2+len(extra))
	attrs = append(attrs, slog.String("action", j.action))
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}
