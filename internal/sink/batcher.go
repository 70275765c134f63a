package sink

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/andresmejia3/facepack/internal/types"
)

// BatchConfig controls batching.
type BatchConfig struct {
	// Window is how long the first frame of a batch waits for company.
	// Default: 2s.
	Window time.Duration
	// MaxBatch flushes immediately when this many frames accumulate.
	// Default: 500.
	MaxBatch int
}

func (c *BatchConfig) defaults() {
	if c.Window <= 0 {
		c.Window = 2 * time.Second
	}
	if c.MaxBatch <= 0 {
		c.MaxBatch = 500
	}
}

// FlushFunc observes every delivery attempt.
type FlushFunc func(frames int, err error)

// Batcher accumulates frames and hands them to next as one batch when the
// window opened by the first pending frame expires or MaxBatch is reached.
// Batches are delivered in order. Safe for concurrent use.
type Batcher struct {
	cfg     BatchConfig
	next    Sink
	ctx     context.Context
	logger  *slog.Logger
	onFlush FlushFunc

	sendMu  sync.Mutex // held across next.Send to keep batches ordered
	mu      sync.Mutex
	pending []types.CompactedFrame
	timer   *time.Timer
	gen     uint64 // bumped per flush; a timer only flushes its own batch
	closed  bool
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// WithFlushHook registers fn to observe deliveries.
func WithFlushHook(fn FlushFunc) BatcherOption {
	return func(b *Batcher) { b.onFlush = fn }
}

// WithBatcherLogger sets a custom logger.
func WithBatcherLogger(l *slog.Logger) BatcherOption {
	return func(b *Batcher) { b.logger = l }
}

// NewBatcher creates a Batcher delivering to next. Timer-driven flushes use
// ctx.
func NewBatcher(ctx context.Context, next Sink, cfg BatchConfig, opts ...BatcherOption) *Batcher {
	cfg.defaults()
	b := &Batcher{
		cfg:     cfg,
		next:    next,
		ctx:     ctx,
		logger:  slog.Default(),
		pending: make([]types.CompactedFrame, 0, cfg.MaxBatch),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Add queues one frame. It returns the delivery error when the frame
// completed a full batch.
func (b *Batcher) Add(ctx context.Context, f types.CompactedFrame) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	b.pending = append(b.pending, f)
	full := len(b.pending) >= b.cfg.MaxBatch
	if !full && b.timer == nil {
		gen := b.gen
		b.timer = time.AfterFunc(b.cfg.Window, func() { b.onTimer(gen) })
	}
	b.mu.Unlock()

	if full {
		return b.Flush(ctx)
	}
	return nil
}

// Send queues every frame; it makes a Batcher usable as a Sink.
func (b *Batcher) Send(ctx context.Context, frames []types.CompactedFrame) error {
	for _, f := range frames {
		if err := b.Add(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

// onTimer flushes the batch that armed it. A timer that fired while another
// flush held sendMu finds a newer generation and leaves the next batch to
// its own window.
func (b *Batcher) onTimer(gen uint64) {
	if err := b.flush(b.ctx, true, gen); err != nil {
		b.logger.Warn("batcher: timed flush failed", "error", err)
	}
}

// Flush delivers whatever is pending.
func (b *Batcher) Flush(ctx context.Context) error {
	return b.flush(ctx, false, 0)
}

func (b *Batcher) flush(ctx context.Context, timed bool, gen uint64) error {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.Lock()
	if timed && gen != b.gen {
		b.mu.Unlock()
		return nil
	}
	b.gen++
	batch := b.pending
	b.pending = make([]types.CompactedFrame, 0, b.cfg.MaxBatch)
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err := b.next.Send(ctx, batch)
	if b.onFlush != nil {
		b.onFlush(len(batch), err)
	}
	return err
}

// Pending reports the number of queued frames.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Close flushes pending frames with a context that ignores cancellation,
// then closes next.
func (b *Batcher) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	flushErr := b.Flush(context.WithoutCancel(b.ctx))
	closeErr := b.next.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
