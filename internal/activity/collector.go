package activity

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// BatchInserter is the interface used by Collector to persist events.
// It exists to allow testing without a real database.
type BatchInserter interface {
	BatchInsert(ctx context.Context, events []Event) error
}

// FlushHook is called after every flush attempt with the batch size and the
// store error, if any.
type FlushHook func(n int, err error)

// DropHook is called when an event is discarded because the buffer is full.
type DropHook func(event string)

// Collector buffers events in memory and periodically flushes them to the
// store in batches. It is safe for concurrent use. Log never blocks on I/O:
// flushes triggered by a full batch run on their own goroutine, and events are
// dropped once maxBuffer is reached.
type Collector struct {
	store         BatchInserter
	buffer        []Event
	mu            sync.Mutex
	batchSize     int
	maxBuffer     int
	flushInterval time.Duration
	done          chan struct{}
	stopOnce      sync.Once
	now           func() time.Time

	onFlush FlushHook
	onDrop  DropHook
}

// CollectorOption configures a Collector.
type CollectorOption func(*Collector)

// WithFlushHook registers a callback invoked after each flush.
func WithFlushHook(h FlushHook) CollectorOption {
	return func(c *Collector) { c.onFlush = h }
}

// WithDropHook registers a callback invoked for each dropped event.
func WithDropHook(h DropHook) CollectorOption {
	return func(c *Collector) { c.onDrop = h }
}

// NewCollector creates a new Collector that flushes to the given store when
// the buffer reaches batchSize or every flushInterval, whichever comes first.
// A maxBuffer of zero or less means unbounded.
func NewCollector(store BatchInserter, batchSize, maxBuffer int, flushInterval time.Duration, opts ...CollectorOption) *Collector {
	c := &Collector{
		store:         store,
		buffer:        make([]Event, 0, batchSize),
		batchSize:     batchSize,
		maxBuffer:     maxBuffer,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
		now:           time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Start begins a background loop that flushes buffered events on a timer.
// It blocks until Stop is called or the context is cancelled.
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-ctx.Done():
			c.flush()
			return
		case <-c.done:
			c.flush()
			return
		}
	}
}

// Log records an event. tenant_id and user_id string values in metadata are
// lifted into their own columns.
func (c *Collector) Log(event string, metadata map[string]any) {
	e := Event{
		ID:        uuid.NewString(),
		Event:     event,
		Metadata:  metadata,
		CreatedAt: c.now().UTC(),
	}
	if v, ok := metadata["tenant_id"].(string); ok {
		e.TenantID = v
	}
	if v, ok := metadata["user_id"].(string); ok {
		e.UserID = v
	}
	c.Record(e)
}

// Record adds an event to the buffer. If the buffer reaches batchSize, a
// flush is started in the background.
func (c *Collector) Record(e Event) {
	c.mu.Lock()
	if c.maxBuffer > 0 && len(c.buffer) >= c.maxBuffer {
		c.mu.Unlock()
		if c.onDrop != nil {
			c.onDrop(e.Event)
		}
		slog.Warn("activity buffer full, dropping event", "event", e.Event)
		return
	}
	c.buffer = append(c.buffer, e)
	shouldFlush := len(c.buffer) >= c.batchSize
	c.mu.Unlock()

	if shouldFlush {
		go c.flush()
	}
}

// Buffered returns the number of events waiting to be flushed.
func (c *Collector) Buffered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}

// flush drains all buffered events and writes them to the store in chunks
// of at most batchSize. It logs errors rather than returning them so callers
// are not blocked; a failed chunk does not stop the remaining ones.
func (c *Collector) flush() {
	c.mu.Lock()
	if len(c.buffer) == 0 {
		c.mu.Unlock()
		return
	}
	batch := c.buffer
	c.buffer = make([]Event, 0, c.batchSize)
	c.mu.Unlock()

	size := c.batchSize
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	for start := 0; start < len(batch); start += size {
		c.insert(batch[start:min(start+size, len(batch))])
	}
}

func (c *Collector) insert(chunk []Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := c.store.BatchInsert(ctx, chunk)
	if err != nil {
		slog.Error("failed to flush activity events", "count", len(chunk), "error", err)
	}
	if c.onFlush != nil {
		c.onFlush(len(chunk), err)
	}
}

// Stop signals the background loop to exit and perform a final flush.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.done) })
}
