package analytics

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/kafka"
)

// Collector buffers query events and publishes them in the background.
// Track never blocks; events that do not fit the buffer are dropped.
type Collector struct {
	publisher kafka.Publisher
	events    chan QueryEvent
	done      chan struct{}
	mu        sync.RWMutex
	closed    bool
	dropped   atomic.Int64
	logger    *slog.Logger
}

func NewCollector(publisher kafka.Publisher, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 10000
	}
	return &Collector{
		publisher: publisher,
		events:    make(chan QueryEvent, bufferSize),
		done:      make(chan struct{}),
		logger:    slog.Default().With("component", "query-collector"),
	}
}

// Start publishes events until Close is called or ctx ends. Events still
// buffered when ctx ends are flushed without a deadline.
func (c *Collector) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		for {
			select {
			case ev, ok := <-c.events:
				if !ok {
					return
				}
				c.publish(ctx, ev)
			case <-ctx.Done():
				c.drain()
				return
			}
		}
	}()
	c.logger.Info("query collector started", "buffer_size", cap(c.events))
}

// Track queues ev for publishing. Events tracked after Close are dropped.
func (c *Collector) Track(ev QueryEvent) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		c.dropped.Add(1)
		return
	}
	select {
	case c.events <- ev:
	default:
		if c.dropped.Add(1)%1000 == 1 {
			c.logger.Warn("query events dropped, buffer full", "dropped_total", c.dropped.Load())
		}
	}
}

// Dropped returns the number of events lost to a full buffer.
func (c *Collector) Dropped() int64 {
	return c.dropped.Load()
}

// Close stops accepting events and waits for the publisher loop started by
// Start to finish. Calling it again is a no-op.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.events)
	c.mu.Unlock()
	<-c.done
}

func (c *Collector) publish(ctx context.Context, ev QueryEvent) {
	if err := c.publisher.Publish(ctx, ev.Generation, ev); err != nil {
		c.logger.Error("failed to publish query event", "error", err)
	}
}

func (c *Collector) drain() {
	ctx := context.Background()
	for {
		select {
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.publish(ctx, ev)
		default:
			return
		}
	}
}
