package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrOpen is returned by Breaker.Do while the breaker rejects calls.
var ErrOpen = errors.New("circuit open")

// State is the phase a Breaker is in.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig sets when a Breaker trips and how long it stays open.
type BreakerConfig struct {
	Threshold int
	Cooldown  time.Duration
}

// Breaker stops calling a failing dependency after Threshold consecutive
// failures. After Cooldown one probe call is let through; its outcome closes
// or re-opens the breaker.
type Breaker struct {
	name   string
	cfg    BreakerConfig
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// NewBreaker returns a closed Breaker. Zero config fields get 5 failures and
// a 30s cooldown.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:   name,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default().With("component", "breaker", "name", name),
	}
}

// Do runs fn unless the breaker is open.
func (b *Breaker) Do(fn func() error) error {
	if err := b.admit(); err != nil {
		return err
	}
	err := fn()
	b.record(err)
	return err
}

// State reports the current phase.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		wait := b.cfg.Cooldown - b.now().Sub(b.openedAt)
		if wait > 0 {
			return fmt.Errorf("%w: %s (retry in %v)", ErrOpen, b.name, wait)
		}
		b.state = HalfOpen
		b.probing = true
		b.logger.Info("breaker half-open, probing")
	case HalfOpen:
		if b.probing {
			return fmt.Errorf("%w: %s (probe in flight)", ErrOpen, b.name)
		}
		b.probing = true
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	if err == nil {
		if b.state != Closed {
			b.logger.Info("breaker closed")
		}
		b.state = Closed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == HalfOpen || b.failures >= b.cfg.Threshold {
		if b.state != Open {
			b.logger.Warn("breaker opened", "consecutive_failures", b.failures, "error", err)
		}
		b.state = Open
		b.openedAt = b.now()
	}
}
