// Package tracing records per-request span trees and logs them through slog.
// Spans travel in contexts; code below the request root calls Start, which
// is a no-op when no trace is active.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/logger"
)

type contextKey struct{}

// Span is one timed step of a traced request.
type Span struct {
	Name    string
	TraceID string
	Start   time.Time
	Elapsed time.Duration

	mu       sync.Mutex
	attrs    []slog.Attr
	children []*Span
}

// NewTrace opens a root span. The trace id is the request id carried by ctx,
// or a fresh uuid when there is none.
func NewTrace(ctx context.Context, name string) (context.Context, *Span) {
	id := logger.RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	span := &Span{Name: name, TraceID: id, Start: time.Now()}
	return context.WithValue(ctx, contextKey{}, span), span
}

// Start opens a child of the span in ctx. Without an active trace it returns
// ctx unchanged and a nil span; every Span method accepts a nil receiver.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	parent := FromContext(ctx)
	if parent == nil {
		return ctx, nil
	}
	child := &Span{Name: name, TraceID: parent.TraceID, Start: time.Now()}
	parent.mu.Lock()
	parent.children = append(parent.children, child)
	parent.mu.Unlock()
	return context.WithValue(ctx, contextKey{}, child), child
}

// FromContext returns the active span, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

func (s *Span) End() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.Elapsed = time.Since(s.Start)
	s.mu.Unlock()
}

func (s *Span) SetAttr(key string, value any) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attrs = append(s.attrs, slog.Any(key, value))
	s.mu.Unlock()
}

// Children returns a copy of the direct children.
func (s *Span) Children() []*Span {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the tree rooted at s, one record per span. Traces slower than
// slow are logged at warn level, the rest at debug. A zero slow logs every
// trace at debug.
func (s *Span) Log(ctx context.Context, log *slog.Logger, slow time.Duration) {
	if s == nil {
		return
	}
	level := slog.LevelDebug
	if slow > 0 && s.Elapsed > slow {
		level = slog.LevelWarn
	}
	if !log.Enabled(ctx, level) {
		return
	}
	s.log(ctx, log, level, 0)
}

func (s *Span) log(ctx context.Context, log *slog.Logger, level slog.Level, depth int) {
	s.mu.Lock()
	attrs := make([]slog.Attr, 0, 4+len(s.attrs))
	attrs = append(attrs,
		slog.String("trace_id", s.TraceID),
		slog.String("span", s.Name),
		slog.Int("depth", depth),
		slog.Duration("elapsed", s.Elapsed),
	)
	attrs = append(attrs, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	log.LogAttrs(ctx, level, "span", attrs...)
	for _, child := range children {
		child.log(ctx, log, level, depth+1)
	}
}
