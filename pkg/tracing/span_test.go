package tracing_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/tracing"
)

func TestStart_WithoutTraceIsNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	got, span := tracing.Start(ctx, "shard")
	assert.Nil(t, span)
	assert.Equal(t, ctx, got)

	span.SetAttr("k", "v")
	span.End()
	span.Log(ctx, logger.New(&bytes.Buffer{}, "debug", "text"), 0)
}

func TestNewTrace_UsesRequestID(t *testing.T) {
	t.Parallel()

	ctx := logger.WithRequestID(context.Background(), "req-42")
	ctx, root := tracing.NewTrace(ctx, "search")
	_, child := tracing.Start(ctx, "shard")
	require.NotNil(t, child)
	assert.Equal(t, "req-42", root.TraceID)
	assert.Equal(t, "req-42", child.TraceID)
	assert.Same(t, root, tracing.FromContext(ctx))
}

func TestSpan_ConcurrentChildren(t *testing.T) {
	t.Parallel()

	ctx, root := tracing.NewTrace(context.Background(), "search")
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, s := tracing.Start(ctx, "shard")
			s.SetAttr("matches", 1)
			s.End()
		}()
	}
	wg.Wait()
	root.End()
	assert.Len(t, root.Children(), 16)
}

func TestSpan_LogLevelFollowsSlowThreshold(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.New(&buf, "warn", "text")

	ctx, root := tracing.NewTrace(context.Background(), "search")
	_, child := tracing.Start(ctx, "shard")
	child.SetAttr("shard", "m")
	child.End()
	root.End()

	root.Log(ctx, log, time.Hour)
	assert.Empty(t, buf.String())

	time.Sleep(2 * time.Millisecond)
	root.End()
	root.Log(ctx, log, time.Millisecond)
	out := buf.String()
	assert.Equal(t, 2, strings.Count(out, "msg=span"))
	assert.Contains(t, out, "shard=m")
	assert.Contains(t, out, "depth=1")
}
