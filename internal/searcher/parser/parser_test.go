package parser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/parser"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in    string
		name  string
		scope string
		shard string
	}{
		{in: "max", name: "max", shard: "m"},
		{in: "  MAX  ", name: "max", shard: "m"},
		{in: "message view", name: "messageview", shard: "m"},
		{in: "message_view", name: "messageview", shard: "m"},
		{in: "msgbus::message", name: "message", scope: "msgbus", shard: "m"},
		{in: "eagine::msgbus::mess", name: "mess", scope: "eagine::msgbus", shard: "m"},
		{in: "std::vector.hpp", name: "vectorhpp", scope: "std", shard: "v"},
		{in: "operator/", name: "operator", shard: "o"},
		{in: "operator.", name: "operator", shard: "o"},
		{in: "buffer.hpp", name: "bufferhpp", shard: "b"},
		{in: "eagine::operator/", name: "operator", scope: "eagine", shard: "o"},
		{in: "Message Bus::send", name: "send", scope: "message_bus", shard: "s"},
		{in: "2d", name: "2d", shard: "_"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			q := parser.Parse(tt.in)
			assert.Equal(t, tt.in, q.Raw)
			assert.Equal(t, tt.name, q.Name)
			assert.Equal(t, tt.scope, q.Scope)
			key, ok := q.Shard()
			assert.True(t, ok)
			assert.Equal(t, tt.shard, key)
		})
	}
}

func TestParse_ScopeOnly(t *testing.T) {
	t.Parallel()

	q := parser.Parse("msgbus::")
	assert.Equal(t, "", q.Name)
	assert.Equal(t, "msgbus", q.Scope)
	assert.False(t, q.Empty())
	_, ok := q.Shard()
	assert.False(t, ok)
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "   ", "::", "--", "#", "::::"} {
		assert.True(t, parser.Parse(in).Empty(), "input %q", in)
	}
}

func TestScopeKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "eagine::msgbus", parser.ScopeKey([]string{"eagine", "msgbus"}))
	assert.Equal(t, "basic_string_char", parser.ScopeKey([]string{"", "basic_string<char>"}))
	assert.Equal(t, "", parser.ScopeKey(nil))
}
