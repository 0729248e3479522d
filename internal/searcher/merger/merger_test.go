package merger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/ranker"
)

func m(key string, id uint64) ranker.Match {
	return ranker.Match{Entry: index.Entry{CanonicalKey: key, ID: id}}
}

func keys(ms []ranker.Match) []string {
	out := make([]string, len(ms))
	for i, x := range ms {
		out[i] = x.Entry.CanonicalKey
	}
	return out
}

func TestMerge_Interleaves(t *testing.T) {
	t.Parallel()

	lists := [][]ranker.Match{
		{m("alpha", 3), m("apply", 9)},
		nil,
		{m("beta", 1), m("bind", 2)},
		{m("_2d", 7)},
	}
	got := merger.Merge(lists, 0)
	assert.Equal(t, []string{"_2d", "alpha", "apply", "beta", "bind"}, keys(got))
}

func TestMerge_Limit(t *testing.T) {
	t.Parallel()

	lists := [][]ranker.Match{
		{m("a", 1), m("c", 3)},
		{m("b", 2), m("d", 4)},
	}
	assert.Equal(t, []string{"a", "b", "c"}, keys(merger.Merge(lists, 3)))
	assert.Equal(t, []string{"a"}, keys(merger.Merge(lists[:1], 1)))
}

func TestMerge_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, merger.Merge(nil, 0))
	assert.Empty(t, merger.Merge([][]ranker.Match{nil, {}}, 5))
}
