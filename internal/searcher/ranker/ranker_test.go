package ranker_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/ranker"
)

func TestRank_ExactFirstStable(t *testing.T) {
	t.Parallel()

	in := []ranker.Match{
		{Entry: index.Entry{CanonicalKey: "_max", ID: 4}},
		{Entry: index.Entry{CanonicalKey: "max", ID: 2}, Exact: true},
		{Entry: index.Entry{CanonicalKey: "maximum", ID: 1}},
		{Entry: index.Entry{CanonicalKey: "maxval", ID: 3}},
	}
	got := ranker.Rank(in)
	ids := make([]uint64, len(got))
	for i, m := range got {
		ids[i] = m.Entry.ID
	}
	assert.Equal(t, []uint64{2, 4, 1, 3}, ids)
}

func TestLess_TieBreaksOnID(t *testing.T) {
	t.Parallel()

	a := ranker.Match{Entry: index.Entry{CanonicalKey: "k", ID: 1}}
	b := ranker.Match{Entry: index.Entry{CanonicalKey: "k", ID: 2}}
	assert.True(t, ranker.Less(a, b))
	assert.False(t, ranker.Less(b, a))
}
