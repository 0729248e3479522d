package indexer_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() []index.RawSymbol {
	return []index.RawSymbol{
		{DisplayName: "message_view", Scope: []string{"eagine", "msgbus"}, AnchorRef: "classeagine_1_1msgbus_1_1message__view.html#aA", SignatureHint: "()", Kind: index.KindFunction},
		{DisplayName: "maximum", Scope: []string{"math"}, AnchorRef: "math.html#a1", SignatureHint: "(int, int)", Kind: index.KindFunction},
		{DisplayName: "message_view", Scope: []string{"eagine", "msgbus"}, AnchorRef: "classeagine_1_1msgbus_1_1message__view.html#aB", SignatureHint: "(memory::const_block)", Kind: index.KindFunction},
		{DisplayName: "max", Scope: []string{"math"}, AnchorRef: "math.html#a2", Kind: index.KindFunction},
		{DisplayName: "Display", Scope: []string{"eglplus"}, AnchorRef: "classeglplus_1_1Display.html", Kind: index.KindType},
		{DisplayName: "message_view", Scope: []string{"eagine", "msgbus"}, AnchorRef: "classeagine_1_1msgbus_1_1message__view.html#aC", SignatureHint: "(string_view)", Kind: index.KindFunction},
		{DisplayName: "maximum", Scope: []string{"math"}, AnchorRef: "math.html#a3", SignatureHint: "(float, float)", Kind: index.KindFunction},
		{DisplayName: "2d_texture", Scope: nil, AnchorRef: "group__tex.html", Kind: index.KindGroup},
		{DisplayName: "message_view", Scope: []string{"eagine", "msgbus"}, AnchorRef: "classeagine_1_1msgbus_1_1message__view.html#aD", SignatureHint: "(message_view&&)", Kind: index.KindFunction},
	}
}

func TestBuild_OverloadsKeepDiscoveryOrder(t *testing.T) {
	t.Parallel()

	result, err := indexer.NewBuilder(nil).Build(sampleCatalog())
	require.NoError(t, err)

	entry, ok := result.Shard("m").Find("messageview")
	require.True(t, ok)
	anchors := make([]string, 0, len(entry.Locations))
	for _, loc := range entry.Locations {
		anchors = append(anchors, loc.AnchorRef[len(loc.AnchorRef)-2:])
	}
	assert.Equal(t, []string{"aA", "aB", "aC", "aD"}, anchors)
	assert.Equal(t, "message_view", entry.DisplayName)
	assert.Equal(t, "message_view", entry.Collapsed)
}

func TestBuild_IDsFollowFirstEncounter(t *testing.T) {
	t.Parallel()

	result, err := indexer.NewBuilder(indexer.NewSequence(100)).Build(sampleCatalog())
	require.NoError(t, err)

	want := map[string]uint64{
		"messageview": 100,
		"maximum":     101,
		"max":         102,
		"display":     103,
		"2dtexture":   104,
	}
	for key, id := range want {
		shard := result.Shard(shardFor(key))
		entry, ok := shard.Find(key)
		require.True(t, ok, "key %s", key)
		assert.Equal(t, id, entry.ID, "key %s", key)
	}
	assert.Equal(t, uint64(100), result.Summary.FirstID)
	assert.Equal(t, uint64(105), result.Summary.NextID)
}

func shardFor(key string) string {
	if key[0] >= 'a' && key[0] <= 'z' {
		return key[:1]
	}
	return "_"
}

func TestBuild_EveryRecordInExactlyOneEntry(t *testing.T) {
	t.Parallel()

	catalog := sampleCatalog()
	result, err := indexer.NewBuilder(nil).Build(catalog)
	require.NoError(t, err)

	seen := make(map[string]int)
	ids := make(map[uint64]bool)
	for key, shard := range result.Shards {
		require.NoError(t, shard.Validate(), "shard %s", key)
		require.NotZero(t, shard.Len())
		for _, e := range shard.Entries {
			require.NotEmpty(t, e.Locations)
			assert.False(t, ids[e.ID], "duplicate id %d", e.ID)
			ids[e.ID] = true
			for _, loc := range e.Locations {
				seen[loc.AnchorRef]++
			}
		}
	}
	require.Len(t, seen, len(catalog))
	for anchor, n := range seen {
		assert.Equal(t, 1, n, "anchor %s", anchor)
	}
	assert.Equal(t, len(catalog), result.Summary.Accepted)
	assert.Equal(t, 5, result.Summary.Entries)
	assert.Equal(t, 3, result.Summary.Shards)
}

func TestBuild_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := indexer.NewBuilder(nil).Build(sampleCatalog())
	require.NoError(t, err)
	second, err := indexer.NewBuilder(nil).Build(sampleCatalog())
	require.NoError(t, err)

	assert.Equal(t, first.Shards, second.Shards)
	assert.NotEqual(t, first.Generation, second.Generation)
}

func TestBuild_SharedSequenceNeverReusesIDs(t *testing.T) {
	t.Parallel()

	seq := indexer.NewSequence(1)
	b := indexer.NewBuilder(seq)
	first, err := b.Build(sampleCatalog())
	require.NoError(t, err)
	second, err := b.Build(sampleCatalog())
	require.NoError(t, err)

	e1, _ := first.Shard("m").Find("max")
	e2, _ := second.Shard("m").Find("max")
	assert.Greater(t, e2.ID, e1.ID)
	assert.Equal(t, first.Summary.NextID, second.Summary.FirstID)
}

func TestBuild_RejectsMalformedRecordsWithoutAborting(t *testing.T) {
	t.Parallel()

	catalog := append(sampleCatalog(),
		index.RawSymbol{DisplayName: "", AnchorRef: "broken.html"},
		index.RawSymbol{DisplayName: "::", AnchorRef: "broken2.html"},
	)
	result, err := indexer.NewBuilder(nil).Build(catalog)
	require.NoError(t, err)

	require.Len(t, result.Summary.Rejected, 2)
	assert.Equal(t, len(catalog)-2, result.Summary.Accepted)
	assert.Equal(t, 9, result.Summary.Rejected[0].Position)
	assert.Equal(t, 10, result.Summary.Rejected[1].Position)

	joined := result.Summary.Err()
	require.Error(t, joined)
	assert.True(t, errors.Is(joined, apperrors.ErrInvalidSymbolName))

	_, ok := result.Shard("m").Find("max")
	assert.True(t, ok)
}

func TestBuild_AllRecordsInvalid(t *testing.T) {
	t.Parallel()

	_, err := indexer.NewBuilder(nil).Build([]index.RawSymbol{{DisplayName: ""}, {DisplayName: "--"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidCatalog))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidSymbolName))
}

func TestBuild_EmptyCatalog(t *testing.T) {
	t.Parallel()

	result, err := indexer.NewBuilder(nil).Build(nil)
	require.NoError(t, err)
	assert.Empty(t, result.Shards)
	assert.Equal(t, 0, result.Shard("q").Len())
}

func BenchmarkBuild(b *testing.B) {
	catalog := make([]index.RawSymbol, 0, 10000)
	for i := 0; i < 10000; i++ {
		catalog = append(catalog, index.RawSymbol{
			DisplayName: fmt.Sprintf("symbol_%c_%d", 'a'+rune(i%26), i/3),
			Scope:       []string{"ns", fmt.Sprintf("cls%d", i%50)},
			AnchorRef:   fmt.Sprintf("page%d.html#a%d", i%50, i),
		})
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := indexer.NewBuilder(nil).Build(catalog); err != nil {
			b.Fatal(err)
		}
	}
}
