package handler_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/reload"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/blobstore"
)

var opts = handler.Options{DefaultLimit: 20, MaxResults: 50, Timeout: time.Second}

type mapBackend struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mapBackend) Set(_ context.Context, key string, v []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = v
	return nil
}

func (m *mapBackend) DeleteByPattern(context.Context, string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data))
	m.data = map[string][]byte{}
	return n, nil
}

func server(t *testing.T, withCache bool) *httptest.Server {
	t.Helper()
	return serverWithOptions(t, withCache, opts)
}

func serverWithOptions(t *testing.T, withCache bool, o handler.Options) *httptest.Server {
	t.Helper()
	result, err := indexer.NewBuilder(nil).Build([]index.RawSymbol{
		{DisplayName: "max", Scope: []string{"math"}, AnchorRef: "math.html#a2", Kind: index.KindFunction},
		{DisplayName: "maximum", Scope: []string{"math"}, AnchorRef: "math.html#a1", SignatureHint: "(int, int)", Kind: index.KindFunction},
		{DisplayName: "maximum", Scope: []string{"math"}, AnchorRef: "math.html#a3", SignatureHint: "(float, float)", Kind: index.KindFunction},
	})
	require.NoError(t, err)
	mgr := reload.NewManager(blobstore.NewMemoryStore(), 1, nil)
	mgr.Activate(context.Background(), result)

	var qc *cache.QueryCache
	if withCache {
		qc = cache.New(&mapBackend{data: map[string][]byte{}}, time.Minute, nil)
	}
	mux := http.NewServeMux()
	handler.New(mgr, qc, nil, o).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type response struct {
	Query     string `json:"query"`
	Total     int    `json:"total"`
	Truncated bool   `json:"truncated"`
	Results   []struct {
		DisplayName      string `json:"display_name"`
		ID               uint64 `json:"id"`
		Kind             string `json:"kind"`
		MatchedLocations []struct {
			Scope         []string `json:"scope"`
			AnchorRef     string   `json:"anchor_ref"`
			SignatureHint string   `json:"signature_hint"`
			Kind          string   `json:"kind"`
		} `json:"matched_locations"`
	} `json:"results"`
}

func get(t *testing.T, url string) (*http.Response, response) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var body response
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

func TestSearch_JSONShape(t *testing.T) {
	t.Parallel()

	srv := server(t, false)
	resp, body := get(t, srv.URL+"/api/v1/search?q=max")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "max", body.Query)
	assert.Equal(t, 2, body.Total)
	require.Len(t, body.Results, 2)
	assert.Equal(t, "max", body.Results[0].DisplayName)
	assert.Equal(t, "function", body.Results[0].Kind)
	assert.Equal(t, "maximum", body.Results[1].DisplayName)
	require.Len(t, body.Results[1].MatchedLocations, 2)
	assert.Equal(t, "(int, int)", body.Results[1].MatchedLocations[0].SignatureHint)
	assert.Equal(t, []string{"math"}, body.Results[1].MatchedLocations[0].Scope)
}

func TestSearch_LimitTruncates(t *testing.T) {
	t.Parallel()

	srv := server(t, false)
	_, body := get(t, srv.URL+"/api/v1/search?q=max&limit=1")
	assert.Equal(t, 2, body.Total)
	assert.True(t, body.Truncated)
	assert.Len(t, body.Results, 1)
}

func TestSearch_BadLimit(t *testing.T) {
	t.Parallel()

	srv := server(t, false)
	for _, l := range []string{"0", "-3", "abc"} {
		resp, _ := get(t, srv.URL+"/api/v1/search?q=max&limit="+l)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "limit %s", l)
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	t.Parallel()

	srv := server(t, false)
	resp, body := get(t, srv.URL+"/api/v1/search?q=")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body.Results)
	assert.False(t, body.Truncated)
}

func TestSearch_NoIndexLoaded(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	handler.New(reload.NewManager(blobstore.NewMemoryStore(), 1, nil), nil, nil, opts).Register(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, _ := get(t, srv.URL+"/api/v1/search?q=max")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	resp, _ = get(t, srv.URL+"/api/v1/index")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSearch_CachedAnswerMatches(t *testing.T) {
	t.Parallel()

	srv := server(t, true)
	_, first := get(t, srv.URL+"/api/v1/search?q=max")
	_, second := get(t, srv.URL+"/api/v1/search?q=MAX")
	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, "MAX", second.Query)

	resp, err := http.Get(srv.URL + "/api/v1/cache/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	var stats map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, float64(1), stats["hits"])
}

func TestIndexInfo(t *testing.T) {
	t.Parallel()

	srv := server(t, false)
	_, _ = get(t, srv.URL+"/api/v1/search?q=max")

	resp, err := http.Get(srv.URL + "/api/v1/index")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info struct {
		Generation string `json:"generation"`
		Entries    int    `json:"entries"`
		Shards     struct {
			Loaded int `json:"loaded"`
		} `json:"shards"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.NotEmpty(t, info.Generation)
	assert.Equal(t, 2, info.Entries)
	assert.Equal(t, 1, info.Shards.Loaded)
}

func TestCacheInvalidate(t *testing.T) {
	t.Parallel()

	srv := server(t, true)
	resp, err := http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	srv = server(t, false)
	resp, err = http.Post(srv.URL+"/api/v1/cache/invalidate", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSearch_CacheHeader(t *testing.T) {
	t.Parallel()

	srv := server(t, true)
	first, _ := get(t, srv.URL+"/api/v1/search?q=maxi")
	second, _ := get(t, srv.URL+"/api/v1/search?q=maxi")
	assert.Equal(t, "miss", first.Header.Get(handler.CacheHeader))
	assert.Equal(t, "hit", second.Header.Get(handler.CacheHeader))

	plain, _ := get(t, server(t, false).URL+"/api/v1/search?q=maxi")
	assert.Equal(t, "bypass", plain.Header.Get(handler.CacheHeader))
}

func TestSearch_TracksQueries(t *testing.T) {
	t.Parallel()

	agg := analytics.NewAggregator(5)
	o := opts
	o.Tracker = agg
	srv := serverWithOptions(t, true, o)

	get(t, srv.URL+"/api/v1/search?q=max")
	get(t, srv.URL+"/api/v1/search?q=max")
	get(t, srv.URL+"/api/v1/search?q=frobnicate")
	get(t, srv.URL+"/api/v1/search?q=")

	s := agg.Stats()
	assert.Equal(t, int64(3), s.Queries)
	assert.Equal(t, int64(1), s.CacheHits)
	assert.Equal(t, int64(2), s.CacheMisses)
	assert.Equal(t, []analytics.QueryCount{{Query: "frobnicate", Count: 1}}, s.ZeroResultQueries)
	assert.Equal(t, analytics.QueryCount{Query: "max", Count: 2}, s.TopQueries[0])
}
