package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/indexer/segment"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/internal/searcher/handler"
)

// Run executes the loadtest command against a running search service.
func (c *LoadtestCmd) Run(deps *Dependencies) error {
	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	queries, err := c.queries(deps)
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		return errors.New("no queries to send")
	}

	fmt.Fprintf(deps.Stdout, "target       %s\n", c.URL)
	fmt.Fprintf(deps.Stdout, "concurrency  %d\n", c.Concurrency)
	fmt.Fprintf(deps.Stdout, "duration     %s\n", c.Duration)
	fmt.Fprintf(deps.Stdout, "queries      %d unique\n\n", len(queries))

	start := time.Now()
	stats := c.run(deps.Ctx, queries)
	stats.report(deps.Stdout, time.Since(start))
	return nil
}

// queries reads the query file, or samples display names and their
// three-letter prefixes from the current generation.
func (c *LoadtestCmd) queries(deps *Dependencies) ([]string, error) {
	if c.Queries != "" {
		f, err := os.Open(c.Queries)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		var out []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if q := strings.TrimSpace(sc.Text()); q != "" {
				out = append(out, q)
			}
		}
		return out, sc.Err()
	}

	loader, err := segment.OpenGeneration(deps.Ctx, deps.Blobs, "", deps.Config.Storage.ReadAttempts)
	if err != nil {
		return nil, fmt.Errorf("sampling queries: %w", err)
	}
	seen := make(map[string]bool)
	var out []string
	add := func(q string) {
		if !seen[q] && len(out) < c.Sample {
			seen[q] = true
			out = append(out, q)
		}
	}
	for _, info := range loader.Manifest().Shards {
		shard, err := loader.Load(deps.Ctx, info.Key)
		if err != nil {
			return nil, err
		}
		for _, e := range shard.Entries {
			add(e.DisplayName)
			if r := []rune(e.DisplayName); len(r) > 3 {
				add(string(r[:3]))
			}
		}
	}
	return out, nil
}

func (c *LoadtestCmd) run(ctx context.Context, queries []string) *loadStats {
	stats := &loadStats{status: make(map[int]int64), cache: make(map[string]int64)}
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        c.Concurrency * 2,
			MaxIdleConnsPerHost: c.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
	ctx, cancel := context.WithTimeout(ctx, c.Duration)
	defer cancel()

	base := strings.TrimRight(c.URL, "/")
	var wg sync.WaitGroup
	for w := range c.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := w; ctx.Err() == nil; i++ {
				q := queries[i%len(queries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", base, url.QueryEscape(q), c.Limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					stats.record(0, 0, "", err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					stats.record(elapsed, 0, "", err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(elapsed, resp.StatusCode, resp.Header.Get(handler.CacheHeader), nil)
			}
		}()
	}
	wg.Wait()
	return stats
}

type loadStats struct {
	mu        sync.Mutex
	total     int64
	success   int64
	errors    int64
	latencies []time.Duration
	status    map[int]int64
	cache     map[string]int64
}

func (s *loadStats) record(d time.Duration, status int, cache string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if err != nil {
		s.errors++
		return
	}
	if status >= 200 && status < 300 {
		s.success++
	} else {
		s.errors++
	}
	s.latencies = append(s.latencies, d)
	s.status[status]++
	if cache != "" {
		s.cache[cache]++
	}
}

func (s *loadStats) report(w io.Writer, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintf(w, "requests     %d\n", s.total)
	fmt.Fprintf(w, "successful   %d\n", s.success)
	fmt.Fprintf(w, "errors       %d\n", s.errors)
	if s.total > 0 {
		fmt.Fprintf(w, "error rate   %.2f%%\n", float64(s.errors)/float64(s.total)*100)
		fmt.Fprintf(w, "requests/s   %.2f\n", float64(s.total)/elapsed.Seconds())
	}

	if len(s.latencies) > 0 {
		sorted := slices.Clone(s.latencies)
		slices.Sort(sorted)
		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		avg := sum / time.Duration(len(sorted))
		var sq float64
		for _, l := range sorted {
			diff := float64(l - avg)
			sq += diff * diff
		}
		fmt.Fprintln(w, "\nlatency")
		fmt.Fprintf(w, "  min     %s\n", sorted[0])
		fmt.Fprintf(w, "  avg     %s\n", avg)
		fmt.Fprintf(w, "  p50     %s\n", percentile(sorted, 50))
		fmt.Fprintf(w, "  p90     %s\n", percentile(sorted, 90))
		fmt.Fprintf(w, "  p99     %s\n", percentile(sorted, 99))
		fmt.Fprintf(w, "  max     %s\n", sorted[len(sorted)-1])
		fmt.Fprintf(w, "  stddev  %s\n", time.Duration(math.Sqrt(sq/float64(len(sorted)))))
	}

	if len(s.status) > 0 {
		fmt.Fprintln(w, "\nstatus codes")
		codes := make([]int, 0, len(s.status))
		for code := range s.status {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			fmt.Fprintf(w, "  %d  %d\n", code, s.status[code])
		}
	}
	if len(s.cache) > 0 {
		fmt.Fprintln(w, "\ncache")
		for _, k := range []string{"hit", "miss", "bypass"} {
			if n, ok := s.cache[k]; ok {
				fmt.Fprintf(w, "  %-6s  %d\n", k, n)
			}
		}
	}
}

func percentile(sorted []time.Duration, pct int) time.Duration {
	idx := pct * len(sorted) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
