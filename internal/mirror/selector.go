// Package mirror ranks registered upstreams by observed responsiveness.
// Rankings are recomputed per request; mirror health is too volatile to
// cache across runs.
package mirror

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/julget/julget/internal/registry"
	"github.com/julget/julget/internal/safety"
)

const (
	probeTimeout    = 5 * time.Second
	probeMaxWorkers = 10
	probeUserAgent  = "julget/1.0"
)

// Candidate is one probed upstream with its measured round-trip time.
type Candidate struct {
	Upstream  registry.UpstreamSource
	LatencyMs int
	Error     string
}

// Reachable reports whether the probe completed.
func (c Candidate) Reachable() bool { return c.Error == "" }

// Ranking is an ordered list of candidates, best first. Unreachable
// upstreams sort last but are never dropped: if every fast mirror later
// fails the actual download, the orchestrator still has something left.
type Ranking []Candidate

// Upstreams flattens the ranking into the source order consumed by the
// resolver and the download orchestrator.
func (r Ranking) Upstreams() []registry.UpstreamSource {
	out := make([]registry.UpstreamSource, len(r))
	for i, c := range r {
		out[i] = c.Upstream
	}
	return out
}

// Selector probes upstream version endpoints and orders them by latency.
type Selector struct {
	client  *http.Client
	logger  *slog.Logger
	timeout time.Duration
	workers int
}

// NewSelector creates a selector with default probe limits.
func NewSelector(logger *slog.Logger) *Selector {
	return &Selector{
		client:  safety.NewHTTPClient(0),
		logger:  logger,
		timeout: probeTimeout,
		workers: probeMaxWorkers,
	}
}

// Rank probes every upstream concurrently and returns them ordered by
// measured latency ascending, failures last. Ties keep registry
// declaration order (the sort is stable). The call returns once every
// probe has settled or timed out; one slow mirror cannot stall it beyond
// the per-probe timeout.
func (s *Selector) Rank(ctx context.Context, upstreams []registry.UpstreamSource) Ranking {
	ranking := s.probe(ctx, upstreams)

	sort.SliceStable(ranking, func(i, j int) bool {
		if ranking[i].Reachable() != ranking[j].Reachable() {
			return ranking[i].Reachable()
		}
		if !ranking[i].Reachable() {
			return false
		}
		return ranking[i].LatencyMs < ranking[j].LatencyMs
	})

	for _, c := range ranking {
		if c.Reachable() {
			s.logger.Debug("probed upstream", "upstream", c.Upstream.Name, "latency_ms", c.LatencyMs)
		} else {
			s.logger.Debug("upstream unreachable", "upstream", c.Upstream.Name, "error", c.Error)
		}
	}
	return ranking
}

// probe issues concurrent HEAD requests against each upstream's versions
// endpoint, bounded by the worker limit.
func (s *Selector) probe(ctx context.Context, upstreams []registry.UpstreamSource) []Candidate {
	results := make([]Candidate, len(upstreams))
	sem := make(chan struct{}, s.workers)
	var wg sync.WaitGroup

	for i, u := range upstreams {
		wg.Add(1)
		go func(idx int, up registry.UpstreamSource) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = Candidate{Upstream: up}

			endpoint, err := up.VersionsEndpoint()
			if err != nil {
				results[idx].Error = err.Error()
				return
			}

			reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
			defer cancel()

			req, err := http.NewRequestWithContext(reqCtx, http.MethodHead, endpoint, nil)
			if err != nil {
				results[idx].Error = err.Error()
				return
			}
			req.Header.Set("User-Agent", probeUserAgent)

			start := time.Now()
			resp, err := s.client.Do(req)
			elapsed := time.Since(start)

			results[idx].LatencyMs = int(elapsed.Milliseconds())
			if err != nil {
				results[idx].Error = err.Error()
				return
			}
			_ = resp.Body.Close()
		}(i, u)
	}

	wg.Wait()
	return results
}
