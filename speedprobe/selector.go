package speedprobe

import (
	"context"
	"math"
	"net/http"
	"sync"

	"github.com/pkg/errors"
)

// SelectBestServer probes every candidate concurrently with MeasurePing and
// returns the one with the lowest mean latency. Candidates whose probes fail
// entirely stay in the ranking with an infinite sentinel latency. Ties
// resolve to the earliest-listed candidate. cfg.MaxCandidates, when set,
// caps how many candidates are probed.
func SelectBestServer(ctx context.Context, client *http.Client, servers []*Server, cfg Config) (*Server, error) {
	if len(servers) == 0 {
		return nil, errors.New("no candidate servers")
	}

	candidates := servers
	if cfg.MaxCandidates > 0 && len(candidates) > cfg.MaxCandidates {
		candidates = candidates[:cfg.MaxCandidates]
	}

	latencies := make([]float64, len(candidates))

	var wg sync.WaitGroup
	for index, candidate := range candidates {
		wg.Add(1)
		go func(index int, candidate *Server) {
			defer wg.Done()

			stats, err := MeasurePing(ctx, client, candidate, cfg.PingCount)
			if err != nil || stats.NSamples == 0 {
				latencies[index] = math.Inf(1)
				return
			}
			latencies[index] = stats.MeanMS
		}(index, candidate)
	}
	wg.Wait()

	best := minLatencyIndex(latencies)
	if math.IsInf(latencies[best], 1) {
		return nil, errors.New("all candidate probes failed")
	}

	return candidates[best], nil
}

// minLatencyIndex returns the index of the smallest latency, preferring the
// earliest index on ties.
func minLatencyIndex(latencies []float64) int {
	best := 0
	for index := 1; index < len(latencies); index += 1 {
		if latencies[index] < latencies[best] {
			best = index
		}
	}
	return best
}
