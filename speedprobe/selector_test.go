package speedprobe

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"gotest.tools/v3/assert"
)

func delayedTarget(t *testing.T, delay time.Duration) *httptest.Server {
	t.Helper()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
	}))
	t.Cleanup(target.Close)

	return target
}

func TestSelectBestServer_PicksLowestLatency(t *testing.T) {
	slow := delayedTarget(t, 80*time.Millisecond)
	fast := delayedTarget(t, 0)
	medium := delayedTarget(t, 40*time.Millisecond)

	servers := []*Server{NewServer(slow.URL), NewServer(fast.URL), NewServer(medium.URL)}
	cfg := DefaultConfig()
	cfg.PingCount = 2

	best, err := SelectBestServer(context.Background(), http.DefaultClient, servers, cfg)

	assert.NilError(t, err)
	assert.Equal(t, best, servers[1])
	assert.Assert(t, best.LatencyMS < servers[0].LatencyMS)
}

func TestSelectBestServer_EmptyCandidates(t *testing.T) {
	_, err := SelectBestServer(context.Background(), http.DefaultClient, nil, DefaultConfig())

	assert.ErrorContains(t, err, "no candidate servers")
}

func TestSelectBestServer_AllProbesFail(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	servers := []*Server{NewServer(broken.URL), NewServer(broken.URL)}
	cfg := DefaultConfig()
	cfg.PingCount = 2

	_, err := SelectBestServer(context.Background(), http.DefaultClient, servers, cfg)

	assert.ErrorContains(t, err, "all candidate probes failed")
}

func TestSelectBestServer_FailedCandidateStaysRanked(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	healthy := delayedTarget(t, 0)

	servers := []*Server{NewServer(broken.URL), NewServer(healthy.URL)}
	cfg := DefaultConfig()
	cfg.PingCount = 2

	best, err := SelectBestServer(context.Background(), http.DefaultClient, servers, cfg)

	assert.NilError(t, err)
	assert.Equal(t, best, servers[1])
}

func TestSelectBestServer_MaxCandidatesCapsProbing(t *testing.T) {
	first := delayedTarget(t, 0)

	probed := int64(0)
	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&probed, 1)
	}))
	defer second.Close()

	servers := []*Server{NewServer(first.URL), NewServer(second.URL)}
	cfg := DefaultConfig()
	cfg.PingCount = 2
	cfg.MaxCandidates = 1

	best, err := SelectBestServer(context.Background(), http.DefaultClient, servers, cfg)

	assert.NilError(t, err)
	assert.Equal(t, best, servers[0])
	assert.Equal(t, atomic.LoadInt64(&probed), int64(0))
}

func TestMinLatencyIndex_TieResolvesToEarliest(t *testing.T) {
	assert.Equal(t, minLatencyIndex([]float64{50, 10, 30}), 1)
	assert.Equal(t, minLatencyIndex([]float64{10, 30, 10}), 0)
	assert.Equal(t, minLatencyIndex([]float64{math.Inf(1), 20, 20}), 1)
	assert.Equal(t, minLatencyIndex([]float64{math.Inf(1)}), 0)
}
