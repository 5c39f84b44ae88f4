package speedprobe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gotest.tools/v3/assert"
)

func TestMeasurePing_SingleSampleHasZeroJitter(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer target.Close()

	server := NewServer(target.URL)
	stats, err := MeasurePing(context.Background(), target.Client(), server, 1)

	assert.NilError(t, err)
	assert.Equal(t, stats.NSamples, 1)
	assert.Equal(t, stats.JitterMS, 0.0)
	assert.Assert(t, stats.MeanMS >= 0)
}

func TestMeasurePing_WritesBackToServer(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer target.Close()

	server := NewServer(target.URL)
	stats, err := MeasurePing(context.Background(), target.Client(), server, 3)

	assert.NilError(t, err)
	assert.Equal(t, server.LatencyMS, stats.MeanMS)
	assert.Equal(t, server.JitterMS, stats.JitterMS)
}

func TestMeasurePing_AllProbesFail(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer target.Close()

	server := NewServer(target.URL)
	_, err := MeasurePing(context.Background(), target.Client(), server, 5)

	assert.ErrorContains(t, err, "no successful probes")
}

func TestMeasurePing_DropsFailuresAfterFirstSuccess(t *testing.T) {
	requests := int64(0)
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Succeed on probes 1 and 3, fail the rest.
		switch atomic.AddInt64(&requests, 1) {
		case 1, 3:
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer target.Close()

	server := NewServer(target.URL)
	stats, err := MeasurePing(context.Background(), target.Client(), server, 5)

	assert.NilError(t, err)
	assert.Equal(t, stats.NSamples, 2)
	assert.Equal(t, atomic.LoadInt64(&requests), int64(5))
}

func TestMeasurePing_CancelledBeforeStart(t *testing.T) {
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer target.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	server := NewServer(target.URL)
	stats, err := MeasurePing(ctx, target.Client(), server, 5)

	assert.NilError(t, err)
	assert.Equal(t, stats.NSamples, 0)
	assert.Equal(t, server.LatencyMS, 0.0)
}

func TestMeasurePing_InvalidCount(t *testing.T) {
	server := NewServer("http://measure.example")
	_, err := MeasurePing(context.Background(), http.DefaultClient, server, 0)

	assert.ErrorContains(t, err, "must be >= 1")
}
