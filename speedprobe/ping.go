package speedprobe

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// MeasurePing performs count sequential round-trip probes against the
// server's ping endpoint and returns the mean latency and RMS jitter, in
// milliseconds. Elapsed time is measured from request issuance to
// response-headers-received.
//
// The first probe must succeed; later probes may fail and are dropped from
// the sample set. Zero successful probes is a hard error. Cancellation of
// ctx stops the probe loop without error. On success the stats are also
// written back onto the server record.
func MeasurePing(ctx context.Context, client *http.Client, server *Server, count int) (*PingStats, error) {
	if count < 1 {
		return nil, errors.New("ping count must be >= 1")
	}

	pingURL, err := server.ResolveURL(server.PingURL)
	if err != nil {
		return nil, err
	}

	durations := []time.Duration{}

	for iter := 0; iter < count; iter += 1 {
		if ctx.Err() != nil {
			break
		}

		elapsed, err := pingOnce(ctx, client, pingURL)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if iter == 0 {
				return nil, errors.Wrap(err, "no successful probes")
			}
			continue
		}

		durations = append(durations, elapsed)
	}

	if len(durations) == 0 {
		if ctx.Err() != nil {
			return &PingStats{}, nil
		}
		return nil, errors.New("no successful probes")
	}

	samples := getDurationMSSamples(durations)
	mean := getMean(samples)
	jitter := float64(0)
	if len(samples) >= 2 {
		jitter = getRMSDeviation(samples, mean)
	}

	server.LatencyMS = mean
	server.JitterMS = jitter

	return &PingStats{
		NSamples: len(samples),
		MeanMS:   mean,
		JitterMS: jitter,
	}, nil
}

func pingOnce(ctx context.Context, client *http.Client, pingURL string) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pingURL, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}

	// Headers are in; the body is irrelevant to the latency signal.
	elapsed := time.Since(start)

	if _, err := drainResponse(resp); err != nil {
		return 0, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return 0, errors.Errorf("probe returned status %d", resp.StatusCode)
	}

	return elapsed, nil
}
