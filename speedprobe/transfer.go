package speedprobe

import (
	"bytes"
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

const downloadReadChunk = 32 * 1024

// transferOp performs one transfer against the target and returns the number
// of payload bytes moved, which is counted even when the operation ends in
// an error (a half-drained download still carried real traffic).
type transferOp func(ctx context.Context) (int64, error)

// runStreamPool drives streams parallel workers for up to duration. Each
// worker obtains its own transferOp from newOp (so per-worker buffers and
// payloads are never shared) and loops it until the deadline or the caller's
// cancellation. Transfer errors inside an iteration are transient: the
// worker keeps looping while time remains.
//
// Returns throughput in Mbps and the total bytes moved. Throughput is
// computed against the pool's own measured wall-clock span, which exceeds
// the nominal duration by shutdown slack. A caller cancellation is reported
// as the context's error after all workers have wound down; the deadline
// itself is not an error.
func runStreamPool(ctx context.Context, duration time.Duration, streams int, newOp func() transferOp, progress ProgressFunc) (float64, int64, error) {
	poolCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	start := time.Now()
	total := int64(0)

	// Progress is delivered under a lock, with the fraction computed inside
	// it and only ever increasing, so concurrent workers cannot interleave a
	// stale smaller fraction after a larger one.
	var progressMu sync.Mutex
	maxFraction := float64(0)
	reportProgress := func() {
		progressMu.Lock()
		defer progressMu.Unlock()

		fraction := time.Since(start).Seconds() / duration.Seconds()
		if fraction > 1 {
			fraction = 1
		}
		if fraction > maxFraction {
			maxFraction = fraction
			progress(fraction)
		}
	}

	var wg sync.WaitGroup
	for iter := 0; iter < streams; iter += 1 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			op := newOp()
			for poolCtx.Err() == nil && time.Since(start) < duration {
				moved, err := op(poolCtx)
				if moved > 0 {
					atomic.AddInt64(&total, moved)
				}
				if err != nil {
					// Transient, or the deadline arrived mid-operation.
					// The loop condition decides which.
					continue
				}
				if progress != nil {
					reportProgress()
				}
			}
		}()
	}

	wg.Wait()

	elapsed := time.Since(start)
	totalBytes := atomic.LoadInt64(&total)
	mbps := float64(totalBytes*8) / 1e6 / elapsed.Seconds()

	if err := ctx.Err(); err != nil {
		return 0, totalBytes, err
	}

	return mbps, totalBytes, nil
}

// MeasureDownload runs the download phase: cfg.Streams workers issuing GET
// requests with cfg.DownloadSizeMB as the size hint, for
// cfg.DownloadDuration. Returns (Mbps, total bytes received).
func MeasureDownload(ctx context.Context, client *http.Client, server *Server, cfg Config) (float64, int64, error) {
	resolved, err := server.ResolveURL(server.DownloadURL)
	if err != nil {
		return 0, 0, err
	}
	getURL, err := withSizeParam(resolved, cfg.DownloadSizeMB)
	if err != nil {
		return 0, 0, err
	}

	return runStreamPool(ctx, cfg.DownloadDuration, cfg.Streams, func() transferOp {
		return newDownloadOp(client, getURL)
	}, cfg.OnDownloadProgress)
}

// MeasureUpload runs the upload phase: cfg.Streams workers POSTing payloads
// of cfg.UploadBytes random bytes, for cfg.UploadDuration. Returns (Mbps,
// total bytes sent).
func MeasureUpload(ctx context.Context, client *http.Client, server *Server, cfg Config) (float64, int64, error) {
	postURL, err := server.ResolveURL(server.UploadURL)
	if err != nil {
		return 0, 0, err
	}

	return runStreamPool(ctx, cfg.UploadDuration, cfg.Streams, func() transferOp {
		return newUploadOp(client, postURL, cfg.UploadBytes)
	}, cfg.OnUploadProgress)
}

func withSizeParam(rawURL string, sizeMB int) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrapf(err, "invalid download URL %q", rawURL)
	}

	query := parsed.Query()
	query.Set("size", strconv.Itoa(sizeMB))
	parsed.RawQuery = query.Encode()

	return parsed.String(), nil
}

func newDownloadOp(client *http.Client, getURL string) transferOp {
	buf := make([]byte, downloadReadChunk)

	return func(ctx context.Context) (int64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
		if err != nil {
			return 0, err
		}

		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return 0, errors.Errorf("download returned status %d", resp.StatusCode)
		}

		read := int64(0)
		for {
			n, err := resp.Body.Read(buf)
			read += int64(n)
			if err == io.EOF {
				return read, nil
			}
			if err != nil {
				return read, err
			}
		}
	}
}

func newUploadOp(client *http.Client, postURL string, payloadSize int64) transferOp {
	payload := make([]byte, payloadSize)
	rand.New(rand.NewSource(time.Now().UnixNano())).Read(payload)

	return func(ctx context.Context) (int64, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, bytes.NewReader(payload))
		if err != nil {
			return 0, err
		}
		req.Header.Set("Content-Type", "application/octet-stream")

		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		if _, err := drainResponse(resp); err != nil {
			return 0, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return 0, errors.Errorf("upload returned status %d", resp.StatusCode)
		}

		return int64(len(payload)), nil
	}
}
