package speedprobe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// RunTest measures one server: ping, download, upload, then a best-effort
// lookup of the client's public IP. The phases run strictly in sequence so
// the throughput measurements are not skewed by concurrent ping traffic.
//
// RunTest fails only when the ping phase yields no successful probes or when
// the caller's ctx is cancelled mid-phase; an unreachable IP-lookup endpoint
// just leaves the IP field empty.
func RunTest(ctx context.Context, client *http.Client, server *Server, cfg Config) (*TestResult, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = NewHTTPClient("")
	}

	pingStats, err := MeasurePing(ctx, client, server, cfg.PingCount)
	if err != nil {
		return nil, errors.Wrap(err, "ping phase")
	}

	downloadMbps, bytesReceived, err := MeasureDownload(ctx, client, server, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "download phase")
	}

	uploadMbps, bytesSent, err := MeasureUpload(ctx, client, server, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "upload phase")
	}

	// Optional step: a failed lookup is not a failed test.
	ip, err := LookupIP(ctx, client, server)
	if err != nil {
		ip = ""
	}

	return &TestResult{
		ID:            uuid.NewString(),
		Server:        server,
		LatencyMS:     pingStats.MeanMS,
		JitterMS:      pingStats.JitterMS,
		DownloadMbps:  downloadMbps,
		UploadMbps:    uploadMbps,
		BytesReceived: bytesReceived,
		BytesSent:     bytesSent,
		IP:            ip,
		Timestamp:     time.Now(),
	}, nil
}

// LookupIP fetches the client's public address as seen by the server's
// IP-lookup endpoint: a single GET whose trimmed plain-text body is the
// address.
func LookupIP(ctx context.Context, client *http.Client, server *Server) (string, error) {
	ipURL, err := server.ResolveURL(server.IPURL)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ipURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", errors.Errorf("ip lookup returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(body)), nil
}
