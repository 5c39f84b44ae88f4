package speedprobe

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"
)

const (
	defaultDialTimeout = 10 * time.Second
	defaultKeepAlive   = 30 * time.Second
)

// NewHTTPClient returns the shared client used by all probes and transfer
// workers. protocol selects the transport network: "tcp" (default), "tcp4"
// or "tcp6". The client is read-only after construction and safe for
// concurrent use.
func NewHTTPClient(protocol string) *http.Client {
	if protocol == "" {
		protocol = "tcp"
	}

	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
				return (&net.Dialer{
					Timeout:   defaultDialTimeout,
					KeepAlive: defaultKeepAlive,
				}).DialContext(ctx, protocol, addr)
			},
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
	}
}

func drainResponse(resp *http.Response) (int64, error) {
	flushedSize, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		return 0, err
	}
	err = resp.Body.Close()
	if err != nil {
		return 0, err
	}

	return flushedSize, nil
}
