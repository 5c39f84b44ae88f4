package speedprobe

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

const (
	defaultPingPath     = "ping"
	defaultDownloadPath = "download"
	defaultUploadPath   = "upload"
	defaultIPPath       = "ip"
)

// Server identifies one measurement target: a base URL plus the logical
// paths of its ping, download, upload and IP-lookup endpoints. Each path may
// also be an absolute URL, in which case it is used verbatim. LatencyMS and
// JitterMS are written by the ping phase and read by the selector.
type Server struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	BaseURL     string `json:"url"`
	PingURL     string `json:"ping_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
	UploadURL   string `json:"upload_url,omitempty"`
	IPURL       string `json:"ip_url,omitempty"`

	LatencyMS float64 `json:"latency_ms,omitempty"`
	JitterMS  float64 `json:"jitter_ms,omitempty"`
}

// NewServer builds a Server from a base URL, using the conventional
// endpoint paths.
func NewServer(baseURL string) *Server {
	server := &Server{BaseURL: baseURL}
	server.fillDefaults()
	return server
}

// fillDefaults replaces empty endpoint paths with the conventional ones.
func (s *Server) fillDefaults() {
	if s.PingURL == "" {
		s.PingURL = defaultPingPath
	}
	if s.DownloadURL == "" {
		s.DownloadURL = defaultDownloadPath
	}
	if s.UploadURL == "" {
		s.UploadURL = defaultUploadPath
	}
	if s.IPURL == "" {
		s.IPURL = defaultIPPath
	}
}

// ResolveURL returns path verbatim when it is already an absolute URL, and
// otherwise joins it to the server's base URL. The base is normalized to end
// with a slash before joining so that "http://host/prefix" and
// "http://host/prefix/" resolve identically.
func (s *Server) ResolveURL(path string) (string, error) {
	if parsed, err := url.Parse(path); err == nil && parsed.IsAbs() {
		return path, nil
	}

	if s.BaseURL == "" {
		return "", errors.New("server has no base URL")
	}

	base := s.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "invalid base URL %q", s.BaseURL)
	}

	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return "", errors.Wrapf(err, "invalid endpoint path %q", path)
	}

	return baseURL.ResolveReference(ref).String(), nil
}
