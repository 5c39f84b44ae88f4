package speedprobe

import (
	"time"

	"github.com/pkg/errors"
)

const (
	DefaultStreams          = 4
	DefaultDownloadDuration = 10 * time.Second
	DefaultUploadDuration   = 10 * time.Second
	DefaultPingCount        = 10
	DefaultDownloadSizeMB   = 100
	DefaultUploadBytes      = int64(1024 * 1024)
)

// ProgressFunc is called after each completed transfer operation with the
// elapsed fraction of the phase, in the range [0, 1].
type ProgressFunc func(fraction float64)

// Config holds the per-run measurement parameters. A zero value is not
// usable; start from DefaultConfig.
type Config struct {
	// Streams is the number of parallel transfer workers per throughput phase.
	Streams int
	// DownloadDuration bounds the download phase.
	DownloadDuration time.Duration
	// UploadDuration bounds the upload phase.
	UploadDuration time.Duration
	// PingCount is the number of sequential latency probes.
	PingCount int
	// DownloadSizeMB is the size hint passed to the download endpoint.
	DownloadSizeMB int
	// UploadBytes is the payload size of each upload operation.
	UploadBytes int64
	// MaxCandidates caps how many servers the selector probes (0 = all).
	MaxCandidates int

	OnDownloadProgress ProgressFunc
	OnUploadProgress   ProgressFunc
}

func DefaultConfig() Config {
	return Config{
		Streams:          DefaultStreams,
		DownloadDuration: DefaultDownloadDuration,
		UploadDuration:   DefaultUploadDuration,
		PingCount:        DefaultPingCount,
		DownloadSizeMB:   DefaultDownloadSizeMB,
		UploadBytes:      DefaultUploadBytes,
	}
}

func (c Config) validate() error {
	if c.Streams < 1 {
		return errors.New("streams must be >= 1")
	}
	if c.DownloadDuration <= 0 {
		return errors.New("download duration must be > 0")
	}
	if c.UploadDuration <= 0 {
		return errors.New("upload duration must be > 0")
	}
	if c.PingCount < 1 {
		return errors.New("ping count must be >= 1")
	}
	if c.DownloadSizeMB <= 0 {
		return errors.New("download size must be > 0")
	}
	if c.UploadBytes <= 0 {
		return errors.New("upload bytes must be > 0")
	}
	if c.MaxCandidates < 0 {
		return errors.New("max candidates must be >= 0")
	}
	return nil
}

// PingStats summarizes one completed ping phase.
type PingStats struct {
	NSamples int
	MeanMS   float64
	JitterMS float64
}

// TestResult aggregates one full measurement run. It is immutable once
// produced.
type TestResult struct {
	ID            string    `json:"id"`
	Server        *Server   `json:"server"`
	LatencyMS     float64   `json:"latency_ms"`
	JitterMS      float64   `json:"jitter_ms"`
	DownloadMbps  float64   `json:"download_mbps"`
	UploadMbps    float64   `json:"upload_mbps"`
	BytesReceived int64     `json:"bytes_received"`
	BytesSent     int64     `json:"bytes_sent"`
	IP            string    `json:"ip,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
