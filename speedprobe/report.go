package speedprobe

import (
	"encoding/json"
	"io"
	"log"
)

// PrintResult writes the result in the flat "Label: value" form meant for
// terminals.
func PrintResult(printer *log.Logger, result *TestResult) {
	if result == nil {
		return
	}

	if result.Server != nil {
		name := result.Server.Name
		if name == "" {
			name = result.Server.BaseURL
		}
		printer.Printf("Server: %s\n", name)
	}
	if result.IP != "" {
		printer.Printf("SrcIP: %s\n", result.IP)
	}
	printer.Printf("Latency: %.3f ms\n", result.LatencyMS)
	printer.Printf("Jitter: %.3f ms\n", result.JitterMS)
	printer.Printf("Download: %.3f Mbps\n", result.DownloadMbps)
	printer.Printf("Download-rx: %.3f MiB\n", float64(result.BytesReceived)/1024/1024)
	printer.Printf("Upload: %.3f Mbps\n", result.UploadMbps)
	printer.Printf("Upload-tx: %.3f MiB\n", float64(result.BytesSent)/1024/1024)
}

// PrintResultJSON writes the result as indented JSON.
func PrintResultJSON(w io.Writer, result *TestResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}
