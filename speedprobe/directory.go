package speedprobe

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
)

// FetchServers retrieves and decodes a remote server directory: a JSON array
// of Server records. Entries with no base URL are rejected; empty endpoint
// paths are filled with the conventional defaults.
func FetchServers(ctx context.Context, client *http.Client, directoryURL string) ([]*Server, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, directoryURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetching server directory")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, errors.Errorf("server directory returned status %d", resp.StatusCode)
	}

	servers := []*Server{}
	if err := json.NewDecoder(resp.Body).Decode(&servers); err != nil {
		return nil, errors.Wrap(err, "decoding server directory")
	}

	for index, server := range servers {
		if server == nil {
			return nil, errors.Errorf("server entry %d is null", index)
		}
		if server.BaseURL == "" {
			return nil, errors.Errorf("server entry %d has no base URL", index)
		}
		server.fillDefaults()
	}

	return servers, nil
}
