package provider

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Static fetches a single newline-delimited IP list from a configured URL —
// the plain feed shape the spec names directly (threat_intelligence_url):
// one IP per line, lines that are empty or start with "#" after trimming
// are ignored.
type Static struct{}

func (s *Static) Name() string {
	return "static"
}

func (s *Static) Description() string {
	return "plain newline-delimited IP list fetched from a single configured URL"
}

func (s *Static) Schedule() string {
	return "0 * * * *"
}

func (s *Static) DefaultParams() map[string]string {
	return map[string]string{"url": ""}
}

func (s *Static) Fetch(params map[string]string) ([]string, error) {
	url := params["url"]
	if url == "" {
		return nil, fmt.Errorf("static feed: url is required")
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch %s: %s", url, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	results := make([]string, 0)
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		results = append(results, line)
	}
	return results, nil
}
