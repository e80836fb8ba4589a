package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// IPResolver looks up the public IP address of the caller
type IPResolver interface {
	ResolveIP(ctx context.Context) (string, error)
}

// HTTPIPResolver queries an ipify-compatible JSON endpoint. It never retries.
type HTTPIPResolver struct {
	URL        string
	HTTPClient *http.Client
}

func NewHTTPIPResolver(url string, timeout time.Duration) *HTTPIPResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPIPResolver{
		URL:        strings.TrimSpace(url),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type ipLookupResp struct {
	IP string `json:"ip"`
}

func (r *HTTPIPResolver) ResolveIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ip lookup returned status %d", resp.StatusCode)
	}

	var out ipLookupResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.IP == "" {
		return "", fmt.Errorf("ip lookup returned an empty address")
	}
	return out.IP, nil
}
