package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"fleet-tracker/internal/general/contracts"
)

// HTTPSource reads GET /drivers/locations from a gateway.
type HTTPSource struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewHTTPSource(url, token string) *HTTPSource {
	return &HTTPSource{URL: url, Token: token, Client: http.DefaultClient}
}

func (s *HTTPSource) Snapshot(ctx context.Context) ([]contracts.DriverSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch snapshot: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var rows []contracts.DriverSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return rows, nil
}
