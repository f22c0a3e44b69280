package oracle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/holiman/uint256"
	"github.com/tidwall/gjson"

	"tokenledger/pkg/platform/circuit"
)

// HTTPSource reads a rate from a JSON endpoint. Consecutive failures open its
// breaker; while open, calls fail fast except for periodic probes.
type HTTPSource struct {
	client   *http.Client
	endpoint string
	path     string
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewHTTPSource(client *http.Client, endpoint, path string, logger *slog.Logger) *HTTPSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSource{
		client:   client,
		endpoint: endpoint,
		path:     path,
		breaker:  circuit.New("oracle:" + endpoint),
		logger:   logger,
	}
}

func (s *HTTPSource) Rate(ctx context.Context) (*uint256.Int, error) {
	if !s.breaker.Allow() {
		return nil, fmt.Errorf("oracle %s unavailable: circuit open", s.endpoint)
	}
	rate, err := s.fetch(ctx)
	if err != nil {
		if _, change := s.breaker.RecordFailure(); change.Opened && s.logger != nil {
			s.logger.WarnContext(ctx, "oracle circuit opened", "endpoint", s.endpoint, "error", err)
		}
		return nil, err
	}
	if _, change := s.breaker.RecordSuccess(); change.Closed && s.logger != nil {
		s.logger.InfoContext(ctx, "oracle circuit closed", "endpoint", s.endpoint)
	}
	return rate, nil
}

func (s *HTTPSource) fetch(ctx context.Context) (*uint256.Int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build oracle request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oracle request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read oracle response: %w", err)
	}

	result := gjson.GetBytes(body, s.path)
	if !result.Exists() {
		return nil, fmt.Errorf("oracle response has no %q field", s.path)
	}
	rate, err := uint256.FromDecimal(result.String())
	if err != nil {
		return nil, fmt.Errorf("oracle rate %q is not a base-unit integer: %w", result.String(), err)
	}
	return rate, nil
}
