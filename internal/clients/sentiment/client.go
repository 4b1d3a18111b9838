package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"swingtrader/internal/domain"
)

// Client talks to the sentiment ranking service
type Client struct {
	client  *http.Client
	baseURL string
	log     zerolog.Logger
}

// NewClient creates a new sentiment service client
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		log:     log.With().Str("client", "sentiment").Logger(),
	}
}

type rankRequest struct {
	Tickers []string `json:"tickers"`
}

type rankResponse struct {
	Candidates []struct {
		Ticker string  `json:"ticker"`
		Score  float64 `json:"score"`
	} `json:"candidates"`
}

// Rank scores the given tickers and returns candidates sorted by
// descending score. The service may return fewer entries than requested
// when it has no data for a ticker; that is tolerated, not an error.
func (c *Client) Rank(ctx context.Context, tickers []string) ([]domain.Candidate, error) {
	body, err := json.Marshal(rankRequest{Tickers: tickers})
	if err != nil {
		return nil, fmt.Errorf("failed to encode rank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rank", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("rank request returned status %d", resp.StatusCode)
	}

	var ranked rankResponse
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		return nil, fmt.Errorf("failed to decode rank response: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(ranked.Candidates))
	for _, entry := range ranked.Candidates {
		if entry.Ticker == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{
			Ticker: entry.Ticker,
			Score:  entry.Score,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if len(candidates) < len(tickers) {
		c.log.Debug().
			Int("requested", len(tickers)).
			Int("ranked", len(candidates)).
			Msg("Sentiment service returned fewer candidates than requested")
	}

	return candidates, nil
}
