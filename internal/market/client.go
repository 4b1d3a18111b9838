package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// ClientConfig holds the external feed endpoints and retry policy
type ClientConfig struct {
	QuoteURL string
	QuoteKey string
	NewsURL  string
	NewsKey  string
	Timeout  time.Duration
	Retries  int
}

// Client fetches quotes and news from an external market data API.
// Every call is bounded by the configured timeout; transient failures are
// retried with exponential backoff before the error is surfaced.
type Client struct {
	client   *http.Client
	quoteURL string
	quoteKey string
	newsURL  string
	newsKey  string
	retries  int
	log      zerolog.Logger
}

// NewClient creates a new market data client
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retries := cfg.Retries
	if retries < 1 {
		retries = 3
	}

	return &Client{
		client:   &http.Client{Timeout: timeout},
		quoteURL: cfg.QuoteURL,
		quoteKey: cfg.QuoteKey,
		newsURL:  cfg.NewsURL,
		newsKey:  cfg.NewsKey,
		retries:  retries,
		log:      log.With().Str("client", "market").Logger(),
	}
}

type quoteResponse struct {
	Current float64 `json:"c"`
}

// Quote fetches the current price for a ticker
func (c *Client) Quote(ctx context.Context, ticker string) (decimal.Decimal, error) {
	if c.quoteURL == "" {
		return decimal.Zero, fmt.Errorf("no quote service configured")
	}

	params := url.Values{}
	params.Add("symbol", ticker)
	if c.quoteKey != "" {
		params.Add("token", c.quoteKey)
	}
	reqURL := c.quoteURL + "/quote?" + params.Encode()

	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		if attempt > 0 {
			wait := b.Duration()
			c.log.Warn().Err(lastErr).
				Str("ticker", ticker).
				Int("attempt", attempt).
				Dur("wait", wait).
				Msg("Quote fetch failed, retrying")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return decimal.Zero, ctx.Err()
			}
		}

		var resp quoteResponse
		if lastErr = c.getJSON(ctx, reqURL, &resp); lastErr != nil {
			continue
		}
		if resp.Current <= 0 {
			lastErr = fmt.Errorf("quote feed returned no price for %s", ticker)
			continue
		}
		return decimal.NewFromFloat(resp.Current), nil
	}

	return decimal.Zero, fmt.Errorf("failed after %d attempts: %w", c.retries, lastErr)
}

type newsItem struct {
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Datetime int64  `json:"datetime"`
}

// News fetches recent articles for a ticker
func (c *Client) News(ctx context.Context, ticker string) ([]Article, error) {
	if c.newsURL == "" {
		return nil, fmt.Errorf("no news service configured")
	}

	params := url.Values{}
	params.Add("symbol", ticker)
	params.Add("from", time.Now().AddDate(0, 0, -7).Format("2006-01-02"))
	params.Add("to", time.Now().Format("2006-01-02"))
	if c.newsKey != "" {
		params.Add("token", c.newsKey)
	}
	reqURL := c.newsURL + "/company-news?" + params.Encode()

	var items []newsItem
	if err := c.getJSON(ctx, reqURL, &items); err != nil {
		return nil, err
	}

	articles := make([]Article, 0, len(items))
	for _, item := range items {
		if item.Headline == "" {
			continue
		}
		articles = append(articles, Article{
			Title:       item.Headline,
			Summary:     item.Summary,
			Source:      item.Source,
			URL:         item.URL,
			PublishedAt: time.Unix(item.Datetime, 0),
		})
	}

	return articles, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("feed returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}
