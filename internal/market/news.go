package market

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// NewsSource is a fallible article feed
type NewsSource interface {
	News(ctx context.Context, ticker string) ([]Article, error)
}

// NewsFeed wraps a NewsSource with a synthetic fallback, mirroring the
// price oracle's never-fail contract.
type NewsFeed struct {
	source NewsSource
	log    zerolog.Logger
}

// NewNewsFeed creates a news feed over the given source. A nil source
// yields synthetic headlines only.
func NewNewsFeed(source NewsSource, log zerolog.Logger) *NewsFeed {
	return &NewsFeed{
		source: source,
		log:    log.With().Str("component", "news_feed").Logger(),
	}
}

// News returns recent articles for a ticker, synthesizing headlines when
// the upstream feed is unavailable or empty.
func (f *NewsFeed) News(ctx context.Context, ticker string) []Article {
	if f.source != nil {
		articles, err := f.source.News(ctx, ticker)
		if err == nil && len(articles) > 0 {
			return articles
		}
		if err != nil {
			f.log.Warn().Err(err).Str("ticker", ticker).Msg("News feed unavailable, using synthetic headlines")
		}
	}
	return SyntheticNews(ticker)
}

// SyntheticNews generates placeholder articles for a ticker
func SyntheticNews(ticker string) []Article {
	headlines := []string{
		fmt.Sprintf("%s reports quarterly earnings", ticker),
		fmt.Sprintf("%s announces new product launch", ticker),
		fmt.Sprintf("Analysts revise %s price target", ticker),
	}

	now := time.Now()
	articles := make([]Article, 0, len(headlines))
	for i, title := range headlines {
		articles = append(articles, Article{
			Title:       title,
			Summary:     fmt.Sprintf("Recent market activity for %s.", ticker),
			Source:      "synthetic",
			URL:         fmt.Sprintf("https://example.com/news/%s", ticker),
			PublishedAt: now.Add(-time.Duration(i) * time.Hour),
		})
	}
	return articles
}
