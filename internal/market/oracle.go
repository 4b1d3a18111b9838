package market

import (
	"context"
	"hash/fnv"
	"math/rand"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// QuoteSource is a fallible price feed. The live HTTP client implements it;
// the ledger's mark-to-market consumes it directly so a feed outage leaves
// last known prices in place instead of marking positions to synthetic data.
type QuoteSource interface {
	Quote(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// Oracle wraps a QuoteSource with a synthetic fallback so that trading
// decisions always get a price. Quote never fails: the engine degrades to
// simulated prices rather than blocking capital decisions.
type Oracle struct {
	source QuoteSource
	log    zerolog.Logger
}

// NewOracle creates a price oracle over the given source. A nil source
// yields synthetic prices only.
func NewOracle(source QuoteSource, log zerolog.Logger) *Oracle {
	return &Oracle{
		source: source,
		log:    log.With().Str("component", "oracle").Logger(),
	}
}

// Quote returns the current price for a ticker. On any upstream error it
// falls back to a synthetic price.
func (o *Oracle) Quote(ctx context.Context, ticker string) decimal.Decimal {
	if o.source != nil {
		price, err := o.source.Quote(ctx, ticker)
		if err == nil && price.Sign() > 0 {
			return price
		}
		if err != nil {
			o.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote feed unavailable, using synthetic price")
		}
	}
	return SyntheticPrice(ticker)
}

// SyntheticPrice generates a plausible price for a ticker. The base is
// derived from a hash of the ticker so repeated calls stay in the same
// neighborhood; a +/-5% variance is applied on top.
func SyntheticPrice(ticker string) decimal.Decimal {
	base := syntheticBase(ticker)
	variance := (rand.Float64() - 0.5) * 0.1
	return base.Mul(decimal.NewFromFloat(1 + variance)).Round(2)
}

// syntheticBase maps a ticker to a stable base price in [25, 425)
func syntheticBase(ticker string) decimal.Decimal {
	h := fnv.New32a()
	_, _ = h.Write([]byte(ticker))
	return decimal.NewFromInt(int64(25 + h.Sum32()%400))
}
