package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeSideFromString(t *testing.T) {
	tests := []struct {
		input   string
		want    TradeSide
		wantErr bool
	}{
		{input: "BUY", want: TradeSideBuy},
		{input: "buy", want: TradeSideBuy},
		{input: " Sell ", want: TradeSideSell},
		{input: "hold", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := TradeSideFromString(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTrade_Validate(t *testing.T) {
	valid := func() Trade {
		return Trade{
			Ticker: "aapl",
			Side:   TradeSideBuy,
			Shares: 10,
			Price:  decimal.NewFromInt(150),
		}
	}

	t.Run("normalizes ticker", func(t *testing.T) {
		trade := valid()
		require.NoError(t, trade.Validate())
		assert.Equal(t, "AAPL", trade.Ticker)
	})

	t.Run("empty ticker", func(t *testing.T) {
		trade := valid()
		trade.Ticker = "  "
		assert.Error(t, trade.Validate())
	})

	t.Run("bad side", func(t *testing.T) {
		trade := valid()
		trade.Side = "SHORT"
		assert.Error(t, trade.Validate())
	})

	t.Run("zero shares", func(t *testing.T) {
		trade := valid()
		trade.Shares = 0
		assert.Error(t, trade.Validate())
	})

	t.Run("zero price", func(t *testing.T) {
		trade := valid()
		trade.Price = decimal.Zero
		assert.Error(t, trade.Validate())
	})
}

func TestPosition_Math(t *testing.T) {
	pos := Position{
		Ticker:       "AAPL",
		Shares:       10,
		AvgPrice:     decimal.NewFromInt(150),
		CurrentPrice: decimal.NewFromInt(165),
	}

	assert.True(t, pos.TotalValue().Equal(decimal.NewFromInt(1650)))
	assert.True(t, pos.CostBasis().Equal(decimal.NewFromInt(1500)))
	assert.True(t, pos.UnrealizedPnL().Equal(decimal.NewFromInt(150)))
}
