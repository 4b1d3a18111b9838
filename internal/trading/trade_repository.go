package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"swingtrader/internal/domain"
)

// TradeRepository persists trades to sqlite. The executor writes here
// inside the ledger's critical section, ahead of the in-memory mutation,
// so a trade is never acknowledged without being durable.
type TradeRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *sql.DB, log zerolog.Logger) *TradeRepository {
	return &TradeRepository{
		db:  db,
		log: log.With().Str("repo", "trade").Logger(),
	}
}

// Create validates and inserts a new trade record
func (r *TradeRepository) Create(trade domain.Trade) error {
	if err := trade.Validate(); err != nil {
		return fmt.Errorf("invalid trade: %w", err)
	}

	var pnl sql.NullString
	if trade.PnL != nil {
		pnl = sql.NullString{String: trade.PnL.String(), Valid: true}
	}

	query := `
		INSERT INTO trades (id, ticker, side, shares, price, total_value, pnl, status, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.Exec(query,
		trade.ID,
		trade.Ticker,
		string(trade.Side),
		trade.Shares,
		trade.Price.String(),
		trade.TotalValue.String(),
		pnl,
		trade.Status,
		trade.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	r.log.Info().
		Str("ticker", trade.Ticker).
		Str("side", string(trade.Side)).
		Int64("shares", trade.Shares).
		Msg("Trade persisted")

	return nil
}

// GetHistory retrieves trade history, most recent first
func (r *TradeRepository) GetHistory(limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `
		SELECT id, ticker, side, shares, price, total_value, pnl, status, executed_at
		FROM trades
		ORDER BY executed_at DESC
		LIMIT ?
	`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade history: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// GetAll retrieves every trade in execution order, oldest first. Used to
// rehydrate the in-memory trade log at startup.
func (r *TradeRepository) GetAll() ([]domain.Trade, error) {
	query := `
		SELECT id, ticker, side, shares, price, total_value, pnl, status, executed_at
		FROM trades
		ORDER BY executed_at ASC
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

// CountToday counts trades executed since local midnight in the given
// location. Uses the same day boundary as daily P&L.
func (r *TradeRepository) CountToday(loc *time.Location) (int, error) {
	now := time.Now().In(loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM trades WHERE datetime(executed_at) >= datetime(?)`,
		midnight.UTC().Format(time.RFC3339),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count today's trades: %w", err)
	}

	return count, nil
}

func (r *TradeRepository) collect(rows *sql.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, trade)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trades: %w", err)
	}

	return trades, nil
}

func scanTrade(rows *sql.Rows) (domain.Trade, error) {
	var (
		trade      domain.Trade
		side       string
		price      string
		totalValue string
		pnl        sql.NullString
		executedAt string
	)

	err := rows.Scan(
		&trade.ID,
		&trade.Ticker,
		&side,
		&trade.Shares,
		&price,
		&totalValue,
		&pnl,
		&trade.Status,
		&executedAt,
	)
	if err != nil {
		return trade, err
	}

	if trade.Side, err = domain.TradeSideFromString(side); err != nil {
		return trade, fmt.Errorf("corrupt side %q: %w", side, err)
	}

	if trade.Price, err = decimal.NewFromString(price); err != nil {
		return trade, fmt.Errorf("corrupt price %q: %w", price, err)
	}
	if trade.TotalValue, err = decimal.NewFromString(totalValue); err != nil {
		return trade, fmt.Errorf("corrupt total value %q: %w", totalValue, err)
	}
	if pnl.Valid {
		p, err := decimal.NewFromString(pnl.String)
		if err != nil {
			return trade, fmt.Errorf("corrupt pnl %q: %w", pnl.String, err)
		}
		trade.PnL = &p
	}

	if trade.Timestamp, err = time.Parse(time.RFC3339Nano, executedAt); err != nil {
		return trade, fmt.Errorf("corrupt timestamp %q: %w", executedAt, err)
	}

	return trade, nil
}
