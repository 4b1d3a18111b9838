package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DailySnapshot is one persisted point of the equity curve
type DailySnapshot struct {
	Date        string          `json:"date"` // YYYY-MM-DD
	TotalValue  decimal.Decimal `json:"total_value"`
	Cash        decimal.Decimal `json:"cash"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}

// SnapshotRepository persists one portfolio snapshot row per day. The
// periodic refresh job upserts today's row; performance metrics read the
// resulting equity curve.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repo", "snapshot").Logger(),
	}
}

// Upsert writes or replaces the snapshot row for the given date
func (r *SnapshotRepository) Upsert(snap DailySnapshot) error {
	query := `
		INSERT INTO portfolio_snapshots (date, total_value, cash, realized_pnl, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_value = excluded.total_value,
			cash = excluded.cash,
			realized_pnl = excluded.realized_pnl,
			created_at = excluded.created_at
	`

	_, err := r.db.Exec(query,
		snap.Date,
		snap.TotalValue.String(),
		snap.Cash.String(),
		snap.RealizedPnL.String(),
		time.Now().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	return nil
}

// EquityCurve returns daily total values in date order
func (r *SnapshotRepository) EquityCurve() ([]float64, error) {
	rows, err := r.db.Query(`SELECT total_value FROM portfolio_snapshots ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query equity curve: %w", err)
	}
	defer rows.Close()

	var curve []float64
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		value, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt snapshot value %q: %w", raw, err)
		}
		curve = append(curve, value.InexactFloat64())
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return curve, nil
}
