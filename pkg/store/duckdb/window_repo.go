package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/quantfold/hekla/pkg/model"
)

// WindowRepo persists embedding-window metadata. Vectors live in the vector
// store under the same window_id.
type WindowRepo struct {
	client *Client
}

// NewWindowRepo creates a window repository.
func NewWindowRepo(client *Client) *WindowRepo {
	return &WindowRepo{client: client}
}

// UpsertBatch writes window metadata in one transaction. Window IDs are
// deterministic, so re-running a build overwrites in place.
func (r *WindowRepo) UpsertBatch(ctx context.Context, metas []model.WindowMeta) error {
	if len(metas) == 0 {
		return nil
	}
	tx, err := r.client.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO windows (window_id, ticker, date_start, date_end, window_idx, size, has_returns,
		                     returns_cumulative, returns_mean, returns_std, sharpe_ratio, volatility, max_drawdown)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (window_id) DO UPDATE SET
			ticker = EXCLUDED.ticker,
			date_start = EXCLUDED.date_start,
			date_end = EXCLUDED.date_end,
			window_idx = EXCLUDED.window_idx,
			size = EXCLUDED.size,
			has_returns = EXCLUDED.has_returns,
			returns_cumulative = EXCLUDED.returns_cumulative,
			returns_mean = EXCLUDED.returns_mean,
			returns_std = EXCLUDED.returns_std,
			sharpe_ratio = EXCLUDED.sharpe_ratio,
			volatility = EXCLUDED.volatility,
			max_drawdown = EXCLUDED.max_drawdown
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, m := range metas {
		var cum, mean, std, sharpe, vol, mdd interface{}
		if m.Returns != nil {
			cum, mean, std = m.Returns.Cumulative, m.Returns.Mean, m.Returns.Std
			sharpe, vol, mdd = m.Returns.Sharpe, m.Returns.Volatility, m.Returns.MaxDrawdown
		}
		_, err := stmt.Exec(m.WindowID, m.Ticker, m.DateStart, m.DateEnd, m.WindowIdx, m.Size, m.HasReturns,
			cum, mean, std, sharpe, vol, mdd)
		if err != nil {
			return fmt.Errorf("failed to insert window %s: %w", m.WindowID, err)
		}
	}
	return tx.Commit()
}

// GetByTicker reads all of one ticker's windows ordered by start date.
func (r *WindowRepo) GetByTicker(ctx context.Context, ticker string) ([]model.WindowMeta, error) {
	query := `
		SELECT window_id, ticker, date_start, date_end, window_idx, size, has_returns,
		       returns_cumulative, returns_mean, returns_std, sharpe_ratio, volatility, max_drawdown
		FROM windows
		WHERE ticker = ?
		ORDER BY date_start ASC
	`
	rows, err := r.client.Query(ctx, query, ticker)
	if err != nil {
		return nil, fmt.Errorf("failed to query windows: %w", err)
	}
	defer rows.Close()
	return scanWindows(rows)
}

// Count returns the number of stored windows.
func (r *WindowRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.client.QueryRow(ctx, "SELECT COUNT(*) FROM windows").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count windows: %w", err)
	}
	return n, nil
}

func scanWindows(rows *sql.Rows) ([]model.WindowMeta, error) {
	var out []model.WindowMeta
	for rows.Next() {
		var m model.WindowMeta
		var start, end time.Time
		var cum, mean, std, sharpe, vol, mdd sql.NullFloat64
		err := rows.Scan(&m.WindowID, &m.Ticker, &start, &end, &m.WindowIdx, &m.Size, &m.HasReturns,
			&cum, &mean, &std, &sharpe, &vol, &mdd)
		if err != nil {
			return nil, fmt.Errorf("failed to scan window: %w", err)
		}
		m.DateStart = start
		m.DateEnd = end
		if m.HasReturns {
			m.Returns = &model.ReturnStats{
				Cumulative:  cum.Float64,
				Mean:        mean.Float64,
				Std:         std.Float64,
				Sharpe:      sharpe.Float64,
				Volatility:  vol.Float64,
				MaxDrawdown: mdd.Float64,
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading window rows: %w", err)
	}
	return out, nil
}
