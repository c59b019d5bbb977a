package duckdb

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfold/hekla/pkg/model"
)

// PriceRepo persists and reloads the price matrix.
type PriceRepo struct {
	client *Client
}

// NewPriceRepo creates a price repository.
func NewPriceRepo(client *Client) *PriceRepo {
	return &PriceRepo{client: client}
}

// InsertMatrix upserts every cell of a price matrix in one transaction.
func (r *PriceRepo) InsertMatrix(ctx context.Context, prices *model.PriceMatrix) error {
	tx, err := r.client.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO prices (ticker, date, adj_close)
		VALUES (?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET adj_close = EXCLUDED.adj_close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, date := range prices.Dates {
		for j, ticker := range prices.Tickers {
			if _, err := stmt.Exec(ticker, date, prices.Values[i][j]); err != nil {
				return fmt.Errorf("failed to insert price %s %s: %w", ticker, date.Format("2006-01-02"), err)
			}
		}
	}
	return tx.Commit()
}

// LoadMatrix reads a dense price matrix for the given tickers and range. It
// fails if any ticker is missing a date the others have, since downstream
// stages require a common date index.
func (r *PriceRepo) LoadMatrix(ctx context.Context, tickers []string, start, end time.Time) (*model.PriceMatrix, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("no tickers requested")
	}
	query := `
		SELECT ticker, date, adj_close
		FROM prices
		WHERE ticker IN (` + placeholders(len(tickers)) + `) AND date >= ? AND date <= ?
		ORDER BY date ASC, ticker ASC
	`
	args := make([]interface{}, 0, len(tickers)+2)
	for _, t := range tickers {
		args = append(args, t)
	}
	args = append(args, start, end)

	rows, err := r.client.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	colOf := make(map[string]int, len(tickers))
	for j, t := range tickers {
		colOf[t] = j
	}

	var dates []time.Time
	var values [][]float64
	byDate := map[time.Time][]float64{}
	for rows.Next() {
		var ticker string
		var date time.Time
		var close float64
		if err := rows.Scan(&ticker, &date, &close); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		row, ok := byDate[date]
		if !ok {
			row = make([]float64, len(tickers))
			for j := range row {
				row[j] = -1
			}
			byDate[date] = row
			dates = append(dates, date)
			values = append(values, row)
		}
		row[colOf[ticker]] = close
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading price rows: %w", err)
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("no prices stored for %v in [%s, %s]",
			tickers, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	for i, row := range values {
		for j, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("missing price for %s at %s", tickers[j], dates[i].Format("2006-01-02"))
			}
		}
	}
	return &model.PriceMatrix{Dates: dates, Tickers: tickers, Values: values}, nil
}

func placeholders(n int) string {
	out := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ", "
		}
		out += "?"
	}
	return out
}
