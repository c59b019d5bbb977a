package duckdb

import (
	"context"
	"fmt"

	"github.com/quantfold/hekla/pkg/model"
)

// ReturnRepo persists the winsorized return matrix.
type ReturnRepo struct {
	client *Client
}

// NewReturnRepo creates a return repository.
func NewReturnRepo(client *Client) *ReturnRepo {
	return &ReturnRepo{client: client}
}

// InsertMatrix upserts every cell of a return matrix in one transaction.
func (r *ReturnRepo) InsertMatrix(ctx context.Context, rets *model.ReturnMatrix) error {
	tx, err := r.client.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO returns (ticker, date, log_return)
		VALUES (?, ?, ?)
		ON CONFLICT (ticker, date) DO UPDATE SET log_return = EXCLUDED.log_return
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, date := range rets.Dates {
		for j, ticker := range rets.Tickers {
			if _, err := stmt.Exec(ticker, date, rets.Values[i][j]); err != nil {
				return fmt.Errorf("failed to insert return %s %s: %w", ticker, date.Format("2006-01-02"), err)
			}
		}
	}
	return tx.Commit()
}
