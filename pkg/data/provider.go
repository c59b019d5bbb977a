// Package data loads the input price matrix. Acquisition from market-data
// vendors happens upstream; this package only reads what a collaborator
// already dropped off (CSV file or the prices table).
package data

import (
	"context"
	"time"

	"github.com/quantfold/hekla/pkg/model"
)

// PriceProvider supplies the aligned daily price matrix for a universe.
type PriceProvider interface {
	// FetchPrices returns adjusted closes for the tickers over [start, end],
	// sharing one strictly-increasing date index.
	FetchPrices(ctx context.Context, tickers []string, start, end time.Time) (*model.PriceMatrix, error)
}
