package model

import (
	"fmt"
	"time"
)

// PriceMatrix holds daily adjusted-close prices for a set of assets sharing a
// common date index. Rows align with Dates, columns with Tickers.
type PriceMatrix struct {
	Dates   []time.Time
	Tickers []string
	Values  [][]float64
}

// Validate checks the input contract: strictly increasing dates, no duplicate
// dates, positive prices, consistent row widths.
func (p *PriceMatrix) Validate() error {
	if len(p.Dates) == 0 {
		return fmt.Errorf("price matrix: empty date index")
	}
	if len(p.Dates) != len(p.Values) {
		return fmt.Errorf("price matrix: %d dates but %d rows", len(p.Dates), len(p.Values))
	}
	for i, row := range p.Values {
		if len(row) != len(p.Tickers) {
			return fmt.Errorf("price matrix: row %d has %d values, want %d", i, len(row), len(p.Tickers))
		}
		for j, v := range row {
			if v <= 0 {
				return fmt.Errorf("price matrix: non-positive price %.6f for %s at %s",
					v, p.Tickers[j], p.Dates[i].Format("2006-01-02"))
			}
		}
	}
	for i := 1; i < len(p.Dates); i++ {
		if !p.Dates[i].After(p.Dates[i-1]) {
			return fmt.Errorf("price matrix: dates not strictly increasing at %s",
				p.Dates[i].Format("2006-01-02"))
		}
	}
	return nil
}

// Column returns the price series for one ticker.
func (p *PriceMatrix) Column(ticker string) ([]float64, error) {
	for j, t := range p.Tickers {
		if t == ticker {
			out := make([]float64, len(p.Values))
			for i := range p.Values {
				out[i] = p.Values[i][j]
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("price matrix: unknown ticker %q", ticker)
}

// ReturnMatrix holds per-asset log returns. Its date index is one element
// shorter than the source PriceMatrix (the first date has no return).
type ReturnMatrix struct {
	Dates   []time.Time
	Tickers []string
	Values  [][]float64
}

// Column returns the return series for one ticker.
func (r *ReturnMatrix) Column(ticker string) ([]float64, error) {
	for j, t := range r.Tickers {
		if t == ticker {
			out := make([]float64, len(r.Values))
			for i := range r.Values {
				out[i] = r.Values[i][j]
			}
			return out, nil
		}
	}
	return nil, fmt.Errorf("return matrix: unknown ticker %q", ticker)
}

// Rows returns the number of dates.
func (r *ReturnMatrix) Rows() int { return len(r.Dates) }
