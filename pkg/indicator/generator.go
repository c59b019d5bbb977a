// Package indicator computes the per-asset technical and statistical feature
// catalogue. Every derived series is shifted one period before it is stored,
// so the value at date t only uses information available at t-1. Divisions
// carry a 1e-8 epsilon so zero-variance windows produce large-but-finite
// values instead of Inf.
package indicator

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/hekla/pkg/model"
)

// Generator builds the lagged feature table from aligned prices and clipped
// returns.
type Generator struct{}

// NewGenerator creates an indicator generator.
func NewGenerator() *Generator {
	return &Generator{}
}

// Generate computes all feature categories for every ticker and returns them
// as one table indexed by the return dates. Column names follow the
// {ticker}_{feature} convention.
func (g *Generator) Generate(prices *model.PriceMatrix, rets *model.ReturnMatrix) (*model.FeatureTable, error) {
	if len(prices.Dates) != len(rets.Dates)+1 {
		return nil, fmt.Errorf("indicator: price matrix has %d rows, want %d (returns + 1)",
			len(prices.Dates), len(rets.Dates)+1)
	}
	if len(rets.Dates) == 0 {
		return nil, fmt.Errorf("indicator: empty return matrix")
	}

	table := model.NewFeatureTable(rets.Dates)
	for _, ticker := range prices.Tickers {
		pFull, err := prices.Column(ticker)
		if err != nil {
			return nil, fmt.Errorf("indicator: %w", err)
		}
		r, err := rets.Column(ticker)
		if err != nil {
			return nil, fmt.Errorf("indicator: %w", err)
		}
		// Align prices to the return index by dropping the first price row.
		p := pFull[1:]

		n := 0
		for _, s := range g.assetFeatures(p, r) {
			col := model.Column{
				Name:   fmt.Sprintf("%s_%s", ticker, s.name),
				Kind:   model.KindAsset,
				Ticker: ticker,
			}
			if err := table.AddColumn(col, s.values); err != nil {
				return nil, fmt.Errorf("indicator: %w", err)
			}
			n++
		}
		log.Debug().Str("stage", "indicator").Str("ticker", ticker).Int("features", n).Msg("asset features generated")
	}

	log.Info().
		Str("stage", "indicator").
		Int("tickers", len(prices.Tickers)).
		Int("columns", table.Cols()).
		Int("rows", table.Rows()).
		Msg("indicator table built")
	return table, nil
}

// assetFeatures assembles one ticker's full catalogue in a fixed order.
func (g *Generator) assetFeatures(p, r []float64) []series {
	out := []series{{"ret_1d", r}}

	out = append(out, series{"rsi14", rsi(p, 14)})

	macdLine, macdSignal, macdHist := macd(p, 12, 26, 9)
	out = append(out,
		series{"macd", macdLine},
		series{"macd_signal", macdSignal},
		series{"macd_hist", macdHist},
	)

	bbUpper, bbMiddle, bbLower, bbPosition, bbWidth := bollinger(p, 20, 2.0)
	out = append(out,
		series{"bb_upper", bbUpper},
		series{"bb_middle", bbMiddle},
		series{"bb_lower", bbLower},
		series{"bb_position", bbPosition},
		series{"bb_width", bbWidth},
	)

	out = append(out, series{"stochastic", stochastic(p, 14)})

	out = append(out, momentumFeatures(p)...)
	out = append(out, volatilityFeatures(r)...)
	out = append(out, riskFeatures(p, r)...)
	out = append(out, trendFeatures(p)...)
	out = append(out, statisticalFeatures(r)...)
	return out
}
