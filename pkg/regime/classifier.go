// Package regime labels every trading date with a discrete market regime by
// clustering the equal-weighted portfolio's trailing return, volatility, and
// drawdown. The clustering model and its standardizer are fit on the training
// partition only and then frozen for the full horizon.
package regime

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quantfold/hekla/pkg/model"
	"github.com/quantfold/hekla/pkg/stat"
)

// The portfolio statistics that feed the clustering.
var inputColumns = []string{"ew_ret_20", "ew_vol_20", "ew_dd_60"}

// Config holds the clustering parameters. The defaults trade fit time for
// stability across reruns.
type Config struct {
	K        int
	Restarts int
	MaxIter  int
	Seed     int64
}

// DefaultConfig matches the fitted production model.
func DefaultConfig() Config {
	return Config{K: 3, Restarts: 20, MaxIter: 500, Seed: 42}
}

// Model is the frozen fit artifact: standardization parameters, cluster
// centers in standardized space, and descriptive centroid interpretations.
type Model struct {
	Cfg         Config      `json:"config"`
	Mean        []float64   `json:"scaler_mean"`
	Std         []float64   `json:"scaler_std"`
	Centers     [][]float64 `json:"centers"`
	CentersOrig [][]float64 `json:"centers_original"`
	Names       []string    `json:"names"` // descriptive only, not a contract

	// Labels aligns with the table's date index; -1 marks rows whose
	// clustering input was incomplete.
	Labels []int `json:"labels"`
}

// Predict standardizes a (return, volatility, drawdown) triple with the
// frozen parameters and returns its cluster.
func (m *Model) Predict(point []float64) int {
	scaled := make([]float64, len(point))
	for d, v := range point {
		scaled[d] = (v - m.Mean[d]) / m.Std[d]
	}
	return nearest(scaled, m.Centers)
}

// Classifier fits regime models and merges labels into feature tables.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a classifier.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// FitLabel fits the model on training rows, predicts a regime for every row
// with complete clustering input, and appends one-hot regime columns to the
// table. Rows without a label get NaN indicators so the downstream
// incomplete-row drop removes them.
func (c *Classifier) FitLabel(table *model.FeatureTable, trainEnd time.Time) (*Model, error) {
	inputs := make([][]float64, len(inputColumns))
	for d, name := range inputColumns {
		col, err := table.ColumnValues(name)
		if err != nil {
			return nil, fmt.Errorf("regime: %w", err)
		}
		inputs[d] = col
	}

	// Rows with all three statistics present.
	var rowIdx []int
	var points [][]float64
	for i := 0; i < table.Rows(); i++ {
		p := make([]float64, len(inputs))
		ok := true
		for d := range inputs {
			v := inputs[d][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
			p[d] = v
		}
		if ok {
			rowIdx = append(rowIdx, i)
			points = append(points, p)
		}
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("regime: no rows with complete clustering input")
	}

	trainCount := 0
	for _, i := range rowIdx {
		if !table.Dates[i].After(trainEnd) {
			trainCount++
		}
	}
	if trainCount == 0 {
		return nil, fmt.Errorf("regime: no training rows on or before %s", trainEnd.Format("2006-01-02"))
	}
	trainPoints := points[:trainCount]

	m := &Model{Cfg: c.cfg}
	m.Mean, m.Std = fitStandardizer(trainPoints)

	scaledTrain := standardize(trainPoints, m.Mean, m.Std)
	rng := rand.New(rand.NewSource(c.cfg.Seed))
	m.Centers = fitKMeans(scaledTrain, c.cfg.K, c.cfg.Restarts, c.cfg.MaxIter, rng)
	m.CentersOrig = inverseStandardize(m.Centers, m.Mean, m.Std)
	m.Names = interpretCenters(m.CentersOrig)

	scaledAll := standardize(points, m.Mean, m.Std)
	labels := assign(scaledAll, m.Centers)

	m.Labels = make([]int, table.Rows())
	for i := range m.Labels {
		m.Labels[i] = -1
	}
	for j, i := range rowIdx {
		m.Labels[i] = labels[j]
	}

	for k := 0; k < c.cfg.K; k++ {
		onehot := make([]float64, table.Rows())
		for i, label := range m.Labels {
			switch {
			case label == -1:
				onehot[i] = math.NaN()
			case label == k:
				onehot[i] = 1
			default:
				onehot[i] = 0
			}
		}
		col := model.Column{Name: fmt.Sprintf("regime_%d", k), Kind: model.KindRegime}
		if err := table.AddColumn(col, onehot); err != nil {
			return nil, fmt.Errorf("regime: %w", err)
		}
	}

	for k, center := range m.CentersOrig {
		log.Info().
			Str("stage", "regime").
			Int("cluster", k).
			Str("name", m.Names[k]).
			Float64("ret", center[0]).
			Float64("vol", center[1]).
			Float64("dd", center[2]).
			Msg("regime centroid")
	}
	log.Info().
		Str("stage", "regime").
		Int("labeled_rows", len(points)).
		Int("train_rows", trainCount).
		Msg("regimes assigned")
	return m, nil
}

// interpretCenters applies the descriptive centroid heuristic: positive
// return with below-average volatility reads bullish, negative return or
// deep drawdown reads like crisis, anything else is sideways.
func interpretCenters(centers [][]float64) []string {
	meanVol := 0.0
	for _, c := range centers {
		meanVol += c[1]
	}
	meanVol /= float64(len(centers))

	names := make([]string, len(centers))
	for i, c := range centers {
		ret, vol, dd := c[0], c[1], c[2]
		switch {
		case ret > 0 && vol < meanVol:
			names[i] = "BULL"
		case ret < 0 || dd < -0.1:
			names[i] = "CRISIS"
		default:
			names[i] = "SIDEWAYS"
		}
	}
	return names
}

// fitStandardizer returns per-dimension mean and population std. A
// zero-variance dimension scales by 1 so standardization stays defined.
func fitStandardizer(points [][]float64) (mean, std []float64) {
	dim := len(points[0])
	mean = make([]float64, dim)
	std = make([]float64, dim)
	for d := 0; d < dim; d++ {
		col := make([]float64, len(points))
		for i, p := range points {
			col[i] = p[d]
		}
		mean[d] = stat.Mean(col)
		std[d] = stat.PopStd(col)
		if std[d] == 0 {
			std[d] = 1
		}
	}
	return mean, std
}

func standardize(points [][]float64, mean, std []float64) [][]float64 {
	out := make([][]float64, len(points))
	for i, p := range points {
		s := make([]float64, len(p))
		for d, v := range p {
			s[d] = (v - mean[d]) / std[d]
		}
		out[i] = s
	}
	return out
}

func inverseStandardize(points [][]float64, mean, std []float64) [][]float64 {
	out := make([][]float64, len(points))
	for i, p := range points {
		s := make([]float64, len(p))
		for d, v := range p {
			s[d] = v*std[d] + mean[d]
		}
		out[i] = s
	}
	return out
}
