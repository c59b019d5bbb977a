package data

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/quantfold/hekla/pkg/model"
)

// DateColumn is the required first column of a price CSV.
const DateColumn = "date"

// CSVProvider reads a wide-format price CSV: a date column followed by one
// adjusted-close column per ticker.
type CSVProvider struct {
	filePath string
	matrix   *model.PriceMatrix
	loaded   bool
}

// NewCSVProvider creates a CSV-backed provider.
func NewCSVProvider(filePath string) *CSVProvider {
	return &CSVProvider{filePath: filePath}
}

func (p *CSVProvider) loadIfNeeded() error {
	if p.loaded {
		return nil
	}

	file, err := os.Open(p.filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) < 2 || header[0] != DateColumn {
		return fmt.Errorf("CSV header must start with %q followed by ticker columns, got %v", DateColumn, header)
	}
	tickers := header[1:]

	var dates []time.Time
	var values [][]float64
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read CSV record at line %d: %w", line+1, err)
		}
		line++
		if len(record) != len(header) {
			return fmt.Errorf("line %d has %d fields, want %d", line, len(record), len(header))
		}
		date, err := time.Parse("2006-01-02", record[0])
		if err != nil {
			return fmt.Errorf("line %d: bad date %q: %w", line, record[0], err)
		}
		row := make([]float64, len(tickers))
		for j, field := range record[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return fmt.Errorf("line %d: bad price %q for %s: %w", line, field, tickers[j], err)
			}
			row[j] = v
		}
		dates = append(dates, date)
		values = append(values, row)
	}

	matrix := &model.PriceMatrix{Dates: dates, Tickers: tickers, Values: values}
	if err := matrix.Validate(); err != nil {
		return fmt.Errorf("CSV %s: %w", p.filePath, err)
	}
	p.matrix = matrix
	p.loaded = true
	return nil
}

// FetchPrices returns the requested tickers restricted to [start, end].
func (p *CSVProvider) FetchPrices(_ context.Context, tickers []string, start, end time.Time) (*model.PriceMatrix, error) {
	if err := p.loadIfNeeded(); err != nil {
		return nil, err
	}

	colOf := make(map[string]int, len(p.matrix.Tickers))
	for j, t := range p.matrix.Tickers {
		colOf[t] = j
	}
	cols := make([]int, len(tickers))
	for j, t := range tickers {
		src, ok := colOf[t]
		if !ok {
			return nil, fmt.Errorf("ticker %q not present in %s", t, p.filePath)
		}
		cols[j] = src
	}

	out := &model.PriceMatrix{Tickers: append([]string(nil), tickers...)}
	for i, d := range p.matrix.Dates {
		if d.Before(start) || d.After(end) {
			continue
		}
		row := make([]float64, len(cols))
		for j, src := range cols {
			row[j] = p.matrix.Values[i][src]
		}
		out.Dates = append(out.Dates, d)
		out.Values = append(out.Values, row)
	}
	if len(out.Dates) == 0 {
		return nil, fmt.Errorf("no prices in [%s, %s] in %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"), p.filePath)
	}
	return out, nil
}
