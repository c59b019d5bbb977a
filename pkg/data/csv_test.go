package data

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prices.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const goodCSV = `date,SPY,AAPL
2023-01-02,380.50,125.10
2023-01-03,382.25,126.40
2023-01-04,379.80,124.90
2023-01-05,385.00,128.30
`

func TestFetchPrices(t *testing.T) {
	p := NewCSVProvider(writeCSV(t, goodCSV))

	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 5, 0, 0, 0, 0, time.UTC)
	m, err := p.FetchPrices(context.Background(), []string{"SPY", "AAPL"}, start, end)
	require.NoError(t, err)

	assert.Equal(t, []string{"SPY", "AAPL"}, m.Tickers)
	require.Len(t, m.Dates, 4)
	assert.Equal(t, start, m.Dates[0])
	assert.Equal(t, 380.50, m.Values[0][0])
	assert.Equal(t, 128.30, m.Values[3][1])
}

func TestFetchPricesTickerSubsetAndOrder(t *testing.T) {
	p := NewCSVProvider(writeCSV(t, goodCSV))

	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)
	m, err := p.FetchPrices(context.Background(), []string{"AAPL"}, start, end)
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL"}, m.Tickers)
	assert.Equal(t, 125.10, m.Values[0][0])
	require.Len(t, m.Values[0], 1)
}

func TestFetchPricesDateRange(t *testing.T) {
	p := NewCSVProvider(writeCSV(t, goodCSV))

	start := time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC)
	m, err := p.FetchPrices(context.Background(), []string{"SPY"}, start, end)
	require.NoError(t, err)

	require.Len(t, m.Dates, 2)
	assert.Equal(t, start, m.Dates[0])
	assert.Equal(t, end, m.Dates[1])

	// A range with no rows is an error, not an empty matrix.
	_, err = p.FetchPrices(context.Background(), []string{"SPY"},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorContains(t, err, "no prices in")
}

func TestFetchPricesUnknownTicker(t *testing.T) {
	p := NewCSVProvider(writeCSV(t, goodCSV))
	_, err := p.FetchPrices(context.Background(), []string{"MSFT"},
		time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC))
	assert.ErrorContains(t, err, `ticker "MSFT" not present`)
}

func TestBadHeader(t *testing.T) {
	p := NewCSVProvider(writeCSV(t, "timestamp,SPY\n2023-01-02,380.50\n"))
	_, err := p.FetchPrices(context.Background(), []string{"SPY"}, time.Time{}, time.Now())
	assert.ErrorContains(t, err, `must start with "date"`)

	p = NewCSVProvider(writeCSV(t, "date\n2023-01-02\n"))
	_, err = p.FetchPrices(context.Background(), []string{"SPY"}, time.Time{}, time.Now())
	assert.ErrorContains(t, err, "must start with")
}

func TestBadCellsReportLineNumbers(t *testing.T) {
	p := NewCSVProvider(writeCSV(t, "date,SPY\n2023-01-02,380.50\nnot-a-date,381.00\n"))
	_, err := p.FetchPrices(context.Background(), []string{"SPY"}, time.Time{}, time.Now())
	assert.ErrorContains(t, err, "line 3: bad date")

	p = NewCSVProvider(writeCSV(t, "date,SPY\n2023-01-02,abc\n"))
	_, err = p.FetchPrices(context.Background(), []string{"SPY"}, time.Time{}, time.Now())
	assert.ErrorContains(t, err, `line 2: bad price "abc" for SPY`)
}

func TestMatrixValidationFailures(t *testing.T) {
	// Duplicate dates violate the strictly-increasing index.
	p := NewCSVProvider(writeCSV(t, "date,SPY\n2023-01-02,380.50\n2023-01-02,381.00\n"))
	_, err := p.FetchPrices(context.Background(), []string{"SPY"}, time.Time{}, time.Now())
	assert.ErrorContains(t, err, "strictly increasing")

	p = NewCSVProvider(writeCSV(t, "date,SPY\n2023-01-02,-5\n"))
	_, err = p.FetchPrices(context.Background(), []string{"SPY"}, time.Time{}, time.Now())
	assert.ErrorContains(t, err, "non-positive")
}

func TestMissingFile(t *testing.T) {
	p := NewCSVProvider(filepath.Join(t.TempDir(), "absent.csv"))
	_, err := p.FetchPrices(context.Background(), []string{"SPY"}, time.Time{}, time.Now())
	assert.ErrorContains(t, err, "failed to open CSV file")
}
