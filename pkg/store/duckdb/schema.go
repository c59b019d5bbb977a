package duckdb

import (
	"context"
	"fmt"
)

// CreatePricesTable holds daily adjusted closes, one row per ticker/date.
const CreatePricesTable = `
CREATE TABLE IF NOT EXISTS prices (
    ticker VARCHAR NOT NULL,
    date DATE NOT NULL,
    adj_close DOUBLE NOT NULL,
    PRIMARY KEY (ticker, date)
);
`

// CreateReturnsTable holds the winsorized log returns.
const CreateReturnsTable = `
CREATE TABLE IF NOT EXISTS returns (
    ticker VARCHAR NOT NULL,
    date DATE NOT NULL,
    log_return DOUBLE NOT NULL,
    PRIMARY KEY (ticker, date)
);
`

// CreateWindowsTable holds embedding-window metadata; the vectors themselves
// live in the vector store keyed by window_id.
const CreateWindowsTable = `
CREATE TABLE IF NOT EXISTS windows (
    window_id VARCHAR PRIMARY KEY,
    ticker VARCHAR NOT NULL,
    date_start TIMESTAMP NOT NULL,
    date_end TIMESTAMP NOT NULL,
    window_idx INTEGER NOT NULL,
    size INTEGER NOT NULL,
    has_returns BOOLEAN NOT NULL,
    returns_cumulative DOUBLE,
    returns_mean DOUBLE,
    returns_std DOUBLE,
    sharpe_ratio DOUBLE,
    volatility DOUBLE,
    max_drawdown DOUBLE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_windows_ticker ON windows(ticker);
CREATE INDEX IF NOT EXISTS idx_windows_date_start ON windows(date_start);
`

// CreateArtifactsTable stores run artifacts (clip thresholds, scaler, regime
// model, manifest) as JSON blobs keyed by kind.
const CreateArtifactsTable = `
CREATE TABLE IF NOT EXISTS artifacts (
    kind VARCHAR NOT NULL,
    version INTEGER NOT NULL,
    payload JSON NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (kind, version)
);
`

// InitializeSchema creates all required tables.
func InitializeSchema(ctx context.Context, c *Client) error {
	schemas := []string{
		CreatePricesTable,
		CreateReturnsTable,
		CreateWindowsTable,
		CreateArtifactsTable,
	}
	for _, schema := range schemas {
		if err := c.Exec(ctx, schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// DropAllTables drops every table. Use with caution.
func DropAllTables(ctx context.Context, c *Client) error {
	tables := []string{"artifacts", "windows", "returns", "prices"}
	for _, table := range tables {
		if err := c.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table)); err != nil {
			return fmt.Errorf("failed to drop table %s: %w", table, err)
		}
	}
	return nil
}
