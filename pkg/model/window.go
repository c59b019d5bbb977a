package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ReturnStats summarizes the clipped returns covered by a window.
type ReturnStats struct {
	Cumulative  float64 `json:"cumulative"`
	Mean        float64 `json:"mean"`
	Std         float64 `json:"std"`
	Sharpe      float64 `json:"sharpe"`       // annualized, mean/std*sqrt(252)
	Volatility  float64 `json:"volatility"`   // annualized std
	MaxDrawdown float64 `json:"max_drawdown"` // running-peak comparison, <= 0 means no loss
}

// WindowMeta carries the metadata stored alongside each embedded window.
type WindowMeta struct {
	WindowID   string       `json:"window_id"`
	Ticker     string       `json:"ticker"`
	DateStart  time.Time    `json:"date_start"`
	DateEnd    time.Time    `json:"date_end"`
	WindowIdx  int          `json:"window_idx"`
	Size       int          `json:"size"`
	Returns    *ReturnStats `json:"returns,omitempty"`
	HasReturns bool         `json:"has_returns"`
}

// GenerateWindowID derives a deterministic ID from the window parameters.
// Format: hash(ticker|start|end|size|version). Re-indexing the same window is
// therefore idempotent.
func GenerateWindowID(ticker string, start, end time.Time, size, version int) string {
	data := fmt.Sprintf("%s|%d|%d|%d|%d", ticker, start.Unix(), end.Unix(), size, version)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:16])
}

// Partition identifies a chronological split.
type Partition int

const (
	Train Partition = iota
	Validation
	Test
)

func (p Partition) String() string {
	switch p {
	case Train:
		return "train"
	case Validation:
		return "validation"
	case Test:
		return "test"
	default:
		return "unknown"
	}
}
