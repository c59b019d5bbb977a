package index

import (
	"sync"
	"time"

	"github.com/quantfold/hekla/pkg/model"
)

// rowBuffer is a fixed-capacity circular buffer of dated feature rows. It
// backs the streaming builder so appending a row is O(1) instead of
// rescanning the matrix.
type rowBuffer struct {
	mu       sync.RWMutex
	dates    []time.Time
	values   [][]float64
	capacity int
	size     int
	head     int
}

func newRowBuffer(capacity int) *rowBuffer {
	return &rowBuffer{
		dates:    make([]time.Time, capacity),
		values:   make([][]float64, capacity),
		capacity: capacity,
	}
}

// push overwrites the oldest row once the buffer is full.
func (rb *rowBuffer) push(date time.Time, row []float64) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.dates[rb.head] = date
	rb.values[rb.head] = row
	rb.head = (rb.head + 1) % rb.capacity
	if rb.size < rb.capacity {
		rb.size++
	}
}

func (rb *rowBuffer) full() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size == rb.capacity
}

func (rb *rowBuffer) len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

// snapshot returns the buffered rows oldest first.
func (rb *rowBuffer) snapshot() ([]time.Time, [][]float64) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	dates := make([]time.Time, rb.size)
	values := make([][]float64, rb.size)
	start := 0
	if rb.size == rb.capacity {
		start = rb.head
	}
	for i := 0; i < rb.size; i++ {
		idx := (start + i) % rb.capacity
		dates[i] = rb.dates[idx]
		values[i] = rb.values[idx]
	}
	return dates, values
}

// StreamBuilder emits windows incrementally as new scaled feature rows
// arrive, for live updates where rebuilding the whole matrix per row would be
// wasteful. Windows carry no return statistics: the forward returns of a live
// window are not known yet.
type StreamBuilder struct {
	cfg    BuilderConfig
	ticker string

	buf       *rowBuffer
	stepCount int
	emitted   int
}

// NewStreamBuilder creates a streaming builder for one ticker.
func NewStreamBuilder(cfg BuilderConfig, ticker string) *StreamBuilder {
	return &StreamBuilder{
		cfg:    cfg,
		ticker: ticker,
		buf:    newRowBuffer(cfg.WindowSize),
	}
}

// Push appends one row. It returns a window when the buffer is full, the
// stride boundary is reached, and the window passes the validity threshold.
func (sb *StreamBuilder) Push(date time.Time, row []float64) (*Window, bool) {
	sb.buf.push(date, row)
	sb.stepCount++
	if !sb.buf.full() || sb.stepCount < sb.cfg.Stride {
		return nil, false
	}
	sb.stepCount = 0

	dates, values := sb.buf.snapshot()
	vector, ok := flattenWindow(values, sb.cfg.MinValidFrac)
	if !ok {
		return nil, false
	}

	start, last := dates[0], dates[len(dates)-1]
	meta := model.WindowMeta{
		WindowID:  model.GenerateWindowID(sb.ticker, start, last, sb.cfg.WindowSize, sb.cfg.DataVersion),
		Ticker:    sb.ticker,
		DateStart: start,
		DateEnd:   last,
		WindowIdx: sb.emitted,
		Size:      sb.cfg.WindowSize,
	}
	sb.emitted++
	return &Window{ID: meta.WindowID, Vector: vector, Meta: meta}, true
}

// Buffered returns the number of rows currently held.
func (sb *StreamBuilder) Buffered() int {
	return sb.buf.len()
}

// Reset discards the buffered rows and counters.
func (sb *StreamBuilder) Reset() {
	sb.buf = newRowBuffer(sb.cfg.WindowSize)
	sb.stepCount = 0
	sb.emitted = 0
}
