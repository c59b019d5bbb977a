package nats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/hekla/pkg/index"
	"github.com/quantfold/hekla/pkg/model"
)

func TestSubjects(t *testing.T) {
	assert.Equal(t, []string{
		"hekla.prices.write",
		"hekla.returns.write",
		"hekla.windows.write",
	}, AllSubjects)
}

func TestWindowBatchRoundTrip(t *testing.T) {
	start := time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 29)
	msg := WindowBatchMsg{Windows: []index.Window{{
		ID:     "w-1",
		Vector: []float64{0.1, -0.2, 0.3},
		Meta: model.WindowMeta{
			WindowID:   "w-1",
			Ticker:     "SPY",
			DateStart:  start,
			DateEnd:    end,
			Size:       30,
			HasReturns: true,
			Returns:    &model.ReturnStats{Cumulative: 0.05, Sharpe: 1.2},
		},
	}}}

	data, err := Marshal(msg)
	require.NoError(t, err)

	var got WindowBatchMsg
	require.NoError(t, Unmarshal(data, &got))
	require.Len(t, got.Windows, 1)
	w := got.Windows[0]
	assert.Equal(t, "w-1", w.ID)
	assert.Equal(t, []float64{0.1, -0.2, 0.3}, w.Vector)
	assert.Equal(t, "SPY", w.Meta.Ticker)
	assert.True(t, w.Meta.DateEnd.Equal(end))
	require.NotNil(t, w.Meta.Returns)
	assert.Equal(t, 0.05, w.Meta.Returns.Cumulative)
}

func TestUnmarshalRejectsGarbage(t *testing.T) {
	var msg PriceBatchMsg
	assert.Error(t, Unmarshal([]byte("{not json"), &msg))
}
