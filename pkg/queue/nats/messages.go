package nats

import (
	"encoding/json"

	"github.com/quantfold/hekla/pkg/index"
	"github.com/quantfold/hekla/pkg/model"
)

// Subjects carried by the hekla stream.
const (
	SubjectPriceWrite  = "hekla.prices.write"
	SubjectReturnWrite = "hekla.returns.write"
	SubjectWindowWrite = "hekla.windows.write"
)

// AllSubjects lists every subject the stream must retain.
var AllSubjects = []string{SubjectPriceWrite, SubjectReturnWrite, SubjectWindowWrite}

// PriceBatchMsg carries a full price matrix for persistence.
type PriceBatchMsg struct {
	Prices *model.PriceMatrix `json:"prices"`
}

// ReturnBatchMsg carries the winsorized return matrix.
type ReturnBatchMsg struct {
	Returns *model.ReturnMatrix `json:"returns"`
}

// WindowBatchMsg carries a batch of accepted embedding windows: vectors plus
// metadata, bound for the vector store and the windows table.
type WindowBatchMsg struct {
	Windows []index.Window `json:"windows"`
}

// Marshal serializes any message to JSON.
func Marshal(msg interface{}) ([]byte, error) {
	return json.Marshal(msg)
}

// Unmarshal deserializes a message payload.
func Unmarshal(data []byte, msg interface{}) error {
	return json.Unmarshal(data, msg)
}
