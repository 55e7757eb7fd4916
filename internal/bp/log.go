package bp

import (
	"encoding/json"
	"io"
)

// MarginalLogger receives one record per (round, node, marginal) tuple as
// the engine runs rounds. Readers should treat non-tabular content as
// opaque.
type MarginalLogger interface {
	LogMarginal(round int, nodeHash string, marginal float64) error
}

// marginalRecord is the self-describing payload written per record.
type marginalRecord struct {
	Round    int     `json:"round"`
	NodeHash string  `json:"node_hash"`
	Marginal float64 `json:"marginal"`
}

// NDJSONLogger writes one JSON object per line to w, keeping the log
// self-describing through encoding/json rather than a bespoke text
// format.
type NDJSONLogger struct {
	enc *json.Encoder
}

// NewNDJSONLogger wraps w as a MarginalLogger.
func NewNDJSONLogger(w io.Writer) *NDJSONLogger {
	return &NDJSONLogger{enc: json.NewEncoder(w)}
}

// LogMarginal appends one newline-delimited JSON record.
func (l *NDJSONLogger) LogMarginal(round int, nodeHash string, marginal float64) error {
	return l.enc.Encode(marginalRecord{Round: round, NodeHash: nodeHash, Marginal: marginal})
}
