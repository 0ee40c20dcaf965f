package model

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/ppiankov/genesis/internal/structured"
	"github.com/rotisserie/eris"
)

// Report status values
const (
	StatusSuccess = "success"
	StatusPartial = "partial"
)

// Orchestration modes
const (
	ModeChain  = "chain"
	ModeSingle = "single"
)

// StageOutput is the recorded result of one reasoning stage
type StageOutput struct {
	Key   string
	Value structured.Value
}

// StageOutputs keeps stage results in execution order
type StageOutputs []StageOutput

// Get returns the output stored under key, or null when absent
func (s StageOutputs) Get(key string) structured.Value {
	for _, o := range s {
		if o.Key == key {
			return o.Value
		}
	}
	return structured.Null()
}

// Keys returns the stage keys in order
func (s StageOutputs) Keys() []string {
	keys := make([]string, len(s))
	for i, o := range s {
		keys[i] = o.Key
	}
	return keys
}

// Failed counts outputs that are error markers
func (s StageOutputs) Failed() int {
	n := 0
	for _, o := range s {
		if o.Value.IsErrorMarker() {
			n++
		}
	}
	return n
}

// Value folds the outputs into a single object
func (s StageOutputs) Value() structured.Value {
	fields := make([]structured.Field, len(s))
	for i, o := range s {
		fields[i] = structured.Field{Key: o.Key, Value: o.Value}
	}
	return structured.Object(fields...)
}

// MarshalJSON encodes the outputs as an object in stage order
func (s StageOutputs) MarshalJSON() ([]byte, error) {
	return s.Value().MarshalJSON()
}

// UnmarshalJSON decodes an object back into ordered outputs
func (s *StageOutputs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}
	v, err := structured.Parse(data)
	if err != nil {
		return eris.Wrap(err, "decode stage outputs")
	}
	if v.Kind() != structured.KindObject {
		return eris.New("stage outputs must be an object")
	}
	out := make(StageOutputs, 0, v.Len())
	for _, k := range v.Keys() {
		out = append(out, StageOutput{Key: k, Value: v.Get(k)})
	}
	*s = out
	return nil
}

// Report is the complete, immutable result of one analysis
type Report struct {
	Subject     string              `json:"subject"`
	Entities    []Entity            `json:"entities"`
	GeneratedAt time.Time           `json:"generated_at"`
	ServedAt    time.Time           `json:"served_at"`
	Mode        string              `json:"mode"`
	Status      string              `json:"status"`
	Cached      bool                `json:"cached"`
	SourceURLs  map[string][]string `json:"source_urls"`
	Quality     []SourceQuality     `json:"source_quality,omitempty"`
	Stages      StageOutputs        `json:"stages"`
}

// SourceQuality summarizes the evidence behind one entity. Index runs
// from 0 to 100.
type SourceQuality struct {
	EntityName string `json:"entity_name"`
	Sources    int    `json:"sources"`
	Reference  int    `json:"reference"`
	Official   int    `json:"official"`
	General    int    `json:"general"`
	Index      int    `json:"index"`
	Confidence string `json:"confidence"`
}

// Served returns a copy stamped for delivery to a caller
func (r Report) Served(at time.Time, cached bool) *Report {
	out := r
	out.ServedAt = at
	out.Cached = cached
	return &out
}

// Encode serializes the report for storage
func (r *Report) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, eris.Wrap(err, "encode report")
	}
	return data, nil
}

// DecodeReport parses a stored report. Documents without a subject or
// status are rejected.
func DecodeReport(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrap(err, "decode report")
	}
	if r.Subject == "" || r.Status == "" {
		return nil, eris.New("decode report: missing subject or status")
	}
	return &r, nil
}

// TaskTicket is returned by start_analysis before any work runs
type TaskTicket struct {
	TaskID   string   `json:"task_id"`
	Query    string   `json:"query"`
	Entities []Entity `json:"entities"`
}
