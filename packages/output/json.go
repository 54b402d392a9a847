package output

import (
	"encoding/json"
	"io"
	"os"
	"time"
)

// JSONReport represents the complete JSON output of a fetch run
type JSONReport struct {
	Method      string      `json:"method"`
	URL         string      `json:"url"`
	Deduplicate bool        `json:"deduplicate"`
	Summary     JSONSummary `json:"summary"`
	Calls       []JSONCall  `json:"calls"`
	Duration    float64     `json:"duration"`
	Time        string      `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total     int     `json:"total"`
	Failed    int     `json:"failed"`
	Transport int64   `json:"transport"`
	Coalesced int64   `json:"coalesced"`
	P50       float64 `json:"p50"`
	P95       float64 `json:"p95"`
	P99       float64 `json:"p99"`
}

// JSONCall represents a single logical request
type JSONCall struct {
	Index    int     `json:"index"`
	Status   int     `json:"status,omitempty"`
	Data     any     `json:"data,omitempty"`
	Error    string  `json:"error,omitempty"`
	Duration float64 `json:"duration"`
}

// JSONFormatter writes one JSON document per report
type JSONFormatter struct {
	writer io.Writer
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (f *JSONFormatter) FormatReport(r *Report) {
	out := JSONReport{
		Method:      r.Method,
		URL:         r.URL,
		Deduplicate: r.Deduplicate,
		Summary: JSONSummary{
			Total:     len(r.Calls),
			Failed:    r.Failed(),
			Transport: r.Stats.Requests,
			Coalesced: r.Stats.Coalesced,
			P50:       ms(r.Stats.P50),
			P95:       ms(r.Stats.P95),
			P99:       ms(r.Stats.P99),
		},
		Calls:    make([]JSONCall, len(r.Calls)),
		Duration: ms(r.Duration),
		Time:     time.Now().Format(time.RFC3339),
	}

	for i, c := range r.Calls {
		call := JSONCall{
			Index:    c.Index,
			Status:   c.Status,
			Data:     c.Data,
			Duration: ms(c.Duration),
		}
		if b, ok := c.Data.([]byte); ok {
			call.Data = string(b)
		}
		if c.Err != nil {
			call.Error = c.Err.Error()
		}
		out.Calls[i] = call
	}

	f.encode(out)
}

func (f *JSONFormatter) FormatData(label string, data any) {
	f.encode(map[string]any{label: data})
}

func (f *JSONFormatter) FormatError(err error) {
	f.encode(map[string]string{"error": err.Error()})
}

func (f *JSONFormatter) encode(v any) {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}
