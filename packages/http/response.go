package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Outcome is the transport result shared between the owner of a request and
// every waiter. The body has already been read, so an Outcome can be copied
// and handed out any number of times.
type Outcome struct {
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Clone returns a deep copy so that each recipient owns its body and headers.
func (o *Outcome) Clone() *Outcome {
	if o == nil {
		return nil
	}
	body := make([]byte, len(o.Body))
	copy(body, o.Body)
	return &Outcome{
		StatusCode: o.StatusCode,
		Status:     o.Status,
		Headers:    o.Headers.Clone(),
		Body:       body,
		Duration:   o.Duration,
	}
}

func (o *Outcome) BodyString() string {
	return string(o.Body)
}

func (o *Outcome) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(o.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Outcome) Header(key string) string {
	return o.Headers.Get(key)
}

func (o *Outcome) ContentType() string {
	return o.Header("Content-Type")
}

func (o *Outcome) IsJSON() bool {
	return strings.Contains(o.ContentType(), "application/json")
}

func (o *Outcome) IsSuccess() bool {
	return o.StatusCode >= 200 && o.StatusCode < 300
}

func (o *Outcome) DurationMs() int64 {
	return o.Duration.Milliseconds()
}

// Result is what a successful request resolves to. Data holds the decoded
// JSON value for RequestTypeJSON and a []byte for RequestTypeStream.
type Result struct {
	Status int
	Data   any
}

// Bytes returns Data as raw bytes when the request was a stream.
func (r *Result) Bytes() ([]byte, bool) {
	b, ok := r.Data.([]byte)
	return b, ok
}

// Decode re-marshals Data into v. It is a convenience for callers that want
// a typed value out of a JSON result.
func (r *Result) Decode(v any) error {
	if b, ok := r.Data.([]byte); ok {
		return json.Unmarshal(b, v)
	}
	raw, err := json.Marshal(r.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
