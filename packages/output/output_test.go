package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/extbridge/packages/metrics"
)

func sampleReport() *Report {
	return &Report{
		Method:      "GET",
		URL:         "http://localhost/counter",
		Deduplicate: true,
		Calls: []Call{
			{Index: 0, Status: 200, Data: map[string]any{"count": 1.0}, Duration: 12 * time.Millisecond},
			{Index: 1, Err: errors.New("timed out")},
		},
		Duration: 15 * time.Millisecond,
		Stats:    metrics.Summary{Requests: 1, Coalesced: 1, P50: 12 * time.Millisecond},
	}
}

func TestConsoleFormatter_FormatReport(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithVerbose(true), WithNoColor(true))

	f.FormatReport(sampleReport())
	out := buf.String()

	assert.Contains(t, out, "GET http://localhost/counter (deduplicated)")
	assert.Contains(t, out, "✓ #0 200 (12ms)")
	assert.Contains(t, out, `{"count":1}`)
	assert.Contains(t, out, "✗ #1 (timed out)")
	assert.Contains(t, out, "1 ok, 1 failed, 2 total")
	assert.Contains(t, out, "Transport: 1 calls, 1 coalesced")
}

func TestConsoleFormatter_FormatDataAndError(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatData("counter", 3.0)
	f.FormatError(errors.New("boom"))

	assert.Equal(t, "counter: 3\nError: boom\n", buf.String())
}

func TestJSONFormatter_FormatReport(t *testing.T) {
	var buf bytes.Buffer
	f, err := New("json", &buf)
	require.NoError(t, err)

	f.FormatReport(sampleReport())

	var out JSONReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, 2, out.Summary.Total)
	assert.Equal(t, 1, out.Summary.Failed)
	assert.Equal(t, int64(1), out.Summary.Coalesced)
	assert.Equal(t, 12.0, out.Summary.P50)
	require.Len(t, out.Calls, 2)
	assert.Equal(t, "timed out", out.Calls[1].Error)
}

func TestNew(t *testing.T) {
	_, err := New("console", &bytes.Buffer{})
	assert.NoError(t, err)
	_, err = New("junit", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "null", formatValue(nil, 10))
	assert.Equal(t, "[3 bytes]", formatValue([]byte("abc"), 10))
	assert.Equal(t, "abcde...", formatValue("abcdefgh", 5))
	assert.Equal(t, `[1,2]`, formatValue([]any{1, 2}, 0))
}
