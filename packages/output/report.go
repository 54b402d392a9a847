package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/extbridge/packages/metrics"
)

// Call is the outcome of one logical request in a fetch run.
type Call struct {
	Index    int
	Status   int
	Data     any
	Err      error
	Duration time.Duration
}

// Report describes a fetch run: N concurrent logical requests against one URL.
type Report struct {
	Method      string
	URL         string
	Deduplicate bool
	Calls       []Call
	Duration    time.Duration
	Stats       metrics.Summary
}

// Failed returns the number of calls that ended in an error.
func (r *Report) Failed() int {
	n := 0
	for _, c := range r.Calls {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// Formatter renders reports and errors.
type Formatter interface {
	FormatReport(r *Report)
	FormatData(label string, data any)
	FormatError(err error)
}

// New returns the formatter for name, "console" or "json", writing to w.
// opts only apply to the console formatter.
func New(name string, w io.Writer, opts ...ConsoleOption) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "console":
		return NewConsoleFormatter(append([]ConsoleOption{WithWriter(w)}, opts...)...), nil
	case "json":
		return NewJSONFormatter(JSONWithWriter(w)), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", name)
	}
}
