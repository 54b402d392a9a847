package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

// formatValue formats a value for display, summarizing large values
func formatValue(v any, maxLen int) string {
	var str string
	switch val := v.(type) {
	case nil:
		return "null"
	case []byte:
		return fmt.Sprintf("[%d bytes]", len(val))
	case string:
		str = val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			str = fmt.Sprintf("%v", val)
		} else {
			str = string(b)
		}
	}
	if maxLen > 0 && len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatReport(r *Report) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	mode := "independent"
	if r.Deduplicate {
		mode = "deduplicated"
	}
	fmt.Fprintf(f.writer, "\n%s %s\n\n", bold(r.Method+" "+r.URL), cyan("("+mode+")"))

	for _, c := range r.Calls {
		if c.Err != nil {
			fmt.Fprintf(f.writer, "  %s #%d %s\n", red("✗"), c.Index, red(fmt.Sprintf("(%v)", c.Err)))
			continue
		}

		fmt.Fprintf(f.writer, "  %s #%d %d %s\n", green("✓"), c.Index, c.Status, cyan(fmt.Sprintf("(%dms)", c.Duration.Milliseconds())))
		if f.verbose {
			fmt.Fprintf(f.writer, "    %s\n", formatValue(c.Data, 200))
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Calls:     ")
	if ok := len(r.Calls) - r.Failed(); ok > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d ok", ok)))
	}
	if failed := r.Failed(); failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(r.Calls))
	fmt.Fprintf(f.writer, "Transport: %d calls, %d coalesced\n", r.Stats.Requests, r.Stats.Coalesced)
	if r.Stats.Requests > 0 {
		fmt.Fprintf(f.writer, "Latency:   p50=%s p95=%s p99=%s max=%s\n",
			r.Stats.P50, r.Stats.P95, r.Stats.P99, r.Stats.Max)
	}
	fmt.Fprintf(f.writer, "Time:      %dms\n", r.Duration.Milliseconds())
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatData(label string, data any) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold(label+":"), formatValue(data, 0))
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("extbridge"), version)
}
