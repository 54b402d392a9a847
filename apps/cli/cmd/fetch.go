package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/abdul-hamid-achik/extbridge/packages/core/config"
	"github.com/abdul-hamid-achik/extbridge/packages/http"
	"github.com/abdul-hamid-achik/extbridge/packages/metrics"
	"github.com/abdul-hamid-achik/extbridge/packages/output"
	"github.com/abdul-hamid-achik/extbridge/packages/params"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <endpoint>",
	Short: "Issue concurrent requests through the de-duplicating client",
	Long: `Issue one or more concurrent logical requests for the same endpoint.

With --dedupe the requests share a single transport call and every caller
receives its own copy of the outcome.

Examples:
  extbridge fetch https://api.example.com/me
  extbridge fetch /counter --base-url http://localhost:3000 -n 10 --dedupe
  extbridge fetch /search -p q=shoes -p tags[]=new -p tags[]=sale
  extbridge fetch /me -H "Authorization: Bearer token" --select user.name
  extbridge fetch /items -X POST -d '{"name":"x"}'`,
	Args: cobra.ExactArgs(1),
	RunE: fetchCommand,
}

var (
	fetchCountFlag       int
	fetchDedupeFlag      bool
	fetchMethodFlag      string
	fetchTypeFlag        string
	fetchParamFlags      []string
	fetchHeaderFlags     []string
	fetchDataFlag        string
	fetchSelectFlag      string
	fetchBaseURLFlag     string
	fetchWaitTimeoutFlag time.Duration
	fetchInsecureFlag    bool
)

func init() {
	fetchCmd.Flags().IntVarP(&fetchCountFlag, "count", "n", 1, "Number of concurrent logical requests")
	fetchCmd.Flags().BoolVar(&fetchDedupeFlag, "dedupe", false, "Collapse identical concurrent requests into one transport call")
	fetchCmd.Flags().StringVarP(&fetchMethodFlag, "method", "X", "GET", "HTTP method")
	fetchCmd.Flags().StringVarP(&fetchTypeFlag, "type", "t", "", "Response handling: json or stream")
	fetchCmd.Flags().StringArrayVarP(&fetchParamFlags, "param", "p", nil, "Query parameter key=value; key[]=value builds an array (repeatable)")
	fetchCmd.Flags().StringArrayVarP(&fetchHeaderFlags, "header", "H", nil, "Request header \"Name: value\" (repeatable)")
	fetchCmd.Flags().StringVarP(&fetchDataFlag, "data", "d", "", "Request body (JSON)")
	fetchCmd.Flags().StringVarP(&fetchSelectFlag, "select", "s", "", "gjson path to extract from each JSON result")
	fetchCmd.Flags().StringVar(&fetchBaseURLFlag, "base-url", "", "Base URL for relative endpoints")
	fetchCmd.Flags().DurationVar(&fetchWaitTimeoutFlag, "wait-timeout", 0, "How long a de-duplicated request waits for the owner")
	fetchCmd.Flags().BoolVarP(&fetchInsecureFlag, "insecure", "k", false, "Disable SSL certificate validation")
}

func fetchCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if fetchBaseURLFlag != "" {
		cfg.BaseURL = fetchBaseURLFlag
	}
	if fetchTypeFlag != "" {
		cfg.RequestType = fetchTypeFlag
	}
	if fetchInsecureFlag {
		cfg.ValidateSSL = config.BoolPtr(false)
	}
	if err := cfg.Validate(); err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if fetchCountFlag < 1 {
		return withExitCode(ExitUsageError, fmt.Errorf("--count must be at least 1"))
	}

	query, err := parseParams(fetchParamFlags)
	if err != nil {
		return err
	}
	query = params.Rename(query, cfg.ParamNames)
	headers, err := parsePairs(fetchHeaderFlags, ":")
	if err != nil {
		return err
	}

	formatter, err := newFormatter(cfg)
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	collector := metrics.NewCollector(nil)
	client := http.NewClient(clientOptions(cfg, logger, collector)...)

	opts := &http.RequestOptions{
		Method:      strings.ToUpper(fetchMethodFlag),
		QueryParams: query,
		Headers:     headers,
		Deduplicate: fetchDedupeFlag,
		WaitTimeout: fetchWaitTimeoutFlag,
	}
	if fetchDataFlag != "" {
		if err := setJSONBody(opts, fetchDataFlag); err != nil {
			return withExitCode(ExitUsageError, err)
		}
	}

	// Set up signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(os.Stderr, "\nReceived interrupt, cancelling requests...")
			cancel()
		case <-ctx.Done():
		}
	}()

	endpoint := args[0]
	report := &output.Report{
		Method:      opts.Method,
		URL:         endpoint,
		Deduplicate: fetchDedupeFlag || cfg.GetDeduplicate(),
		Calls:       make([]output.Call, fetchCountFlag),
	}

	start := time.Now()
	var g errgroup.Group
	for i := range fetchCountFlag {
		g.Go(func() error {
			callStart := time.Now()
			res, err := client.Request(ctx, endpoint, opts)
			call := output.Call{Index: i, Err: err, Duration: time.Since(callStart)}
			if err == nil {
				call.Status = res.Status
				call.Data = selectData(res.Data, fetchSelectFlag)
			}
			report.Calls[i] = call
			return nil
		})
	}
	_ = g.Wait()
	report.Duration = time.Since(start)
	report.Stats = collector.Summary()

	formatter.FormatReport(report)

	if failed := report.Failed(); failed > 0 {
		return withExitCode(ExitRequestFailure, fmt.Errorf("%d of %d requests failed", failed, len(report.Calls)))
	}
	return nil
}

// selectData extracts path from a decoded JSON value. Stream results and an
// empty path are returned unchanged.
func selectData(data any, path string) any {
	if path == "" {
		return data
	}
	if _, ok := data.([]byte); ok {
		return data
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return data
	}
	return gjson.GetBytes(raw, path).Value()
}

// setJSONBody attaches data as the request body and marks it as JSON unless
// the caller already chose a Content-Type.
func setJSONBody(opts *http.RequestOptions, data string) error {
	if !json.Valid([]byte(data)) {
		return fmt.Errorf("--data is not valid JSON")
	}
	opts.Body = []byte(data)
	if opts.Headers == nil {
		opts.Headers = make(map[string]string)
	}
	if !http.HasHeader(opts.Headers, "Content-Type") {
		opts.Headers["Content-Type"] = "application/json"
	}
	return nil
}
