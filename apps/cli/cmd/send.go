package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/extbridge/packages/http"
	"github.com/abdul-hamid-achik/extbridge/packages/relay"
)

var sendCmd = &cobra.Command{
	Use:   "send <type> [subType] [data]",
	Short: "Send a message to a running relay",
	Long: `Send a message to a relay started with "extbridge serve" and print
the reply. data is parsed as JSON when possible and sent as a string otherwise.

Examples:
  extbridge send counter get
  extbridge send counter update 42
  extbridge send fetch get '{"endpoint":"https://api.example.com/me","dedupe":true}'`,
	Args: cobra.RangeArgs(1, 3),
	RunE: sendCommand,
}

var sendToFlag string

func init() {
	sendCmd.Flags().StringVar(&sendToFlag, "to", "", "Relay URL (default http://<listen>/message)")
}

func sendCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	formatter, err := newFormatter(cfg)
	if err != nil {
		return err
	}

	endpoint := sendToFlag
	if endpoint == "" {
		endpoint = "http://" + cfg.Listen + "/message"
	}

	var subType string
	var data any
	if len(args) > 1 {
		subType = args[1]
	}
	if len(args) > 2 {
		if json.Valid([]byte(args[2])) {
			data = json.RawMessage(args[2])
		} else {
			data = args[2]
		}
	}

	logger := newLogger(cfg)
	client := http.NewClient(
		http.WithTimeout(cfg.TimeoutDuration()),
		http.WithLogger(logger),
	)
	sender := relay.NewSender(client, endpoint)

	reply, err := sender.SendType(cmd.Context(), args[0], subType, data)
	if err != nil {
		var relayErr *relay.RelayError
		if errors.As(err, &relayErr) {
			return withExitCode(ExitRequestFailure, err)
		}
		return withExitCode(ExitNetworkError, fmt.Errorf("relay at %s: %w", endpoint, err))
	}

	formatter.FormatData(args[0], reply)
	return nil
}
