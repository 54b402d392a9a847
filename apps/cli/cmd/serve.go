package cmd

import (
	"context"
	"errors"
	"fmt"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/extbridge/packages/core/config"
	"github.com/abdul-hamid-achik/extbridge/packages/http"
	"github.com/abdul-hamid-achik/extbridge/packages/metrics"
	"github.com/abdul-hamid-achik/extbridge/packages/relay"
	"github.com/abdul-hamid-achik/extbridge/packages/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background message relay over HTTP",
	Long: `Serve the message relay the extension UI talks to.

Endpoints:
  POST /message   relay a {"type","subType","data"} message
  GET  /metrics   Prometheus metrics
  GET  /healthz   liveness

Message types:
  counter  get | update        read or store the counter
  fetch    get | post | ...    perform a request through the de-duplicating client

Examples:
  extbridge serve
  extbridge serve --listen :8787 --storage sqlite://./extbridge.db
  extbridge serve --watch`,
	Args: cobra.NoArgs,
	RunE: serveCommand,
}

var (
	serveListenFlag  string
	serveStorageFlag string
	serveWatchFlag   bool
)

// ShutdownTimeout bounds how long in-flight messages get to finish.
const ShutdownTimeout = 5 * time.Second

func init() {
	serveCmd.Flags().StringVarP(&serveListenFlag, "listen", "l", "", "Address to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveStorageFlag, "storage", "", "Storage: memory or sqlite://path (default from config)")
	serveCmd.Flags().BoolVarP(&serveWatchFlag, "watch", "w", false, "Reload client settings when the config file changes")
}

func serveCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveListenFlag != "" {
		cfg.Listen = serveListenFlag
	}
	if serveStorageFlag != "" {
		cfg.Storage = serveStorageFlag
	}

	logger := newLogger(cfg)

	store, err := storage.Open(cfg.Storage)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer store.Close()

	collector := metrics.NewCollector(nil)
	fetcher := relay.NewFetchHandler(http.NewClient(clientOptions(cfg, logger, collector)...), logger)
	fetcher.SetParamNames(cfg.ParamNames)

	router := relay.NewRouter(logger)
	router.Register(relay.CounterType, relay.NewCounterHandler(store, logger))
	router.Register(relay.FetchType, fetcher)

	mux := nethttp.NewServeMux()
	mux.Handle("/message", router)
	mux.Handle("/metrics", collector.Handler())
	mux.HandleFunc("/healthz", func(w nethttp.ResponseWriter, _ *nethttp.Request) {
		w.WriteHeader(nethttp.StatusOK)
	})

	server := &nethttp.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
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
			logger.Info("received interrupt, shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	if serveWatchFlag {
		path := configFlag
		if path == "" {
			path = config.FindConfigFile(".")
		}
		if path == "" {
			logger.Warn("no config file found, --watch ignored")
		} else {
			go watchConfig(ctx, path, logger, collector, fetcher)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"listen": cfg.Listen, "storage": cfg.Storage}).Info("relay listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, nethttp.ErrServerClosed) {
			return withExitCode(ExitNetworkError, fmt.Errorf("serving relay: %w", err))
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down relay: %w", err)
	}
	return nil
}

func watchConfig(ctx context.Context, path string, logger *logrus.Logger, collector *metrics.Collector, fetcher *relay.FetchHandler) {
	err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
		if err != nil {
			logger.WithError(err).Warn("config reload failed")
			return
		}
		if cfg.GetVerbose() || verboseFlag {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}
		fetcher.SetClient(http.NewClient(clientOptions(cfg, logger, collector)...))
		fetcher.SetParamNames(cfg.ParamNames)
		logger.WithField("path", path).Info("config reloaded")
	})
	if err != nil {
		logger.WithError(err).Warn("config watch stopped")
	}
}
