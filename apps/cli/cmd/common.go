package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/abdul-hamid-achik/extbridge/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/extbridge/packages/core/config"
	"github.com/abdul-hamid-achik/extbridge/packages/core/env"
	"github.com/abdul-hamid-achik/extbridge/packages/http"
	"github.com/abdul-hamid-achik/extbridge/packages/metrics"
	"github.com/abdul-hamid-achik/extbridge/packages/output"
)

// loadConfig reads .env files, the config file and EXTBRIDGE_* overrides,
// then applies the global flags.
func loadConfig() (*config.Config, error) {
	if err := env.LoadDefaults(""); err != nil {
		return nil, withExitCode(ExitConfigError, err)
	}

	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, withExitCode(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}

	if verboseFlag {
		cfg.Verbose = config.BoolPtr(true)
	}
	if noColorFlag {
		cfg.NoColor = config.BoolPtr(true)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) *logrus.Logger {
	logger := &logrus.Logger{
		Out:       os.Stderr,
		Formatter: &logrus.TextFormatter{DisableColors: cfg.GetNoColor()},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.InfoLevel,
	}
	if cfg.GetVerbose() {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}

func newFormatter(cfg *config.Config) (output.Formatter, error) {
	f, err := output.New(outputFlag, os.Stdout,
		output.WithVerbose(cfg.GetVerbose()),
		output.WithNoColor(cfg.GetNoColor()),
	)
	return f, withExitCode(ExitUsageError, err)
}

func newFormatterOrDefault() output.Formatter {
	f, err := output.New(outputFlag, os.Stderr, output.WithNoColor(noColorFlag))
	if err != nil {
		return output.NewConsoleFormatter(output.WithWriter(os.Stderr))
	}
	return f
}

// clientOptions translates the config into HTTP client options.
func clientOptions(cfg *config.Config, logger logrus.FieldLogger, collector *metrics.Collector) []http.ClientOption {
	opts := []http.ClientOption{
		http.WithTimeout(cfg.TimeoutDuration()),
		http.WithWaitTimeout(cfg.WaitTimeoutDuration()),
		http.WithDeduplicate(cfg.GetDeduplicate()),
		http.WithFollowRedirects(cfg.GetFollowRedirects()),
		http.WithValidateSSL(cfg.GetValidateSSL()),
		http.WithDefaultHeaders(cfg.Headers),
		http.WithLogger(logger),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, http.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RequestType != "" {
		opts = append(opts, http.WithRequestType(http.RequestType(cfg.RequestType)))
	}
	if cfg.Origin != "" {
		opts = append(opts, http.WithOrigin(cfg.Origin))
	}
	if cfg.MaxRedirects > 0 {
		opts = append(opts, http.WithMaxRedirects(cfg.MaxRedirects))
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	switch {
	case cfg.OAuth2 != nil:
		opts = append(opts, http.WithAuthProvider(oauth2.NewProvider(cfg.OAuth2)))
	case cfg.AWS != nil:
		opts = append(opts, http.WithAuthProvider(&http.AWSSigner{
			AccessKey: cfg.AWS.AccessKey,
			SecretKey: cfg.AWS.SecretKey,
			Region:    cfg.AWS.Region,
			Service:   cfg.AWS.Service,
		}))
	case cfg.AuthToken != "":
		opts = append(opts, http.WithAuthProvider(http.StaticAuth(cfg.AuthToken)))
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		opts = append(opts, http.WithRateLimit(cfg.RateLimit, burst))
	}
	if collector != nil {
		opts = append(opts, http.WithQueueObserver(collector), http.WithTransportObserver(collector))
	}
	return opts
}

// parsePairs splits "key=value" or "key: value" flags.
func parsePairs(values []string, sep string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	result := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, sep)
		if !ok || strings.TrimSpace(key) == "" {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("expected key%svalue, got %q", sep, v))
		}
		result[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return result, nil
}

// parseParams turns key=value flags into ordered query params. Repeated
// key[]=value flags collect into one array param at the position of the first.
func parseParams(values []string) (http.Params, error) {
	var params http.Params
	arrays := make(map[string]int)
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, withExitCode(ExitUsageError, fmt.Errorf("expected key=value, got %q", v))
		}
		if base, isArray := strings.CutSuffix(key, "[]"); isArray {
			if i, seen := arrays[base]; seen {
				params[i].Value = append(params[i].Value.([]string), value)
				continue
			}
			arrays[base] = len(params)
			params = params.Add(base, []string{value})
			continue
		}
		params = params.Add(key, value)
	}
	return params, nil
}
