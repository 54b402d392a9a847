package config

import (
	"fmt"
	"strconv"

	"github.com/mstoykov/envconfig"
)

// envOverrides lists the settings that can come from the environment. Empty
// values leave the file configuration untouched.
type envOverrides struct {
	BaseURL     string  `envconfig:"EXTBRIDGE_BASE_URL"`
	AuthToken   string  `envconfig:"EXTBRIDGE_AUTH_TOKEN"`
	Timeout     int     `envconfig:"EXTBRIDGE_TIMEOUT"`
	WaitTimeout int     `envconfig:"EXTBRIDGE_WAIT_TIMEOUT"`
	Deduplicate string  `envconfig:"EXTBRIDGE_DEDUPLICATE"`
	RateLimit   float64 `envconfig:"EXTBRIDGE_RATE_LIMIT"`
	Storage     string  `envconfig:"EXTBRIDGE_STORAGE"`
	Listen      string  `envconfig:"EXTBRIDGE_LISTEN"`
}

// ApplyEnv overrides c with EXTBRIDGE_* variables found through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var o envOverrides
	if err := envconfig.Process("", &o, lookup); err != nil {
		return fmt.Errorf("reading environment: %w", err)
	}

	var dedupe *bool
	if o.Deduplicate != "" {
		b, err := strconv.ParseBool(o.Deduplicate)
		if err != nil {
			return fmt.Errorf("EXTBRIDGE_DEDUPLICATE: %w", err)
		}
		dedupe = &b
	}

	*c = *c.Merge(&Config{
		BaseURL:     o.BaseURL,
		AuthToken:   o.AuthToken,
		Timeout:     o.Timeout,
		WaitTimeout: o.WaitTimeout,
		Deduplicate: dedupe,
		RateLimit:   o.RateLimit,
		Storage:     o.Storage,
		Listen:      o.Listen,
	})
	return nil
}
