package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/extbridge/packages/auth/oauth2"
	"github.com/abdul-hamid-achik/extbridge/packages/core/env"
)

// Config represents the extbridge configuration
type Config struct {
	BaseURL         string            `json:"baseURL,omitempty" yaml:"baseURL,omitempty"`
	Timeout         int               `json:"timeout,omitempty" yaml:"timeout,omitempty"`         // milliseconds
	WaitTimeout     int               `json:"waitTimeout,omitempty" yaml:"waitTimeout,omitempty"` // milliseconds
	Deduplicate     *bool             `json:"deduplicate,omitempty" yaml:"deduplicate,omitempty"`
	RequestType     string            `json:"requestType,omitempty" yaml:"requestType,omitempty"`
	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	ParamNames      map[string]string `json:"paramNames,omitempty" yaml:"paramNames,omitempty"`
	Origin          string            `json:"origin,omitempty" yaml:"origin,omitempty"`
	AuthToken       string            `json:"authToken,omitempty" yaml:"authToken,omitempty"`
	OAuth2          *oauth2.Config    `json:"oauth2,omitempty" yaml:"oauth2,omitempty"` // takes precedence over AuthToken
	AWS             *AWSConfig        `json:"aws,omitempty" yaml:"aws,omitempty"`
	RateLimit       float64           `json:"rateLimit,omitempty" yaml:"rateLimit,omitempty"` // requests per second, 0 disables
	RateBurst       int               `json:"rateBurst,omitempty" yaml:"rateBurst,omitempty"`
	FollowRedirects *bool             `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects    int               `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL     *bool             `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy           string            `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Storage         string            `json:"storage,omitempty" yaml:"storage,omitempty"` // memory or sqlite://path
	Listen          string            `json:"listen,omitempty" yaml:"listen,omitempty"`
	Verbose         *bool             `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor         *bool             `json:"noColor,omitempty" yaml:"noColor,omitempty"`
}

// AWSConfig holds credentials for signing requests with AWS Signature
// Version 4.
type AWSConfig struct {
	AccessKey string `json:"accessKey" yaml:"accessKey"`
	SecretKey string `json:"secretKey" yaml:"secretKey"`
	Region    string `json:"region" yaml:"region"`
	Service   string `json:"service" yaml:"service"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetDeduplicate returns the deduplicate setting, defaulting to false
func (c *Config) GetDeduplicate() bool {
	return getBool(c.Deduplicate, false)
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

func (c *Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Millisecond
}

func (c *Config) WaitTimeoutDuration() time.Duration {
	return time.Duration(c.WaitTimeout) * time.Millisecond
}

// Validate reports settings the client cannot work with.
func (c *Config) Validate() error {
	switch c.RequestType {
	case "", "json", "stream":
	default:
		return fmt.Errorf("requestType must be json or stream, got %q", c.RequestType)
	}
	if c.Timeout < 0 || c.WaitTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rateLimit must not be negative")
	}
	if c.AWS != nil && (c.AWS.AccessKey == "" || c.AWS.SecretKey == "" || c.AWS.Region == "" || c.AWS.Service == "") {
		return fmt.Errorf("aws requires accessKey, secretKey, region and service")
	}
	if c.OAuth2 != nil {
		return c.OAuth2.Validate()
	}
	return nil
}

// ConfigFilenames contains the possible config file names
var ConfigFilenames = []string{
	".extbridge.json",
	"extbridge.json",
	".extbridge.yaml",
	".extbridge.yml",
}

// LoadConfig loads configuration from the specified path or searches for
// config files in the current directory. EXTBRIDGE_* variables are applied on
// top.
func LoadConfig(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = loadConfigFromFile(path)
	} else {
		cfg, err = FindAndLoadConfig(".")
	}
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	if path := FindConfigFile(dir); path != "" {
		return loadConfigFromFile(path)
	}
	return DefaultConfig(), nil
}

// FindConfigFile returns the first of ConfigFilenames present in dir, or "".
func FindConfigFile(dir string) string {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
	}
	return ""
}

// loadConfigFromFile loads configuration from a specific file
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	interp := env.NewInterpolator()
	config.Headers = interp.ResolveAll(config.Headers)
	config.AuthToken = interp.Resolve(config.AuthToken)
	config.BaseURL = interp.Resolve(config.BaseURL)
	if config.OAuth2 != nil {
		config.OAuth2.ClientSecret = interp.Resolve(config.OAuth2.ClientSecret)
		config.OAuth2.Password = interp.Resolve(config.OAuth2.Password)
	}
	if config.AWS != nil {
		config.AWS.AccessKey = interp.Resolve(config.AWS.AccessKey)
		config.AWS.SecretKey = interp.Resolve(config.AWS.SecretKey)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.WaitTimeout > 0 {
		result.WaitTimeout = other.WaitTimeout
	}
	if other.RequestType != "" {
		result.RequestType = other.RequestType
	}
	if other.Origin != "" {
		result.Origin = other.Origin
	}
	if other.AuthToken != "" {
		result.AuthToken = other.AuthToken
	}
	if other.OAuth2 != nil {
		result.OAuth2 = other.OAuth2
	}
	if other.AWS != nil {
		result.AWS = other.AWS
	}
	if other.RateLimit > 0 {
		result.RateLimit = other.RateLimit
	}
	if other.RateBurst > 0 {
		result.RateBurst = other.RateBurst
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Storage != "" {
		result.Storage = other.Storage
	}
	if other.Listen != "" {
		result.Listen = other.Listen
	}

	// Boolean flags - only override if explicitly set in other config
	if other.Deduplicate != nil {
		result.Deduplicate = other.Deduplicate
	}
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range other.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}
	if len(other.ParamNames) > 0 {
		names := make(map[string]string, len(result.ParamNames)+len(other.ParamNames))
		for k, v := range result.ParamNames {
			names[k] = v
		}
		for k, v := range other.ParamNames {
			names[k] = v
		}
		result.ParamNames = names
	}

	return &result
}

// SaveConfig saves the configuration to a file
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
