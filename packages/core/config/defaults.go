package config

const (
	DefaultTimeout     = 30000 // 30 seconds
	DefaultWaitTimeout = 5000  // 5 seconds
	DefaultListen      = "127.0.0.1:8787"
)

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeout,
		WaitTimeout:     DefaultWaitTimeout,
		Deduplicate:     BoolPtr(false),
		RequestType:     "json",
		Origin:          "browser-extension",
		FollowRedirects: BoolPtr(true),
		MaxRedirects:    10,
		ValidateSSL:     BoolPtr(true),
		Storage:         "memory",
		Listen:          DefaultListen,
		Verbose:         BoolPtr(false),
		NoColor:         BoolPtr(false),
	}
}
