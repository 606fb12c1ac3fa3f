package config

// Config is the top-level daemon configuration.
type Config struct {
	DataDir     string        `mapstructure:"data_dir" json:"data_dir"`
	CatalogPath string        `mapstructure:"catalog_path" json:"catalog_path"`
	StorePath   string        `mapstructure:"store_path" json:"store_path"`
	Logging     LoggingConfig `mapstructure:"logging" json:"logging"`
	Gateway     GatewayConfig `mapstructure:"gateway" json:"gateway"`
	Defaults    DefaultsConfig `mapstructure:"defaults" json:"defaults"`
	Reaper      ReaperConfig  `mapstructure:"reaper" json:"reaper"`
	Browser     BrowserConfig `mapstructure:"browser" json:"browser"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`
	File   string `mapstructure:"file" json:"file"`
	Pretty bool   `mapstructure:"pretty" json:"pretty"`
}

// GatewayConfig controls the WebSocket/HTTP gateway.
type GatewayConfig struct {
	Enabled      bool   `mapstructure:"enabled" json:"enabled"`
	Port         int    `mapstructure:"port" json:"port"`
	SharedSecret string `mapstructure:"shared_secret" json:"shared_secret"`
}

// DefaultsConfig holds fallback timeouts applied to tools that do not
// configure their own.
type DefaultsConfig struct {
	InitTimeoutMS    int `mapstructure:"init_timeout_ms" json:"init_timeout_ms"`
	CommandTimeoutMS int `mapstructure:"command_timeout_ms" json:"command_timeout_ms"`
}

// ReaperConfig controls idle session cleanup.
type ReaperConfig struct {
	Schedule       string `mapstructure:"schedule" json:"schedule"`
	MaxIdleMinutes int    `mapstructure:"max_idle_minutes" json:"max_idle_minutes"`
}

// BrowserConfig controls the embedded browser tool.
type BrowserConfig struct {
	Enabled            bool     `mapstructure:"enabled" json:"enabled"`
	Headless           bool     `mapstructure:"headless" json:"headless"`
	NoSandbox          bool     `mapstructure:"no_sandbox" json:"no_sandbox"`
	ChromePath         string   `mapstructure:"chrome_path" json:"chrome_path"`
	AllowFileURLs      bool     `mapstructure:"allow_file_urls" json:"allow_file_urls"`
	AllowLocalhostURLs bool     `mapstructure:"allow_localhost_urls" json:"allow_localhost_urls"`
	AllowedDomains     []string `mapstructure:"allowed_domains" json:"allowed_domains"`
	BlockedDomains     []string `mapstructure:"blocked_domains" json:"blocked_domains"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Gateway: GatewayConfig{
			Enabled: true,
			Port:    8765,
		},
		Defaults: DefaultsConfig{
			InitTimeoutMS:    10000,
			CommandTimeoutMS: 30000,
		},
		Reaper: ReaperConfig{
			Schedule:       "@every 1m",
			MaxIdleMinutes: 30,
		},
		Browser: BrowserConfig{
			Headless:           true,
			AllowLocalhostURLs: true,
		},
	}
}
