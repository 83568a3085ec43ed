// videoquery/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	SearchDuckDuckGo = "duckduckgo"
	SearchGoogle     = "google"
	SearchNone       = "none"
)

type Config struct {
	AgentProvider    string        `mapstructure:"AGENT_PROVIDER"`
	Model            string        `mapstructure:"MODEL"`
	GoogleAPIKey     string        `mapstructure:"GOOGLE_API_KEY"`
	OpenAIAPIKey     string        `mapstructure:"OPENAI_API_KEY"`
	OpenAIBaseURL    string        `mapstructure:"OPENAI_BASE_URL"`
	GeminiBaseURL    string        `mapstructure:"GEMINI_BASE_URL"`
	SearchProvider   string        `mapstructure:"SEARCH_PROVIDER"`
	SearchMaxResults int           `mapstructure:"SEARCH_MAX_RESULTS"`
	SearchRate       float64       `mapstructure:"SEARCH_RATE"`
	MaxToolRounds    int           `mapstructure:"MAX_TOOL_ROUNDS"`
	PollInterval     time.Duration `mapstructure:"POLL_INTERVAL"`
	PollTimeout      time.Duration `mapstructure:"POLL_TIMEOUT"`
	RequestTimeout   time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MaxInputSize     int64         `mapstructure:"MAX_INPUT_SIZE"`
	MaxConcurrency   int           `mapstructure:"MAX_CONCURRENCY"`
	QueueSize        int           `mapstructure:"QUEUE_SIZE"`
	TaskLifetime     time.Duration `mapstructure:"TASK_LIFETIME"`
	ThrottleCPU      float64       `mapstructure:"THROTTLE_CPU"`
	ThrottleFreeMem  int64         `mapstructure:"THROTTLE_FREEMEM"`
	ThrottleFreeDisk int64         `mapstructure:"THROTTLE_FREEDISK"`
	AuthEnable       bool          `mapstructure:"AUTH_ENABLE"`
	AuthKey          string        `mapstructure:"AUTH_KEY"`
	Port             string        `mapstructure:"PORT"`
	TempDir          string        `mapstructure:"TEMP_DIR"`
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
}

// stringToDurationHookFunc is a custom Viper hook for parsing Go's duration strings.
func stringToDurationHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		return time.ParseDuration(data.(string))
	}
}

// stringToByteSizeHookFunc is a custom Viper hook for parsing human-readable size strings.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(
		f reflect.Type,
		t reflect.Type,
		data interface{},
	) (interface{}, error) {
		if f.Kind() != reflect.String || t.Kind() != reflect.Int64 {
			return data, nil
		}

		var size datasize.ByteSize
		if err := size.UnmarshalText([]byte(data.(string))); err != nil {
			// Not a valid size string, let other parsers handle it.
			return data, nil
		}
		return int64(size.Bytes()), nil
	}
}

// Load reads configuration from defaults, an optional .env file, an optional
// YAML config file and VIDEOQUERY_ prefixed environment variables.
func Load() (*Config, error) {
	// A missing .env is the normal case outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	vp := viper.New()

	vp.SetDefault("AGENT_PROVIDER", ProviderGemini)
	vp.SetDefault("MODEL", "")
	vp.SetDefault("GOOGLE_API_KEY", "")
	vp.SetDefault("OPENAI_API_KEY", "")
	vp.SetDefault("OPENAI_BASE_URL", "")
	vp.SetDefault("GEMINI_BASE_URL", "")
	vp.SetDefault("SEARCH_PROVIDER", SearchDuckDuckGo)
	vp.SetDefault("SEARCH_MAX_RESULTS", 5)
	vp.SetDefault("SEARCH_RATE", 1.0)
	vp.SetDefault("MAX_TOOL_ROUNDS", 4)
	vp.SetDefault("POLL_INTERVAL", "1s")
	vp.SetDefault("POLL_TIMEOUT", "10m")
	vp.SetDefault("REQUEST_TIMEOUT", "15m")
	vp.SetDefault("MAX_INPUT_SIZE", "200MB")
	vp.SetDefault("MAX_CONCURRENCY", 1)
	vp.SetDefault("QUEUE_SIZE", 100)
	vp.SetDefault("TASK_LIFETIME", "1h")
	vp.SetDefault("THROTTLE_CPU", 0.0)
	vp.SetDefault("THROTTLE_FREEMEM", "200MB")
	vp.SetDefault("THROTTLE_FREEDISK", "200MB")
	vp.SetDefault("AUTH_ENABLE", false)
	vp.SetDefault("AUTH_KEY", "")
	vp.SetDefault("PORT", "8080")
	vp.SetDefault("TEMP_DIR", "")
	vp.SetDefault("LOG_LEVEL", "info")

	vp.SetConfigName("videoquery_config")
	vp.SetConfigType("yaml")
	vp.AddConfigPath(".")
	vp.AddConfigPath("/etc/videoquery/")

	if err := vp.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	vp.SetEnvPrefix("VIDEOQUERY")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	// Credentials are also accepted under the names the Google and OpenAI SDKs use.
	if err := vp.BindEnv("GOOGLE_API_KEY", "VIDEOQUERY_GOOGLE_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}
	if err := vp.BindEnv("OPENAI_API_KEY", "VIDEOQUERY_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	var cfg Config
	err := vp.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			stringToDurationHookFunc(),
			stringToByteSizeHookFunc(),
		),
	))
	if err != nil {
		return nil, err
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.AgentProvider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch c.AgentProvider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown agent provider %q", c.AgentProvider)
	}
	switch c.SearchProvider {
	case SearchDuckDuckGo, SearchNone:
	case SearchGoogle:
		if c.AgentProvider != ProviderGemini {
			return fmt.Errorf("search provider %q requires the %s agent", SearchGoogle, ProviderGemini)
		}
	default:
		return fmt.Errorf("unknown search provider %q", c.SearchProvider)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	return nil
}

// DefaultModel is the model used when MODEL is unset.
func DefaultModel(provider string) string {
	if provider == ProviderOpenAI {
		return "gpt-4o"
	}
	return "gemini-2.0-flash-exp"
}

// APIKey returns the credential for the configured agent provider.
func (c *Config) APIKey() string {
	if c.AgentProvider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GoogleAPIKey
}
