package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/garage-discordbot/internal/resolver"
)

const (
	defaultAPIPort        = 8080
	defaultLogConfigFile  = "conf/logger.yaml"
	defaultRateLimitRPS   = 5.0
	defaultRateLimitBurst = 10
	defaultReplyRate      = 1.0
	defaultReplyBurst     = 5
)

// Config aggregates runtime configuration resolved from multiple sources.
// Precedence: CLI flags > YAML config > Environment variables > Defaults
type Config struct {
	BotToken             string
	APIHost              string
	APIPort              int
	LogConfigFile        string
	ShutdownGracePeriod  time.Duration
	ReadHeaderTimeout    time.Duration
	WriteTimeout         time.Duration
	IdleTimeout          time.Duration
	EnableRequestLogging bool
	RateLimitRPS         float64
	RateLimitBurst       int
	ReplyRateLimit       float64
	ReplyBurst           int
}

// Addr is the listen address of the status API.
func (c Config) Addr() string {
	return net.JoinHostPort(c.APIHost, strconv.Itoa(c.APIPort))
}

// yamlConfig represents the YAML configuration file structure after token
// resolution. Scalars are decoded as text because a token may resolve to
// either a number or a string.
type yamlConfig struct {
	BotToken            string        `yaml:"bot_token"`
	LogConfig           string        `yaml:"log_config"`
	ShutdownGracePeriod string        `yaml:"shutdown_grace_period"`
	API                 yamlAPI       `yaml:"api"`
	Replies             yamlRateLimit `yaml:"replies"`
}

type yamlAPI struct {
	Host                 string        `yaml:"host"`
	Port                 string        `yaml:"port"`
	ReadHeaderTimeout    string        `yaml:"read_header_timeout"`
	WriteTimeout         string        `yaml:"write_timeout"`
	IdleTimeout          string        `yaml:"idle_timeout"`
	EnableRequestLogging string        `yaml:"enable_request_logging"`
	RateLimit            yamlRateLimit `yaml:"rate_limit"`
}

// yamlRateLimit represents a rate limit section in YAML.
type yamlRateLimit struct {
	RPS   string `yaml:"rps"`
	Burst string `yaml:"burst"`
}

// CLIOverrides holds command-line flag overrides.
type CLIOverrides struct {
	ConfigFile        string
	EnvFile           string
	LogConfigFile     *string
	Host              *string
	Port              *string
	RateLimitRPS      *float64
	RateLimitBurst    *int
	AllowMissingToken bool
}

// Load extracts configuration from multiple sources with precedence:
// CLI flags > YAML config > Environment variables > Defaults
func Load(overrides *CLIOverrides) (Config, error) {
	cfg := defaultConfig()

	if overrides != nil {
		if err := LoadDotEnv(overrides.EnvFile); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnvConfig(&cfg); err != nil {
		return Config{}, err
	}

	if overrides != nil && overrides.ConfigFile != "" {
		yamlCfg, err := loadFromFile(overrides.ConfigFile)
		if err != nil {
			return Config{}, fmt.Errorf("load YAML config: %w", err)
		}
		if err := applyYAMLConfig(&cfg, yamlCfg); err != nil {
			return Config{}, fmt.Errorf("apply YAML config: %w", err)
		}
	}

	if overrides != nil {
		if err := applyCLIOverrides(&cfg, overrides); err != nil {
			return Config{}, err
		}
	}

	allowMissingToken := overrides != nil && overrides.AllowMissingToken
	if err := validateConfig(cfg, allowMissingToken); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	return Config{
		APIPort:              defaultAPIPort,
		LogConfigFile:        defaultLogConfigFile,
		ShutdownGracePeriod:  10 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		WriteTimeout:         15 * time.Second,
		IdleTimeout:          60 * time.Second,
		EnableRequestLogging: true,
		RateLimitRPS:         defaultRateLimitRPS,
		RateLimitBurst:       defaultRateLimitBurst,
		ReplyRateLimit:       defaultReplyRate,
		ReplyBurst:           defaultReplyBurst,
	}
}

// ReadDocument reads a YAML file and resolves its tokens.
func ReadDocument(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	resolved, err := resolver.Resolve(raw)
	if err != nil {
		return nil, fmt.Errorf("resolve tokens: %w", err)
	}
	return resolved, nil
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(path string) (*yamlConfig, error) {
	doc, err := ReadDocument(path)
	if err != nil {
		return nil, err
	}

	var yamlCfg yamlConfig
	if err := Decode(doc, &yamlCfg); err != nil {
		return nil, err
	}
	return &yamlCfg, nil
}

// Decode copies a resolved document into out using its yaml tags.
func Decode(doc map[string]any, out any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode resolved document: %w", err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode resolved document: %w", err)
	}
	return nil
}

// applyYAMLConfig applies YAML configuration to the Config struct.
func applyYAMLConfig(cfg *Config, yamlCfg *yamlConfig) error {
	if v := strings.TrimSpace(yamlCfg.BotToken); v != "" {
		cfg.BotToken = v
	}

	if v := strings.TrimSpace(yamlCfg.LogConfig); v != "" {
		cfg.LogConfigFile = v
	}

	if v := strings.TrimSpace(yamlCfg.API.Host); v != "" {
		cfg.APIHost = v
	}

	if v := strings.TrimSpace(yamlCfg.API.Port); v != "" {
		port, err := ParsePort(v)
		if err != nil {
			return fmt.Errorf("api.port: %w", err)
		}
		cfg.APIPort = port
	}

	durations := []struct {
		key   string
		raw   string
		field *time.Duration
	}{
		{"shutdown_grace_period", yamlCfg.ShutdownGracePeriod, &cfg.ShutdownGracePeriod},
		{"api.read_header_timeout", yamlCfg.API.ReadHeaderTimeout, &cfg.ReadHeaderTimeout},
		{"api.write_timeout", yamlCfg.API.WriteTimeout, &cfg.WriteTimeout},
		{"api.idle_timeout", yamlCfg.API.IdleTimeout, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		if strings.TrimSpace(d.raw) == "" {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.field = parsed
	}

	if v := strings.TrimSpace(yamlCfg.API.EnableRequestLogging); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("api.enable_request_logging: %w", err)
		}
		cfg.EnableRequestLogging = enabled
	}

	if err := applyRateLimit(yamlCfg.API.RateLimit, &cfg.RateLimitRPS, &cfg.RateLimitBurst); err != nil {
		return fmt.Errorf("api.rate_limit: %w", err)
	}
	if err := applyRateLimit(yamlCfg.Replies, &cfg.ReplyRateLimit, &cfg.ReplyBurst); err != nil {
		return fmt.Errorf("replies: %w", err)
	}

	return nil
}

func applyRateLimit(section yamlRateLimit, rps *float64, burst *int) error {
	if v := strings.TrimSpace(section.RPS); v != "" {
		value, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("rps: %w", err)
		}
		*rps = value
	}
	if v := strings.TrimSpace(section.Burst); v != "" {
		value, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("burst: %w", err)
		}
		*burst = value
	}
	return nil
}

// applyEnvConfig applies environment variable configuration.
func applyEnvConfig(cfg *Config) error {
	raw, err := parseEnv()
	if err != nil {
		return err
	}

	if token := strings.TrimSpace(raw.BotToken); token != "" {
		cfg.BotToken = token
	}

	if host := strings.TrimSpace(raw.APIHost); host != "" {
		cfg.APIHost = host
	}

	if port := strings.TrimSpace(raw.APIPort); port != "" {
		value, err := ParsePort(port)
		if err != nil {
			return fmt.Errorf("API_PORT: %w", err)
		}
		cfg.APIPort = value
	}

	if path := strings.TrimSpace(raw.LogConfigFile); path != "" {
		cfg.LogConfigFile = path
	}

	if rps := strings.TrimSpace(raw.RateLimitRPS); rps != "" {
		if value, err := strconv.ParseFloat(rps, 64); err == nil && value >= 0 {
			cfg.RateLimitRPS = value
		}
	}

	if burst := strings.TrimSpace(raw.RateLimitBurst); burst != "" {
		if value, err := strconv.Atoi(burst); err == nil && value >= 0 {
			cfg.RateLimitBurst = value
		}
	}

	if grace := strings.TrimSpace(raw.ShutdownGracePeriod); grace != "" {
		if d, err := time.ParseDuration(grace); err == nil {
			cfg.ShutdownGracePeriod = d
		}
	}

	return nil
}

// applyCLIOverrides applies command-line flag overrides.
func applyCLIOverrides(cfg *Config, overrides *CLIOverrides) error {
	if overrides.LogConfigFile != nil && *overrides.LogConfigFile != "" {
		cfg.LogConfigFile = *overrides.LogConfigFile
	}

	if overrides.Host != nil && *overrides.Host != "" {
		cfg.APIHost = *overrides.Host
	}

	if overrides.Port != nil && *overrides.Port != "" {
		port, err := ParsePort(*overrides.Port)
		if err != nil {
			return fmt.Errorf("parse port flag: %w", err)
		}
		cfg.APIPort = port
	}

	if overrides.RateLimitRPS != nil && *overrides.RateLimitRPS >= 0 {
		cfg.RateLimitRPS = *overrides.RateLimitRPS
	}

	if overrides.RateLimitBurst != nil && *overrides.RateLimitBurst >= 0 {
		cfg.RateLimitBurst = *overrides.RateLimitBurst
	}

	return nil
}

// validateConfig validates the final configuration.
func validateConfig(cfg Config, allowMissingToken bool) error {
	if cfg.BotToken == "" && !allowMissingToken {
		return ErrMissingBotToken
	}
	if _, err := ValidatePort(cfg.APIPort); err != nil {
		return err
	}
	if cfg.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must be >= 0")
	}
	if cfg.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_BURST must be >= 0")
	}
	if cfg.ReplyRateLimit < 0 || cfg.ReplyBurst < 0 {
		return fmt.Errorf("reply rate limit must be >= 0")
	}
	return nil
}
