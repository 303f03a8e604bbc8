package logging

import (
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/eugenenazirov/garage-discordbot/internal/resolver"
)

// Settings describes a logger. It is usually read from a YAML document whose
// values may carry @env, @format and @math tokens.
type Settings struct {
	Level         string            `yaml:"level"`
	Encoding      string            `yaml:"encoding"`
	TimeFormat    string            `yaml:"time_format"`
	Keys          Keys              `yaml:"keys"`
	Outputs       map[string]string `yaml:"outputs"`
	Sampling      *Sampling         `yaml:"sampling"`
	InitialFields map[string]any    `yaml:"initial_fields"`
}

// Keys names the fields of each JSON log entry.
type Keys struct {
	Message    string `yaml:"message"`
	Timestamp  string `yaml:"timestamp"`
	Level      string `yaml:"level"`
	Logger     string `yaml:"logger"`
	Caller     string `yaml:"caller"`
	Stacktrace string `yaml:"stacktrace"`
}

// Sampling caps repeated entries per second. Zero values disable sampling.
type Sampling struct {
	Initial    int `yaml:"initial"`
	Thereafter int `yaml:"thereafter"`
}

// Default returns production JSON settings writing to stdout.
func Default() Settings {
	return Settings{
		Level:      "info",
		Encoding:   "json",
		TimeFormat: "iso8601",
		Keys: Keys{
			Message:    "msg",
			Timestamp:  "timestamp",
			Level:      "level",
			Logger:     "logger",
			Caller:     "caller",
			Stacktrace: "stacktrace",
		},
		Outputs:  map[string]string{"console": "stdout"},
		Sampling: &Sampling{Initial: 100, Thereafter: 100},
	}
}

// LoadSettings reads a logging document, resolves its tokens and fills
// anything it leaves out from Default.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read logging config: %w", err)
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("parse logging config: %w", err)
	}

	doc, err := resolver.Resolve(raw)
	if err != nil {
		return Settings{}, fmt.Errorf("resolve logging config: %w", err)
	}

	resolved, err := yaml.Marshal(doc)
	if err != nil {
		return Settings{}, fmt.Errorf("encode logging config: %w", err)
	}

	var s Settings
	if err := yaml.Unmarshal(resolved, &s); err != nil {
		return Settings{}, fmt.Errorf("decode logging config: %w", err)
	}
	return s.withDefaults(), nil
}

// FromFile builds a logger from the document at path.
func FromFile(path string) (*zap.Logger, error) {
	s, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}
	return New(s)
}

// New creates a structured logger from s.
func New(s Settings) (*zap.Logger, error) {
	s = s.withDefaults()

	level, err := zap.ParseAtomicLevel(normalizeLevel(s.Level))
	if err != nil {
		return nil, fmt.Errorf("parse level: %w", err)
	}

	var encodeTime zapcore.TimeEncoder
	if err := encodeTime.UnmarshalText([]byte(s.TimeFormat)); err != nil {
		return nil, fmt.Errorf("parse time format: %w", err)
	}

	outputs, err := outputPaths(s.Outputs)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Encoding = s.Encoding
	cfg.EncoderConfig.MessageKey = s.Keys.Message
	cfg.EncoderConfig.TimeKey = s.Keys.Timestamp
	cfg.EncoderConfig.LevelKey = s.Keys.Level
	cfg.EncoderConfig.NameKey = s.Keys.Logger
	cfg.EncoderConfig.CallerKey = s.Keys.Caller
	cfg.EncoderConfig.StacktraceKey = s.Keys.Stacktrace
	cfg.EncoderConfig.EncodeTime = encodeTime
	cfg.DisableStacktrace = false
	cfg.OutputPaths = outputs
	cfg.InitialFields = s.InitialFields
	cfg.Sampling = nil
	if s.Sampling != nil && s.Sampling.Initial > 0 {
		cfg.Sampling = &zap.SamplingConfig{
			Initial:    s.Sampling.Initial,
			Thereafter: s.Sampling.Thereafter,
		}
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

func (s Settings) withDefaults() Settings {
	def := Default()
	if strings.TrimSpace(s.Level) == "" {
		s.Level = def.Level
	}
	if strings.TrimSpace(s.Encoding) == "" {
		s.Encoding = def.Encoding
	}
	if strings.TrimSpace(s.TimeFormat) == "" {
		s.TimeFormat = def.TimeFormat
	}
	keys := []struct {
		field    *string
		fallback string
	}{
		{&s.Keys.Message, def.Keys.Message},
		{&s.Keys.Timestamp, def.Keys.Timestamp},
		{&s.Keys.Level, def.Keys.Level},
		{&s.Keys.Logger, def.Keys.Logger},
		{&s.Keys.Caller, def.Keys.Caller},
		{&s.Keys.Stacktrace, def.Keys.Stacktrace},
	}
	for _, k := range keys {
		if strings.TrimSpace(*k.field) == "" {
			*k.field = k.fallback
		}
	}
	if s.Outputs == nil {
		s.Outputs = def.Outputs
	}
	if s.Sampling == nil {
		s.Sampling = def.Sampling
	}
	return s
}

// outputPaths turns named outputs into zap sink URLs, skipping empty entries.
// Parent directories of file outputs are created.
func outputPaths(outputs map[string]string) ([]string, error) {
	var paths []string
	for _, name := range slices.Sorted(maps.Keys(outputs)) {
		path := strings.TrimSpace(outputs[name])
		if path == "" {
			continue
		}
		switch path {
		case "stdout", "stderr":
		default:
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("output %s: %w", name, err)
				}
			}
		}
		if !slices.Contains(paths, path) {
			paths = append(paths, path)
		}
	}
	if len(paths) == 0 {
		paths = []string{"stdout"}
	}
	return paths, nil
}

// normalizeLevel lowercases level and maps the warning and critical aliases.
func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "warning":
		return "warn"
	case "critical":
		return "fatal"
	default:
		return strings.ToLower(strings.TrimSpace(level))
	}
}
