// Package config loads the service configuration: built-in defaults, an
// optional YAML file, then RECO_* environment overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables that override configuration keys.
// Nesting uses a double underscore: RECO_DATABASE__DSN -> database.dsn.
const EnvPrefix = "RECO_"

// Config is the top-level configuration, corresponding to reco.yml.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	LLM      LLMConfig      `koanf:"llm"`
	Report   ReportConfig   `koanf:"report"`
}

type ServerConfig struct {
	Addr           string   `koanf:"addr"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

type DatabaseConfig struct {
	Driver        string `koanf:"driver"`
	DSN           string `koanf:"dsn"`
	NotifyChannel string `koanf:"notify_channel"`
}

type SessionConfig struct {
	MessageCap int `koanf:"message_cap"`
}

// ReportConfig controls the HTML reports written for finished check-ins.
// An empty Dir disables them.
type ReportConfig struct {
	Dir string `koanf:"dir"`
}

// LLMConfig names the model used by each component.  The API key is not
// part of the configuration; the OpenAI client reads OPENAI_API_KEY.
type LLMConfig struct {
	ChatModel       string  `koanf:"chat_model"`
	DetectorModel   string  `koanf:"detector_model"`
	SummaryModel    string  `koanf:"summary_model"`
	JudgeModel      string  `koanf:"judge_model"`
	ChatTemperature float32 `koanf:"chat_temperature"`
}

// DefaultConfig returns a Config suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080", AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"}},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "reco.db", NotifyChannel: "summary_ready"},
		Session:  SessionConfig{MessageCap: 50},
		LLM: LLMConfig{
			ChatModel:       "gpt-4o",
			DetectorModel:   "gpt-4o-mini",
			SummaryModel:    "gpt-4o",
			JudgeModel:      "gpt-4o",
			ChatTemperature: 0.7,
		},
	}
}

// Load reads configuration from path if it exists, then overlays RECO_*
// environment variables.  An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid database.driver %q: must be postgres or sqlite", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Session.MessageCap <= 0 {
		return fmt.Errorf("session.message_cap must be positive")
	}
	for key, model := range map[string]string{
		"llm.chat_model":     c.LLM.ChatModel,
		"llm.detector_model": c.LLM.DetectorModel,
		"llm.summary_model":  c.LLM.SummaryModel,
		"llm.judge_model":    c.LLM.JudgeModel,
	} {
		if model == "" {
			return fmt.Errorf("%s is required", key)
		}
	}
	if c.LLM.ChatTemperature < 0 || c.LLM.ChatTemperature > 2 {
		return fmt.Errorf("llm.chat_temperature must be between 0 and 2")
	}
	return nil
}
