// Package meshconfig loads the YAML configuration for the meshagent demo
// binary. It is not part of the SDK surface: every internal/mesh* package
// is usable without it by constructing types directly.
package meshconfig

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document for the meshagent binary.
type Config struct {
	Agent         AgentConfig         `yaml:"agent"`
	Adapter       AdapterConfig       `yaml:"adapter"`
	Directory     DirectoryConfig     `yaml:"directory"`
	Scheduler     SchedulerConfig     `yaml:"scheduler"`
	Memory        MemoryConfig        `yaml:"memory"`
	Policy        PolicyConfig        `yaml:"policy"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// AgentConfig identifies the agent this process runs as.
type AgentConfig struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Tags    []string `yaml:"tags"`
}

// AdapterConfig selects and configures the model adapter this agent uses.
type AdapterConfig struct {
	// Provider is one of "openai", "anthropic", "bedrock".
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"api_key"`
	Region   string `yaml:"region"`
}

// DirectoryConfig configures the HTTP mesh directory client.
type DirectoryConfig struct {
	BaseURL          string        `yaml:"base_url"`
	ClientID         string        `yaml:"client_id"`
	ClientSecret     string        `yaml:"client_secret"`
	TokenURL         string        `yaml:"token_url"`
	SigningKey       string        `yaml:"signing_key"`
	IdentityTokenTTL time.Duration `yaml:"identity_token_ttl"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// SchedulerConfig bounds the agent's task scheduler.
type SchedulerConfig struct {
	MaxConcurrency int `yaml:"max_concurrency"`
}

// MemoryConfig configures the memory bus's volatile store and journal.
type MemoryConfig struct {
	VolatileCapacity int    `yaml:"volatile_capacity"`
	JournalDriver    string `yaml:"journal_driver"` // "file", "sqlite", "postgres"
	JournalDSN       string `yaml:"journal_dsn"`
}

// PolicyConfig selects the policy engine backend.
type PolicyConfig struct {
	// Mode is one of "allow_all", "rule_based", "remote".
	Mode      string `yaml:"mode"`
	RemoteURL string `yaml:"remote_url"`
}

// ObservabilityConfig configures logging, metrics, and tracing.
type ObservabilityConfig struct {
	LogLevel        string `yaml:"log_level"`
	LogFormat       string `yaml:"log_format"`
	MetricsPort     int    `yaml:"metrics_port"`
	TracingEndpoint string `yaml:"tracing_endpoint"`
}

// Load reads, expands environment variables in, and parses the YAML
// configuration at path, then applies defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read meshagent config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	decoder := yaml.NewDecoder(strings.NewReader(expanded))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse meshagent config: %w", err)
	}
	if err := decoder.Decode(new(struct{})); err != io.EOF {
		return nil, fmt.Errorf("parse meshagent config: expected a single YAML document")
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Agent.Version == "" {
		cfg.Agent.Version = "0.1.0"
	}
	if cfg.Scheduler.MaxConcurrency <= 0 {
		cfg.Scheduler.MaxConcurrency = 32
	}
	if cfg.Memory.VolatileCapacity <= 0 {
		cfg.Memory.VolatileCapacity = 256
	}
	if cfg.Memory.JournalDriver == "" {
		cfg.Memory.JournalDriver = "file"
	}
	if cfg.Directory.IdentityTokenTTL <= 0 {
		cfg.Directory.IdentityTokenTTL = time.Minute
	}
	if cfg.Directory.HeartbeatInterval <= 0 {
		cfg.Directory.HeartbeatInterval = 10 * time.Second
	}
	if cfg.Policy.Mode == "" {
		cfg.Policy.Mode = "allow_all"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}
	if cfg.Observability.MetricsPort <= 0 {
		cfg.Observability.MetricsPort = 9090
	}
}

// ValidationError reports a configuration value that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("meshagent config: %s: %s", e.Field, e.Reason)
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Agent.Name) == "" {
		return &ValidationError{Field: "agent.name", Reason: "must not be empty"}
	}
	switch cfg.Adapter.Provider {
	case "openai", "anthropic", "bedrock":
	default:
		return &ValidationError{Field: "adapter.provider", Reason: "must be one of openai, anthropic, bedrock"}
	}
	if strings.TrimSpace(cfg.Adapter.Model) == "" {
		return &ValidationError{Field: "adapter.model", Reason: "must not be empty"}
	}
	switch cfg.Policy.Mode {
	case "allow_all", "rule_based", "remote":
	default:
		return &ValidationError{Field: "policy.mode", Reason: "must be one of allow_all, rule_based, remote"}
	}
	if cfg.Policy.Mode == "remote" && strings.TrimSpace(cfg.Policy.RemoteURL) == "" {
		return &ValidationError{Field: "policy.remote_url", Reason: "required when policy.mode is remote"}
	}
	switch cfg.Memory.JournalDriver {
	case "file", "sqlite", "postgres":
	default:
		return &ValidationError{Field: "memory.journal_driver", Reason: "must be one of file, sqlite, postgres"}
	}
	return nil
}
