package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Assistant AssistantConfig `mapstructure:"assistant"`
	Email     EmailConfig     `mapstructure:"email"`
	MCP       MCPConfig       `mapstructure:"mcp"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Type                   string `mapstructure:"type"` // "sqlite", "postgres", or "sqlserver"
	DSN                    string `mapstructure:"dsn"`
	MaxOpenConns           int    `mapstructure:"max_open_conns"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int    `mapstructure:"conn_max_lifetime_seconds"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // "debug", "info", "warn", "error"
	Format     string `mapstructure:"format"` // "json" or "text"
	OutputFile string `mapstructure:"output_file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

// AuthConfig defines session token settings. Sign-in flows live outside
// this service; it only validates bearer tokens.
type AuthConfig struct {
	SessionSecret        string `mapstructure:"session_secret"`
	SessionDurationHours int    `mapstructure:"session_duration_hours"`
}

// AssistantConfig holds the model runtime settings for the chat assistant.
type AssistantConfig struct {
	CLIPath      string `mapstructure:"cli_path"` // Copilot CLI binary (empty = SDK default)
	CLIUrl       string `mapstructure:"cli_url"`  // URL of an existing CLI server (optional)
	Model        string `mapstructure:"model"`
	LogLevel     string `mapstructure:"log_level"`
	MaxToolSteps int    `mapstructure:"max_tool_steps"` // per-turn tool call ceiling
}

// EmailConfig configures invitation email delivery: the Resend HTTP API
// when an API key is set, SMTP otherwise.
type EmailConfig struct {
	FromEmail    string `mapstructure:"from_email"`
	BaseURL      string `mapstructure:"base_url"` // public URL used in invite links
	ResendAPIKey string `mapstructure:"resend_api_key"`
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
}

// MCPConfig configures the optional MCP tool server.
type MCPConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Environment variable support: assistant.max_tool_steps ->
	// LODESTAR_ASSISTANT_MAX_TOOL_STEPS
	viper.SetEnvPrefix("LODESTAR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults cover it.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.dsn", "./data/lodestar.db")
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output_file", "./logs/lodestar.log")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("auth.session_duration_hours", 24)
	viper.SetDefault("assistant.model", "gpt-4.1")
	viper.SetDefault("assistant.log_level", "info")
	viper.SetDefault("assistant.max_tool_steps", 5)
	viper.SetDefault("email.from_email", "invites@lodestar.local")
	viper.SetDefault("email.base_url", "http://localhost:8080")
	viper.SetDefault("email.smtp_port", 587)
	viper.SetDefault("mcp.enabled", false)
	viper.SetDefault("mcp.address", ":8081")
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres", "sqlserver":
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Assistant.MaxToolSteps <= 0 {
		return fmt.Errorf("assistant.max_tool_steps must be positive")
	}
	return nil
}
