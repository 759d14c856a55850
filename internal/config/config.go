package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/classcycle/internal/report"
	"github.com/ajitpratap0/classcycle/internal/scanner"
)

const (
	// DefaultReportTitle is the report title used when none is configured.
	DefaultReportTitle = "Dependency analysis"

	// DefaultMaxAdvice is the default number of cycles sent to Claude by the advise command.
	DefaultMaxAdvice = 3
)

// Config holds all configuration for classcycle.
type Config struct {
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Report   ReportConfig   `mapstructure:"report"`
	Neo4j    Neo4jConfig    `mapstructure:"neo4j"`
	Claude   ClaudeConfig   `mapstructure:"claude"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
}

// AnalysisConfig controls which classes are scanned and how.
type AnalysisConfig struct {
	MergeInnerClasses bool     `mapstructure:"merge_inner_classes"`
	SkipExternal      bool     `mapstructure:"skip_external"`
	Include           []string `mapstructure:"include"`
	Exclude           []string `mapstructure:"exclude"`
	Workers           int      `mapstructure:"workers"`
}

// ReportConfig holds report rendering settings.
type ReportConfig struct {
	Format string `mapstructure:"format"`
	Title  string `mapstructure:"title"`
}

// Neo4jConfig holds Neo4j graph database connection settings.
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// String returns a safe representation of Neo4jConfig with the password masked.
func (c Neo4jConfig) String() string {
	return fmt.Sprintf("Neo4jConfig{URI:%s, Username:%s, Password:%s, Database:%s}",
		c.URI, c.Username, maskAPIKey(c.Password), c.Database)
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
	AuthToken  string `mapstructure:"auth_token"`
	// MetricsAddr serves expvar counters on /debug/vars when set.
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// ClaudeConfig holds Anthropic Claude API settings.
type ClaudeConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxAdvice int    `mapstructure:"max_advice"`
}

// String returns a safe representation of ClaudeConfig with the API key masked.
func (c ClaudeConfig) String() string {
	masked := maskAPIKey(c.APIKey)
	return fmt.Sprintf("ClaudeConfig{APIKey:%s, Model:%s}", masked, c.Model)
}

// maskAPIKey shows first 4 + last 4 chars, replacing the middle with asterisks.
func maskAPIKey(key string) string {
	const visible = 4
	if len(key) <= visible*2 {
		return "***"
	}
	return key[:visible] + "****" + key[len(key)-visible:]
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the default locations and environment variables.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or from the default locations when
// path is empty, then applies environment variables.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("analysis.merge_inner_classes", false)
	v.SetDefault("analysis.skip_external", false)
	v.SetDefault("analysis.include", []string{})
	v.SetDefault("analysis.exclude", []string{})
	v.SetDefault("analysis.workers", runtime.NumCPU())

	v.SetDefault("report.format", string(report.FormatText))
	v.SetDefault("report.title", DefaultReportTitle)

	v.SetDefault("neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "neo4j")

	v.SetDefault("claude.model", "claude-haiku-4-5-20251001")
	v.SetDefault("claude.max_advice", DefaultMaxAdvice)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("api.listen_addr", ":8080")
	v.SetDefault("api.auth_token", "")
	v.SetDefault("api.metrics_addr", "")

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("classcycle")
		v.SetConfigType("yaml")
		v.AddConfigPath(filepath.Join(homeDir(), ".classcycle"))
		v.AddConfigPath(".")
	}

	// Environment variables
	v.SetEnvPrefix("CLASSCYCLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map specific env vars
	_ = v.BindEnv("claude.api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("neo4j.uri", "CLASSCYCLE_NEO4J_URI")
	_ = v.BindEnv("neo4j.username", "CLASSCYCLE_NEO4J_USERNAME")
	_ = v.BindEnv("neo4j.password", "CLASSCYCLE_NEO4J_PASSWORD")
	_ = v.BindEnv("report.format", "CLASSCYCLE_REPORT_FORMAT")
	_ = v.BindEnv("analysis.workers", "CLASSCYCLE_ANALYSIS_WORKERS")
	_ = v.BindEnv("api.listen_addr", "CLASSCYCLE_API_LISTEN_ADDR")
	_ = v.BindEnv("api.auth_token", "CLASSCYCLE_API_AUTH_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is OK: use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are set and consistent.
func (c *Config) Validate() error {
	if c.Analysis.Workers <= 0 {
		return fmt.Errorf("analysis.workers must be greater than 0")
	}
	for _, p := range c.Analysis.Include {
		if err := scanner.ValidatePattern(p); err != nil {
			return fmt.Errorf("analysis.include: %w", err)
		}
	}
	for _, p := range c.Analysis.Exclude {
		if err := scanner.ValidatePattern(p); err != nil {
			return fmt.Errorf("analysis.exclude: %w", err)
		}
	}
	if !report.Format(c.Report.Format).IsValid() {
		return fmt.Errorf("report.format %q must be one of %v", c.Report.Format, report.ValidFormats)
	}
	if c.Neo4j.URI == "" {
		return fmt.Errorf("neo4j.uri must not be empty")
	}
	if c.Neo4j.Database == "" {
		return fmt.Errorf("neo4j.database must not be empty")
	}
	if c.Claude.MaxAdvice <= 0 {
		return fmt.Errorf("claude.max_advice must be greater than 0")
	}
	if c.API.ListenAddr == "" {
		return fmt.Errorf("api.listen_addr must not be empty")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q must be one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format %q must be text or json", c.Logging.Format)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
