package common

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Worker   WorkerConfig   `mapstructure:"worker"`
	Log      LogConfig      `mapstructure:"log"`
	Extract  ExtractConfig  `mapstructure:"extract"`
}

// PathsConfig holds input and output locations
type PathsConfig struct {
	ImageDir      string `mapstructure:"image_dir"`
	OutputDir     string `mapstructure:"output_dir"`
	ExcelTemplate string `mapstructure:"excel_template"`
	ExcelOutput   string `mapstructure:"excel_output"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Driver           string        `mapstructure:"driver"` // sqlite | postgres
	DSN              string        `mapstructure:"dsn"`
	MaxConns         int32         `mapstructure:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr    string `mapstructure:"grpc_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LLMConfig holds model-related configuration
type LLMConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"`
	Temperature   float32       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay"`
}

// WorkerConfig holds queue and directory-scan configuration
type WorkerConfig struct {
	Workers        int           `mapstructure:"workers"`
	QueueSize      int           `mapstructure:"queue_size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
	Recursive      bool          `mapstructure:"recursive"`
	SkipHidden     bool          `mapstructure:"skip_hidden"`
	WatchDebounce  time.Duration `mapstructure:"watch_debounce"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	File   string `mapstructure:"file"`
	Format string `mapstructure:"format"` // json | console
}

// ExtractConfig holds field-extractor options
type ExtractConfig struct {
	Calendar string `mapstructure:"calendar"` // gregorian | ethiopian
}

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string][]string{
	"paths.image_dir":       {"IMAGE_DIR"},
	"paths.output_dir":      {"OUTPUT_DIR"},
	"paths.excel_template":  {"EXCEL_TEMPLATE"},
	"paths.excel_output":    {"EXCEL_OUTPUT"},
	"database.driver":       {"DB_DRIVER"},
	"database.dsn":          {"DB_URL"},
	"database.max_conns":    {"DB_MAX_CONNS"},
	"database.min_conns":    {"DB_MIN_CONNS"},
	"database.dial_timeout": {"DB_DIAL_TIMEOUT"},
	"server.grpc_addr":      {"GRPC_ADDR"},
	"server.metrics_addr":   {"METRICS_ADDR"},
	"llm.api_key":           {"OPENROUTER_API_KEY"},
	"llm.base_url":          {"OPENROUTER_BASE_URL"},
	"llm.model":             {"MODEL_NAME"},
	"llm.temperature":       {"MODEL_TEMPERATURE"},
	"llm.timeout":           {"MODEL_TIMEOUT"},
	"llm.max_retries":       {"MODEL_MAX_RETRIES"},
	"worker.workers":        {"WORKERS"},
	"worker.queue_size":     {"QUEUE_SIZE"},
	"log.level":             {"LOG_LEVEL"},
	"log.file":              {"LOG_FILE"},
	"log.format":            {"LOG_FORMAT"},
	"extract.calendar":      {"DATE_CALENDAR"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.image_dir", "images")
	v.SetDefault("paths.output_dir", "output")
	v.SetDefault("paths.excel_template", "template.xlsx")
	v.SetDefault("paths.excel_output", "output/medical_cards_export.xlsx")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "file:output/medcards.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))

	v.SetDefault("server.grpc_addr", ":8080")
	v.SetDefault("server.metrics_addr", ":9090")

	v.SetDefault("llm.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("llm.model", "google/gemini-2.0-flash-001")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.retry_delay", 2*time.Second)
	v.SetDefault("llm.max_retry_delay", time.Minute)

	v.SetDefault("worker.workers", 4)
	v.SetDefault("worker.queue_size", 256)
	v.SetDefault("worker.process_timeout", 3*time.Minute)
	v.SetDefault("worker.recursive", true)
	v.SetDefault("worker.skip_hidden", true)
	v.SetDefault("worker.watch_debounce", 750*time.Millisecond)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.format", "json")

	v.SetDefault("extract.calendar", "gregorian")
}

// LoadConfig reads .env, an optional YAML file and the environment, in that
// order of increasing precedence. An empty path searches ./medcards.yaml and
// ./configs/medcards.yaml; a missing file is only an error when path is set.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MEDCARDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, envs := range envBindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "bind "+key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("medcards")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NewAppError("CONFIG_ERROR", "decode config", err)
	}
	return &cfg, nil
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("DB_DRIVER %q is not supported", c.Database.Driver), ErrInvalidInput)
	}
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Worker.Workers <= 0 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be positive", ErrInvalidInput)
	}
	if c.Paths.ExcelOutput == "" {
		return NewAppError("CONFIG_ERROR", "EXCEL_OUTPUT is required", ErrInvalidInput)
	}
	switch strings.ToLower(c.Extract.Calendar) {
	case "", "gregorian", "ethiopian":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("DATE_CALENDAR %q is not supported", c.Extract.Calendar), ErrInvalidInput)
	}
	return nil
}

// RequireModel validates the settings needed to call the vision model.
func (c *Config) RequireModel() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENROUTER_API_KEY is required", ErrUnauthorized)
	}
	if c.LLM.Model == "" {
		return NewAppError("CONFIG_ERROR", "MODEL_NAME is required", ErrInvalidInput)
	}
	return nil
}
