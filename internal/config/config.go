package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Yuki        YukiConfig        `mapstructure:"yuki"`
	Worker      WorkerConfig      `mapstructure:"worker"`
	Logger      LoggerConfig      `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// StorageConfig holds uploaded file storage configuration
type StorageConfig struct {
	UploadDir string `mapstructure:"upload_dir"`
}

// RecognitionConfig holds OCR / vision provider configuration
type RecognitionConfig struct {
	Provider    string        `mapstructure:"provider"`
	Language    string        `mapstructure:"language"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RenderZoom  float64       `mapstructure:"render_zoom"`
	MaxPages    int           `mapstructure:"max_pages"`
	Concurrency int           `mapstructure:"concurrency"`
	PromptsPath string        `mapstructure:"prompts_path"`
}

// YukiConfig holds the accounting system connection and booking defaults
type YukiConfig struct {
	APIURL           string        `mapstructure:"api_url"`
	Username         string        `mapstructure:"username"`
	Password         string        `mapstructure:"password"`
	AdministrationID string        `mapstructure:"administration_id"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	GLAccount        string        `mapstructure:"gl_account"`
	VATGLAccount     string        `mapstructure:"vat_gl_account"`
	VATCode          string        `mapstructure:"vat_code"`
}

// WorkerConfig holds the auto-process worker configuration
type WorkerConfig struct {
	AutoProcess    bool          `mapstructure:"auto_process"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	BatchSize      int           `mapstructure:"batch_size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load reads configPath, overlays environment variables and validates the
// result. A .env file next to the working directory is loaded first when
// present; variables already set in the environment win over it.
func Load(configPath string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)
	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := gotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 120*time.Second)
	v.SetDefault("server.max_upload_size", 10<<20)

	// Database defaults
	v.SetDefault("database.path", "data/invoices.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("storage.upload_dir", "uploads")

	// Recognition defaults
	v.SetDefault("recognition.provider", "openai")
	v.SetDefault("recognition.language", "eng+nld")
	v.SetDefault("recognition.model", "gpt-4o")
	v.SetDefault("recognition.timeout", 60*time.Second)
	v.SetDefault("recognition.render_zoom", 3.0)
	v.SetDefault("recognition.max_pages", 20)
	v.SetDefault("recognition.concurrency", 4)

	// Yuki defaults
	v.SetDefault("yuki.request_timeout", 30*time.Second)
	v.SetDefault("yuki.max_retries", 3)
	v.SetDefault("yuki.retry_delay", 2*time.Second)
	v.SetDefault("yuki.gl_account", "4000")
	v.SetDefault("yuki.vat_gl_account", "1510")

	// Worker defaults
	v.SetDefault("worker.auto_process", false)
	v.SetDefault("worker.poll_interval", 10*time.Second)
	v.SetDefault("worker.batch_size", 5)
	v.SetDefault("worker.process_timeout", 120*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds environment variables to configuration. Every key can be
// overridden as APP_<SECTION>_<KEY>; credentials also have their own names.
func bindEnvVars(v *viper.Viper) error {
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"recognition.api_key":    "OPENAI_API_KEY",
		"yuki.api_url":           "YUKI_API_URL",
		"yuki.username":          "YUKI_USERNAME",
		"yuki.password":          "YUKI_PASSWORD",
		"yuki.administration_id": "YUKI_ADMINISTRATION_ID",
		"database.path":          "DATABASE_PATH",
		"storage.upload_dir":     "UPLOAD_DIR",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, "APP_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("server.max_upload_size must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Storage.UploadDir == "" {
		return fmt.Errorf("storage.upload_dir is required")
	}

	switch c.Recognition.Provider {
	case "openai":
		if c.Recognition.APIKey == "" {
			return fmt.Errorf("recognition.api_key is required for the openai provider")
		}
	default:
		return fmt.Errorf("unknown recognition.provider %q", c.Recognition.Provider)
	}
	if c.Recognition.RenderZoom <= 0 {
		return fmt.Errorf("recognition.render_zoom must be positive")
	}

	if c.Yuki.APIURL == "" {
		return fmt.Errorf("yuki.api_url is required")
	}
	if c.Yuki.Username == "" {
		return fmt.Errorf("yuki.username is required")
	}
	if c.Yuki.Password == "" {
		return fmt.Errorf("yuki.password is required")
	}
	if c.Yuki.MaxRetries < 1 {
		return fmt.Errorf("yuki.max_retries must be at least 1")
	}
	if c.Yuki.RetryDelay < 0 {
		return fmt.Errorf("yuki.retry_delay must not be negative")
	}

	if c.Worker.AutoProcess && c.Worker.BatchSize <= 0 {
		return fmt.Errorf("worker.batch_size must be positive")
	}
	return nil
}
