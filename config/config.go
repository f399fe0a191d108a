package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Ledger    LedgerConfig    `yaml:"ledger"`
	AI        AIConfig        `yaml:"ai"`
	Minio     MinioConfig     `yaml:"minio"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Users     []User          `yaml:"users" validate:"dive"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// LedgerConfig locates the three ledger files. Relative file names are
// resolved against Dir.
type LedgerConfig struct {
	Dir           string `yaml:"dir" validate:"required"`
	OrdersFile    string `yaml:"orders_file" validate:"required"`
	ProductsFile  string `yaml:"products_file" validate:"required"`
	CustomersFile string `yaml:"customers_file" validate:"required"`
}

type AIConfig struct {
	Provider       string `yaml:"provider" validate:"omitempty,oneof=openai gemini none"`
	APIURL         string `yaml:"api_url"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=0"`
	MaxTokens      int    `yaml:"max_tokens" validate:"min=0"`
	// Temperature is a pointer so an explicit 0 survives defaulting.
	Temperature *float64 `yaml:"temperature" validate:"omitempty,min=0,max=2"`
}

// DefaultTemperature is used when ai.temperature is not set.
const DefaultTemperature = 0.1

// SamplingTemperature returns the configured temperature or the default.
func (a AIConfig) SamplingTemperature() float64 {
	if a.Temperature == nil {
		return DefaultTemperature
	}
	return *a.Temperature
}

type MinioConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint" validate:"required_if=Enabled true"`
	AccessKey  string `yaml:"access_key"`
	SecretKey  string `yaml:"secret_key"`
	Bucket     string `yaml:"bucket" validate:"required_if=Enabled true"`
	UseSSL     bool   `yaml:"use_ssl"`
	Region     string `yaml:"region"`
	ExpireDays int    `yaml:"expire_days"`
	Prefix     string `yaml:"prefix"`
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type RateLimitConfig struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

type User struct {
	Username string `yaml:"username" validate:"required"`
	Password string `yaml:"password" validate:"required"`
}

var GlobalConfig *Config

// Load reads the YAML file at path, applies environment overrides and
// defaults. A missing file is not an error: defaults plus environment are
// enough to run the CLI against a local ledger directory.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	var cfg Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		slog.Warn("config file not found, using defaults", "path", path)
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("LEDGER_DIR"); v != "" {
		c.Ledger.Dir = v
	}
	if v := os.Getenv("AI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	// Provider-specific keys only fill the slot when nothing else did.
	if c.AI.APIKey == "" {
		switch c.AI.Provider {
		case "gemini":
			c.AI.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			c.AI.APIKey = os.Getenv("HF_TOKEN")
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		c.Minio.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		c.Minio.SecretKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Ledger.Dir == "" {
		c.Ledger.Dir = "."
	}
	if c.Ledger.OrdersFile == "" {
		c.Ledger.OrdersFile = "kufar_orders.csv"
	}
	if c.Ledger.ProductsFile == "" {
		c.Ledger.ProductsFile = "products.csv"
	}
	if c.Ledger.CustomersFile == "" {
		c.Ledger.CustomersFile = "customers.csv"
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "none"
	}
	if c.AI.TimeoutSeconds == 0 {
		c.AI.TimeoutSeconds = 60
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 1000
	}
	if c.AI.Temperature == nil {
		t := DefaultTemperature
		c.AI.Temperature = &t
	}
	switch c.AI.Provider {
	case "openai":
		if c.AI.APIURL == "" {
			c.AI.APIURL = "https://router.huggingface.co/hf-inference/v1"
		}
		if c.AI.Model == "" {
			c.AI.Model = "HuggingFaceH4/zephyr-7b-beta"
		}
	case "gemini":
		if c.AI.Model == "" {
			c.AI.Model = "gemini-2.0-flash"
		}
	}
	if c.Minio.ExpireDays == 0 {
		c.Minio.ExpireDays = 7
	}
	if c.Minio.Region == "" {
		c.Minio.Region = "us-east-1"
	}
	if c.Minio.Prefix == "" {
		c.Minio.Prefix = "ledgers"
	}
	if c.Auth.TokenExpireHours == 0 {
		c.Auth.TokenExpireHours = 24
	}
	if c.RateLimit.Requests == 0 {
		c.RateLimit.Requests = 60
	}
	if c.RateLimit.WindowSeconds == 0 {
		c.RateLimit.WindowSeconds = 60
	}
}

// Validate checks struct constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// OrdersPath returns the resolved path of the orders ledger.
func (l LedgerConfig) OrdersPath() string { return l.resolve(l.OrdersFile) }

// ProductsPath returns the resolved path of the products ledger.
func (l LedgerConfig) ProductsPath() string { return l.resolve(l.ProductsFile) }

// CustomersPath returns the resolved path of the customers ledger.
func (l LedgerConfig) CustomersPath() string { return l.resolve(l.CustomersFile) }

func (l LedgerConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(l.Dir, name)
}

// FindUser finds a user by username
func (c *Config) FindUser(username string) *User {
	for i := range c.Users {
		if c.Users[i].Username == username {
			return &c.Users[i]
		}
	}
	return nil
}
