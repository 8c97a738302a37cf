// Package config loads menu layer configuration from defaults, an optional
// YAML file and the environment (with .env support), in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Supabase  SupabaseConfig  `yaml:"supabase"`
	Database  DatabaseConfig  `yaml:"database"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
	CORS      CORSConfig      `yaml:"cors"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host         string        `yaml:"host" env:"MENU_HOST"`
	Port         int           `yaml:"port" env:"MENU_PORT"`
	ReadTimeout  time.Duration `yaml:"read_timeout" env:"MENU_READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" env:"MENU_WRITE_TIMEOUT"`
	// Auth selects the identity backend: supabase or memory.
	Auth string `yaml:"auth" env:"MENU_AUTH"`
}

// Addr is host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type SupabaseConfig struct {
	URL              string `yaml:"url" env:"SUPABASE_URL"`
	AnonKey          string `yaml:"anon_key" env:"SUPABASE_ANON_KEY"`
	ServiceKey       string `yaml:"service_key" env:"SUPABASE_SERVICE_KEY"`
	JWTSecret        string `yaml:"jwt_secret" env:"SUPABASE_JWT_SECRET"`
	ImageBucket      string `yaml:"image_bucket" env:"SUPABASE_IMAGE_BUCKET"`
	ResetRedirectURL string `yaml:"reset_redirect_url" env:"SUPABASE_RESET_REDIRECT_URL"`
}

// Enabled reports whether a Supabase project is configured.
func (s SupabaseConfig) Enabled() bool {
	return s.URL != "" && s.AnonKey != ""
}

type DatabaseConfig struct {
	// Driver is memory, postgres or supabase.
	Driver string `yaml:"driver" env:"MENU_DB_DRIVER"`
	DSN    string `yaml:"dsn" env:"DATABASE_URL"`
}

type SessionConfig struct {
	// Backend is file, redis or memory.
	Backend   string        `yaml:"backend" env:"MENU_SESSION_BACKEND"`
	Dir       string        `yaml:"dir" env:"MENU_SESSION_DIR"`
	RedisURL  string        `yaml:"redis_url" env:"REDIS_URL"`
	Namespace string        `yaml:"namespace" env:"MENU_SESSION_NAMESPACE"`
	TTL       time.Duration `yaml:"ttl" env:"MENU_SESSION_TTL"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
	Output string `yaml:"output" env:"LOG_OUTPUT"`
}

type CORSConfig struct {
	// AllowedOrigins is comma separated in the environment.
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
}

// Origins splits AllowedOrigins.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS"`
	Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			Auth:         "supabase",
		},
		Supabase: SupabaseConfig{
			ImageBucket: "menu-images",
		},
		Database: DatabaseConfig{Driver: "supabase"},
		Session: SessionConfig{
			Backend:   "memory",
			Namespace: "menu",
		},
		Logging:   LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		CORS:      CORSConfig{AllowedOrigins: "*"},
		RateLimit: RateLimitConfig{RPS: 20, Burst: 40},
	}
}

// Options controls Load.
type Options struct {
	// EnvFile is loaded with godotenv when it exists. Empty means ".env".
	EnvFile string
	// File is an optional YAML file. Empty means $MENU_CONFIG, if set.
	File string
}

// Load builds the configuration.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()

	file := opts.File
	if file == "" {
		file = os.Getenv("MENU_CONFIG")
	}
	if file != "" {
		if err := cfg.mergeYAML(file); err != nil {
			return nil, err
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return nil
}

// Validate checks cross-field requirements.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	switch c.Database.Driver {
	case "memory":
	case "postgres":
		if c.Database.DSN == "" {
			return errors.New("database dsn is required for the postgres driver")
		}
	case "supabase":
		if !c.Supabase.Enabled() {
			return errors.New("supabase url and anon key are required for the supabase driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	switch c.Server.Auth {
	case "memory":
	case "supabase":
		if !c.Supabase.Enabled() {
			return errors.New("supabase url and anon key are required for supabase auth")
		}
	default:
		return fmt.Errorf("unknown auth backend %q", c.Server.Auth)
	}

	switch c.Session.Backend {
	case "memory", "file":
	case "redis":
		if c.Session.RedisURL == "" {
			return errors.New("redis url is required for the redis session backend")
		}
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	return nil
}
