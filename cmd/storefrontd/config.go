package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration, read from a YAML file and then
// overridden by flags. Secrets may also come from the environment.
type Config struct {
	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
	BasePath string `yaml:"base_path"`
	Currency string `yaml:"currency"`
	SeedFile string `yaml:"seed_file"`

	CartCacheSize   int           `yaml:"cart_cache_size"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	Session  SessionConfig  `yaml:"session"`
	Store    StoreConfig    `yaml:"store"`
	Gateway  GatewayConfig  `yaml:"gateway"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	SendGrid SendGridConfig `yaml:"sendgrid"`
}

type SessionConfig struct {
	MaxAge time.Duration `yaml:"max_age"`
	Secure bool          `yaml:"secure"`
}

// StoreConfig selects the persistence backend: "memory" or "firestore".
type StoreConfig struct {
	Driver    string `yaml:"driver"`
	ProjectID string `yaml:"project_id"`
}

// GatewayConfig holds the payment gateway credentials. KeySecret signs
// checkout callbacks; when SecretName is set it is read from Secret
// Manager instead.
type GatewayConfig struct {
	BaseURL    string `yaml:"base_url"`
	KeyID      string `yaml:"key_id"`
	KeySecret  string `yaml:"key_secret"`
	SecretName string `yaml:"secret_name"`
	ProjectID  string `yaml:"project_id"`
}

type KafkaConfig struct {
	Brokers    string `yaml:"brokers"`
	Topic      string `yaml:"topic"`
	CartEvents bool   `yaml:"cart_events"`
}

type SendGridConfig struct {
	APIKey    string `yaml:"api_key"`
	FromEmail string `yaml:"from_email"`
	FromName  string `yaml:"from_name"`
	StoreName string `yaml:"store_name"`
}

func defaultConfig() Config {
	return Config{
		Addr:            ":8080",
		LogLevel:        "info",
		BasePath:        "/api",
		Currency:        "inr",
		CartCacheSize:   4096,
		ShutdownTimeout: 10 * time.Second,
		Session:         SessionConfig{MaxAge: 30 * 24 * time.Hour},
		Store:           StoreConfig{Driver: "memory"},
		Kafka:           KafkaConfig{Topic: "storefront.events"},
		SendGrid:        SendGridConfig{StoreName: "TapCart"},
	}
}

// loadConfig builds the configuration from args: defaults, then the file
// named by --config, then the environment for secrets, then explicit flags.
func loadConfig(args []string, getenv func(string) string) (Config, error) {
	cfg := defaultConfig()

	fs := pflag.NewFlagSet("storefrontd", pflag.ContinueOnError)
	path := fs.StringP("config", "c", "", "path to a YAML config file")
	addr := fs.String("addr", cfg.Addr, "HTTP listen address")
	level := fs.String("log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	driver := fs.String("store", cfg.Store.Driver, "store driver (memory, firestore)")
	seed := fs.String("seed", "", "YAML file of products and coupons to seed")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}

	if *path != "" {
		data, err := os.ReadFile(*path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", *path, err)
		}
	}

	envFallback(&cfg.Gateway.KeyID, getenv("RAZORPAY_KEY_ID"))
	envFallback(&cfg.Gateway.KeySecret, getenv("RAZORPAY_KEY_SECRET"))
	envFallback(&cfg.SendGrid.APIKey, getenv("SENDGRID_API_KEY"))
	envFallback(&cfg.Store.ProjectID, getenv("GOOGLE_CLOUD_PROJECT"))
	envFallback(&cfg.Kafka.Brokers, getenv("KAFKA_BROKERS"))

	if fs.Changed("addr") {
		cfg.Addr = *addr
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *level
	}
	if fs.Changed("store") {
		cfg.Store.Driver = *driver
	}
	if fs.Changed("seed") {
		cfg.SeedFile = *seed
	}

	return cfg, cfg.validate()
}

func envFallback(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func (c Config) validate() error {
	var errs []error
	switch c.Store.Driver {
	case "memory":
	case "firestore":
		if c.Store.ProjectID == "" {
			errs = append(errs, errors.New("store.project_id is required for firestore"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}
	if c.Gateway.KeySecret == "" && c.Gateway.SecretName == "" {
		errs = append(errs, errors.New("gateway.key_secret or gateway.secret_name is required"))
	}
	if c.Gateway.SecretName != "" && c.Gateway.ProjectID == "" && c.Store.ProjectID == "" {
		errs = append(errs, errors.New("gateway.project_id is required for secret_name"))
	}
	return errors.Join(errs...)
}

func (c Config) slogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return l
}
