package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const (
	BackendLocal    = "local"
	BackendFirebase = "firebase"

	NotifierNone    = "none"
	NotifierLog     = "log"
	NotifierWebPush = "webpush"
	NotifierExpo    = "expo"
)

type Config struct {
	Backend string `yaml:"backend"`
	DBFile  string `yaml:"db"`
	APIAddr string `yaml:"api_addr"`

	FirebaseProjectID string `yaml:"firebase_project_id"`
	FirebaseAPIKey    string `yaml:"firebase_api_key"`
	CredentialsFile   string `yaml:"google_credentials_file"`

	Notifier        string        `yaml:"notifier"`
	VAPIDPublicKey  string        `yaml:"vapid_public_key"`
	VAPIDPrivateKey string        `yaml:"vapid_private_key"`
	VAPIDSubscriber string        `yaml:"vapid_subscriber"`
	ExpoToken       string        `yaml:"expo_token"`
	DismissAfter    time.Duration `yaml:"notify_dismiss_after"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// AddUser switches to the one-shot account creation command.
	AddUser         string `yaml:"-"`
	AddUserNickname string `yaml:"-"`
}

func Default() *Config {
	return &Config{
		Backend:      BackendLocal,
		DBFile:       "kidoku.db",
		APIAddr:      ":8080",
		Notifier:     NotifierLog,
		DismissAfter: 5 * time.Second,
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// the environment and finally command line flags, each overriding the
// previous.
func Load(args []string) (*Config, error) {
	flags := pflag.NewFlagSet("kidoku", pflag.ContinueOnError)
	configFile := flags.StringP("config", "c", os.Getenv("KIDOKU_CONFIG"), "YAML config file")
	addr := flags.String("addr", "", "listen address, overrides API_ADDR")
	backend := flags.String("backend", "", "backend to use: local or firebase")
	db := flags.String("db", "", "bbolt file for the local backend")
	notifier := flags.String("notifier", "", "notifier: log, webpush, expo or none")
	logLevel := flags.String("log-level", "", "debug, info, warn or error")
	addUser := flags.String("add-user", "", "create a local account with a random password and exit")
	nickname := flags.String("nickname", "", "nickname for --add-user")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *configFile != "" {
		if err := cfg.loadFile(*configFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return nil, err
	}

	if flags.Changed("addr") {
		cfg.APIAddr = *addr
	}
	if flags.Changed("backend") {
		cfg.Backend = *backend
	}
	if flags.Changed("db") {
		cfg.DBFile = *db
	}
	if flags.Changed("notifier") {
		cfg.Notifier = *notifier
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}

	cfg.AddUser = *addUser
	cfg.AddUserNickname = *nickname

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.Backend = getEnv("BACKEND", c.Backend)
	c.DBFile = getEnv("KIDOKU_DB", c.DBFile)
	c.APIAddr = getEnv("API_ADDR", c.APIAddr)
	c.FirebaseProjectID = getEnv("FIREBASE_PROJECT_ID", c.FirebaseProjectID)
	c.FirebaseAPIKey = getEnv("FIREBASE_API_KEY", c.FirebaseAPIKey)
	c.CredentialsFile = getEnv("GOOGLE_CREDENTIALS_FILE", c.CredentialsFile)
	c.Notifier = getEnv("NOTIFIER", c.Notifier)
	c.VAPIDPublicKey = getEnv("VAPID_PUBLIC_KEY", c.VAPIDPublicKey)
	c.VAPIDPrivateKey = getEnv("VAPID_PRIVATE_KEY", c.VAPIDPrivateKey)
	c.VAPIDSubscriber = getEnv("VAPID_SUBSCRIBER", c.VAPIDSubscriber)
	c.ExpoToken = getEnv("EXPO_TOKEN", c.ExpoToken)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)

	if v, ok := os.LookupEnv("NOTIFY_DISMISS_AFTER"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("NOTIFY_DISMISS_AFTER: %w", err)
		}
		c.DismissAfter = d
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendLocal:
		if c.DBFile == "" {
			errs = append(errs, errors.New("KIDOKU_DB is required for the local backend"))
		}
	case BackendFirebase:
		if c.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required for the firebase backend"))
		}
		if c.FirebaseAPIKey == "" {
			errs = append(errs, errors.New("FIREBASE_API_KEY is required for the firebase backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown BACKEND %q", c.Backend))
	}

	switch c.Notifier {
	case NotifierNone, NotifierLog:
	case NotifierWebPush:
		if c.VAPIDPublicKey == "" || c.VAPIDPrivateKey == "" {
			errs = append(errs, errors.New("VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY are required for web push"))
		}
		if c.VAPIDSubscriber == "" {
			errs = append(errs, errors.New("VAPID_SUBSCRIBER is required for web push"))
		}
	case NotifierExpo:
		if c.ExpoToken == "" {
			errs = append(errs, errors.New("EXPO_TOKEN is required for expo"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown NOTIFIER %q", c.Notifier))
	}

	if c.DismissAfter <= 0 {
		errs = append(errs, errors.New("NOTIFY_DISMISS_AFTER must be greater than 0"))
	}

	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
