package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Backend string

const (
	BackendMemory    Backend = "memory"
	BackendMongo     Backend = "mongo"
	BackendFirestore Backend = "firestore"
	BackendBadger    Backend = "badger"
)

var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

type Config struct {
	Port     int    `env:"PORT,default=8080"`
	BasePath string `env:"BOARD_BASE_PATH"`

	StorageBackend string `env:"BOARD_STORAGE_BACKEND,default=memory"`
	ListLimit      int    `env:"BOARD_LIST_LIMIT,default=100"`

	// Unset MONGODB_URI is not an error: the API answers 503 until it is configured.
	MongoURI        string `env:"MONGODB_URI"`
	MongoDatabase   string `env:"MONGODB_DATABASE,default=messageboard"`
	MongoCollection string `env:"MONGODB_COLLECTION,default=messages"`

	DBConnectTimeout time.Duration `env:"BOARD_DB_CONNECT_TIMEOUT,default=10s"`
	DBSocketTimeout  time.Duration `env:"BOARD_DB_SOCKET_TIMEOUT,default=45s"`

	GCPProjectID        string `env:"BOARD_GCP_PROJECT"`
	FirestoreCollection string `env:"BOARD_FIRESTORE_COLLECTION,default=messages"`

	BadgerPath string `env:"BOARD_BADGER_PATH,default=./data/board"`

	// Comma separated. Entries are exact origins or a wildcard host suffix
	// such as https://*.vercel.app.
	AllowedOrigins string `env:"BOARD_ALLOWED_ORIGINS"`

	LogLevel        string        `env:"BOARD_LOG_LEVEL,default=info"`
	ShutdownTimeout time.Duration `env:"BOARD_SHUTDOWN_TIMEOUT,default=30s"`
}

// Load reads an optional .env file, then all env vars, and builds the config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	return FromEnviron()
}

// FromEnviron builds the config from the process environment only.
func FromEnviron() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Backend() {
	case BackendMemory, BackendMongo, BackendFirestore, BackendBadger:
	default:
		return fmt.Errorf("BOARD_STORAGE_BACKEND must be one of memory, mongo, firestore, badger; got %q", c.StorageBackend)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.ListLimit <= 0 {
		return fmt.Errorf("BOARD_LIST_LIMIT must be positive, got %d", c.ListLimit)
	}
	if c.BasePath != "" && (!strings.HasPrefix(c.BasePath, "/") || strings.HasSuffix(c.BasePath, "/")) {
		return fmt.Errorf("BOARD_BASE_PATH must start with / and not end with /, got %q", c.BasePath)
	}
	return nil
}

func (c *Config) Backend() Backend {
	b := Backend(strings.ToLower(strings.TrimSpace(c.StorageBackend)))
	if b == "" {
		return BackendMemory
	}
	return b
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Origins returns the CORS allow-list, falling back to the local dev servers.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return defaultAllowedOrigins
	}
	return out
}
