package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type HTTPConfig struct {
	Addr string
}

type GRPCConfig struct {
	Addr string
}

// DatastoreConfig selects and configures the document database driver.
type DatastoreConfig struct {
	Driver          string // firestore | postgres | memory
	ProjectID       string
	CredentialsFile string
	DatabaseURL     string
}

type AppConfig struct {
	ServiceName string
	Env         string
	LogLevel    string
	JWTSecret   string
	// JWTIssuer and JWTAudience, when set, must match the token's iss and aud.
	JWTIssuer   string
	JWTAudience string
	HTTP        HTTPConfig
	GRPC        GRPCConfig
	Datastore   DatastoreConfig
}

const (
	DriverFirestore = "firestore"
	DriverPostgres  = "postgres"
	DriverMemory    = "memory"
)

// LoadDotEnv pre-populates the environment from a .env file when present.
// Variables already set in the environment win.
func LoadDotEnv() {
	_ = godotenv.Load()
}

func Load() (AppConfig, error) {
	LoadDotEnv()

	cfg := AppConfig{
		ServiceName: Env("SERVICE_NAME"),
		Env:         Env("APP_ENV"),
		LogLevel:    Env("LOG_LEVEL"),
		JWTSecret:   Env("JWT_SECRET"),
		JWTIssuer:   Env("JWT_ISSUER"),
		JWTAudience: Env("JWT_AUDIENCE"),
		HTTP: HTTPConfig{
			Addr: Env("HTTP_ADDR"),
		},
		GRPC: GRPCConfig{
			Addr: Env("GRPC_ADDR"),
		},
		Datastore: DatastoreConfig{
			Driver:          strings.ToLower(Env("DATASTORE")),
			ProjectID:       Env("FIRESTORE_PROJECT_ID"),
			CredentialsFile: Env("GOOGLE_APPLICATION_CREDENTIALS"),
			DatabaseURL:     Env("DATABASE_URL"),
		},
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.GRPC.Addr == "" {
		cfg.GRPC.Addr = ":9090"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Datastore.Driver == "" {
		switch {
		case cfg.Datastore.ProjectID != "":
			cfg.Datastore.Driver = DriverFirestore
		case cfg.Datastore.DatabaseURL != "":
			cfg.Datastore.Driver = DriverPostgres
		default:
			cfg.Datastore.Driver = DriverMemory
		}
	}
	switch cfg.Datastore.Driver {
	case DriverFirestore:
		if cfg.Datastore.ProjectID == "" {
			return AppConfig{}, errors.New("FIRESTORE_PROJECT_ID is required for the firestore datastore")
		}
	case DriverPostgres:
		if cfg.Datastore.DatabaseURL == "" {
			return AppConfig{}, errors.New("DATABASE_URL is required for the postgres datastore")
		}
	case DriverMemory:
		if cfg.IsProduction() {
			return AppConfig{}, errors.New("the memory datastore is not allowed in production")
		}
	default:
		return AppConfig{}, errors.New("DATASTORE must be one of firestore, postgres, memory")
	}
	return cfg, nil
}

func (c AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Env returns the trimmed value of an environment variable.
func Env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// EnvInt returns a positive integer from the environment or fallback.
func EnvInt(key string, fallback int) int {
	v := Env(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// EnvDuration parses a Go duration such as "2s" from the environment.
// Missing, malformed and non-positive values give fallback.
func EnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(Env(key))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
