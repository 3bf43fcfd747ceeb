package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string
	// OpsAddr serves /healthz and /metrics. Empty disables the ops listener.
	OpsAddr string

	// PathPrefix is stripped from incoming request paths before routing.
	PathPrefix string
	// APIKey is the shared secret expected in the x-api-key header on /op paths.
	APIKey string

	DBDriver          string
	DBDSN             string
	SQLitePath        string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration

	MQTTBroker   string
	MQTTPort     int
	MQTTClientID string
	MQTTTopic    string
}

// MQTTEnabled reports whether a broker was configured.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// LoadFromEnv reads the configuration from the process environment. Variables
// from ENV_FILE (default .env) are loaded first when the file exists; values
// already present in the environment are not overridden.
func LoadFromEnv() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	appEnv := envOr("APP_ENV", "dev")
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	pathPrefix := envOr("PATH_PREFIX", "/birdroom")
	if pathPrefix == "-" {
		pathPrefix = ""
	}
	if pathPrefix != "" && !strings.HasPrefix(pathPrefix, "/") {
		return Config{}, fmt.Errorf("invalid PATH_PREFIX %q (must start with /)", pathPrefix)
	}

	apiKey := strings.TrimSpace(os.Getenv("API_KEY"))
	if apiKey == "" && appEnv == "prod" {
		return Config{}, errors.New("API_KEY is required when APP_ENV=prod")
	}

	driver := envOr("DB_DRIVER", "sqlite3")
	switch driver {
	case "sqlite3", "sqlite3-log":
	default:
		return Config{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, sqlite3-log)", driver)
	}

	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Config{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Config{}, err
	}

	connMaxLifetimeStr := envOr("DB_CONN_MAX_LIFETIME", "0s")
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	mqttPort, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return Config{}, err
	}
	if mqttPort <= 0 || mqttPort > 65535 {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %d (must be 1-65535)", mqttPort)
	}

	return Config{
		AppEnv:            appEnv,
		LogLevel:          level,
		HTTPAddr:          envOr("HTTP_ADDR", ":8080"),
		OpsAddr:           envOr("OPS_ADDR", ":9090"),
		PathPrefix:        pathPrefix,
		APIKey:            apiKey,
		DBDriver:          driver,
		DBDSN:             strings.TrimSpace(os.Getenv("DB_DSN")),
		SQLitePath:        envOr("SQLITE_PATH", "data/birdroom.db"),
		DBMaxOpenConns:    maxOpenConns,
		DBMaxIdleConns:    maxIdleConns,
		DBConnMaxLifetime: connMaxLifetime,
		MQTTBroker:        strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		MQTTPort:          mqttPort,
		MQTTClientID:      envOr("MQTT_CLIENT_ID", "birdroom-server"),
		MQTTTopic:         envOr("MQTT_TOPIC", "birdroom/readings"),
	}, nil
}

func loadEnvFile() error {
	path := envOr("ENV_FILE", ".env")
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
