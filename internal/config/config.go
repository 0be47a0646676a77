package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// placeholderAddr is the compiled-in default's marker value. A build that
// never had its address injected resolves to local mode instead of dialing a
// bogus host.
const placeholderAddr = "SEU_REDIS_AQUI"

const dialTimeout = 5 * time.Second

// Config holds the backend connection settings plus the report generator
// credentials. An empty or placeholder Addr means no remote backend.
type Config struct {
	Addr         string `json:"addr"`
	Password     string `json:"password,omitempty"`
	DB           int    `json:"db,omitempty"`
	ReportAPIURL string `json:"report_api_url,omitempty"`
	ReportAPIKey string `json:"report_api_key,omitempty"`
}

// Keystore is the local slot where staff-entered settings survive restarts.
// Implemented by the local fallback store.
type Keystore interface {
	ReadKey(key string) ([]byte, bool)
	WriteKey(key string, raw []byte) error
	DeleteKey(key string) error
}

// ConfigKey names the keystore slot.
const ConfigKey = "config"

// HasRemote reports whether the config points at a usable remote backend.
func (c Config) HasRemote() bool {
	return c.Addr != "" && c.Addr != placeholderAddr
}

var defaultConfig = Config{Addr: placeholderAddr}

// Load resolves the active config: an explicit caller-supplied one wins, then
// the environment (after .env), then the compiled-in default when its address
// was injected at build time, then whatever staff last saved locally. Finding
// nothing usable is not an error; it selects local mode.
func Load(explicit *Config, ks Keystore) Config {
	if explicit != nil {
		return *explicit
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("could not read .env")
	}

	if addr := os.Getenv("COMANDA_REDIS_ADDR"); addr != "" {
		db, _ := strconv.Atoi(os.Getenv("COMANDA_REDIS_DB"))
		return Config{
			Addr:         addr,
			Password:     os.Getenv("COMANDA_REDIS_PASSWORD"),
			DB:           db,
			ReportAPIURL: os.Getenv("COMANDA_REPORT_API_URL"),
			ReportAPIKey: os.Getenv("COMANDA_REPORT_API_KEY"),
		}
	}

	if defaultConfig.HasRemote() {
		return defaultConfig
	}

	if raw, ok := ks.ReadKey(ConfigKey); ok {
		var saved Config
		if err := json.Unmarshal(raw, &saved); err != nil {
			logrus.WithError(err).Warn("saved config is malformed, ignoring")
		} else {
			return saved
		}
	}

	return Config{
		ReportAPIURL: os.Getenv("COMANDA_REPORT_API_URL"),
		ReportAPIKey: os.Getenv("COMANDA_REPORT_API_KEY"),
	}
}

// Connect dials the remote backend described by c.
func Connect(ctx context.Context, c Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := client.Ping(dialCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect remote backend: %w", err)
	}
	return client, nil
}

// Save persists staff-entered settings to the local slot. The new config only
// takes effect on the next backend selection; the running process keeps its
// mode for its lifetime.
func Save(ks Keystore, c Config) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	if err := ks.WriteKey(ConfigKey, raw); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}

// Clear purges the saved settings. Callers surface the required restart to
// the operator.
func Clear(ks Keystore) error {
	if err := ks.DeleteKey(ConfigKey); err != nil {
		return fmt.Errorf("clear config: %w", err)
	}
	return nil
}
