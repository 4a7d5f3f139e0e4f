package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	FCM      FCMConfig
	History  HistoryConfig
}

type ServerConfig struct {
	Address       string
	AllowedOrigin string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type FCMConfig struct {
	ProjectID       string
	CredentialsFile string
	Endpoint        string
	TTL             time.Duration
}

type HistoryConfig struct {
	Limit int
}

func LoadAll() (*Config, error) {
	var errs []error

	postgresURL, err := requireEnv("POSTGRES_URL")
	if err != nil {
		errs = append(errs, err)
	}

	projectID, err := requireEnv("FCM_PROJECT_ID")
	if err != nil {
		errs = append(errs, err)
	}

	credFile, err := requireEnv("GOOGLE_APPLICATION_CREDENTIALS")
	if err != nil {
		errs = append(errs, err)
	}

	fcmTTL, err := getEnvInt("FCM_TTL_SECONDS", 3600)
	if err != nil {
		errs = append(errs, err)
	} else if fcmTTL <= 0 {
		errs = append(errs, errors.New("FCM_TTL_SECONDS must be > 0"))
	}

	historyLimit, err := getEnvInt("HISTORY_LIMIT", 100)
	if err != nil {
		errs = append(errs, err)
	} else if historyLimit <= 0 {
		errs = append(errs, errors.New("HISTORY_LIMIT must be > 0"))
	}

	redisCfg, err := loadRedisConfig()
	if err != nil {
		errs = append(errs, err)
	}

	if err := joinErrors(errs); err != nil {
		return nil, err
	}

	return &Config{
		Server: ServerConfig{
			Address:       getEnv("SERVER_ADDRESS", ":8080"),
			AllowedOrigin: getEnv("ALLOWED_ORIGIN", "http://localhost:5173"),
		},
		Database: DatabaseConfig{
			PostgresURL: postgresURL,
		},
		FCM: FCMConfig{
			ProjectID:       projectID,
			CredentialsFile: credFile,
			Endpoint: getEnv("FCM_ENDPOINT",
				fmt.Sprintf("https://fcm.googleapis.com/v1/projects/%s/messages:send", projectID)),
			TTL: time.Duration(fcmTTL) * time.Second,
		},
		History: HistoryConfig{
			Limit: historyLimit,
		},
		Redis: redisCfg,
	}, nil
}

func loadRedisConfig() (RedisConfig, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}, nil
	}

	var errs []error

	db, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		errs = append(errs, err)
	}

	ttl, err := getEnvInt("REDIS_TTL_SECONDS", 86400)
	if err != nil {
		errs = append(errs, err)
	}

	if err := joinErrors(errs); err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
		TTL:      time.Duration(ttl) * time.Second,
	}, nil
}

func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("missing required env var: %s", key)
	}
	return val, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid int for env %s: %s", key, v)
	}
	return i, nil
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
