package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tomasstrnad1997/minesweeper/mines"
)

const (
	addrEnvName         = "MINES_ADDR"
	dbPathEnvName       = "DB_PATH"
	authSecretEnvName   = "AUTH_SECRET"
	tokenTTLEnvName     = "TOKEN_TTL"
	defaultLevelEnvName = "DEFAULT_LEVEL"
	logLevelEnvName     = "LOG_LEVEL"

	defaultAddr     = "0.0.0.0:42069"
	defaultTokenTTL = 24 * time.Hour
)

type Config struct {
	Addr         string
	DBPath       string
	AuthSecret   []byte
	TokenTTL     time.Duration
	DefaultLevel mines.Level
	LogLevel     logrus.Level
}

// Load reads the environment after applying the .env file at path. A
// missing file is fine; variables already set win over the file.
func Load(path string) (*Config, error) {
	if err := loadFile(path); err != nil {
		return nil, err
	}
	return FromEnv()
}

// DBPath reads only the database location, for tools that do not need the
// rest of the server settings.
func DBPath(path string) (string, error) {
	if err := loadFile(path); err != nil {
		return "", err
	}
	return dbPathFromEnv()
}

func loadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func dbPathFromEnv() (string, error) {
	path := os.Getenv(dbPathEnvName)
	if path == "" {
		return "", fmt.Errorf("%s not set in environment", dbPathEnvName)
	}
	return path, nil
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:         defaultAddr,
		TokenTTL:     defaultTokenTTL,
		DefaultLevel: mines.Easy,
		LogLevel:     logrus.InfoLevel,
	}
	if addr := os.Getenv(addrEnvName); addr != "" {
		cfg.Addr = addr
	}

	dbPath, err := dbPathFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.DBPath = dbPath
	secret := os.Getenv(authSecretEnvName)
	if secret == "" {
		return nil, fmt.Errorf("%s not set in environment", authSecretEnvName)
	}
	cfg.AuthSecret = []byte(secret)

	if ttl := os.Getenv(tokenTTLEnvName); ttl != "" {
		parsed, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", tokenTTLEnvName, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("invalid %s: %s is not positive", tokenTTLEnvName, ttl)
		}
		cfg.TokenTTL = parsed
	}
	if level := os.Getenv(defaultLevelEnvName); level != "" {
		parsed, err := mines.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", defaultLevelEnvName, err)
		}
		cfg.DefaultLevel = parsed
	}
	if level := os.Getenv(logLevelEnvName); level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", logLevelEnvName, err)
		}
		cfg.LogLevel = parsed
	}
	return cfg, nil
}
