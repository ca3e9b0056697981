package config

import (
	"os"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
)

var loadEnvOnce sync.Once

// LoadEnv reads .env into the process environment. Variables that are already
// set win, so container-provided values are never overwritten.
func LoadEnv(files ...string) error {
	var err error
	loadEnvOnce.Do(func() {
		if len(files) == 0 {
			files = []string{".env"}
		}
		err = godotenv.Load(files...)
	})
	return err
}

// GetEnv returns the value of an environment variable or "" when unset.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvDefault returns the variable's value, or def when it is unset or empty.
func GetEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// GetEnvInt parses an integer variable and falls back to def on absence or parse failure.
func GetEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
