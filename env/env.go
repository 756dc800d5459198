// Package env reads configuration from process environment variables layered
// over an optional .env file in the working directory.
package env

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var dotEnv = sync.OnceValue(func() map[string]string {
	m, err := godotenv.Read(".env")
	if err != nil {
		return map[string]string{}
	}
	return m
})

// Get returns the value for key, preferring the process environment over the
// .env file. Empty when neither sets it.
func Get(key string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return dotEnv()[key]
}

// GetDefault returns def when key is unset or empty in both sources.
func GetDefault(key, def string) string {
	if v := Get(key); v != "" {
		return v
	}
	return def
}

// Lookup reports whether key is set in either source.
func Lookup(key string) (string, bool) {
	if v, ok := os.LookupEnv(key); ok {
		return v, true
	}
	v, ok := dotEnv()[key]
	return v, ok
}
