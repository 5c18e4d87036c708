package env

import "os"

// Get reads a plain environment variable outside the READCYCLE_ prefixed
// config, such as LOG_FORMAT, falling back when it is unset or empty.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
