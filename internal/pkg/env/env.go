// Package env loads configuration from a .env file with OS environment
// fallback.
package env

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

var values map[string]string

// SetupEnvFile loads the nearest .env file, walking up from the working
// directory so binaries under cmd/ still find the project root file.
// When no file exists, lookups fall back to the process environment.
func SetupEnvFile() {
	values = map[string]string{}
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for depth := 0; depth < 4; depth++ {
		loaded, err := godotenv.Read(filepath.Join(dir, ".env"))
		if err == nil {
			values = loaded
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

// GetEnv returns the configured value for key, preferring the loaded
// .env file over the process environment, or def when neither is set.
func GetEnv(key, def string) string {
	if val, ok := values[key]; ok {
		return val
	}
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
