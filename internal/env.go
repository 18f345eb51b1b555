package internal

import (
	"os"

	"github.com/joho/godotenv"
)

// Environment variables providing defaults for command line flags.
const (
	EnvTimer      = "PINGPONG_TIMER"
	EnvUnit       = "PINGPONG_UNIT"
	EnvWorkload   = "PINGPONG_WORKLOAD"
	EnvStatsdAddr = "PINGPONG_STATSD_ADDR"
)

// LoadEnv loads the given dotenv files (".env" if none) into the process
// environment. Missing files are ignored and variables already set win.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// Getenv returns the value of key, or def if it is unset or empty.
func Getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
