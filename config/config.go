package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string
	GinMode        string
	AllowedOrigins []string
	TokenKey       string
}

// Load reads configuration from the environment. A .env file, if present,
// is loaded first so local development doesn't need exported vars.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:    getEnv("ADDR", ":5000"),
		GinMode: getEnv("GIN_MODE", "debug"),
	}

	cfg.AllowedOrigins = splitCSV(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"))

	key, exists := os.LookupEnv("TOKEN_KEY")
	if !exists || key == "" {
		return Config{}, fmt.Errorf("missing TOKEN_KEY")
	}
	cfg.TokenKey = key

	return cfg, nil
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
