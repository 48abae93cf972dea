package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment variables
type Config struct {
	Port string
	// YFBaseURL overrides the Yahoo Finance chart endpoint (tests point it
	// at a local fixture server). Empty means the public endpoint.
	YFBaseURL string
	// SGDPerUSD is the fixed FX fallback used when the provider cannot
	// supply a live USD/SGD rate.
	SGDPerUSD float64
	// QuoteTTLSeconds controls how long fetched quotes and FX rates are
	// served from the in-memory cache.
	QuoteTTLSeconds int
}

// Load reads configuration from the environment, with a .env file applied
// first when present.
func Load() (*Config, error) {
	// A missing .env is fine; the environment alone is enough.
	_ = godotenv.Load()

	cfg := &Config{
		Port:            "8080",
		SGDPerUSD:       1.35,
		QuoteTTLSeconds: 300,
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	cfg.YFBaseURL = os.Getenv("YF_BASE_URL")

	if raw := os.Getenv("SGD_PER_USD"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil || rate <= 0 {
			return nil, fmt.Errorf("invalid SGD_PER_USD value %q", raw)
		}
		cfg.SGDPerUSD = rate
	}

	if raw := os.Getenv("QUOTE_TTL_SECONDS"); raw != "" {
		ttl, err := strconv.Atoi(raw)
		if err != nil || ttl <= 0 {
			return nil, fmt.Errorf("invalid QUOTE_TTL_SECONDS value %q", raw)
		}
		cfg.QuoteTTLSeconds = ttl
	}

	return cfg, nil
}
