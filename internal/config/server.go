package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"lattice-pricer/internal/model"
)

// Server is the API process configuration, read from the environment.
type Server struct {
	Port             string        // API_PORT
	Env              string        // API_ENV
	ResultTTL        time.Duration // RESULT_TTL
	BatchConcurrency int           // BATCH_CONCURRENCY
	MarketFile       string        // MARKET_FILE, preloaded into the registry
	AllowedOrigins   []string      // CORS_ORIGINS, comma separated; empty allows any
}

func (s Server) Production() bool { return s.Env == "production" }

// ServerFromEnv reads the server settings, applying defaults for unset
// variables.
func ServerFromEnv() (Server, error) {
	s := Server{
		Port:             os.Getenv("API_PORT"),
		Env:              os.Getenv("API_ENV"),
		ResultTTL:        time.Hour,
		BatchConcurrency: 4,
		MarketFile:       os.Getenv("MARKET_FILE"),
	}
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			s.AllowedOrigins = append(s.AllowedOrigins, o)
		}
	}
	if s.Port == "" {
		s.Port = "8080"
	}
	if v := os.Getenv("RESULT_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return Server{}, model.Invalidf("RESULT_TTL %q must be a positive duration", v)
		}
		s.ResultTTL = ttl
	}
	if v := os.Getenv("BATCH_CONCURRENCY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Server{}, model.Invalidf("BATCH_CONCURRENCY %q must be a positive integer", v)
		}
		s.BatchConcurrency = n
	}
	return s, nil
}
