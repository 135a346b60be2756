package shared

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

type Config struct {
	AppEnv          string
	HTTPAddr        string
	MetricsAddr     string
	RedisAddr       string
	RedisDB         int
	RedisPass       string
	SessionTTL      time.Duration
	GenerateDelay   time.Duration
	RegenerateDelay time.Duration
	MaxInflight     int
	ActionRPS       int
}

// AppEnv reads APP_ENV on its own so the logger can be set up before Load warns.
func AppEnv() string { return env("APP_ENV", "prod") }

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-numeric env value")
		}
		return def
	}
	c := Config{
		AppEnv:          AppEnv(),
		HTTPAddr:        env("HTTP_ADDR", ":8080"),
		MetricsAddr:     env("METRICS_ADDR", ""),
		RedisAddr:       env("REDIS_ADDR", ""),
		RedisPass:       env("REDIS_PASSWORD", ""),
		RedisDB:         atoi("REDIS_DB", 0),
		SessionTTL:      time.Duration(atoi("SESSION_TTL_SECONDS", 3600)) * time.Second,
		GenerateDelay:   time.Duration(atoi("GENERATE_DELAY_MS", 1500)) * time.Millisecond,
		RegenerateDelay: time.Duration(atoi("REGENERATE_DELAY_MS", 800)) * time.Millisecond,
		MaxInflight:     atoi("MAX_INFLIGHT", 64),
		ActionRPS:       atoi("ACTION_RPS", 20),
	}
	if c.MaxInflight <= 0 {
		c.MaxInflight = 1
	}
	if c.RedisAddr == "" {
		log.Warn().Msg("REDIS_ADDR is empty; sessions are kept in memory")
	}
	return c
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
