package app

import (
	"github.com/yungbote/neurobridge-coursegen/internal/data/db"
	"github.com/yungbote/neurobridge-coursegen/internal/platform/envutil"
)

type Config struct {
	LogMode     string
	Port        string
	ServiceName string
	Environment string
	Version     string

	MaxConcurrentRuns int64
	MetricsAddr       string
	DB                db.Config
}

func LoadConfig() Config {
	return Config{
		LogMode:           envutil.String("LOG_MODE", "development"),
		Port:              envutil.String("PORT", "8080"),
		ServiceName:       envutil.String("OTEL_SERVICE_NAME", "coursegen"),
		Environment:       envutil.String("APP_ENV", "development"),
		Version:           envutil.String("APP_VERSION", "dev"),
		MaxConcurrentRuns: int64(envutil.Int("MAX_CONCURRENT_RUNS", 4)),
		MetricsAddr:       envutil.String("METRICS_ADDR", ""),
		DB:                db.ConfigFromEnv(),
	}
}
