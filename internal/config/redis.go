package config

import (
	"os"
	"strconv"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// GetRedisConfig builds the Redis settings from the loaded config, with
// environment variables taking precedence
func GetRedisConfig() RedisConfig {
	var base RedisConfig
	if instance != nil {
		base = RedisConfig{
			Addr:     instance.Redis.Addr,
			Password: instance.Redis.Password,
			DB:       instance.Redis.DB,
			Prefix:   instance.Redis.Prefix,
		}
	}

	db := base.DB
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			db = parsed
		}
	}

	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", orDefault(base.Addr, "localhost:6379")),
		Password: getEnv("REDIS_PASSWORD", base.Password),
		DB:       db,
		Prefix:   getEnv("REDIS_PREFIX", orDefault(base.Prefix, "cityweather:")),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
