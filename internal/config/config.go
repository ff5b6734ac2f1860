package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	AllowedOrigin   string
	UpstreamURL     string
	UpstreamTimeout time.Duration
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	DatabaseURL     string
	RefreshInterval time.Duration
	LivenessEvery   time.Duration
	Timezone        string
	AuthSecret      string
	SeedPassword    string
}

// Load reads a .env file when one is present, then the process environment.
// Variables already set in the environment win over the file.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("[config] WARN: .env not loaded: %v", err)
	}

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return Config{
		Port:            getEnv("PORT", "8080"),
		AllowedOrigin:   getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		UpstreamURL:     strings.TrimSpace(os.Getenv("UPSTREAM_URL")),
		UpstreamTimeout: seconds("UPSTREAM_TIMEOUT_SECONDS", 10),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         redisDB,
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RefreshInterval: seconds("REFRESH_INTERVAL_SECONDS", 15),
		LivenessEvery:   seconds("LIVENESS_INTERVAL_SECONDS", 8),
		Timezone:        strings.TrimSpace(os.Getenv("TIMEZONE")),
		AuthSecret:      strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		SeedPassword:    strings.TrimSpace(os.Getenv("SEED_ADMIN_PASSWORD")),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves TIMEZONE, falling back to the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func seconds(key string, fallback int) time.Duration {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < 1 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
