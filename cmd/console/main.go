package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stockmaster/console/internal/cache"
	"stockmaster/console/internal/config"
	"stockmaster/console/internal/httpapi"
	"stockmaster/console/internal/normalize"
	"stockmaster/console/internal/service"
	"stockmaster/console/internal/store"
	"stockmaster/console/internal/store/memory"
	pgstore "stockmaster/console/internal/store/postgres"
	"stockmaster/console/internal/store/remote"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	normalizer := normalize.New(loc)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	var inventory store.Inventory
	if cfg.UpstreamURL != "" {
		inventory = remote.New(cfg.UpstreamURL, cfg.UpstreamTimeout, normalizer)
		log.Printf("inventory: %s", cfg.UpstreamURL)
	} else {
		inventory = memory.NewSeeded(memory.Options{
			Secret:       cfg.AuthSecret,
			SeedPassword: cfg.SeedPassword,
			Location:     loc,
		})
		log.Println("inventory: in-memory")
	}

	var acks cache.AckStore = cache.NewMemoryAckStore()
	if cfg.RedisAddr != "" {
		redisAcks := cache.NewRedisAckStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisAcks.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), keeping acknowledgments in memory", err)
		} else {
			acks = redisAcks
			closers = append(closers, redisAcks.Close)
			log.Println("acknowledgments: redis")
		}
	} else {
		log.Println("acknowledgments: in-memory")
	}

	var audit store.AuditLog
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start without the audit log", err)
		}
		audit = pg
		closers = append(closers, pg.Close)
		log.Println("audit log: postgres")
	} else {
		audit = memory.NewAuditLog()
		log.Println("audit log: in-memory")
	}

	console := service.New(service.Options{
		Inventory:        inventory,
		Acks:             acks,
		Audit:            audit,
		Normalizer:       normalizer,
		RefreshInterval:  cfg.RefreshInterval,
		LivenessInterval: cfg.LivenessEvery,
	})
	api := httpapi.New(console, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("stockmaster console listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	console.Close()

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("console stopped")
}

// validateSecurityConfig checks the settings that guard tokens. AUTH_SECRET
// signs tokens only when the built-in service stands in for the real one.
func validateSecurityConfig(cfg config.Config) error {
	if cfg.UpstreamURL == "" {
		if len(cfg.AuthSecret) < 32 {
			return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters when UPSTREAM_URL is empty")
		}
		return nil
	}
	parsed, err := url.Parse(cfg.UpstreamURL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return fmt.Errorf("UPSTREAM_URL must be an absolute http(s) URL")
	}
	return nil
}
