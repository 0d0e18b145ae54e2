// twin-subscriptions simulates the subscription tracking backend: a small
// REST API over /subscriptions plus the shared /admin control plane.
//
// Integration method: point SUBTRACK_API_BASE_URL at the twin
// Default port: 8000
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/wondertwin-ai/subtrack/internal/twin/api"
	"github.com/wondertwin-ai/subtrack/internal/twin/store"
	"github.com/wondertwin-ai/subtrack/pkg/admin"
	"github.com/wondertwin-ai/subtrack/pkg/twincore"
)

func main() {
	cfg, err := twincore.ParseFlags("twin-subscriptions", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("invalid flags: %v", err)
	}

	twin := twincore.New(cfg)
	memStore := store.New()

	// API handlers
	api.NewHandler(memStore, twin.Middleware(), cfg.AuthSecret).Routes(twin.Router)

	// Admin control plane
	admin.ForTwin(memStore, twin).Routes(twin.Router)

	// Load seed data if provided
	if cfg.SeedFile != "" {
		data, err := os.ReadFile(cfg.SeedFile)
		if err != nil {
			log.Fatalf("failed to read seed file: %v", err)
		}
		if err := memStore.Seed(data); err != nil {
			log.Fatalf("failed to load seed data: %v", err)
		}
		twin.Logger.Info("loaded seed data", "file", cfg.SeedFile, "subscriptions", len(memStore.List()))
	}

	twin.Logger.Info("twin-subscriptions ready",
		"port", cfg.Port,
		"auth", cfg.AuthSecret != "",
	)

	if err := twin.Serve(context.Background()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
