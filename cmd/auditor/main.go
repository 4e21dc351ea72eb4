package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/parley/chat-relay/internal/audit"
	"github.com/parley/chat-relay/internal/config"
)

func main() {
	log.Println("Starting Parley audit service...")

	cfg, err := config.LoadAuditor()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Postgres setup (runs pending migrations).
	store, err := audit.OpenPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to open audit store: %v", err)
	}

	// NATS setup: consume the relay's audit stream and persist every entry.
	natsConfig := audit.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "parley-auditor"

	subscriber, err := audit.NewSubscriber(natsConfig, func(entry audit.Entry) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := store.Create(ctx, entry); err != nil {
			log.Printf("[auditor] persist failed: %v (entry: %s)", err, entry)
			return
		}
		log.Printf("[auditor] %s", entry)
	})
	if err != nil {
		log.Fatalf("failed to subscribe to audit stream: %v", err)
	}

	log.Printf("Parley audit service running")
	log.Printf("  nats_url: %s", cfg.NATSURL)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal %v, shutting down...", sig)

	subscriber.Close()
	if err := store.Close(); err != nil {
		log.Printf("audit store close error: %v", err)
	}
}
