package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/parley/chat-relay/internal/audit"
	"github.com/parley/chat-relay/internal/ban"
	"github.com/parley/chat-relay/internal/config"
	"github.com/parley/chat-relay/internal/history"
	"github.com/parley/chat-relay/internal/identity"
	"github.com/parley/chat-relay/internal/metrics"
	"github.com/parley/chat-relay/internal/relay"
	"github.com/parley/chat-relay/internal/ws"
)

func main() {
	cfg, err := config.LoadRelay()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// --- Redis (identity + ban stores) ---
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.Fatalf("failed to connect to Redis: %v", err)
	}
	cancel()

	resolver := identity.NewResolver(identity.NewRedisStore(rdb))
	resolver.UsePalette = cfg.AvatarPalette
	banStore := ban.NewStore(rdb)

	// --- Badger (message history) ---
	historyLog, err := history.Open(cfg.BadgerDir)
	if err != nil {
		log.Fatalf("failed to open history log: %v", err)
	}

	// --- NATS (audit stream, optional) ---
	var sink audit.Sink = audit.NopSink{}
	var natsSink *audit.NATSSink
	if cfg.NATSURL != "" {
		natsConfig := audit.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = "parley-relay"
		natsSink, err = audit.NewNATSSink(natsConfig)
		if err != nil {
			log.Fatalf("failed to connect to NATS: %v", err)
		}
		sink = natsSink
	}

	serverConfig := ws.ServerConfig{
		ListenAddr:     cfg.ListenAddr,
		WorkerPoolSize: cfg.WorkerPoolSize,
		MaxConnections: cfg.MaxConnections,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
	}

	log.Printf("Parley chat relay starting")
	log.Printf("  listen_addr:     %s", cfg.ListenAddr)
	log.Printf("  worker_pool:     %d", cfg.WorkerPoolSize)
	log.Printf("  max_connections: %d", cfg.MaxConnections)
	log.Printf("  redis_addr:      %s", cfg.RedisAddr)
	log.Printf("  badger_dir:      %s", cfg.BadgerDir)
	log.Printf("  nats_url:        %s", cfg.NATSURL)
	log.Printf("  default_channel: %s", cfg.DefaultChannel)

	// Wire the relay core. The dispatcher is created first because NewServer
	// needs its Dispatch callback; the server reference is set afterwards.
	dispatcher := ws.NewMessageDispatcher(nil)

	var service *relay.Service
	server := ws.NewServer(serverConfig,
		func(conn *ws.Connection) { service.OnConnect(conn) },
		dispatcher.Dispatch,
	)
	dispatcher.SetServer(server)
	server.Handle("/metrics", metrics.Handler())

	service = relay.NewService(relay.Config{
		Transport:      server,
		Identities:     resolver,
		Bans:           banStore,
		History:        historyLog,
		Audit:          sink,
		AdminSecret:    cfg.AdminSecret,
		DefaultChannel: cfg.DefaultChannel,
	})
	service.RegisterHandlers(dispatcher)
	server.SetOnDisconnect(service.OnDisconnect)

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("received signal %v, initiating graceful shutdown...", sig)
		if err := server.Shutdown(); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		if natsSink != nil {
			natsSink.Close()
		}
		if err := historyLog.Close(); err != nil {
			log.Printf("history close error: %v", err)
		}
		if err := rdb.Close(); err != nil {
			log.Printf("redis close error: %v", err)
		}
		os.Exit(0)
	}()

	if err := server.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
