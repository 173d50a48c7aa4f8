// Package main is the entry point for the NDJSON stream server.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/oremus-labs/ol-jsonl/config"
	"github.com/oremus-labs/ol-jsonl/internal/api"
	"github.com/oremus-labs/ol-jsonl/internal/events"
	"github.com/oremus-labs/ol-jsonl/internal/handlers"
	"github.com/oremus-labs/ol-jsonl/internal/logutil"
	"github.com/oremus-labs/ol-jsonl/internal/ndjson"
	"github.com/oremus-labs/ol-jsonl/internal/redisx"
	"github.com/oremus-labs/ol-jsonl/internal/store"
	"github.com/oremus-labs/ol-jsonl/internal/users"
)

const version = "0.1.0"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting jsonl stream server v%s", version)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	cfg := config.Load()
	log.Printf("Configuration loaded - Mode: %s, Store: %s, Pacing: %s", cfg.StreamMode, cfg.DataStoreDriver, cfg.StreamPacing)

	source, closeSource, err := openSource(rootCtx, cfg)
	if err != nil {
		log.Fatalf("Failed to open user store: %v", err)
	}
	defer closeSource()

	codec, err := loadCodec(cfg.UserSchemaPath)
	if err != nil {
		log.Fatalf("Failed to load user schema: %v", err)
	}

	redisClient, err := redisx.NewClient(rootCtx, redisx.Config{
		Addr:        cfg.RedisAddr,
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		TLSEnabled:  cfg.RedisTLSEnabled,
		TLSInsecure: cfg.RedisTLSInsecure,
	})
	if err != nil {
		logutil.Warn("redis unavailable, events stay local", map[string]interface{}{
			"addr":  cfg.RedisAddr,
			"error": err.Error(),
		})
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus := events.NewBus(events.Options{
		Client:  redisClient,
		Logger:  log.Default(),
		Channel: cfg.EventsChannel,
	})

	h := handlers.New(source, codec, bus, handlers.Options{
		Mode:            cfg.StreamMode,
		StampDoneOnLast: cfg.StreamStampDone,
		Pacing:          cfg.StreamPacing,
		Version:         version,
	})
	server := api.NewServer(h, api.Options{
		APIToken:     cfg.APIToken,
		WriteTimeout: cfg.StreamWriteTimeout,
	})

	errs := make(chan error, 1)
	srv := server.Start(":"+cfg.ServerPort, errs)
	log.Printf("Server listening on :%s", cfg.ServerPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errs:
		log.Fatalf("Failed to start server: %v", err)
	}

	rootCancel()
	log.Println("Shutting down server...")

	// Event followers never finish on their own.
	_ = bus.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// openSource returns the configured user source, seeded with users.Defaults
// when it starts out empty.
func openSource(ctx context.Context, cfg *config.Config) (users.Source, func(), error) {
	if cfg.DataStoreDriver == "memory" {
		return users.Memory(users.Defaults), func() {}, nil
	}
	st, err := store.Open(cfg.DataStoreDSN, cfg.DataStoreDriver)
	if err != nil {
		return nil, nil, err
	}
	seeded, err := st.Seed(ctx, users.Defaults)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("seed users: %w", err)
	}
	if seeded > 0 {
		log.Printf("Seeded %d users into %s store", seeded, cfg.DataStoreDriver)
	}
	return st, func() { _ = st.Close() }, nil
}

func loadCodec(path string) (ndjson.Codec[users.User], error) {
	if path == "" {
		return users.NewCodec(nil)
	}
	if path == "builtin" {
		return users.NewCodec([]byte(users.Schema))
	}
	schema, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return users.NewCodec(schema)
}
