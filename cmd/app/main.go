package main

import (
	"context"
	"flag"
	"log"
	"os"

	"FinEdge/internal/di"
	"FinEdge/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	log.Printf("env=%s feed=%s symbols=%v clickhouse=%t kafka=%t redis=%t",
		cfg.Environment, cfg.Feed.Source, cfg.Feed.Symbols,
		cfg.ClickHouse.Enabled, cfg.Kafka.Enabled, cfg.Redis.Enabled)

	// Run application (blocks until signal)
	if err := app.Run(context.Background()); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
