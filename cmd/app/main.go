package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"HotelRevenue/internal/di"
	"HotelRevenue/pkg/config"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("env=%s store=%s cache=%s kafka=%t", cfg.Environment, cfg.Store.Driver, cfg.Cache.Mode, cfg.Kafka.Enabled)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		cleanup()
		os.Exit(1)
	}
	cleanup()
}
