package main

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"github.com/bimaudit/bimaudit/internal/api"
	"github.com/bimaudit/bimaudit/internal/common"
)

func main() {
	_ = godotenv.Load()

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Println("ERROR:", err)
		log.Println("  set BIMAUDIT_API_URL to the backend base URL, e.g. http://localhost:8000")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, cfg.API.HealthTimeout)
	defer cancel()

	client := api.NewClient(cfg.API.BaseURL, nil, nil)
	health, err := client.Health(ctx)
	if err != nil {
		log.Fatalf("API health: FAIL (%v)", err)
	}
	log.Printf("API health: %s (%s)", health.Status, health.Message)
}
