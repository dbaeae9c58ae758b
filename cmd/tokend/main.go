package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/lockbridge/tokenvault/internal/token/app"
)

func main() {
	// A local .env overrides nothing already in the environment.
	_ = godotenv.Load()

	cfg := app.LoadConfig()

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
