package main

import (
	"fmt"
	"os"

	"zapdesk/internal/app"
	"zapdesk/internal/infra/config"
)

func main() {
	cfg := config.Load(os.Getenv("ZAPDESK_CONFIG"))

	application, err := app.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
