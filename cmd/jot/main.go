package main

import (
	"log"

	"github.com/MrSnakeDoc/jot/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ jot failed to start: %v", err)
	}
}
