package main

import (
	"log"
	"os"

	"media-catalog/internal/config"
)

func main() {
	// stdout carries dumpdata output.
	logger := log.New(os.Stderr, "media-catalog ", log.LstdFlags|log.Lmsgprefix)

	if err := config.LoadEnvFile(); err != nil {
		logger.Fatalf("load env file: %v", err)
	}

	app := newApp(logger)
	if err := app.Run(os.Args); err != nil {
		logger.Fatalf("%v", err)
	}
}
