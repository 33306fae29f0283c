package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/yumyai/hadesign/logger"
	"github.com/yumyai/hadesign/pkg/cmd"
)

func main() {

	// Try load env before reading the log level from it
	dotenvErr := godotenv.Load()

	if err := logger.InitLogger(logger.ParseLevel(os.Getenv("HADESIGN_LOG_LEVEL"))); err != nil {
		panic(err)
	}

	if dotenvErr != nil {
		logger.Warn("No .env found, using local environment")
	}

	err := cmd.Execute()
	logger.Sync() // Make sure that the buffered is flushed.
	if err != nil {
		os.Exit(1)
	}
}
