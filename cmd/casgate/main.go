package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"casgate/internal/config"
	"casgate/internal/constants"
	"casgate/internal/logger"
	"casgate/internal/server"
	"casgate/internal/version"
)

func main() {
	// 0. Version flag
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()
	if *showVersion {
		fmt.Printf("%s %s\n", constants.AppDisplayName, version.Version)
		os.Exit(0)
	}

	// 1. Initialize logger
	log := logger.New(logger.LevelDebug)
	log.Info("%s version %s starting", constants.AppDisplayName, version.Version)
	defer log.Close()

	// 2. Load environment and config
	if err := godotenv.Load(); err == nil {
		log.Debug("Loaded environment from .env")
	}
	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	switch cfg.LogLevel {
	case "info":
		log.SetLevel(logger.LevelInfo)
	case "warn":
		log.SetLevel(logger.LevelWarn)
	case "error":
		log.SetLevel(logger.LevelError)
	}
	cfg.LogEffectiveValues(log)

	// 3. Wire the application
	app, err := server.NewApp(cfg, log)
	if err != nil {
		log.Error("Failed to initialize: %v", err)
		os.Exit(1)
	}

	// File logging under the data directory
	log.SetDataDir(cfg.DataDirectory)

	// 4. Seed configured admin subjects
	if err := app.SeedAdminRoles(); err != nil {
		log.Error("Failed to seed admin roles: %v", err)
		os.Exit(1)
	}

	// 5. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := server.NewServer(app, addr)

	log.Info("Starting %s server on port %d", constants.AppDisplayName, cfg.Port)
	if err := srv.Start(); err != nil {
		log.Error("Server error: %v", err)
		os.Exit(1)
	}
}
