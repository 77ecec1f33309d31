package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/dejobratic/storefront/internal/config"
	"github.com/dejobratic/storefront/internal/database"
	"github.com/dejobratic/storefront/internal/telemetry"
	"github.com/joho/godotenv"
)

const usage = `usage: migrate [-path dir] <command>

commands:
  up          apply all pending migrations
  down N      roll back the last N migrations
  version     print the current schema version
`

func main() {
	_ = godotenv.Load()

	logger := telemetry.NewLogger(telemetry.LoggerOptions{Level: telemetry.ParseLevel(os.Getenv("LOG_LEVEL"))})

	pathFlag := flag.String("path", "", "path to migration files (overrides MIGRATIONS_PATH)")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadDatabase()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *pathFlag != "" {
		cfg.MigrationsPath = *pathFlag
	}

	if err := run(cfg, flag.Args(), logger); err != nil {
		logger.Error("migration command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(cfg config.DatabaseConfig, args []string, logger *slog.Logger) error {
	mg, err := database.NewMigrator(cfg.URL, cfg.MigrationsPath)
	if err != nil {
		return err
	}
	defer mg.Close()

	switch args[0] {
	case "up":
		if err := mg.Up(); err != nil {
			return err
		}
	case "down":
		if len(args) != 2 {
			return errors.New("down needs the number of steps")
		}
		steps, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid step count %q: %w", args[1], err)
		}
		if err := mg.Down(steps); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	version, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	logger.Info("schema version", "version", version, "dirty", dirty, "path", cfg.MigrationsPath)
	return nil
}
