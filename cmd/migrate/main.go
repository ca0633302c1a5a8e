package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/SergeyBogomolovv/checkout-service/internal/config"
	"github.com/SergeyBogomolovv/checkout-service/internal/telemetry"
	"github.com/SergeyBogomolovv/checkout-service/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
)

const usage = `usage: migrate <command>

commands:
  up           apply all pending migrations
  down [n]     roll back n migrations (default 1)
  version      print the current schema version
`

func main() {
	godotenv.Load()

	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	conf := config.New()
	logger := telemetry.NewLogger(os.Stdout, conf.Env)

	m, err := migrations.New(conf.Postgres.URL())
	if err != nil {
		logger.Error("failed to init migrations", slog.Any("error", err))
		os.Exit(1)
	}
	defer m.Close()

	if err := run(m, logger, flag.Args()); err != nil {
		logger.Error("migration failed", slog.String("command", flag.Arg(0)), slog.Any("error", err))
		os.Exit(1)
	}
}

func run(m *migrate.Migrate, logger *slog.Logger, args []string) error {
	switch args[0] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return fmt.Errorf("invalid step count %q", args[1])
			}
			steps = n
		}
		if err := m.Steps(-steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}

	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		logger.Info("no migrations applied")
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("schema version", slog.Uint64("version", uint64(version)), slog.Bool("dirty", dirty))
	return nil
}
