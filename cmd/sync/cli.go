package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/riskibarqy/league-sync/internal/app"
	"github.com/riskibarqy/league-sync/internal/config"
	"github.com/riskibarqy/league-sync/internal/domain/entity"
	"github.com/riskibarqy/league-sync/internal/domain/source"
	"github.com/riskibarqy/league-sync/internal/observability"
	"github.com/riskibarqy/league-sync/internal/platform/logging"
)

var tracer = otel.Tracer("github.com/riskibarqy/league-sync/cmd/sync")

// cli carries the state built by the root command for its subcommands.
type cli struct {
	envFile     string
	storeDriver string

	cfg      config.Config
	logger   *logging.Logger
	app      *app.App
	shutdown observability.Shutdown
}

func (c *cli) setup(cmd *cobra.Command) error {
	if err := loadEnvFile(c.envFile); err != nil {
		return err
	}
	if c.storeDriver != "" {
		if err := os.Setenv("STORE_DRIVER", c.storeDriver); err != nil {
			return fmt.Errorf("set STORE_DRIVER: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger = logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Output:  cmd.ErrOrStderr(),
		Service: cfg.ServiceName,
		Version: cfg.ServiceVersion,
	})
	logging.SetDefault(c.logger)

	shutdown, err := observability.Init(cfg, c.logger)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	c.shutdown = shutdown

	a, err := app.New(cmd.Context(), cfg, c.logger)
	if err != nil {
		return err
	}
	c.app = a
	return nil
}

func (c *cli) close() {
	if c.app != nil {
		if err := c.app.Close(); err != nil {
			logging.Or(c.logger).Error("close app failed", "error", err)
		}
	}
	if c.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.shutdown(ctx); err != nil {
			logging.Or(c.logger).Error("telemetry shutdown failed", "error", err)
		}
	}
}

// traced runs fn under a root span so usecase spans have a parent.
func (c *cli) traced(cmd *cobra.Command, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	ctx, span := tracer.Start(cmd.Context(), "sync."+cmd.Name())
	defer span.End()
	span.SetAttributes(attrs...)

	if err := fn(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// loadEnvFile seeds the environment from path. A missing file is not an error.
func loadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func parseSource(raw string) (source.Source, error) {
	src, err := source.Parse(raw)
	if err != nil {
		return 0, err
	}
	if !src.IsSite() {
		return 0, fmt.Errorf("%s is not a league site", src)
	}
	return src, nil
}

func parseKind(raw string) (entity.Kind, error) {
	switch kind := entity.Kind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case entity.KindMatch, entity.KindRoster, entity.KindPlayer:
		return kind, nil
	case "team", "teams", "rosters":
		return entity.KindRoster, nil
	case "matches":
		return entity.KindMatch, nil
	case "players":
		return entity.KindPlayer, nil
	default:
		return "", fmt.Errorf("unknown kind %q (want match, roster or player)", raw)
	}
}
