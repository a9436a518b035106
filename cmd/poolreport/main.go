// Package main implements the poolreport command. It reads back what the
// configured backends stored for an experiment and prints it as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/bardlex/poolsim/internal/config"
	"github.com/bardlex/poolsim/internal/database"
	"github.com/bardlex/poolsim/pkg/errors"
	"github.com/bardlex/poolsim/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdout); err != nil {
		logger.WithError(err).Error("poolreport failed")
		stop()
		os.Exit(1)
	}
}

// run writes the report of the configured experiment to out. A report with
// unreadable backends is still written.
func run(ctx context.Context, cfg *config.Config, logger *log.Logger, out io.Writer) error {
	exp, err := config.LoadExperiment(cfg.ExperimentPath)
	if err != nil {
		return err
	}
	if cfg.ExperimentID != "" {
		exp.ID = cfg.ExperimentID
	}

	dbCfg := database.ConfigFromService(cfg)
	if dbCfg.Empty() {
		return errors.Config("no_backend", "no export backend configured")
	}

	manager, err := database.NewManager(ctx, dbCfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logger.WithError(err).Error("failed to close databases")
		}
	}()

	opts := database.ReportOptions{
		Top:        cfg.ReportTop,
		BlockLimit: cfg.ReportBlocks,
		Range:      cfg.ReportRange,
	}
	for _, spec := range exp.Pools {
		opts.Pools = append(opts.Pools, spec.Name)
	}

	report, reportErr := manager.Report(ctx, exp.ID, opts)

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return reportErr
}
