// Package main implements the poolsim command. It runs one mining pool
// experiment and prints the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/time/rate"

	"github.com/bardlex/poolsim/internal/config"
	"github.com/bardlex/poolsim/internal/database"
	"github.com/bardlex/poolsim/internal/messaging"
	"github.com/bardlex/poolsim/internal/simulator"
	"github.com/bardlex/poolsim/pkg/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := log.New(cfg.ServiceName, cfg.Version, cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, os.Stdout); err != nil {
		logger.WithError(err).Error("poolsim failed")
		stop()
		os.Exit(1)
	}
}

// run executes the configured experiment and writes its result to out. An
// interrupted run still writes the partial result.
func run(ctx context.Context, cfg *config.Config, logger *log.Logger, out io.Writer) error {
	exp, err := config.LoadExperiment(cfg.ExperimentPath)
	if err != nil {
		return err
	}
	if cfg.ExperimentID != "" {
		exp.ID = cfg.ExperimentID
	}

	logger.Info("starting poolsim",
		"version", cfg.Version,
		"experiment", exp.ID,
		"path", cfg.ExperimentPath,
	)

	recorder, err := buildRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			logger.WithError(err).Error("failed to close recorders")
		}
	}()

	sim, err := simulator.New(exp, logger, recorder, simulatorOptions(cfg)...)
	if err != nil {
		return err
	}

	result, runErr := sim.Run(ctx)
	if err := writeResult(out, result); err != nil {
		return err
	}
	return runErr
}

// buildRecorder connects every configured export target. Without any, the
// result is only printed.
func buildRecorder(ctx context.Context, cfg *config.Config, logger *log.Logger) (simulator.Recorder, error) {
	var recorders simulator.MultiRecorder

	closeAll := func(err error) (simulator.Recorder, error) {
		if closeErr := recorders.Close(); closeErr != nil {
			logger.WithError(closeErr).Error("failed to close recorders")
		}
		return nil, err
	}

	if dbCfg := database.ConfigFromService(cfg); !dbCfg.Empty() {
		manager, err := database.NewManager(ctx, dbCfg, logger)
		if err != nil {
			return closeAll(err)
		}
		recorders = append(recorders, manager)
	}

	if len(cfg.KafkaBrokers) > 0 {
		client := messaging.NewKafkaClient(cfg.KafkaBrokers, logger)
		recorders = append(recorders, messaging.NewPublisher(client))
	}

	if cfg.ZMQPubAddr != "" {
		pub, err := messaging.NewZMQPublisher(cfg.ZMQPubAddr, logger)
		if err != nil {
			return closeAll(err)
		}
		recorders = append(recorders, pub)
	}

	switch len(recorders) {
	case 0:
		return simulator.Discard{}, nil
	case 1:
		return recorders[0], nil
	default:
		return recorders, nil
	}
}

func simulatorOptions(cfg *config.Config) []simulator.Option {
	opts := []simulator.Option{simulator.WithProgressEvery(cfg.ProgressEvery)}
	if cfg.ShareRate > 0 {
		opts = append(opts, simulator.WithLimiter(rate.NewLimiter(rate.Limit(cfg.ShareRate), cfg.ShareBurst)))
	}
	return opts
}

func writeResult(out io.Writer, result *simulator.Result) error {
	if result == nil {
		return nil
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
