package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/samuelfneumann/breakoutdqn/agent/deepq"
	"github.com/samuelfneumann/breakoutdqn/config"
	"github.com/samuelfneumann/breakoutdqn/environment/atari"
	"github.com/samuelfneumann/breakoutdqn/environment/envconfig"
	_ "github.com/samuelfneumann/breakoutdqn/environment/gym"
	"github.com/samuelfneumann/breakoutdqn/experiment"
	"github.com/samuelfneumann/breakoutdqn/experiment/checkpointer"
	"github.com/samuelfneumann/breakoutdqn/experiment/trackers"
	"github.com/samuelfneumann/breakoutdqn/expreplay"
)

func main() {
	var paramsFile, restore string

	rootCmd := &cobra.Command{
		Use:   "breakoutdqn",
		Short: "Train and evaluate a DQN agent on Atari Breakout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), paramsFile, restore)
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().StringVar(&paramsFile, "params-file", "parameters.json",
		"JSON parameters file")
	rootCmd.Flags().StringVar(&restore, "restore", "",
		"agent checkpoint to restore before running")

	// A missing .env file is not an error
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt,
		syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, paramsFile, restore string) error {
	params, err := config.Load(paramsFile)
	if err != nil {
		return err
	}
	if err := params.ApplyEnv(os.LookupEnv); err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return err
	}

	level, err := params.Level()
	if err != nil {
		return err
	}
	runID := uuid.New().String()
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}).Level(level).With().Timestamp().Str("run", runID).Logger()

	if err := execute(ctx, params, restore, runID, logger); err != nil {
		logger.Error().Err(err).Msg("run failed")
		return err
	}
	return nil
}

func execute(ctx context.Context, params config.Params, restore,
	runID string, logger zerolog.Logger) error {
	outputDir := params.Agent.OutputDir
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("execute: could not create output directory: %w",
			err)
	}

	// Environment
	defer envconfig.Shutdown()
	emulator, err := params.Environment.Emulator(params.EmulatorSeed())
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	if params.Environment.Backend == envconfig.Gym {
		logger.Warn().Msg("gym backend reports constant lives, lives " +
			"lost mid-episode are not seen")
	}
	session, err := atari.New(emulator, params.Session(), logger)
	if err != nil {
		emulator.Close()
		return fmt.Errorf("execute: %w", err)
	}
	defer session.Close()

	// Replay memory and agent
	memory, err := expreplay.New(params.Replay(),
		expreplay.NewUniformSelector(params.ReplaySeed()))
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	q, err := deepq.New(params.DeepQ(session.NumActions()), logger)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	defer q.Close()
	if restore != "" {
		if err := q.Load(restore); err != nil {
			return fmt.Errorf("execute: %w", err)
		}
		logger.Info().Str("file", restore).Msg("restored agent checkpoint")
	}

	// Trackers and checkpointers
	prefix := filepath.Join(outputDir, runID)
	tracked := []trackers.Tracker{
		trackers.NewReturn(prefix + "_returns.bin"),
		trackers.NewEpisodeLength(prefix + "_episode_lengths.bin"),
	}
	var checks []checkpointer.Checkpointer
	if every := params.Agent.CheckpointEvery; every > 0 {
		check, err := checkpointer.NewNStep(every, q,
			checkpointer.EpochFilename(outputDir, runID+"_agent", ".bin",
				every))
		if err != nil {
			return fmt.Errorf("execute: %w", err)
		}
		checks = append(checks, check)
	}

	scheduler, err := experiment.New(params.Experiment(), session, memory,
		q, logger, tracked, checks)
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	logger.Info().
		Str("environment", params.Environment.Name).
		Str("backend", string(params.Environment.Backend)).
		Int("actions", session.NumActions()).
		Bool("training", params.Agent.Training).
		Msg("starting")

	if !params.Agent.Training {
		result, err := scheduler.Evaluate(ctx)
		if err != nil {
			return fmt.Errorf("execute: %w", err)
		}
		logger.Info().Int("episodes", result.Episodes()).
			Msg("evaluation finished")
		return nil
	}

	runErr := scheduler.Run(ctx)

	// Whatever was tracked is saved even if the run was interrupted
	if err := scheduler.Save(); err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	err = trackers.SaveSeries(prefix+"_epochs_means.bin",
		scheduler.EpochsMeans())
	if err != nil {
		return fmt.Errorf("execute: %w", err)
	}
	if err := q.Save(prefix + "_agent_final.bin"); err != nil {
		return fmt.Errorf("execute: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("execute: %w", runErr)
	}
	logger.Info().Int("frames", scheduler.Frame()).Msg("training finished")
	return nil
}
