package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/integrid/integrid/pkg/compute"
	"github.com/integrid/integrid/pkg/config"
	"github.com/integrid/integrid/pkg/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run a worker against a coordinator",
	Long: `Start one worker process. It requests chunks from the coordinator,
integrates them, and submits the partial results until it is stopped
or the run's formula turns out to be undefined.

Run as many workers as you like; each one mints its own identity.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := workerConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		w, err := worker.New(worker.Config{
			CoordinatorAddr: cfg.CoordinatorAddr,
			Computer:        compute.NewIntegrator(),
			ReceiveTimeout:  cfg.ReceiveTimeout,
			NoJobBackoff:    cfg.NoJobBackoff,
			LivenessPeriod:  cfg.LivenessPeriod,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Worker %s -> %s\n", w.ID(), cfg.CoordinatorAddr)
		return w.Run(ctx)
	},
}

func workerConfig(cmd *cobra.Command) (config.Worker, error) {
	cfg := config.DefaultWorker()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadWorker(path)
		if err != nil {
			return config.Worker{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("coordinator-addr") {
		cfg.CoordinatorAddr, _ = flags.GetString("coordinator-addr")
	}
	if flags.Changed("receive-timeout") {
		cfg.ReceiveTimeout, _ = flags.GetDuration("receive-timeout")
	}
	if flags.Changed("no-job-backoff") {
		cfg.NoJobBackoff, _ = flags.GetDuration("no-job-backoff")
	}
	if flags.Changed("liveness-period") {
		cfg.LivenessPeriod, _ = flags.GetDuration("liveness-period")
	}
	return cfg, nil
}

func init() {
	f := workerCmd.Flags()
	f.String("config", "", "Path to a yaml configuration file")
	f.String("coordinator-addr", config.DefaultBindAddr, "UDP address of the coordinator")
	f.Duration("receive-timeout", config.DefaultReceiveTimeout, "How long to wait for a reply before re-requesting")
	f.Duration("no-job-backoff", config.DefaultNoJobBackoff, "How long to wait after NOJ before asking again")
	f.Duration("liveness-period", config.DefaultLivenessPeriod, "Watchdog ping interval while computing")
}
