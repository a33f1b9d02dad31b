package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/integrid/integrid/pkg/config"
	"github.com/integrid/integrid/pkg/coordinator"
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Run the coordinator for one integration run",
	Long: `Start a coordinator that partitions the interval into chunks, binds
the UDP socket, and serves chunk assignments to workers until every
partial result is in. The process exits with the final integral on
stdout.

Flags override values from --config, which overrides the defaults.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := coordinatorConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		coord, err := coordinator.New(coordinator.Config{
			BindAddr:    cfg.BindAddr,
			MetricsAddr: cfg.MetricsAddr,
			Run:         cfg.ControllerConfig(),
		})
		if err != nil {
			return err
		}

		// Mirror the run's progress on stdout for the operator.
		sub := coord.Broker().Subscribe()
		go func() {
			for event := range sub {
				fmt.Printf("[%s] %s\n", event.Type, event.Message)
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Coordinating %q over [%g, %g) in %d chunks (%s) on %s\n",
			cfg.Formula, cfg.LowerBound, cfg.HigherBound, cfg.Chunks, cfg.Method, coord.Addr())

		result, err := coord.Run(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				fmt.Println("Interrupted.")
				return nil
			}
			return err
		}
		fmt.Printf("Result: %v\n", result)
		return nil
	},
}

func coordinatorConfig(cmd *cobra.Command) (config.Coordinator, error) {
	cfg := config.DefaultCoordinator()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.LoadCoordinator(path)
		if err != nil {
			return config.Coordinator{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("bind-addr") {
		cfg.BindAddr, _ = flags.GetString("bind-addr")
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("formula") {
		cfg.Formula, _ = flags.GetString("formula")
	}
	if flags.Changed("method") {
		cfg.Method, _ = flags.GetString("method")
	}
	if flags.Changed("lower") {
		cfg.LowerBound, _ = flags.GetFloat64("lower")
	}
	if flags.Changed("upper") {
		cfg.HigherBound, _ = flags.GetFloat64("upper")
	}
	if flags.Changed("chunks") {
		cfg.Chunks, _ = flags.GetInt("chunks")
	}
	if flags.Changed("watchdog-timeout") {
		cfg.WatchdogTimeout, _ = flags.GetDuration("watchdog-timeout")
	}
	return cfg, nil
}

func init() {
	f := coordinatorCmd.Flags()
	f.String("config", "", "Path to a yaml configuration file")
	f.String("bind-addr", config.DefaultBindAddr, "UDP address to serve workers on")
	f.String("metrics-addr", "", "HTTP address for /metrics and /healthz (empty disables)")
	f.String("formula", config.DefaultFormula, "Integrand formula in x")
	f.String("method", "SIM", "Integration method (SIM, TRA, LRE, RRE, MRE)")
	f.Float64("lower", config.DefaultLowerBound, "Lower bound of the interval")
	f.Float64("upper", config.DefaultHigherBound, "Upper bound of the interval")
	f.Int("chunks", config.DefaultChunks, "Number of chunks to partition the interval into")
	f.Duration("watchdog-timeout", config.DefaultWatchdogTimeout, "Silence before an assignment is reclaimed")
}
