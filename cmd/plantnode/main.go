// plantnode - battery-powered plant sensing node
//
// This is the main entry point for a plantnode device. Each wake the node
// brings its link up, publishes sensor readings to an MQTT broker for
// Home Assistant, follows pump commands for a fixed operate window and
// then returns to low-power sleep.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/nerrad567/plantnode/internal/infrastructure/config"
	"github.com/nerrad567/plantnode/internal/infrastructure/logging"
	"github.com/nerrad567/plantnode/internal/power"
	"github.com/nerrad567/plantnode/internal/retained"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C and SIGTERM; SIGUSR1 is the edge wake trigger
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "plantnode",
		Short:         "Battery-powered plant sensing node",
		Long:          "Wakes periodically, publishes plant sensor readings over MQTT with Home Assistant discovery, drives the watering pump and sleeps.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "configuration file path")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run power cycles until stopped",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runNode(cmd, configPath, false)
			},
		},
		&cobra.Command{
			Use:   "cycle",
			Short: "Run a single cycle without sleeping",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runNode(cmd, configPath, true)
			},
		},
		newStateCmd(&configPath),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "plantnode %s (commit %s, built %s)\n", version, commit, date)
			},
		},
	)
	return root
}

func newStateCmd(configPath *string) *cobra.Command {
	state := &cobra.Command{
		Use:   "state",
		Short: "Inspect the retained state block",
	}

	state.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the retained state",
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := retainedStore(cmd, *configPath)
				if err != nil {
					return err
				}
				s, err := store.Load()
				if err != nil {
					return fmt.Errorf("loading retained state: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), s.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Clear the retained state, as after a full power loss",
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := retainedStore(cmd, *configPath)
				if err != nil {
					return err
				}
				if err := store.Clear(); err != nil {
					return fmt.Errorf("clearing retained state: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "retained state cleared")
				return nil
			},
		},
	)
	return state
}

// resolveConfigPath returns the --config flag, or PLANTNODE_CONFIG when
// the flag was left at its default.
func resolveConfigPath(cmd *cobra.Command, flagValue string) string {
	if !cmd.Flags().Changed("config") {
		if envPath := os.Getenv("PLANTNODE_CONFIG"); envPath != "" {
			return envPath
		}
	}
	return flagValue
}

func loadConfig(cmd *cobra.Command, flagValue string) (*config.Config, string, error) {
	path := resolveConfigPath(cmd, flagValue)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func retainedStore(cmd *cobra.Command, flagValue string) (retained.FileStore, error) {
	cfg, _, err := loadConfig(cmd, flagValue)
	if err != nil {
		return retained.FileStore{}, err
	}
	return retained.FileStore{
		Path:       cfg.Retained.Path,
		BootIDPath: cfg.Retained.BootIDPath,
	}, nil
}

// runNode is the application logic behind run and cycle.
//
// Parameters:
//   - cmd: The invoking command; its context carries the shutdown signals
//   - flagValue: Value of --config
//   - once: Run one cycle and skip the sleep
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func runNode(cmd *cobra.Command, flagValue string, once bool) error {
	ctx := cmd.Context()

	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting plantnode",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, path, err := loadConfig(cmd, flagValue)
	if err != nil {
		return err
	}
	log.Info("configuration loaded", "path", path)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"device_id", cfg.Device.ID,
	)

	var sleeper power.Sleeper = power.NoSleep{}
	if !once {
		sleeper, err = buildSleeper(cfg.Sleep, clockwork.NewRealClock(), notifyEdge(ctx, syscall.SIGUSR1))
		if err != nil {
			return err
		}
	}

	n, err := newNode(ctx, cfg, log, sleeper)
	if err != nil {
		return err
	}
	defer n.Close()

	if once {
		return n.ctrl.RunCycle(ctx)
	}

	// Exec does not return on success, so release resources first
	resetter := power.ResetFunc(func(cause error) error {
		log.Warn("resetting node", "cause", cause)
		n.Close()
		return power.ExecResetter{}.Reset(cause)
	})

	err = power.NewDevice(n.ctrl, resetter, log).Run(ctx)
	log.Info("plantnode stopped")
	return err
}
