package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"

	"github.com/mklimuk/pmic/config"
)

func TestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Run unit tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Test()
			if err != nil {
				return fmt.Errorf("failed to run tests: %w", err)
			}
			path, err := cmd.Flags().GetString("board")
			if err != nil {
				return fmt.Errorf("could not get board flag: %w", err)
			}
			if path == "" {
				return nil
			}
			return runHardware(path)
		},
	}
	cmd.Flags().String("board", "", "also run the hardware suite against this board file")
	return cmd
}

func LintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Run linters",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := test.Lint()
			if err != nil {
				return fmt.Errorf("failed to run linting: %w", err)
			}
			return nil
		},
	}
	return cmd
}

// HardwareTestCmd runs the hardware suite against the PMIC described by a
// board file. The file is checked first so a typo does not end up as a
// skipped test run.
func HardwareTestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hw-test",
		Aliases: []string{"integration-test"},
		Short:   "Run tests against attached hardware",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %w", err)
			}
			return runHardware(path)
		},
	}
	cmd.Flags().String("config", os.Getenv(configEnv), "board file of the attached PMIC (defaults to $"+configEnv+")")
	return cmd
}

func runHardware(path string) error {
	cfg, err := boardConfig(path)
	if err != nil {
		return err
	}
	slog.Info("running hardware tests", "config", path, "adapter", cfg.Adapter, "variant", cfg.Variant,
		"address", fmt.Sprintf("%#04x", cfg.Address))
	err = os.Setenv(configEnv, path)
	if err != nil {
		return fmt.Errorf("could not export %s: %w", configEnv, err)
	}
	err = test.Integ()
	if err != nil {
		return fmt.Errorf("failed to run integration testing: %w", err)
	}
	return nil
}

const configEnv = "PMIC_CONFIG"

var errNoBoard = errors.New("no board file")

// boardConfig loads the board file the hardware tests will use. The sim
// adapter is refused since it does not exercise any hardware.
func boardConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Config{}, fmt.Errorf("%w: pass --config or set %s", errNoBoard, configEnv)
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("could not load board file: %w", err)
	}
	if cfg.Adapter == config.AdapterSim {
		return config.Config{}, fmt.Errorf("%w: %s uses the %s adapter", errNoBoard, path, config.AdapterSim)
	}
	return cfg, nil
}
