// Command loopbench runs a synthetic workload against a set of loops, each on
// its own goroutine, and reports per-loop metrics.
//
// Usage:
//
//	loopbench --loops 4 --producers 8 --ops 100000 --max-delay 2ms
//	loopbench --config workload.yaml --log-level debug
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/stumpy"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var (
		configPath string
		flags      = DefaultConfig()
	)

	root := &cobra.Command{
		Use:          "loopbench",
		Short:        "Benchmark thread-affine event loops",
		Long:         "loopbench starts a number of loops, posts a mix of delayed, wall clock, and synchronous commands to them from concurrent producers, revoking a fraction, then prints a metrics summary.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &cfg, flags)
			if err := cfg.Validate(); err != nil {
				return err
			}

			level, _ := parseLevel(cfg.LogLevel)
			logger := stumpy.L.New(
				stumpy.L.WithStumpy(stumpy.WithWriter(cmd.ErrOrStderr())),
				stumpy.L.WithLevel(level),
			).Logger()

			logger.Info().
				Int(`loops`, cfg.Loops).
				Int(`producers`, cfg.Producers).
				Int(`ops`, cfg.Ops).
				Dur(`max_delay`, cfg.MaxDelay).
				Float64(`revoke_ratio`, cfg.RevokeRatio).
				Log(`starting workload`)

			result, err := Run(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Err().Err(err).Log(`workload failed`)
				if result == nil {
					return err
				}
			}
			if werr := WriteSummary(cmd.OutOrStdout(), result); werr != nil {
				return werr
			}
			if err != nil {
				return fmt.Errorf("loopbench: %w", err)
			}
			return nil
		},
	}

	f := root.Flags()
	f.StringVar(&configPath, `config`, ``, `YAML workload file, keys match the flag names`)
	f.IntVar(&flags.Loops, `loops`, flags.Loops, `number of loops, each on its own goroutine`)
	f.IntVar(&flags.Producers, `producers`, flags.Producers, `number of concurrent producers`)
	f.IntVar(&flags.Ops, `ops`, flags.Ops, `total operations, split between producers`)
	f.DurationVar(&flags.MaxDelay, `max-delay`, flags.MaxDelay, `upper bound of the random delay of posted commands`)
	f.Float64Var(&flags.RevokeRatio, `revoke-ratio`, flags.RevokeRatio, `fraction of posted commands to revoke`)
	f.StringVar(&flags.LogLevel, `log-level`, flags.LogLevel, `diagnostic log level`)

	return root
}

// applyFlags overrides cfg with every flag set explicitly.
func applyFlags(cmd *cobra.Command, cfg *Config, flags Config) {
	changed := cmd.Flags().Changed
	if changed(`loops`) {
		cfg.Loops = flags.Loops
	}
	if changed(`producers`) {
		cfg.Producers = flags.Producers
	}
	if changed(`ops`) {
		cfg.Ops = flags.Ops
	}
	if changed(`max-delay`) {
		cfg.MaxDelay = flags.MaxDelay
	}
	if changed(`revoke-ratio`) {
		cfg.RevokeRatio = flags.RevokeRatio
	}
	if changed(`log-level`) {
		cfg.LogLevel = flags.LogLevel
	}
}
