package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/josepablo-design/marketplace/configs"
	"github.com/josepablo-design/marketplace/internal/logging"
)

type globalOpts struct {
	env       string
	configDir string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &globalOpts{}
	rootCmd := &cobra.Command{
		Use:           "settlectl",
		Short:         "Operator tools for marketplace order settlement",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&opts.env, "env", envOr("APP_ENV", "dev"), "config environment (dev, staging, prod)")
	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config-dir", envOr("APP_CONFIG_DIR", "configs"), "directory holding base.yaml")

	rootCmd.AddCommand(reconcileCmd(opts))
	rootCmd.AddCommand(refundCmd(opts))
	rootCmd.AddCommand(commissionCmd(opts))
	return rootCmd
}

func (o *globalOpts) load() (configs.Config, error) {
	cfg, err := configs.Load(o.configDir, o.env)
	if err != nil {
		return configs.Config{}, err
	}
	// stdout belongs to command output
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logging.ParseLevel(cfg.App.LogLevel)})
	logging.SetBase(slog.New(h).With("component", "settlectl"))
	return cfg, nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
