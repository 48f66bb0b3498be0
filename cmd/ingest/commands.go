package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/irc-ingest/internal/config"
	"github.com/rickgao/irc-ingest/internal/router"
	"github.com/rickgao/irc-ingest/internal/version"
	"github.com/rickgao/irc-ingest/internal/writer"
)

const defaultConfigPath = "configs/ingest.yaml"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ingest",
		Short:         "IRC ingestion bridge",
		Long:          "ingest stays connected to an IRC server, joins the configured channels and routes public and private messages to named destination queues.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newValidateCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect and start routing messages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadAndValidate(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runIngest(ctx, cfg, cmd.OutOrStdout(), os.Stderr)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")
	return cmd
}

func newValidateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config file and print the destinations it defines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadAndValidate(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			reg, err := router.NewRegistry(cfg.IRC.Channels, cfg.IRC.Nickname, cfg.Queues.BufferSize)
			if err != nil {
				return fmt.Errorf("build registry: %w", err)
			}
			if cfg.Output.Stream.Enabled {
				if _, err := writer.Inputs(reg, cfg.Output.Stream.Destinations); err != nil {
					return fmt.Errorf("output.stream: %w", err)
				}
			}
			if cfg.Output.Archive.Enabled {
				if _, err := writer.Inputs(reg, cfg.Output.Archive.Destinations); err != nil {
					return fmt.Errorf("output.archive: %w", err)
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "config ok: %s (%s)\n", connectionConfig(cfg.IRC).Addr(), cfg.IRC.Transport)
			fmt.Fprintf(out, "destinations: %s\n", strings.Join(reg.Names(), ", "))
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", defaultConfigPath, "path to config file")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.String())
			return err
		},
	}
}

// shutdownContext bounds the whole shutdown sequence.
func shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), shutdownTimeout)
}
