package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"encwallet/internal/config"
	"encwallet/internal/infrastructure/logging"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	EnvFile string
	Output  string
	Verbose bool
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "walletctl",
	Short:         "Operate an encrypted-token wallet from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if flags.Output != "json" && flags.Output != "text" {
			return fmt.Errorf("unsupported output format %q, want json or text", flags.Output)
		}
		level := "warn"
		if flags.Verbose {
			level = "debug"
		}
		_, err := logging.Init(logging.Config{Level: level, Output: os.Stderr})
		return err
	},
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.EnvFile, "env-file", "", "read configuration from this env file before the environment")
	rootCmd.PersistentFlags().StringVarP(&flags.Output, "output", "o", "text", "output format: json|text")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "log debug output to stderr")

	rootCmd.AddCommand(keygenCmd)
	rootCmd.AddCommand(encryptCmd)
	rootCmd.AddCommand(decryptCmd)
	rootCmd.AddCommand(tokensCmd)
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(checkpointCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadFromFile(flags.EnvFile)
	if err != nil {
		return config.Config{}, err
	}
	slog.Debug("configuration loaded", "rpc", cfg.RPCURL, "private_key", cfg.HasPrivateKey())
	return cfg, nil
}

// render writes v as indented JSON, or calls text when the text format is
// selected.
func render(out io.Writer, v any, text func(io.Writer) error) error {
	if flags.Output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return text(out)
}
