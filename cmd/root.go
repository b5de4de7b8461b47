// Package cmd holds the siteharvest command-line interface.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "siteharvest",
	Short: "Politeness-aware bounded web crawler",
	Long: `siteharvest crawls a bounded region of the web breadth-first,
renders client-side pages when needed, and writes every processed page
as a saved document plus a structured JSONL record.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default none; env and flags only)")
}

// Execute runs the root command with signal-aware cancellation.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newViper() *viper.Viper {
	return viper.New()
}
