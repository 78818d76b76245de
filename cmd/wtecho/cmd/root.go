package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "wtecho [command]",
	SilenceUsage: true,
	Short:        "WebTransport echo server",
	Long:         `wtecho accepts one WebTransport session per connection on /handler and echoes stream totals and datagram sizes, optionally sealing stream payloads with AES-256-GCM`,
}

func Execute() {
	rootCmd.AddCommand(serveCmd())
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}
