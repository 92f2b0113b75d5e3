package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var brokerURL string

var rootCmd = &cobra.Command{
	Use:   "courier",
	Short: "Courier broker CLI",
	Long: `Courier is a command-line interface for the Courier pub/sub broker.

Available commands:
  publish        Publish a message to a topic
  listen         Subscribe to topics and print delivered messages
  messages       List published messages, newest first
  clients        List connected subscribers
  consumptions   List consumption events, newest first

Use "courier [command] --help" for more information about a command.`,
}

// Execute executes the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&brokerURL, "url", "http://localhost:5000", "base URL of the broker")
}
