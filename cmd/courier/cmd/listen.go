package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nfrund/courier/pkg/client"
)

var (
	listenConsumer string
	listenTopics   []string
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Subscribe to topics and print delivered messages",
	Long: `Connect to the broker as a consumer, subscribe to the given topics,
and print every delivered message. Each delivery is acknowledged with a
consumption report.

Example:
  courier listen --consumer alice --topic sport --topic news`,
	RunE: listenHandler,
}

func listenHandler(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := client.New(brokerURL, listenConsumer, listenTopics)
	for _, topic := range listenTopics {
		topic := topic
		c.Handle(topic, func(payload json.RawMessage) {
			fmt.Printf("[%s] %s\n", topic, payload)
		})
	}

	if err := c.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: connect failed: %v\n", err)
		os.Exit(1)
	}
	defer c.Close()

	if err := c.Listen(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: session ended: %v\n", err)
		os.Exit(1)
	}
	return nil
}

func init() {
	listenCmd.Flags().StringVar(&listenConsumer, "consumer", "", "consumer name (required)")
	listenCmd.Flags().StringArrayVar(&listenTopics, "topic", nil, "topic to subscribe to (repeatable, required)")
	_ = listenCmd.MarkFlagRequired("consumer")
	_ = listenCmd.MarkFlagRequired("topic")

	rootCmd.AddCommand(listenCmd)
}
