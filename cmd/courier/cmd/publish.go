package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nfrund/courier/pkg/client"
)

var (
	publishTopic     string
	publishMessageID string
	publishProducer  string
	publishMessage   string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish a message to a topic",
	Long: `Publish a message to a topic over the broker's HTTP ingress.

The message may be any JSON value; a bare string is accepted and quoted.
A message id is generated when --id is omitted.

Examples:
  courier publish --topic sport --message '{"score":"1-0"}' --producer bot
  courier publish --topic news --message "breaking" --id m1 --producer wire`,
	RunE: publishHandler,
}

func publishHandler(cmd *cobra.Command, args []string) error {
	var payload any
	if err := json.Unmarshal([]byte(publishMessage), &payload); err != nil {
		// Not valid JSON: treat it as a plain string payload.
		payload = publishMessage
	}

	messageID := publishMessageID
	if messageID == "" {
		messageID = uuid.New().String()
	}

	c := client.New(brokerURL, publishProducer, nil)
	if err := c.Publish(context.Background(), publishTopic, payload, messageID); err != nil {
		fmt.Fprintf(os.Stderr, "Error: publish failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("published %s to %s\n", messageID, publishTopic)
	return nil
}

func init() {
	publishCmd.Flags().StringVar(&publishTopic, "topic", "", "topic to publish to (required)")
	publishCmd.Flags().StringVar(&publishMessage, "message", "", "message payload, JSON or plain string (required)")
	publishCmd.Flags().StringVar(&publishProducer, "producer", "courier-cli", "producer name")
	publishCmd.Flags().StringVar(&publishMessageID, "id", "", "message id (generated when omitted)")
	_ = publishCmd.MarkFlagRequired("topic")
	_ = publishCmd.MarkFlagRequired("message")

	rootCmd.AddCommand(publishCmd)
}
