package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
)

// fetchAndPrint GETs a listing endpoint and pretty-prints the JSON array.
func fetchAndPrint(path string) error {
	resp, err := http.Get(brokerURL + path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: reading response: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Error: %s returned %s\n", path, resp.Status)
		os.Exit(1)
	}

	var pretty json.RawMessage = body
	out, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println(string(out))
	return nil
}

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "List published messages, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchAndPrint("/messages")
	},
}

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "List connected subscribers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchAndPrint("/clients")
	},
}

var consumptionsCmd = &cobra.Command{
	Use:   "consumptions",
	Short: "List consumption events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return fetchAndPrint("/consumptions")
	},
}

func init() {
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(consumptionsCmd)
}
