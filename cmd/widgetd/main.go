package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "widgetd",
	Short: "Support widget backend",
	Long: `widgetd hosts support-widget sessions: the landing menu, the assistant
chat, the FAQ search and the callback request form.

Available subcommands:
  serve - Run the HTTP, SSE and WebSocket server
  faq   - Search the FAQ catalog from the terminal`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newFAQCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
