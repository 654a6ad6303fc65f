package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/kbrelay/internal/cli"
	"github.com/cloo-solutions/kbrelay/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "kbrelay",
		Short: "kbrelay CLI - upload documents and chat with knowledge bases",
		Long: `kbrelay CLI talks to a kbrelayd server.

Environment variables:
  KBRELAY_API_URL  API base URL (default: http://localhost:8080)
  KBRELAY_KB       Default knowledge base`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")
	rootCmd.PersistentFlags().String("api-url", "", "API base URL (overrides env and config)")
	cli.AnnotateEnv(rootCmd.PersistentFlags(), "api-url", "KBRELAY_API_URL")
	cli.AddHelpJSONFlag(rootCmd)

	rootCmd.AddCommand(client.InitCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.ListCmd())
	rootCmd.AddCommand(client.ChatCmd())
	rootCmd.AddCommand(client.ClearCmd())

	if handled, err := cli.HandleHelpJSON(rootCmd, os.Args[1:], os.Stdout); handled {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
