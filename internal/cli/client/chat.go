package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var kbName string

	cmd := &cobra.Command{
		Use:   "chat <prompt>...",
		Short: "Ask a question against a knowledge base",
		Long: `Sends the prompt to the knowledge base's ongoing conversation. Consecutive
questions to the same knowledge base share history.`,
		Example: `  kbrelay chat --kb Finance What is the marketing budget?`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			kb, err := ResolveKBName(kbName)
			if err != nil {
				return err
			}
			if kb == "" {
				return errNoKB
			}
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Chat(cmd.Context(), kb, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("chat failed: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(resp, "", "  ")
				fmt.Println(string(output))
				return nil
			}
			fmt.Println(resp.Content)
			return nil
		},
	}

	addKBFlag(cmd, &kbName, "Knowledge base name")

	return cmd
}
