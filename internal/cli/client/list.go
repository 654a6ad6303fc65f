package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var errNoKB = errors.New("no knowledge base given (use --kb, KBRELAY_KB or 'kbrelay init --kb')")

// ListCmd creates the list command.
func ListCmd() *cobra.Command {
	var kbName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List files of a knowledge base",
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

			resp, err := api.List(cmd.Context(), kb)
			if err != nil {
				return fmt.Errorf("list failed: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(resp, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			if len(resp.KBList) == 0 {
				fmt.Println(resp.Message)
				return nil
			}
			fmt.Printf("%s (%d files):\n", resp.KBName, len(resp.KBList))
			for _, f := range resp.KBList {
				fmt.Printf("  %s\n", f)
			}
			return nil
		},
	}

	addKBFlag(cmd, &kbName, "Knowledge base name")

	return cmd
}
