package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// ClearCmd creates the clear command.
func ClearCmd() *cobra.Command {
	var (
		kbName string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete a knowledge base",
		Long:  "Removes the knowledge base's indexed chunks and uploaded files from the server.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			kb, err := ResolveKBName(kbName)
			if err != nil {
				return err
			}
			if kb == "" {
				return errNoKB
			}

			if !yes && !outputJSON {
				fmt.Printf("Clear knowledge base %q? [y/N]: ", kb)
				answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
				if !strings.EqualFold(strings.TrimSpace(answer), "y") {
					fmt.Println("Aborted")
					return nil
				}
			}

			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			resp, err := api.Clear(cmd.Context(), kb)
			if err != nil {
				return fmt.Errorf("clear failed: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(resp, "", "  ")
				fmt.Println(string(output))
				return nil
			}
			fmt.Println(resp.Message)
			return nil
		},
	}

	addKBFlag(cmd, &kbName, "Knowledge base name")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")

	return cmd
}
