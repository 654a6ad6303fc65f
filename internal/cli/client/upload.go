package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var (
		kbName   string
		progress bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload documents into a knowledge base",
		Long: `Uploads one or more documents. The server indexes them one by one; a file
that cannot be read is skipped and does not fail the batch.`,
		Example: `  kbrelay upload --kb Finance budget.pdf travel-policy.md`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")

			kb, err := ResolveKBName(kbName)
			if err != nil {
				return err
			}
			api, err := NewAPIClient(cmd)
			if err != nil {
				return err
			}

			var onProgress ProgressFunc
			if progress && !outputJSON {
				onProgress = func(current, total int64) {
					fmt.Fprintf(os.Stderr, "\rUploading... %d/%d bytes", current, total)
					if current == total {
						fmt.Fprintln(os.Stderr)
					}
				}
			}

			resp, err := api.Upload(cmd.Context(), kb, args, onProgress)
			if err != nil {
				return fmt.Errorf("upload failed: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(resp, "", "  ")
				fmt.Println(string(output))
				return nil
			}
			fmt.Printf("%s: %d file(s) sent to %s (%s)\n", resp.Message, len(args), resp.KBName, resp.KBPath)
			return nil
		},
	}

	addKBFlag(cmd, &kbName, "Knowledge base name (server default when empty)")
	cmd.Flags().BoolVar(&progress, "progress", false, "Show upload progress")

	return cmd
}
