package client

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func InitCmd() *cobra.Command {
	var (
		apiURL string
		kbName string
		reset  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Save client defaults",
		Long:  "Stores the API URL and default knowledge base in the user config directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			if reset {
				if err := DeleteGlobalConfig(); err != nil {
					return err
				}
				fmt.Println("Configuration removed")
				return nil
			}
			return runInit(apiURL, kbName, outputJSON)
		},
	}

	cmd.Flags().StringVar(&apiURL, "url", "", "API base URL (default: http://localhost:8080)")
	cmd.Flags().StringVar(&kbName, "kb", "", "Default knowledge base")
	cmd.Flags().BoolVar(&reset, "reset", false, "Remove the saved configuration")

	return cmd
}

func runInit(apiURL, kbName string, outputJSON bool) error {
	config, err := LoadGlobalConfig()
	if err != nil {
		return err
	}
	if config == nil {
		config = &GlobalConfig{}
	}
	if apiURL != "" {
		config.APIURL = apiURL
	}
	if kbName != "" {
		config.KBName = kbName
	}
	if config.APIURL == "" {
		config.APIURL = defaultAPIURL
	}

	if err := SaveGlobalConfig(config); err != nil {
		return err
	}

	if outputJSON {
		output, _ := json.MarshalIndent(config, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	path, _ := GetConfigPath()
	fmt.Printf("Saved configuration to %s\n", path)
	fmt.Printf("  API URL: %s\n", config.APIURL)
	if config.KBName != "" {
		fmt.Printf("  Knowledge base: %s\n", config.KBName)
	}
	return nil
}
