package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carbon-scribe/verification-engine/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "verifyctl",
	Short: "Offline emissions verification",
	Long:  "Scores extracted invoice data and resolves compliance frameworks without a database.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		c, err := config.LoadConfig(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to the JSON config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
