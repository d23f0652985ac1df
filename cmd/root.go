package cmd

import (
	"github.com/spf13/cobra"

	"ember/internal/logger"
)

var (
	verbose bool
	log     = logger.New()
)

var rootCmd = &cobra.Command{
	Use:   "ember",
	Short: "Ember - Fire TV integration driver for Unfolded Circle remotes",
	Long: `Ember is an integration driver that lets Unfolded Circle Remote Two/3
control Amazon Fire TV devices over their local REST API.
It also ships CLI helpers for pairing and controlling a Fire TV directly.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger.SetSilentMode(false)
			logger.SetLevel("debug")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
