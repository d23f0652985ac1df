package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"ember/internal/driver"
	"ember/internal/logger"

	"ember/cmd/pair"
)

var (
	pairHost     string
	pairName     string
	pairRegistry string
	pairNoSave   bool
	pairDebug    bool
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Pair with a Fire TV",
	Long: `Run the interactive pairing wizard. The Fire TV displays a PIN on
screen; entering it here completes the handshake and stores the client
token in the device registry so the driver can use it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if pairDebug {
			logger.SetSilentMode(false)
			logger.SetLevel("debug")
		}

		var registry *driver.Registry
		if !pairNoSave {
			path := pairRegistry
			if path == "" {
				dir, err := driver.ConfigDir()
				if err != nil {
					return err
				}
				path = filepath.Join(dir, "devices.db")
			}

			var err error
			registry, err = driver.NewRegistry(path)
			if err != nil {
				return err
			}
			defer registry.Close()
		}

		return pair.Start(pairHost, pairName, registry, pairDebug)
	},
}

func init() {
	pairCmd.Flags().StringVarP(&pairHost, "host", "H", "", "Fire TV host address to prefill")
	pairCmd.Flags().StringVarP(&pairName, "name", "n", "", "friendly name shown on the Fire TV PIN dialog")
	pairCmd.Flags().StringVar(&pairRegistry, "registry", "", "path to the device registry (default: $UC_CONFIG_HOME/devices.db)")
	pairCmd.Flags().BoolVar(&pairNoSave, "no-save", false, "do not persist the pairing")
	pairCmd.Flags().BoolVarP(&pairDebug, "debug", "d", false, "enable debug logging")

	rootCmd.AddCommand(pairCmd)
}
