package cmd

import (
	"github.com/spf13/cobra"

	"ember/internal/driver"
	"ember/internal/logger"
)

var (
	serveConfigPath string
	serveDebug      bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the integration driver",
	Long: `Run the integration driver daemon. The daemon exposes the WebSocket
endpoint Unfolded Circle remotes connect to, keeps the paired-device
registry and optionally serves a local management API.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The daemon always logs
		logger.SetSilentMode(false)
		if serveDebug {
			logger.SetLevel("debug")
		}

		configPath := serveConfigPath
		if configPath == "" {
			path, err := driver.DefaultConfigPath()
			if err != nil {
				return err
			}
			configPath = path
		}

		config, err := driver.LoadOrCreateConfig(configPath)
		if err != nil {
			return err
		}

		log.Info().
			Str("config", configPath).
			Str("listen", config.ListenAddress()).
			Msg("Starting Fire TV integration driver")

		daemon, err := driver.NewDaemon(config, configPath)
		if err != nil {
			return err
		}

		return daemon.Run()
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "path to config file (default: $UC_CONFIG_HOME/config.yml)")
	serveCmd.Flags().BoolVarP(&serveDebug, "debug", "d", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
}
