package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ember/internal/firetv"
	"ember/internal/logger"
)

var (
	firetvHost  string
	firetvToken string
	firetvDebug bool
)

var firetvCmd = &cobra.Command{
	Use:   "firetv",
	Short: "Control an Amazon Fire TV",
	Long: `Control an Amazon Fire TV over its local REST API.
Supports navigation, media transport and app launching. Most commands
require a client token obtained with 'ember pair'.`,
}

var firetvNavCmd = &cobra.Command{
	Use:   "nav [action]",
	Short: "Send a navigation command",
	Long: `Send a navigation command to the Fire TV.
Available actions: dpad_up, dpad_down, dpad_left, dpad_right, select, home, back, menu.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := firetvClient()
		if err != nil {
			return err
		}

		actionMap := map[string]firetv.NavigationAction{
			"dpad_up":    firetv.DPadUp,
			"dpad_down":  firetv.DPadDown,
			"dpad_left":  firetv.DPadLeft,
			"dpad_right": firetv.DPadRight,
			"select":     firetv.Select,
			"home":       firetv.Home,
			"back":       firetv.Back,
			"menu":       firetv.Menu,
		}

		action, exists := actionMap[args[0]]
		if !exists {
			return fmt.Errorf("unknown navigation action: %s", args[0])
		}

		log.Info().
			Str("host", firetvHost).
			Str("action", args[0]).
			Msg("Sending navigation command")

		if err := client.Navigate(context.Background(), action); err != nil {
			log.Error().Err(err).Msg("Failed to send navigation command")
			return err
		}

		log.Info().Msg("Navigation command sent successfully")
		return nil
	},
}

var firetvMediaCmd = &cobra.Command{
	Use:   "media [action]",
	Short: "Send a media transport command",
	Long: `Send a media transport command to the Fire TV.
Available actions: play_pause, fast_forward, rewind.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := firetvClient()
		if err != nil {
			return err
		}
		ctx := context.Background()

		switch args[0] {
		case "play_pause":
			err = client.PlayPause(ctx)
		case "fast_forward":
			err = client.FastForward(ctx)
		case "rewind":
			err = client.Rewind(ctx)
		default:
			return fmt.Errorf("unknown media action: %s", args[0])
		}

		if err != nil {
			log.Error().Err(err).Msg("Failed to send media command")
			return err
		}

		log.Info().Msg("Media command sent successfully")
		return nil
	},
}

var firetvLaunchCmd = &cobra.Command{
	Use:   "launch [app]",
	Short: "Launch an app",
	Long: `Launch an app on the Fire TV by catalog id or Android package name.
Run 'ember firetv apps' for the list of known catalog ids.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := firetvClient()
		if err != nil {
			return err
		}

		pkg := args[0]
		if app, found := firetv.AppByID(args[0]); found {
			pkg = app.Package
		}

		log.Info().
			Str("host", firetvHost).
			Str("package", pkg).
			Msg("Launching app")

		if err := client.LaunchApp(context.Background(), pkg); err != nil {
			log.Error().Err(err).Msg("Failed to launch app")
			return err
		}

		log.Info().Msg("App launched successfully")
		return nil
	},
}

var firetvAppsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List known apps",
	Long:  `List the built-in app catalog with catalog ids and package names.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Known apps:")
		for _, app := range firetv.Apps() {
			fmt.Printf("  %-14s %-24s %s\n", app.ID, app.Name, app.Package)
		}
		return nil
	},
}

var firetvProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Test connectivity to a Fire TV",
	Long:  `Check whether the Fire TV REST service is reachable. No token required.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := firetvClient()
		if err != nil {
			return err
		}

		if err := client.TestConnection(context.Background()); err != nil {
			return err
		}

		fmt.Printf("%s is reachable\n", firetvHost)
		return nil
	},
}

func firetvClient() (*firetv.Client, error) {
	if firetvHost == "" {
		return nil, fmt.Errorf("--host is required")
	}
	if firetvDebug {
		logger.SetSilentMode(false)
		logger.SetLevel("debug")
	}
	return firetv.NewClient(firetvHost, firetvToken, firetvDebug), nil
}

func init() {
	firetvCmd.PersistentFlags().StringVarP(&firetvHost, "host", "H", "", "Fire TV host address")
	firetvCmd.PersistentFlags().StringVarP(&firetvToken, "token", "t", "", "client token from pairing")
	firetvCmd.PersistentFlags().BoolVarP(&firetvDebug, "debug", "d", false, "enable debug logging")

	firetvCmd.AddCommand(firetvNavCmd)
	firetvCmd.AddCommand(firetvMediaCmd)
	firetvCmd.AddCommand(firetvLaunchCmd)
	firetvCmd.AddCommand(firetvAppsCmd)
	firetvCmd.AddCommand(firetvProbeCmd)

	rootCmd.AddCommand(firetvCmd)
}
