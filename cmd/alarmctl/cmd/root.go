package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-bridge/internal/config"
	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
	"github.com/oshokin/alarm-bridge/internal/logger"
	"github.com/oshokin/alarm-bridge/internal/service/client"
	"github.com/oshokin/alarm-bridge/internal/service/watcher"
	"github.com/oshokin/alarm-bridge/internal/version"
)

var (
	// cfgPath stores the configuration file path.
	cfgPath string
	// serverAddress overrides api.listen_address.
	serverAddress string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd is the parent of every control command.
	rootCmd = &cobra.Command{
		Use:   "alarmctl",
		Short: "Control a running alarm-bridge.",
		Long: `Talks to alarm-bridge over gRPC: shows the alarm and link state, raises a
test alarm, clears the alarm, opens or closes the serial link, writes a raw
line to the device, or follows the event stream.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok && logLevel != "" {
				logger.SetLevel(level)
			}
		},
	}
)

// Execute runs the alarmctl CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// signalContext cancels on SIGTERM or SIGINT.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
}

// actionCommand builds a subcommand running one client action.
func actionCommand(action client.Action, short string, configure func(*cobra.Command, *client.Options)) *cobra.Command {
	opts := &client.Options{Action: action}

	cmd := &cobra.Command{
		Use:   string(action),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := signalContext()
			defer stop()

			opts.ConfigPath = cfgPath
			opts.ServerAddress = serverAddress

			return client.Run(ctx, opts)
		},
	}

	if configure != nil {
		configure(cmd, opts)
	}

	return cmd
}

func triggerCommand() *cobra.Command {
	var patient, room, deviceID string

	opts := &client.Options{Action: client.ActionTrigger}

	cmd := &cobra.Command{
		Use:   string(client.ActionTrigger),
		Short: "Raise a manual test alarm.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := signalContext()
			defer stop()

			opts.ConfigPath = cfgPath
			opts.ServerAddress = serverAddress

			for key, value := range map[string]string{"patient": patient, "room": room, "device_id": deviceID} {
				if value == "" {
					continue
				}

				if opts.Details == nil {
					opts.Details = make(map[string]any)
				}

				opts.Details[key] = value
			}

			return client.Run(ctx, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Retry, "retry", "r", false, "retry until the bridge answers")
	cmd.Flags().StringVar(&patient, "patient", "", "patient name instead of the test patient")
	cmd.Flags().StringVar(&room, "room", "", "room instead of the test room")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "device identifier instead of the test device")

	return cmd
}

func sendCommand() *cobra.Command {
	opts := &client.Options{Action: client.ActionSend}

	return &cobra.Command{
		Use:   "send <text>...",
		Short: "Write one line to the device.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			opts.ConfigPath = cfgPath
			opts.ServerAddress = serverAddress
			opts.Text = strings.Join(args, " ")

			return client.Run(ctx, opts)
		},
	}
}

func watchCommand() *cobra.Command {
	var kinds []string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the bridge event stream.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			ctx, stop := signalContext()
			defer stop()

			opts := &watcher.Options{
				ConfigPath:    cfgPath,
				ServerAddress: serverAddress,
			}

			for _, kind := range kinds {
				opts.Kinds = append(opts.Kinds, domain.EventKind(kind))
			}

			return watcher.Run(ctx, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", nil,
		"event kinds to show: alarm_activated, alarm_deactivated, handshake_complete, line_received")

	return cmd
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&serverAddress, "address", "a", "", "bridge address instead of api.listen_address")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		actionCommand(client.ActionStatus, "Show the alarm, link and device state.", nil),
		triggerCommand(),
		actionCommand(client.ActionStop, "Clear the active alarm.", func(cmd *cobra.Command, opts *client.Options) {
			cmd.Flags().BoolVarP(&opts.Retry, "retry", "r", false, "retry until the bridge answers")
		}),
		actionCommand(client.ActionConnect, "Open the serial link and resume reconnecting.", nil),
		actionCommand(client.ActionDisconnect, "Close the serial link and pause reconnecting.", nil),
		sendCommand(),
		watchCommand(),
	)
}
