package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-bridge/internal/config"
	"github.com/oshokin/alarm-bridge/internal/service/server"
	"github.com/oshokin/alarm-bridge/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string
	// serialPort pins the serial port.
	serialPort string
	// logLevel overrides the configured log level.
	logLevel string

	// rootCmd represents the base command for running the bridge.
	rootCmd = &cobra.Command{
		Use:   "alarm-bridge [listen-address]",
		Short: "Bridge a nurse-call microcontroller to the alarm service.",
		Long: `Connects to the alarm microcontroller over a serial port, acknowledges its
button presses and handshakes, and exposes the alarm state over gRPC.

When no port is configured, candidate ports are discovered (/dev/ttyUSB*,
/dev/ttyACM* on unix, COM1..COM20 on windows) and the first that accepts the
greeting is used. A lost link is reconnected with exponential backoff.
Listen address can be provided as argument to override config (e.g., 127.0.0.1:9090).
On shutdown the device is told the host is going away before the port closes.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			var listenAddress string
			if len(args) > 0 {
				listenAddress = args[0]
			}

			return server.Run(ctx, &server.Options{
				ConfigPath:    configPath,
				ListenAddress: listenAddress,
				Port:          serialPort,
				LogLevel:      logLevel,
			})
		},
	}
)

// Execute runs the alarm-bridge CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&serialPort, "port", "p", "", "serial port to use instead of discovery")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn, error")
}
