package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oshokin/alarm-bridge/internal/config"
	"github.com/oshokin/alarm-bridge/internal/logger"
	"github.com/oshokin/alarm-bridge/internal/version"
)

// Options controls the alarm-bridge process and configuration.
type Options struct {
	// ConfigPath specifies the path to settings YAML file.
	ConfigPath string
	// ListenAddress overrides api.listen_address.
	ListenAddress string
	// Port pins the serial port, overriding serial.port.
	Port string
	// LogLevel overrides log_level.
	LogLevel string
}

// ErrNoListenAddress indicates missing API configuration.
var ErrNoListenAddress = errors.New("no listen address configured")

// Run starts the bridge and blocks until ctx is canceled or a component fails.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-bridge")

	settings, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	if opts.Port != "" {
		settings.Serial.Port = opts.Port
	}

	if opts.LogLevel != "" {
		settings.LogLevel = opts.LogLevel
	}

	if settings.LogLevel != "" {
		level, ok := logger.ParseLogLevel(settings.LogLevel)
		if !ok {
			return fmt.Errorf("%w: %q", errUnknownLogLevel, settings.LogLevel)
		}

		logger.SetLevel(level)
	}

	listenAddress, err := resolveListenAddress(settings.API.ListenAddress, opts.ListenAddress)
	if err != nil {
		return fmt.Errorf("resolve listen address: %w", err)
	}

	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", listenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", listenAddress, err)
	}

	b := newBridge(ctx, settings, hooks{})

	logger.InfoKV(ctx, "Alarm bridge listening",
		append(version.LogFields(),
			"listen_address", listenAddress,
			"serial_port", settings.Serial.Port,
			"device_file", settings.DeviceFile)...)

	return b.run(ctx, lis)
}

// errUnknownLogLevel is returned for a log level zap does not know.
var errUnknownLogLevel = errors.New("unknown log level")

// resolveListenAddress picks the override when set, otherwise the configured address.
func resolveListenAddress(configAddr, override string) (string, error) {
	if override != "" {
		return override, nil
	}

	if configAddr == "" {
		return "", ErrNoListenAddress
	}

	if _, _, err := net.SplitHostPort(configAddr); err != nil {
		return "", fmt.Errorf("invalid listen address format %q: %w", configAddr, err)
	}

	return configAddr, nil
}
