package watcher

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/oshokin/alarm-bridge/internal/config"
	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
	"github.com/oshokin/alarm-bridge/internal/logger"
	"github.com/oshokin/alarm-bridge/internal/service/common"
)

// Options controls the watcher.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// ServerAddress provides an optional gRPC server address override.
	ServerAddress string
	// RetryInterval is the pause before re-opening a broken stream.
	RetryInterval time.Duration
	// Kinds limits the logged events. Empty logs everything.
	Kinds []domain.EventKind
	// OnEvent, when set, is called for every logged event.
	OnEvent func(domain.Event)
}

// DefaultRetryInterval is used when Options.RetryInterval is unset.
const DefaultRetryInterval = 5 * time.Second

// Run follows the event stream until ctx is canceled, reopening it whenever
// the bridge goes away.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarm-watcher")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	serverAddress := cfg.API.ListenAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress)
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	logger.InfoKV(ctx, "Watching bridge events", "server_address", serverAddress)

	for {
		err = client.WatchEvents(ctx, func(ev domain.Event) {
			handle(ctx, opts, ev)
		})

		if ctx.Err() != nil {
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		}

		if err != nil {
			logger.ErrorKV(ctx, "Event stream failed", "error", err, "retry_in", opts.RetryInterval)
		} else {
			logger.WarnKV(ctx, "Event stream closed by bridge", "retry_in", opts.RetryInterval)
		}

		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")

			return nil
		case <-time.After(opts.RetryInterval):
		}
	}
}

func handle(ctx context.Context, opts *Options, ev domain.Event) {
	if len(opts.Kinds) > 0 && !slices.Contains(opts.Kinds, ev.Kind) {
		return
	}

	switch ev.Kind {
	case domain.EventAlarmActivated:
		logger.WarnKV(ctx, "Alarm activated",
			"alarm_id", ev.AlarmID, "source", ev.Source,
			"patient", ev.Patient, "room", ev.Room, "device_id", ev.Device)
	case domain.EventAlarmDeactivated:
		logger.Info(ctx, "Alarm deactivated")
	case domain.EventHandshakeComplete:
		logger.InfoKV(ctx, "Device identified",
			"device_id", ev.Device, "patient", ev.Patient, "room", ev.Room)
	case domain.EventLineReceived:
		logger.DebugKV(ctx, "Line received", "line", ev.Raw)
	default:
		logger.InfoKV(ctx, "Event", "kind", ev.Kind)
	}

	if opts.OnEvent != nil {
		opts.OnEvent(ev)
	}
}
