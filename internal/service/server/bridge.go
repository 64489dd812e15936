package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	api "github.com/oshokin/alarm-bridge/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-bridge/internal/config"
	"github.com/oshokin/alarm-bridge/internal/logger"
	pb "github.com/oshokin/alarm-bridge/internal/pb/v1"
	"github.com/oshokin/alarm-bridge/internal/repository/device"
	"github.com/oshokin/alarm-bridge/internal/serialport"
	"github.com/oshokin/alarm-bridge/internal/service/broker"
	"github.com/oshokin/alarm-bridge/internal/service/engine"
	"github.com/oshokin/alarm-bridge/internal/service/publisher"
	"github.com/oshokin/alarm-bridge/internal/service/supervisor"
)

// publisherBuffer is the MQTT publisher's subscription buffer.
const publisherBuffer = 256

// hooks replaces the OS-facing parts of the bridge in tests.
type hooks struct {
	// open opens serial ports. Nil uses serialport.OpenPort.
	open serialport.Factory
	// fs holds device files and the device cache. Nil uses the OS filesystem.
	fs afero.Fs
	// clock drives every timer. Nil uses the real clock.
	clock clockwork.Clock
}

// bridge holds the running components of the daemon.
type bridge struct {
	events     *broker.Broker
	manager    *serialport.Manager
	engine     *engine.Engine
	supervisor *supervisor.Supervisor
	publisher  *publisher.Publisher
	grpc       *grpc.Server
}

// newBridge wires every component from settings. Nothing runs until run.
func newBridge(ctx context.Context, settings *config.Config, h hooks) *bridge {
	if h.fs == nil {
		h.fs = afero.NewOsFs()
	}

	b := &bridge{
		events: broker.New(ctx),
	}

	var store engine.DeviceStore
	if settings.DeviceFile != "" {
		store = device.NewFileRepository(h.fs, settings.DeviceFile)
	}

	b.engine = engine.New(engine.Options{
		Sender:    b,
		Publisher: b.events,
		Store:     store,
		Clock:     h.clock,
	})

	s := settings.Serial

	discovery := &serialport.Discovery{
		Fs:       h.fs,
		Open:     h.open,
		Pinned:   s.Port,
		Patterns: s.Patterns,
		ComFirst: s.ComFirst,
		ComLast:  s.ComLast,
		BaudRate: s.BaudRate,
	}

	serialCtx := ctx
	if level, ok := logger.ParseLogLevel(s.LogLevel); ok && s.LogLevel != "" {
		serialCtx = logger.WithComponentLevel(ctx, level)
	}

	b.manager = serialport.NewManager(serialCtx, serialport.Options{
		Candidates:   discovery.Candidates,
		Open:         h.open,
		Handler:      b.engine,
		Clock:        h.clock,
		BaudRate:     s.BaudRate,
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
		SettleDelay:  s.SettleDelay,
		PingDelay:    s.PingDelay,
		PollInterval: s.PollInterval,
		ErrorBackoff: s.ErrorBackoff,
	})

	var hotplug []string
	if settings.Reconnect.Hotplug && s.Port == "" {
		hotplug = s.Patterns
	}

	b.supervisor = supervisor.New(supervisor.Options{
		Link:            b.manager,
		Clock:           h.clock,
		Interval:        settings.Reconnect.Interval,
		MaxInterval:     settings.Reconnect.MaxInterval,
		MaxReadErrors:   settings.Reconnect.MaxReadErrors,
		HotplugPatterns: hotplug,
	})

	if settings.MQTT.Broker != "" {
		b.publisher = publisher.New(publisher.Options{
			Broker: settings.MQTT.Broker,
			Topic:  settings.MQTT.Topic,
		})
	}

	b.grpc = grpc.NewServer()
	pb.RegisterAlarmBridgeServer(b.grpc, api.NewServer(api.Options{
		Engine: b.engine,
		Link:   b.supervisor,
		Port:   b.manager,
		Events: b.events,
	}))

	return b
}

// Send forwards engine acks to the serial link.
func (b *bridge) Send(ctx context.Context, token string) error {
	return b.manager.Send(ctx, token) //nolint:wrapcheck // already wrapped by the manager.
}

// run serves lis and keeps the link up until ctx is canceled. On return the
// device has been told the host is shutting down and the port is closed.
func (b *bridge) run(ctx context.Context, lis net.Listener) error {
	b.restore(ctx)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return b.supervisor.Run(gctx)
	})

	if b.publisher != nil {
		events, id := b.events.Subscribe(publisherBuffer)

		g.Go(func() error {
			defer b.events.Unsubscribe(id)

			if err := b.publisher.Run(gctx, events); err != nil {
				logger.ErrorKV(gctx, "MQTT publisher stopped", "error", err)
			}

			return nil
		})
	}

	g.Go(func() error {
		if err := b.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info(ctx, "Shutting down")

		// Ends every WatchEvents stream, which GracefulStop waits for.
		b.events.Close()
		b.grpc.GracefulStop()

		return nil
	})

	err := g.Wait()

	if disconnectErr := b.manager.Disconnect(context.WithoutCancel(ctx)); disconnectErr != nil {
		logger.WarnKV(ctx, "Failed to close serial port", "error", disconnectErr)
	}

	logger.Info(ctx, "Alarm bridge stopped")

	return err //nolint:wrapcheck // errors of the group are already wrapped.
}

// restore loads the cached device info, if any.
func (b *bridge) restore(ctx context.Context) {
	err := b.engine.Restore(ctx)

	switch {
	case err == nil, errors.Is(err, engine.ErrNoStore):
	case errors.Is(err, device.ErrNotFound):
		logger.Info(ctx, "No cached device info yet")
	default:
		logger.WarnKV(ctx, "Failed to restore device info", "error", err)
	}
}
