package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/alarm-bridge/internal/config"
	"github.com/oshokin/alarm-bridge/internal/logger"
	pb "github.com/oshokin/alarm-bridge/internal/pb/v1"
	"github.com/oshokin/alarm-bridge/internal/service/common"
)

// Action selects the control call.
type Action string

// Supported actions.
const (
	ActionTrigger    Action = "trigger"
	ActionStop       Action = "stop"
	ActionStatus     Action = "status"
	ActionConnect    Action = "connect"
	ActionDisconnect Action = "disconnect"
	ActionSend       Action = "send"
)

// Options configures one alarmctl invocation.
type Options struct {
	// ConfigPath to YAML settings file, defaults to standard filename if empty.
	ConfigPath string

	// ServerAddress overrides api.listen_address from config when specified.
	ServerAddress string

	// Action is the call to perform.
	Action Action

	// Details override the test alarm identity for ActionTrigger.
	Details map[string]any

	// Text is the line written by ActionSend.
	Text string

	// Retry keeps retrying trigger and stop until the bridge answers.
	Retry bool
}

// defaultRetryInterval defines the delay between attempts when Retry is set.
const defaultRetryInterval = 1 * time.Second

// errUnknownAction is returned for an Action this package does not implement.
var errUnknownAction = errors.New("unknown action")

// Run performs the requested action.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "alarmctl")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	serverAddress := cfg.API.ListenAddress
	if opts.ServerAddress != "" {
		serverAddress = opts.ServerAddress
	}

	client, err := common.Dial(ctx, serverAddress, common.WithCallTimeout(cfg.API.Timeout))
	if err != nil {
		return fmt.Errorf("dial bridge: %w", err)
	}

	defer func() {
		_ = client.Close()
	}()

	return run(ctx, client, opts)
}

// run dispatches opts.Action on an established client.
func run(ctx context.Context, client *common.Client, opts *Options) error {
	switch opts.Action {
	case ActionTrigger, ActionStop:
		return push(ctx, client, opts)
	case ActionStatus:
		state, err := client.GetAlarmState(ctx)
		if err != nil {
			return err //nolint:wrapcheck // wrapped by the client.
		}

		logger.Info(ctx, FormatSnapshot(state))

		return nil
	case ActionConnect:
		port, err := client.Connect(ctx)
		if err != nil {
			return err //nolint:wrapcheck // wrapped by the client.
		}

		logger.InfoKV(ctx, "Bridge connected", "port", port)

		return nil
	case ActionDisconnect:
		if err := client.Disconnect(ctx); err != nil {
			return err //nolint:wrapcheck // wrapped by the client.
		}

		logger.Info(ctx, "Bridge disconnected, automatic reconnect paused")

		return nil
	case ActionSend:
		if err := client.SendRaw(ctx, opts.Text); err != nil {
			return err //nolint:wrapcheck // wrapped by the client.
		}

		logger.InfoKV(ctx, "Sent to device", "text", opts.Text)

		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownAction, opts.Action)
	}
}

// push triggers or stops the alarm, retrying transport failures when asked.
func push(ctx context.Context, client *common.Client, opts *Options) error {
	actor, err := common.DetectActor()
	if err != nil {
		return fmt.Errorf("detect actor: %w", err)
	}

	attempt := func() error {
		if opts.Action == ActionTrigger {
			resp, err := client.TriggerTestAlarm(ctx, actor, opts.Details)
			if err != nil {
				return err //nolint:wrapcheck // wrapped by the client.
			}

			logger.Infof(ctx, "Test alarm %s: %s",
				outcome(resp, pb.KeyActivated, "activated", "already active"),
				FormatState(resp.GetFields()[pb.KeyAlarm].GetStructValue()))

			return nil
		}

		resp, err := client.StopAlarm(ctx, actor)
		if err != nil {
			return err //nolint:wrapcheck // wrapped by the client.
		}

		logger.Infof(ctx, "Alarm %s", outcome(resp, pb.KeyStopped, "stopped", "was not active"))

		return nil
	}

	err = attempt()
	if err == nil || !opts.Retry {
		return err
	}

	logger.ErrorKV(ctx, "Request failed, retrying", "action", opts.Action, "error", err)

	ticker := time.NewTicker(defaultRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err = attempt(); err == nil {
				return nil
			}

			logger.ErrorKV(ctx, "Request failed, retrying", "action", opts.Action, "error", err)
		}
	}
}

func outcome(resp *structpb.Struct, key, yes, no string) string {
	if resp.GetFields()[key].GetBoolValue() {
		return yes
	}

	return no
}

// FormatState renders an alarm state message for logs.
func FormatState(state *structpb.Struct) string {
	s := pb.StateFromStruct(state)
	if !s.Active {
		return "inactive"
	}

	return fmt.Sprintf("active since %s, source %s, patient %s, room %s, device %s (id %s)",
		s.ActivatedAt.Format(time.RFC3339), s.Source, s.Patient, s.Room, s.Device, s.ID)
}

// FormatSnapshot renders a GetAlarmState response for logs.
func FormatSnapshot(snapshot *structpb.Struct) string {
	f := snapshot.GetFields()

	var b strings.Builder

	b.WriteString("Alarm: ")
	b.WriteString(FormatState(f[pb.KeyAlarm].GetStructValue()))

	switch {
	case f[pb.KeyConnected].GetBoolValue():
		fmt.Fprintf(&b, "; link: connected on %s", f[pb.KeyPort].GetStringValue())
	case f[pb.KeyPaused].GetBoolValue():
		b.WriteString("; link: disconnected by operator")
	default:
		b.WriteString("; link: reconnecting")
	}

	fmt.Fprintf(&b, "; handshake: %s", f[pb.KeyHandshake].GetStringValue())

	if info := pb.DeviceInfoFromStruct(f[pb.KeyDevice].GetStructValue()); info != nil {
		fmt.Fprintf(&b, "; device %s, patient %s, room %s", info.DeviceID, info.Patient, info.Room)
	}

	return b.String()
}
