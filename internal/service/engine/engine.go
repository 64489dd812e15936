package engine

import (
	"context"
	"errors"
	"maps"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
	"github.com/oshokin/alarm-bridge/internal/logger"
	"github.com/oshokin/alarm-bridge/internal/protocol"
	"github.com/oshokin/alarm-bridge/internal/service/alarm"
	"github.com/oshokin/alarm-bridge/internal/service/handshake"
	"github.com/oshokin/alarm-bridge/internal/syncutil"
)

// Sender writes one newline-terminated token on the link.
type Sender interface {
	Send(ctx context.Context, token string) error
}

// Publisher receives collaborator events. Publish must not block.
type Publisher interface {
	Publish(ev domain.Event)
}

// DeviceStore caches the last handshake device info across restarts.
type DeviceStore interface {
	Load(ctx context.Context) (*domain.DeviceInfo, error)
	Save(ctx context.Context, info *domain.DeviceInfo) error
}

// ErrNoStore is returned by Restore when no DeviceStore was configured.
var ErrNoStore = errors.New("no device store configured")

// TestDetails returns the payload used by a manual test alarm without details.
func TestDetails() map[string]any {
	return map[string]any{
		"patient":   "TEST PATIENT",
		"room":      "TEST ROOM",
		"device_id": "TEST_DEVICE",
	}
}

// Options configures an Engine.
type Options struct {
	// Sender writes acknowledgments. Required.
	Sender Sender
	// Publisher receives events. Nil drops them.
	Publisher Publisher
	// Store caches device info. Nil disables the cache.
	Store DeviceStore
	// Clock timestamps activations and events. Nil uses the real clock.
	Clock clockwork.Clock
	// NewID generates activation IDs. Nil uses random UUIDs.
	NewID func() string
}

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	// Device is the last handshake device info, nil when none was received.
	Device *domain.DeviceInfo
	// Alarm is the alarm state.
	Alarm domain.State
	// Handshake is the handshake session state.
	Handshake handshake.State
}

// Engine dispatches classified lines and control commands.
type Engine struct {
	sender    Sender
	publisher Publisher
	store     DeviceStore
	clock     clockwork.Clock
	newID     func() string

	mu      syncutil.Mutex
	session *handshake.Session
	machine *alarm.Machine
	device  *domain.DeviceInfo
}

// New creates an Engine in the idle state.
func New(opts Options) *Engine {
	e := &Engine{
		sender:    opts.Sender,
		publisher: opts.Publisher,
		store:     opts.Store,
		clock:     opts.Clock,
		newID:     opts.NewID,
		session:   handshake.NewSession(),
		machine:   alarm.NewMachine(),
	}

	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}

	if e.newID == nil {
		e.newID = uuid.NewString
	}

	return e
}

// Restore loads the cached device info so alarm fallbacks survive a restart.
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return ErrNoStore
	}

	info, err := e.store.Load(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.device = info
	e.mu.Unlock()

	logger.InfoKV(ctx, "Device info restored",
		"device_id", info.DeviceID, "patient", info.Patient, "room", info.Room)

	return nil
}

// ResetLink drops any half-received handshake. It is called for every new link.
func (e *Engine) ResetLink() {
	e.mu.Lock()
	e.session.Reset()
	e.mu.Unlock()
}

// HandleLine classifies one decoded line and applies it.
func (e *Engine) HandleLine(ctx context.Context, line protocol.Line) {
	logger.InfoKV(ctx, "Line received", "line", line.Text)

	if line.Anomaly {
		logger.WarnKV(ctx, "Invalid UTF-8 replaced in received line", "line", line.Text)
	}

	e.publish(domain.Event{
		Kind:      domain.EventLineReceived,
		Timestamp: e.clock.Now(),
		Raw:       line.Text,
	})

	var saved *domain.DeviceInfo

	e.mu.Lock()

	cmd := protocol.Classify(ctx, line.Text, e.session.Collecting())
	saved = e.dispatchLocked(ctx, cmd)

	e.mu.Unlock()

	if saved != nil {
		e.persist(ctx, saved)
	}
}

// dispatchLocked applies cmd. It returns device info to persist, if any.
func (e *Engine) dispatchLocked(ctx context.Context, cmd protocol.Command) *domain.DeviceInfo {
	switch cmd.Kind {
	case protocol.KindHandshakeBegin:
		logger.InfoKV(ctx, "Handshake started", "state", e.session.State().String())
		e.session.Begin()
	case protocol.KindHandshakeField:
		if e.session.Field(cmd.Key, cmd.Value) {
			logger.DebugKV(ctx, "Handshake field", "key", cmd.Key, "value", cmd.Value)
		}
	case protocol.KindHandshakeEnd:
		return e.completeHandshakeLocked(ctx)
	case protocol.KindEmergencyStart:
		e.startLocked(ctx, cmd.Source, cmd.Details)
	case protocol.KindEmergencyStop:
		e.stopLocked(ctx)
	case protocol.KindCustomCommand:
		logger.InfoKV(ctx, "Custom command", "command", cmd.Text)

		if cmd.TriggersAlarm() {
			e.startLocked(ctx, protocol.SourceCustomCommand, nil)
		}
	case protocol.KindStatusUpdate:
		logger.InfoKV(ctx, "Device status", "status", cmd.Text)
	case protocol.KindInformational:
		logger.DebugKV(ctx, "Device notice", "line", cmd.Text)
	default:
		logger.DebugKV(ctx, "Unrecognized line", "line", cmd.Text)
	}

	return nil
}

func (e *Engine) completeHandshakeLocked(ctx context.Context) *domain.DeviceInfo {
	fields, complete := e.session.End()
	if !complete {
		logger.DebugKV(ctx, "Handshake end without begin ignored")

		return nil
	}

	info := domain.NewDeviceInfo(fields)
	e.device = info

	logger.InfoKV(ctx, "Handshake completed",
		"device_id", info.DeviceID, "patient", info.Patient, "room", info.Room)

	e.sendLocked(ctx, protocol.TokenHandshakeAck)
	e.publish(domain.HandshakeEvent(info, e.clock.Now()))

	return info.Clone()
}

func (e *Engine) startLocked(ctx context.Context, source string, details map[string]any) (domain.State, bool) {
	state, started := e.machine.Start(alarm.Trigger{
		At:       e.clock.Now(),
		Details:  details,
		Fallback: e.device,
		ID:       e.newID(),
		Source:   source,
	})
	if !started {
		logger.WarnKV(ctx, "Alarm already active, ignoring duplicate",
			"source", source, "alarm_id", state.ID)

		return state, false
	}

	logger.WarnKV(ctx, "Emergency alarm activated",
		"alarm_id", state.ID,
		"source", state.Source,
		"patient", state.Patient,
		"room", state.Room,
		"device_id", state.Device)

	e.sendLocked(ctx, protocol.TokenAlarmAck)
	e.publish(domain.ActivatedEvent(&state))

	return state, true
}

func (e *Engine) stopLocked(ctx context.Context) bool {
	stopped := e.machine.State()
	if !e.machine.Stop() {
		logger.InfoKV(ctx, "No active alarm to stop")

		return false
	}

	logger.InfoKV(ctx, "Emergency alarm stopped", "alarm_id", stopped.ID)

	e.sendLocked(ctx, protocol.TokenAlarmStoppedAck)
	e.publish(domain.Event{
		Kind:      domain.EventAlarmDeactivated,
		Timestamp: e.clock.Now(),
		AlarmID:   stopped.ID,
	})

	return true
}

// TriggerTestAlarm raises a manual test alarm and then notifies the device.
// Empty details are replaced with TestDetails.
func (e *Engine) TriggerTestAlarm(ctx context.Context, details map[string]any) (domain.State, bool) {
	logger.InfoKV(ctx, "Manual test alarm triggered")

	payload := TestDetails()
	if len(details) > 0 {
		payload = maps.Clone(details)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, started := e.startLocked(ctx, protocol.SourceManualTest, payload)
	e.sendLocked(ctx, protocol.TokenTestAlarm)

	return state, started
}

// ManualStop stops the active alarm on operator request.
// It reports false when no alarm was active.
func (e *Engine) ManualStop(ctx context.Context) bool {
	logger.WarnKV(ctx, "Emergency stop requested by operator")

	e.mu.Lock()
	defer e.mu.Unlock()

	return e.stopLocked(ctx)
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Alarm:     e.machine.State(),
		Device:    e.device.Clone(),
		Handshake: e.session.State(),
	}
}

// sendLocked writes a token. A failed send is logged and otherwise ignored.
func (e *Engine) sendLocked(ctx context.Context, token string) {
	if err := e.sender.Send(ctx, token); err != nil {
		logger.WarnKV(ctx, "Cannot send to device", "token", token, "error", err)
	}
}

func (e *Engine) publish(ev domain.Event) {
	if e.publisher != nil {
		e.publisher.Publish(ev)
	}
}

func (e *Engine) persist(ctx context.Context, info *domain.DeviceInfo) {
	if e.store == nil {
		return
	}

	if err := e.store.Save(ctx, info); err != nil {
		logger.ErrorKV(ctx, "Failed to cache device info", "error", err)
	}
}
