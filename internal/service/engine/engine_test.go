package engine

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	domain "github.com/oshokin/alarm-bridge/internal/domain/alarm"
	"github.com/oshokin/alarm-bridge/internal/protocol"
	"github.com/oshokin/alarm-bridge/internal/service/handshake"
)

var errLinkDown = errors.New("not connected")

type recordingSender struct {
	mu     sync.Mutex
	tokens []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	s.tokens = append(s.tokens, token)

	return nil
}

func (s *recordingSender) Tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.tokens...)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (p *recordingPublisher) Publish(ev domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, ev)
}

// Kinds returns the published kinds, skipping line_received.
func (p *recordingPublisher) Kinds() []domain.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()

	var kinds []domain.EventKind

	for _, ev := range p.events {
		if ev.Kind != domain.EventLineReceived {
			kinds = append(kinds, ev.Kind)
		}
	}

	return kinds
}

func (p *recordingPublisher) Last(kind domain.EventKind) (domain.Event, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.events) - 1; i >= 0; i-- {
		if p.events[i].Kind == kind {
			return p.events[i], true
		}
	}

	return domain.Event{}, false
}

type memoryStore struct {
	info  *domain.DeviceInfo
	saves int
}

func (m *memoryStore) Load(context.Context) (*domain.DeviceInfo, error) {
	if m.info == nil {
		return nil, errors.New("not found")
	}

	return m.info.Clone(), nil
}

func (m *memoryStore) Save(_ context.Context, info *domain.DeviceInfo) error {
	m.info = info.Clone()
	m.saves++

	return nil
}

type fixture struct {
	engine    *Engine
	sender    *recordingSender
	publisher *recordingPublisher
	clock     *clockwork.FakeClock
}

func newFixture(store DeviceStore) *fixture {
	var seq atomic.Int64

	f := &fixture{
		sender:    new(recordingSender),
		publisher: new(recordingPublisher),
		clock:     clockwork.NewFakeClockAt(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)),
	}

	f.engine = New(Options{
		Sender:    f.sender,
		Publisher: f.publisher,
		Store:     store,
		Clock:     f.clock,
		NewID: func() string {
			return "alarm-" + strconv.FormatInt(seq.Add(1), 10)
		},
	})

	return f
}

func (f *fixture) feed(t *testing.T, lines ...string) {
	t.Helper()

	for _, l := range lines {
		f.engine.HandleLine(t.Context(), protocol.Line{Text: l})
	}
}

// TestEngine_ButtonPressAcknowledged sends the ack and emits one activation.
func TestEngine_ButtonPressAcknowledged(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.feed(t, "!ALARM_START!")

	require.Equal(t, []string{protocol.TokenAlarmAck}, f.sender.Tokens())
	require.Equal(t, []domain.EventKind{domain.EventAlarmActivated}, f.publisher.Kinds())

	ev, _ := f.publisher.Last(domain.EventAlarmActivated)
	require.Equal(t, protocol.SourceButtonPress, ev.Source)
	require.Equal(t, "alarm-1", ev.AlarmID)
	require.Equal(t, f.clock.Now(), ev.Timestamp)
	require.Equal(t, domain.UnknownPatient, ev.Patient)
}

// TestEngine_DuplicateStartSuppressed keeps the first activation's fields.
func TestEngine_DuplicateStartSuppressed(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.feed(t, `{"command":"PLAY_ALARM","patient":"John","room":"204"}`)
	first := f.engine.Snapshot().Alarm

	f.clock.Advance(time.Minute)
	f.feed(t, "!ALARM_START!", "EMERGENCY BUTTON")

	require.Equal(t, first, f.engine.Snapshot().Alarm)
	require.Equal(t, "John", first.Patient)
	require.Equal(t, "204", first.Room)
	require.Equal(t, []string{protocol.TokenAlarmAck}, f.sender.Tokens())
	require.Equal(t, []domain.EventKind{domain.EventAlarmActivated}, f.publisher.Kinds())
}

// TestEngine_StopWhileIdle sends nothing and emits nothing.
func TestEngine_StopWhileIdle(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.feed(t, "!ALARM_STOP!", "cancel")

	require.Empty(t, f.sender.Tokens())
	require.Empty(t, f.publisher.Kinds())
	require.False(t, f.engine.ManualStop(t.Context()))
}

// TestEngine_StartStopCycle acknowledges both transitions.
func TestEngine_StartStopCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.feed(t, "!ALARM_START!", "!ALARM_STOP!", "!ALARM_START!")

	require.Equal(t, []string{
		protocol.TokenAlarmAck,
		protocol.TokenAlarmStoppedAck,
		protocol.TokenAlarmAck,
	}, f.sender.Tokens())

	stopped, ok := f.publisher.Last(domain.EventAlarmDeactivated)
	require.True(t, ok)
	require.Equal(t, "alarm-1", stopped.AlarmID)
	require.Equal(t, "alarm-2", f.engine.Snapshot().Alarm.ID)
}

// TestEngine_HandshakeRoundtrip publishes device info and uses it as fallback.
func TestEngine_HandshakeRoundtrip(t *testing.T) {
	t.Parallel()

	store := new(memoryStore)
	f := newFixture(store)
	f.feed(t,
		"=== HANDSHAKE ===",
		"DEVICE_ID:ESP01",
		"PATIENT:Jane Doe",
		"ROOM:204",
		"=== END_HANDSHAKE ===",
	)

	require.Equal(t, []string{protocol.TokenHandshakeAck}, f.sender.Tokens())

	ev, ok := f.publisher.Last(domain.EventHandshakeComplete)
	require.True(t, ok)
	require.Equal(t, "ESP01", ev.Device)
	require.Equal(t, "Jane Doe", ev.Patient)
	require.Equal(t, "204", ev.Room)
	require.Equal(t, 1, store.saves)

	f.feed(t, "CMD:PLAY_SOUND")

	state := f.engine.Snapshot().Alarm
	require.True(t, state.Active)
	require.Equal(t, protocol.SourceCustomCommand, state.Source)
	require.Equal(t, "Jane Doe", state.Patient)
	require.Equal(t, "204", state.Room)
	require.Equal(t, "ESP01", state.Device)
}

// TestEngine_HandshakeSurvivesRestart restores device info from the store.
func TestEngine_HandshakeSurvivesRestart(t *testing.T) {
	t.Parallel()

	store := &memoryStore{info: domain.NewDeviceInfo(map[string]string{"DEVICE_ID": "ESP07", "ROOM": "12"})}
	f := newFixture(store)
	require.NoError(t, f.engine.Restore(t.Context()))

	f.feed(t, "BUTTON PRESSED")

	state := f.engine.Snapshot().Alarm
	require.Equal(t, protocol.SourceAutoDetected, state.Source)
	require.Equal(t, "ESP07", state.Device)
	require.Equal(t, "12", state.Room)
	require.Equal(t, domain.UnknownHandshakeValue, state.Patient)

	require.ErrorIs(t, newFixture(nil).engine.Restore(t.Context()), ErrNoStore)
}

// TestEngine_ResetLinkDropsOpenHandshake verifies a new link starts idle.
func TestEngine_ResetLinkDropsOpenHandshake(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.feed(t, "=== HANDSHAKE ===", "DEVICE_ID:ESP01")
	require.Equal(t, handshake.Collecting, f.engine.Snapshot().Handshake)

	f.engine.ResetLink()
	f.feed(t, "=== END_HANDSHAKE ===")

	require.Equal(t, handshake.Idle, f.engine.Snapshot().Handshake)
	require.Nil(t, f.engine.Snapshot().Device)
	require.Empty(t, f.sender.Tokens())
}

// TestEngine_TriggerTestAlarm uses the test payload and notifies the device.
func TestEngine_TriggerTestAlarm(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)

	state, started := f.engine.TriggerTestAlarm(t.Context(), nil)
	require.True(t, started)
	require.Equal(t, protocol.SourceManualTest, state.Source)
	require.Equal(t, "TEST PATIENT", state.Patient)
	require.Equal(t, "TEST ROOM", state.Room)
	require.Equal(t, "TEST_DEVICE", state.Device)

	_, started = f.engine.TriggerTestAlarm(t.Context(), map[string]any{"patient": "Other"})
	require.False(t, started)

	require.Equal(t, []string{
		protocol.TokenAlarmAck,
		protocol.TokenTestAlarm,
		protocol.TokenTestAlarm,
	}, f.sender.Tokens())

	require.True(t, f.engine.ManualStop(t.Context()))
	require.False(t, f.engine.Snapshot().Alarm.Active)
}

// TestEngine_SendFailureIsNotFatal keeps the transition when the link is down.
func TestEngine_SendFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.sender.err = errLinkDown

	f.feed(t, "!ALARM_START!")

	require.True(t, f.engine.Snapshot().Alarm.Active)
	require.Equal(t, []domain.EventKind{domain.EventAlarmActivated}, f.publisher.Kinds())
}

// TestEngine_LineReceivedPublished emits every line, recognized or not.
func TestEngine_LineReceivedPublished(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)
	f.feed(t, "hello world", "STATUS: ok", "✅ ready")

	ev, ok := f.publisher.Last(domain.EventLineReceived)
	require.True(t, ok)
	require.Equal(t, "✅ ready", ev.Raw)
	require.Empty(t, f.publisher.Kinds())
	require.False(t, f.engine.Snapshot().Alarm.Active)
}

// TestEngine_ConcurrentStartsActivateOnce races the read path against the control path.
func TestEngine_ConcurrentStartsActivateOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(nil)

	const workers = 16

	var (
		wg      sync.WaitGroup
		started atomic.Int32
	)

	for i := range workers {
		wg.Go(func() {
			if i%2 == 0 {
				f.engine.HandleLine(t.Context(), protocol.Line{Text: "!ALARM_START!"})

				return
			}

			if _, ok := f.engine.TriggerTestAlarm(t.Context(), nil); ok {
				started.Add(1)
			}
		})
	}

	wg.Wait()

	require.Equal(t, []domain.EventKind{domain.EventAlarmActivated}, f.publisher.Kinds())

	acks := 0

	for _, token := range f.sender.Tokens() {
		if token == protocol.TokenAlarmAck {
			acks++
		}
	}

	require.Equal(t, 1, acks)
	require.LessOrEqual(t, started.Load(), int32(1))
}
