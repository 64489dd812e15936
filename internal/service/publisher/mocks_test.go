package publisher

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/oshokin/alarm-bridge/internal/syncutil"
)

type publishedMessage struct {
	payload any
	topic   string
}

// mockClient implements mqtt.Client.
type mockClient struct {
	connectErr  error
	publishErr  error
	published   []publishedMessage
	disconnects int
	connected   bool
	mu          syncutil.Mutex
}

func (m *mockClient) messages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	return append([]publishedMessage(nil), m.published...)
}

func (m *mockClient) disconnectCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.disconnects
}

func (m *mockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.connected
}

func (m *mockClient) IsConnectionOpen() bool {
	return m.IsConnected()
}

//nolint:ireturn // mqtt.Client API.
func (m *mockClient) Connect() mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectErr != nil {
		return &mockToken{err: m.connectErr}
	}

	m.connected = true

	return &mockToken{}
}

func (m *mockClient) Disconnect(uint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	m.disconnects++
}

//nolint:ireturn // mqtt.Client API.
func (m *mockClient) Publish(topic string, _ byte, _ bool, payload any) mqtt.Token {
	if m.publishErr != nil {
		return &mockToken{err: m.publishErr}
	}

	m.mu.Lock()
	m.published = append(m.published, publishedMessage{topic: topic, payload: payload})
	m.mu.Unlock()

	return &mockToken{}
}

//nolint:ireturn // mqtt.Client API.
func (*mockClient) Subscribe(string, byte, mqtt.MessageHandler) mqtt.Token {
	return &mockToken{}
}

//nolint:ireturn // mqtt.Client API.
func (*mockClient) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	return &mockToken{}
}

//nolint:ireturn // mqtt.Client API.
func (*mockClient) Unsubscribe(...string) mqtt.Token {
	return &mockToken{}
}

func (*mockClient) AddRoute(string, mqtt.MessageHandler) {}

func (*mockClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// mockToken implements mqtt.Token.
type mockToken struct {
	err error
}

func (*mockToken) Wait() bool { return true }

func (*mockToken) WaitTimeout(time.Duration) bool { return true }

func (*mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)

	return ch
}

func (t *mockToken) Error() error { return t.err }
