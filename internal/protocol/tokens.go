package protocol

// Delimiter terminates every line in both directions.
const Delimiter = '\n'

// Outbound tokens written by the host.
const (
	TokenPing            = "PC_PING"
	TokenReady           = "PC_CONTROLLER_READY"
	TokenHandshakeAck    = "HANDSHAKE_ACK"
	TokenAlarmAck        = "ALARM_ACKNOWLEDGED"
	TokenAlarmStoppedAck = "ALARM_STOPPED_ACK"
	TokenTestAlarm       = "TEST_ALARM_TRIGGERED"
	TokenShutdown        = "PC_SHUTDOWN"
)

// Inbound literals.
const (
	MarkerHandshakeBegin = "=== HANDSHAKE ==="
	MarkerHandshakeEnd   = "=== END_HANDSHAKE ==="
	LiteralAlarmStart    = "!ALARM_START!"
	LiteralAlarmStop     = "!ALARM_STOP!"
	PrefixCommand        = "CMD:"
	PrefixPlaySound      = "PLAY_SOUND"
	PrefixStatus         = "STATUS:"
	JSONPlayAlarm        = "PLAY_ALARM"
)

// Frame appends the line delimiter to token.
func Frame(token string) []byte {
	b := make([]byte, 0, len(token)+1)
	b = append(b, token...)

	return append(b, Delimiter)
}
