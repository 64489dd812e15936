package protocol

import "strings"

// Kind tags a classified Command.
type Kind int

// Command kinds, one per classification outcome.
const (
	KindUnrecognized Kind = iota
	KindHandshakeBegin
	KindHandshakeField
	KindHandshakeEnd
	KindEmergencyStart
	KindEmergencyStop
	KindCustomCommand
	KindStatusUpdate
	KindInformational
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindHandshakeBegin:
		return "HandshakeBegin"
	case KindHandshakeField:
		return "HandshakeField"
	case KindHandshakeEnd:
		return "HandshakeEnd"
	case KindEmergencyStart:
		return "EmergencyStart"
	case KindEmergencyStop:
		return "EmergencyStop"
	case KindCustomCommand:
		return "CustomCommand"
	case KindStatusUpdate:
		return "StatusUpdate"
	case KindInformational:
		return "Informational"
	default:
		return "Unrecognized"
	}
}

// Alarm sources.
const (
	SourceButtonPress   = "Button Press"
	SourceJSONCommand   = "JSON Command"
	SourceAutoDetected  = "Auto-detected"
	SourceCustomCommand = "Custom Command"
	SourceManualTest    = "Manual Test"
)

// Command is the result of classifying one line. It is a flat tagged value:
// Key and Value are set for KindHandshakeField, Source and Details for
// KindEmergencyStart. Text always holds the classified line.
type Command struct {
	// Details is the trigger payload of an emergency start, possibly nil.
	Details map[string]any
	// Text is the line the command was classified from.
	Text string
	// Key is the handshake field name.
	Key string
	// Value is the handshake field value.
	Value string
	// Source names what raised an emergency start.
	Source string
	// Kind tags the command.
	Kind Kind
}

// TriggersAlarm reports whether a custom command doubles as an emergency start.
func (c Command) TriggersAlarm() bool {
	if c.Kind != KindCustomCommand {
		return false
	}

	return strings.Contains(c.Text, PrefixPlaySound) || strings.Contains(strings.ToUpper(c.Text), "ALARM")
}
