// Package handshake implements the device handshake sub-protocol: a block of
// "KEY: value" lines bracketed by begin and end markers, after which the
// device identity is known.
package handshake

// State of a Session.
type State int

// Session states.
const (
	Idle State = iota
	Collecting
)

// String returns the state name used in logs.
func (s State) String() string {
	if s == Collecting {
		return "COLLECTING"
	}

	return "IDLE"
}

// Session collects one handshake block at a time. It is not safe for
// concurrent use; the engine owns it under its lock.
type Session struct {
	fields map[string]string
	state  State
}

// NewSession returns an idle session.
func NewSession() *Session {
	return &Session{state: Idle}
}

// Collecting reports whether a block is open.
func (s *Session) Collecting() bool {
	return s.state == Collecting
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Begin opens a block. A Begin while already collecting starts over.
func (s *Session) Begin() {
	s.state = Collecting
	s.fields = make(map[string]string)
}

// Field records one key while collecting and reports whether it was kept.
// A later value for the same key replaces the earlier one.
func (s *Session) Field(key, value string) bool {
	if s.state != Collecting {
		return false
	}

	s.fields[key] = value

	return true
}

// End closes the block and returns the collected fields. complete is false
// when no block was open, in which case nothing is returned.
func (s *Session) End() (fields map[string]string, complete bool) {
	if s.state != Collecting {
		return nil, false
	}

	fields = s.fields
	s.fields = nil
	s.state = Idle

	return fields, true
}

// Reset drops any open block, used when the link is replaced.
func (s *Session) Reset() {
	s.fields = nil
	s.state = Idle
}
