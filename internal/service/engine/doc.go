// Package engine is the single owner of the bridge's mutable protocol state:
// the handshake session, the last device info and the alarm state machine.
//
// Lines from the read loop and commands from the control surface both enter
// through Engine methods and are serialized by one mutex. Acknowledgments go
// out through a Sender and collaborator events through a Publisher.
package engine
