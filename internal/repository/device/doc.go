// Package device persists the identity the controller announced in its last
// handshake, so alarms raised right after a restart still carry patient and
// room details.
package device
