// Package protocol implements the line protocol spoken by the call-button
// firmware: byte-to-line framing, classification of each line into a typed
// Command, and the tokens the host writes back.
//
// The classifier is an ordered rule table evaluated top to bottom; the first
// matching rule wins. Several rules share trigger words (a line holding both
// STOP and ALARM is a stop because the STOP rule comes first), and that order
// is part of the wire contract with deployed devices.
package protocol
