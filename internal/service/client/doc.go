// Package client implements the alarmctl control commands.
//
// Each command dials the bridge, performs one call and logs the result.
// Trigger and stop can keep retrying until the bridge is reachable.
package client
