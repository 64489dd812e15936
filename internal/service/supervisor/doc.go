// Package supervisor decides when the serial link is (re)connected.
//
// The connection manager never retries on its own. Supervisor connects on
// start, retries failed attempts with exponential backoff, reconnects after
// the link is lost or keeps failing reads, and honors operator connect and
// disconnect requests. With hot-plug enabled a new device file triggers an
// attempt without waiting for the backoff.
package supervisor
