// Package common holds helpers shared by the alarm-bridge control tools.
//
// It provides a gRPC client wrapper with call timeouts and detects the
// current operator (hostname/username) attached to control requests.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
