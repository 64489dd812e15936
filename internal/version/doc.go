// Package version holds the build metadata of alarm-bridge and alarmctl.
//
// Version, Commit and BuildTime are set with -ldflags -X at release time.
// Both binaries print them through the `version` subcommand, and the daemon
// logs them on startup so a log file identifies the build that wrote it.
package version
