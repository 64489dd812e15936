// Package watcher implements alarmctl watch, which follows the bridge's
// event stream and logs every collaborator event.
package watcher
