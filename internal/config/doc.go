// Package config defines the bridge settings and provides helpers to load,
// validate and save them in YAML format.
//
// Config groups the serial link parameters, the reconnect policy, the gRPC
// control endpoint, the optional MQTT publisher and the device-info cache.
package config
