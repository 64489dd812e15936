// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, ErrorKV, etc.).
//
// The serial read loop, the alarm engine and the gRPC layer all accept a
// context and extract the logger from it, so every line carries the name of
// the component that produced it.
package logger
