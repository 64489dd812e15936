// Package pb describes the alarmbridge.v1.AlarmBridge gRPC service.
//
// The service is built from protobuf well-known types only (Struct, Empty,
// StringValue), so the descriptors below are written by hand instead of
// generated from a .proto file. The layout mirrors protoc-gen-go-grpc output:
// a ServiceDesc, a server interface with a registration helper and a client.
package pb
