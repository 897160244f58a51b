// Package grpc holds the gRPC plumbing shared by speech backends that talk
// gRPC: dial options with keepalive and interceptors, and translation of
// backend status errors into AppErrors via FromGRPC.
//
// The grpc/interceptor sub-package provides the client interceptors for call
// and stream logging and a default timeout for unary RPCs.
package grpc
