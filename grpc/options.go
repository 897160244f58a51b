package grpc

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/kbukum/dictation/grpc/interceptor"
	"github.com/kbukum/dictation/logger"
)

// DialOptions turns cfg into client options for a speech backend
// connection. The caller adds transport credentials. log may be nil, which
// disables call logging regardless of cfg.Logging.
func DialOptions(cfg Config, log *logger.Logger) []grpc.DialOption {
	cfg.ApplyDefaults()
	logging := cfg.Logging && log != nil

	unary := []grpc.UnaryClientInterceptor{
		interceptor.UnaryClientTimeoutInterceptor(cfg.CallTimeout),
	}
	var stream []grpc.StreamClientInterceptor
	if logging {
		unary = append(unary, interceptor.UnaryClientLoggingInterceptor(log))
		stream = append(stream, interceptor.StreamClientLoggingInterceptor(log))
	}

	opts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                cfg.KeepaliveTime,
			Timeout:             cfg.KeepaliveTimeout,
			PermitWithoutStream: cfg.KeepaliveIdle,
		}),
		grpc.WithDefaultCallOptions(
			grpc.MaxCallRecvMsgSize(cfg.MaxRecvMsgSize),
			grpc.MaxCallSendMsgSize(cfg.MaxSendMsgSize),
		),
		grpc.WithChainUnaryInterceptor(unary...),
	}
	if len(stream) > 0 {
		opts = append(opts, grpc.WithChainStreamInterceptor(stream...))
	}
	return opts
}
