package interceptor

import (
	"context"
	"path"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"github.com/kbukum/dictation/logger"
)

// UnaryClientLoggingInterceptor logs each unary call to a speech backend.
// Successful calls log at debug, failures at warn with the status code.
func UnaryClientLoggingInterceptor(log *logger.Logger) grpc.UnaryClientInterceptor {
	log = log.WithComponent("grpc")
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		logCall(log, "call", method, cc, start, err)
		return err
	}
}

// StreamClientLoggingInterceptor logs stream setup. A recognition stream
// lives as long as its dictation session, so only the open is timed.
func StreamClientLoggingInterceptor(log *logger.Logger) grpc.StreamClientInterceptor {
	log = log.WithComponent("grpc")
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		start := time.Now()
		cs, err := streamer(ctx, desc, cc, method, opts...)
		logCall(log, "stream open", method, cc, start, err)
		return cs, err
	}
}

func logCall(log *logger.Logger, kind, method string, cc *grpc.ClientConn, start time.Time, err error) {
	fields := map[string]interface{}{
		logger.FieldOperation: path.Base(method),
		"service":             path.Dir(method)[1:],
		logger.FieldDuration:  time.Since(start).Milliseconds(),
	}
	if cc != nil {
		fields["target"] = cc.Target()
	}
	if err != nil {
		st := status.Convert(err)
		fields[logger.FieldStatus] = st.Code().String()
		fields[logger.FieldError] = st.Message()
		log.Warn("Speech backend "+kind+" failed", fields)
		return
	}
	fields[logger.FieldStatus] = "OK"
	log.Debug("Speech backend "+kind+" completed", fields)
}
