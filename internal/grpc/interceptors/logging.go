package interceptors

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"harvest-engine/internal/logging"
	"harvest-engine/pkg/utils"
)

// successful health probes are logged at debug level
const healthCheckMethod = "/grpc.health.v1.Health/Check"

func codeOf(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	return codes.Internal
}

// LoggingInterceptor returns a gRPC unary interceptor that logs each call on completion
func LoggingInterceptor() grpc.UnaryServerInterceptor {
	logger := logging.Component("grpc")

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		startTime := time.Now()
		resp, err := handler(ctx, req)

		fields := map[string]interface{}{
			"request_id":      utils.GenerateRequestID(),
			"method":          info.FullMethod,
			"processing_time": time.Since(startTime).String(),
			"status_code":     codeOf(err).String(),
		}
		switch {
		case err != nil:
			fields["error"] = err.Error()
			logger.Error("gRPC request failed", fields)
		case info.FullMethod == healthCheckMethod:
			logger.Debug("gRPC request completed", fields)
		default:
			logger.Info("gRPC request completed", fields)
		}
		return resp, err
	}
}

// StreamLoggingInterceptor logs each stream when it closes
func StreamLoggingInterceptor() grpc.StreamServerInterceptor {
	logger := logging.Component("grpc")

	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		startTime := time.Now()
		err := handler(srv, ss)

		fields := map[string]interface{}{
			"method":          info.FullMethod,
			"processing_time": time.Since(startTime).String(),
			"status_code":     codeOf(err).String(),
		}
		if err != nil && codeOf(err) != codes.Canceled {
			fields["error"] = err.Error()
			logger.Error("gRPC stream failed", fields)
			return err
		}
		logger.Debug("gRPC stream closed", fields)
		return err
	}
}
