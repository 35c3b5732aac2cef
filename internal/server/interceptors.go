package server

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/medcards-tracker/internal/common"
)

const requestIDHeader = "x-request-id"

// UnaryLogging tags every call with a request id and logs its outcome.
// Panics in handlers become codes.Internal.
func UnaryLogging(logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		rid := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDHeader); len(v) > 0 {
				rid = v[0]
			}
		}
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, rid)
		start := time.Now()

		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc.panic", "method", info.FullMethod, "req_id", rid, "panic", r, "stack", string(debug.Stack()))
				resp, err = nil, common.InternalError("internal error")
			}
			code := status.Code(err)
			attrs := []any{
				"method", info.FullMethod,
				"req_id", rid,
				"code", code.String(),
				"elapsed_ms", time.Since(start).Milliseconds(),
			}
			switch code {
			case codes.OK:
				logger.Info("grpc.call.ok", attrs...)
			case codes.Internal, codes.Unknown, codes.DataLoss:
				logger.Error("grpc.call.failed", append(attrs, "error", err)...)
			default:
				logger.Warn("grpc.call.rejected", append(attrs, "error", err)...)
			}
		}()
		return handler(ctx, req)
	}
}
