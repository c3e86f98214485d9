package grpc

import (
	"context"

	"google.golang.org/grpc"

	"github.com/baudgraph/graphd/util/routine"
)

// ChainUnary composes interceptors into one, applied outermost-first, for
// grpc server versions that predate the native ChainUnaryInterceptor
// server option.
func ChainUnary(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chained := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor, next := interceptors[i], chained
			chained = func(ctx context.Context, req interface{}) (interface{}, error) {
				return interceptor(ctx, req, info, next)
			}
		}
		return chained(ctx, req)
	}
}

// BoundedConcurrency runs every unary RPC on pool instead of directly on
// the goroutine grpc spawned for it, so a daemon's configured worker
// count (not an unbounded one-goroutine-per-request count) is what
// actually decides how many handlers run at once.
func BoundedConcurrency(pool *routine.Pool) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		type result struct {
			resp interface{}
			err  error
		}
		done := make(chan result, 1)
		pool.Go(func() {
			resp, err := handler(ctx, req)
			done <- result{resp: resp, err: err}
		})
		select {
		case r := <-done:
			return r.resp, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
