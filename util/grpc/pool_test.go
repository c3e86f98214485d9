package grpc

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/baudgraph/graphd/util/routine"
)

func TestChainUnaryAppliesOutermostFirst(t *testing.T) {
	var order []string
	tag := func(name string) grpc.UnaryServerInterceptor {
		return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
			order = append(order, name)
			return handler(ctx, req)
		}
	}

	chained := ChainUnary(tag("outer"), tag("inner"))
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		order = append(order, "handler")
		return "ok", nil
	}

	resp, err := chained(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	require.Equal(t, "ok", resp)
	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestChainUnaryPropagatesError(t *testing.T) {
	failing := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		return nil, errors.New("denied")
	}
	neverCalled := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		t.Fatal("interceptor after a failing one must not run")
		return handler(ctx, req)
	}

	chained := ChainUnary(failing, neverCalled)
	_, err := chained(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.EqualError(t, err, "denied")
}

func TestBoundedConcurrencyRunsOnPool(t *testing.T) {
	pool := routine.NewPool(2)
	defer pool.Close()

	interceptor := BoundedConcurrency(pool)
	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{}, func(ctx context.Context, req interface{}) (interface{}, error) {
		return req, nil
	})
	require.NoError(t, err)
	require.Equal(t, "req", resp)
}

func TestBoundedConcurrencyBoundsInFlightHandlers(t *testing.T) {
	pool := routine.NewPool(2)
	defer pool.Close()
	interceptor := BoundedConcurrency(pool)

	var mu sync.Mutex
	inFlight, maxSeen := 0, 0
	release := make(chan struct{})
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()

		<-release

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
		}()
	}

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, maxSeen, 2)
}

func TestBoundedConcurrencyRespectsCancellation(t *testing.T) {
	pool := routine.NewPool(1)
	defer pool.Close()

	block := make(chan struct{})
	defer close(block)
	pool.Go(func() { <-block })

	interceptor := BoundedConcurrency(pool)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	require.ErrorIs(t, err, context.Canceled)
}
