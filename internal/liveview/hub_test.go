package liveview

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapdesk/internal/core"
	"swapdesk/pkg/concurrency"
	"swapdesk/pkg/logging"
)

func testLogger(t *testing.T) core.ILogger {
	t.Helper()
	logger, err := logging.NewZapLogger("error")
	require.NoError(t, err)
	return logger
}

func testPool(t *testing.T) *concurrency.WorkerPool {
	t.Helper()
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{MaxWorkers: 4, MaxCapacity: 64}, testLogger(t))
	t.Cleanup(pool.Stop)
	return pool
}

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub(testPool(t), testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c1 := NewClient("c1")
	c2 := NewClient("c2")
	hub.Register(c1)
	hub.Register(c2)

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 2
	}, time.Second, 5*time.Millisecond)

	hub.Broadcast(NewMessage(TypeSwapState, map[string]string{"amount_a": "5"}))

	for _, c := range []*Client{c1, c2} {
		select {
		case msg := <-c.SendChan():
			assert.Equal(t, TypeSwapState, msg.Type)
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive broadcast", c.id)
		}
	}
}

func TestHub_UnregisterClosesClient(t *testing.T) {
	hub := NewHub(testPool(t), testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	c := NewClient("c1")
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-c.SendChan()
	assert.False(t, open)
}

func TestHub_SlowClientIsDropped(t *testing.T) {
	hub := NewHub(testPool(t), testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	// nobody reads from this client
	c := NewClient("slow")
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	// overflow the 256-deep send buffer
	for i := 0; i < 300; i++ {
		hub.Broadcast(NewMessage(TypeSwapState, fmt.Sprintf("frame-%d", i)))
		if i%50 == 0 {
			time.Sleep(time.Millisecond)
		}
	}

	require.Eventually(t, func() bool {
		return hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_ShutdownClosesAll(t *testing.T) {
	hub := NewHub(testPool(t), testLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	c := NewClient("c1")
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, open := <-c.SendChan():
			return !open
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestClient_SendAfterCloseReturnsFalse(t *testing.T) {
	c := NewClient("c1")
	c.Close()
	assert.False(t, c.Send(NewMessage(TypeError, nil)))
}
