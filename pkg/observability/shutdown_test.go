package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManager_RunsFuncs(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)

	var calls int32
	for i := 0; i < 3; i++ {
		sm.RegisterShutdownFunc(func(ctx context.Context) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})
	}

	require.NoError(t, sm.Shutdown())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestShutdownManager_ReportsErrors(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)
	sm.RegisterShutdownFunc(func(ctx context.Context) error { return errors.New("close failed") })

	err := sm.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "close failed")
}

func TestShutdownManager_StopsServers(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0"}
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second, srv)

	require.NoError(t, sm.Shutdown())
	assert.ErrorIs(t, srv.ListenAndServe(), http.ErrServerClosed)
}

func TestShutdownManager_WaitForShutdownOnContext(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)

	var called atomic.Bool
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		called.Store(true)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, sm.WaitForShutdown(ctx))
	assert.True(t, called.Load())
}
