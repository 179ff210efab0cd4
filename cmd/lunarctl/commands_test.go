package main

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/lunar-session/session"
	"github.com/stretchr/testify/require"
)

func TestStartStoreWatch_WaitBlocksUntilWatchReturns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var finished atomic.Bool
	wait := startStoreWatch(ctx, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})

	waited := make(chan struct{})
	go func() {
		wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("wait returned while the watch was still running")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("wait never returned")
	}
	require.True(t, finished.Load())
}

func TestStartStoreWatch_UnsupportedStoreReturnsImmediately(t *testing.T) {
	wait := startStoreWatch(context.Background(), func(context.Context) error {
		return session.ErrWatchUnsupported
	})
	done := make(chan struct{})
	go func() {
		wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("wait never returned")
	}
}
