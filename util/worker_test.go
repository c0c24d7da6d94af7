package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWorker(t *testing.T) {
	var wg sync.WaitGroup
	handled := make(chan Action, 1)
	w := NewWorker("test-worker", &wg, func(a Action) error {
		handled <- a
		return nil
	}, 4)

	w.Start()
	require.True(t, w.IsRunning())
	// starting twice must not spawn a second drain goroutine
	w.Start()

	w.Sender() <- "payload"
	require.Equal(t, Action("payload"), <-handled)

	w.Stop()
	wg.Wait()
	require.False(t, w.IsRunning())
}

func TestTickWorker(t *testing.T) {
	var wg sync.WaitGroup
	stop := make(chan struct{})
	ticks := make(chan struct{}, 16)
	tw := NewTickWorker("test-ticker", 5*time.Millisecond, stop, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}, &wg)

	tw.Start()
	require.True(t, tw.IsRunning())
	<-ticks

	tw.Stop()
	wg.Wait()
	require.False(t, tw.IsRunning())
}
