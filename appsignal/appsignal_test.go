package appsignal

import (
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSetSignals(t *testing.T) {
	ws := WatchSet{SIGINT: true, SIGUSR1: true}
	sigs := ws.signals()
	require.Len(t, sigs, 2)
	assert.Contains(t, sigs, os.Signal(syscall.SIGINT))
	assert.Contains(t, sigs, os.Signal(syscall.SIGUSR1))
}

func TestFlagSetReset(t *testing.T) {
	var f Flag
	assert.False(t, f.Load())
	f.set()
	assert.True(t, f.Load())
	f.Reset()
	assert.False(t, f.Load())
}

func TestFacadeDeliversSignal(t *testing.T) {
	var delivered sync.WaitGroup
	delivered.Add(1)

	f := Start(WatchSet{SIGUSR1: true}, func(sig os.Signal) bool {
		if sig == syscall.SIGUSR1 {
			delivered.Done()
		}
		return true
	})
	defer f.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	done := make(chan struct{})
	go func() {
		delivered.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("signal was not delivered to handler")
	}

	// give the dispatch goroutine a moment to also set the flag after the
	// handler returns true
	time.Sleep(10 * time.Millisecond)
	assert.True(t, f.Flags().SIGUSR1.Load())
}

func TestFacadeHandlerSuppressesFlag(t *testing.T) {
	called := make(chan struct{}, 1)
	f := Start(WatchSet{SIGUSR2: true}, func(sig os.Signal) bool {
		called <- struct{}{}
		return false
	})
	defer f.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR2))

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("handler was not invoked")
	}

	time.Sleep(10 * time.Millisecond)
	assert.False(t, f.Flags().SIGUSR2.Load())
}

func TestFacadeSetHandler(t *testing.T) {
	f := Start(WatchSet{}, nil)
	defer f.Stop()

	var called int32
	f.SetHandler(func(sig os.Signal) bool {
		called++
		return true
	})
	assert.NotNil(t, f.currentHandler())
}
