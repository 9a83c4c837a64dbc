package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shiftly-ai/agent-backend/pkg/logging"
)

type fakeCloser struct {
	mu    sync.Mutex
	calls int
	ages  []time.Duration
	err   error
}

func (f *fakeCloser) CloseStale(_ context.Context, age time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.ages = append(f.ages, age)
	if f.err != nil {
		return 0, f.err
	}
	return 2, nil
}

func (f *fakeCloser) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestSweeperSweepsImmediately(t *testing.T) {
	closer := &fakeCloser{}
	sweeper := NewSweeper(closer, logging.Default(),
		WithSweepInterval(time.Hour),
		WithStaleAge(90*24*time.Hour),
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return closer.callCount() >= 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	require.Equal(t, 90*24*time.Hour, closer.ages[0])
}

func TestSweeperKeepsTicking(t *testing.T) {
	closer := &fakeCloser{}
	sweeper := NewSweeper(closer, logging.Default(), WithSweepInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return closer.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}

func TestSweeperSurvivesStoreErrors(t *testing.T) {
	closer := &fakeCloser{err: errors.New("db down")}
	sweeper := NewSweeper(closer, logging.Default(), WithSweepInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return closer.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done
}
