package waiter

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWaiter_ErrorCancelsOthers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWaiter(ctx, cancel)

	boom := errors.New("boom")
	stopped := make(chan struct{})
	w.Add(
		func(ctx context.Context) error { return boom },
		func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		},
	)

	require.ErrorIs(t, w.Wait(), boom)
	<-stopped
	require.Error(t, ctx.Err())
}

func TestWaiter_CancelFuncStopsAll(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWaiter(ctx, cancel)

	w.Add(
		func(ctx context.Context) error {
			w.CancelFunc()()
			return nil
		},
		func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		},
	)

	require.NoError(t, w.Wait())
	require.Error(t, w.Context().Err())
}

func TestWaiter_Signal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWaiter(ctx, cancel, WithSignals(syscall.SIGUSR1))

	w.Add(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)
	}()

	require.NoError(t, w.Wait())
}
