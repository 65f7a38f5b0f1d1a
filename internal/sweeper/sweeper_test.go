package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubReleaser struct {
	calls    atomic.Int32
	released int
	err      error
}

func (s *stubReleaser) ReleaseExpired(ctx context.Context) (int, error) {
	s.calls.Add(1)
	return s.released, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_SweepsUntilCancelled(t *testing.T) {
	releaser := &stubReleaser{released: 2}
	s := New(releaser, 5*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		return releaser.calls.Load() >= 3
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestRun_KeepsGoingAfterSweepError(t *testing.T) {
	releaser := &stubReleaser{err: errors.New("db down")}
	s := New(releaser, 5*time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx) //nolint:errcheck

	assert.Eventually(t, func() bool {
		return releaser.calls.Load() >= 2
	}, time.Second, time.Millisecond)
}

func TestNew_DefaultsInterval(t *testing.T) {
	s := New(&stubReleaser{}, 0, testLogger())
	assert.Equal(t, time.Minute, s.interval)
}
