package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func testConfig() *Config {
	return &Config{
		GracePeriod: time.Second,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestCoordinator_ReverseOrder(t *testing.T) {
	c := NewCoordinator(testConfig())

	var mu sync.Mutex
	var order []string
	record := func(name string) func() error {
		return func() error {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
			return nil
		}
	}

	c.RegisterServer("metrics", closerFunc(record("metrics")))
	c.RegisterServer("refresh", closerFunc(record("refresh")))
	c.RegisterCleanupFunc("logs", record("logs"))

	require.NoError(t, c.Shutdown(context.Background()))
	assert.Equal(t, []string{"logs", "refresh", "metrics"}, order)
}

func TestCoordinator_CollectsErrors(t *testing.T) {
	c := NewCoordinator(testConfig())
	boom := errors.New("boom")

	var completed error
	c.config.OnShutdownComplete = func(err error) { completed = err }

	c.RegisterServer("bad", closerFunc(func() error { return boom }))
	c.RegisterServer("good", closerFunc(func() error { return nil }))

	err := c.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, err, completed)

	// Only the first call does any work.
	assert.Equal(t, err, c.Shutdown(context.Background()))
}

func TestCoordinator_GracePeriodExceeded(t *testing.T) {
	cfg := testConfig()
	cfg.GracePeriod = 20 * time.Millisecond
	c := NewCoordinator(cfg)

	release := make(chan struct{})
	defer close(release)

	c.RegisterShutdownFunc("stuck", func(context.Context) error {
		<-release
		return nil
	})

	err := c.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCoordinator_RegisterAfterShutdownIgnored(t *testing.T) {
	c := NewCoordinator(testConfig())
	require.NoError(t, c.Shutdown(context.Background()))

	called := false
	c.RegisterServer("late", closerFunc(func() error { called = true; return nil }))
	c.RegisterServer("nil", nil)

	assert.NoError(t, c.Shutdown(context.Background()))
	assert.False(t, called)
}

func TestNewCoordinator_Defaults(t *testing.T) {
	c := NewCoordinator(nil)
	assert.Equal(t, DefaultGracePeriod, c.config.GracePeriod)
	assert.NotNil(t, c.logger)
}
