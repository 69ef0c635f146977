// Package shutdown provides internal shutdown coordination and lifecycle management.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultGracePeriod is the default maximum time to wait for graceful shutdown.
const DefaultGracePeriod = 30 * time.Second

// Config configures graceful shutdown behavior.
type Config struct {
	// GracePeriod is the maximum time to wait for graceful shutdown.
	// Default is 30 seconds if not specified.
	GracePeriod time.Duration

	// Logger receives progress lines. Default is slog.Default().
	Logger *slog.Logger

	// OnShutdownStart is called when shutdown begins.
	OnShutdownStart func()

	// OnShutdownComplete is called when shutdown completes.
	OnShutdownComplete func(err error)
}

// DefaultConfig returns sensible shutdown defaults.
func DefaultConfig() *Config {
	return &Config{
		GracePeriod: DefaultGracePeriod,
	}
}

// Server represents anything that can be stopped with Close, such as a
// background task.
type Server interface {
	Close() error
}

// ShutdownFunc stops a component within the deadline carried by ctx, such as
// (*http.Server).Shutdown.
type ShutdownFunc func(ctx context.Context) error

type component struct {
	name string
	stop ShutdownFunc
}

// Coordinator stops registered components in reverse registration order, so
// whatever was started last is stopped first.
type Coordinator struct {
	config         *Config
	logger         *slog.Logger
	components     []component
	mu             sync.Mutex
	shutdownOnce   sync.Once
	isShuttingDown bool
	err            error
}

// NewCoordinator creates a new shutdown coordinator.
func NewCoordinator(config *Config) *Coordinator {
	if config == nil {
		config = DefaultConfig()
	}
	if config.GracePeriod <= 0 {
		config.GracePeriod = DefaultGracePeriod
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		config: config,
		logger: logger,
	}
}

// RegisterServer registers a server for graceful shutdown.
func (c *Coordinator) RegisterServer(name string, server Server) {
	if server == nil {
		return
	}
	c.RegisterShutdownFunc(name, func(context.Context) error {
		return server.Close()
	})
}

// RegisterShutdownFunc registers a context-aware stop function.
func (c *Coordinator) RegisterShutdownFunc(name string, fn ShutdownFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if fn != nil && !c.isShuttingDown {
		c.components = append(c.components, component{name: name, stop: fn})
	}
}

// RegisterCleanupFunc registers a cleanup function to run during shutdown.
func (c *Coordinator) RegisterCleanupFunc(name string, fn func() error) {
	if fn == nil {
		return
	}
	c.RegisterShutdownFunc(name, func(context.Context) error {
		return fn()
	})
}

// Shutdown stops every registered component once. Later calls return the
// first call's result.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.shutdownOnce.Do(func() {
		c.mu.Lock()
		c.isShuttingDown = true
		components := make([]component, len(c.components))
		copy(components, c.components)
		c.mu.Unlock()

		if c.config.OnShutdownStart != nil {
			c.config.OnShutdownStart()
		}

		graceCtx, cancel := context.WithTimeout(ctx, c.config.GracePeriod)
		defer cancel()

		c.logger.Info("Starting graceful shutdown",
			"grace_period", c.config.GracePeriod,
			"components", len(components))

		var errs []error
		for i := len(components) - 1; i >= 0; i-- {
			if err := c.stop(graceCtx, components[i]); err != nil {
				c.logger.Error("Shutdown error", "component", components[i].name, "error", err)
				errs = append(errs, err)
			}
		}

		c.err = errors.Join(errs...)
		if c.err == nil {
			c.logger.Info("Graceful shutdown completed successfully")
		}

		if c.config.OnShutdownComplete != nil {
			c.config.OnShutdownComplete(c.err)
		}
	})

	return c.err
}

// stop runs one component's stop function and gives up when the grace
// period ends.
func (c *Coordinator) stop(ctx context.Context, comp component) error {
	done := make(chan error, 1)
	go func() {
		done <- comp.stop(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", comp.name, err)
		}
		c.logger.Debug("Component stopped", "component", comp.name)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: shutdown exceeded grace period of %v: %w", comp.name, c.config.GracePeriod, ctx.Err())
	}
}
