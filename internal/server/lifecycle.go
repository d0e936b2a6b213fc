// Package server sequences the long-running pieces of the arena process:
// hooks start in registration order and drain in reverse when a signal
// arrives, the context is cancelled, or a hook fails.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// Hook is one managed piece of the process. Start, when set, must block for
// the hook's whole life and return only on failure or after Stop is called.
// Either function may be nil: the bullet reaper has no run loop of its own,
// only timers to cancel on the way down.
type Hook struct {
	Name  string
	Start func() error
	Stop  func()
}

// Lifecycle runs hooks and coordinates their shutdown. Hooks drain in the
// reverse of registration order, so the websocket listener registered last
// stops feeding the game before the reaper's timers are cancelled.
type Lifecycle struct {
	logger *zap.Logger
	hooks  []Hook
}

// NewLifecycle creates a Lifecycle.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger) *Lifecycle {
	return &Lifecycle{logger: logger}
}

// Add registers a hook. Hooks start in the order they are added.
//
// Precondition: h.Name must be non-empty.
func (l *Lifecycle) Add(h Hook) {
	l.hooks = append(l.hooks, h)
}

// Run starts every hook and blocks until SIGINT or SIGTERM arrives, the
// context is cancelled, or a hook's Start returns an error. It then stops
// hooks in reverse order.
//
// Postcondition: Every hook's Stop has been called when Run returns. The
// return value is the first Start failure, or nil for a clean shutdown.
func (l *Lifecycle) Run(ctx context.Context) error {
	started := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(l.hooks))
	for _, h := range l.hooks {
		if h.Start == nil {
			continue
		}
		h := h
		go func() {
			l.logger.Info("hook started", zap.String("hook", h.Name))
			if err := h.Start(); err != nil {
				errCh <- fmt.Errorf("hook %s: %w", h.Name, err)
				cancel()
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		l.logger.Info("signal received, draining", zap.String("signal", sig.String()))
	case runErr = <-errCh:
		l.logger.Error("hook failed, draining", zap.Error(runErr))
	case <-ctx.Done():
		l.logger.Info("context cancelled, draining")
	}
	if runErr == nil {
		// A failing hook cancels the context itself; the failure, not the
		// cancellation, is what Run reports.
		select {
		case runErr = <-errCh:
		default:
		}
	}

	for i := len(l.hooks) - 1; i >= 0; i-- {
		h := l.hooks[i]
		if h.Stop == nil {
			continue
		}
		stopStarted := time.Now()
		h.Stop()
		l.logger.Info("hook stopped",
			zap.String("hook", h.Name),
			zap.Duration("elapsed", time.Since(stopStarted)),
		)
	}

	l.logger.Info("arena server down",
		zap.Duration("uptime", time.Since(started)),
	)
	return runErr
}
