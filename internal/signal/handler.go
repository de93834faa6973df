// Package signal turns process signals into context cancellation and reload
// requests for the cadence run loop.
//
// SIGINT and SIGTERM cancel the handler's context. SIGHUP asks for a
// configuration reload and never cancels anything.
//
// Import rules:
//   - CAN import: std lib only
//   - MUST NOT import: internal packages (to avoid circular dependencies)
package signal

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Handler manages graceful shutdown and reload requests.
type Handler struct {
	ctx         context.Context //nolint:containedctx // intentional: handler manages context lifecycle
	cancel      context.CancelFunc
	interrupted chan struct{}
	reload      chan struct{}
	done        chan struct{} // signals listen() to exit cleanly
	once        sync.Once
	stopOnce    sync.Once
	sigChan     chan os.Signal
}

// NewHandler creates a signal handler that listens for SIGINT, SIGTERM and
// SIGHUP.
//
// Usage:
//
//	h := signal.NewHandler(ctx)
//	defer h.Stop()
//
//	for {
//	    select {
//	    case <-h.Context().Done():
//	        return
//	    case <-h.Reload():
//	        // re-read configuration
//	    }
//	}
func NewHandler(parent context.Context) *Handler {
	ctx, cancel := context.WithCancel(parent)
	h := &Handler{
		ctx:         ctx,
		cancel:      cancel,
		interrupted: make(chan struct{}),
		// Reload requests coalesce: one pending request is enough.
		reload: make(chan struct{}, 1),
		done:   make(chan struct{}),
		// Buffer of 1 ensures signal.Notify doesn't drop signals if handler is busy.
		// See: https://pkg.go.dev/os/signal#Notify
		sigChan: make(chan os.Signal, 1),
	}

	signal.Notify(h.sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go h.listen()

	return h
}

// Context returns the context that is canceled on SIGINT or SIGTERM.
func (h *Handler) Context() context.Context {
	return h.ctx
}

// Interrupted returns a channel that closes when a shutdown signal is received.
func (h *Handler) Interrupted() <-chan struct{} {
	return h.interrupted
}

// Reload returns a channel that receives a value for each SIGHUP. Requests
// that arrive while one is still pending are merged.
func (h *Handler) Reload() <-chan struct{} {
	return h.reload
}

// Stop cleans up the signal handler and stops listening for signals.
// Always call this when done to prevent resource leaks.
func (h *Handler) Stop() {
	h.stopOnce.Do(func() {
		signal.Stop(h.sigChan)
		close(h.done) // Signal listen() to exit before closing sigChan
		h.cancel()
	})
}

// handleSignal processes a received signal.
func (h *Handler) handleSignal(sig os.Signal) {
	if sig == syscall.SIGHUP {
		h.requestReload()
		return
	}
	h.once.Do(func() {
		h.cancel()
		close(h.interrupted)
	})
}

func (h *Handler) requestReload() {
	select {
	case h.reload <- struct{}{}:
	default:
	}
}

// listen waits for signals and handles them until Stop() is called or the
// context is canceled. Only the first shutdown signal has effect; later
// ones are drained so delivery never blocks.
func (h *Handler) listen() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case <-h.done:
			return
		case sig := <-h.sigChan:
			h.handleSignal(sig)
		}
	}
}
