package logging

import (
	"context"
	"log/slog"
	"sync"
)

// swapHandler delegates to a replaceable handler chain. Module loggers
// handed out before Initialize() keep their identity; Initialize swaps
// the chain behind them so the configured format and outputs apply
// without invalidating cached *slog.Logger pointers.
type swapHandler struct {
	mu    sync.RWMutex
	inner slog.Handler
}

func newSwapHandler(inner slog.Handler) *swapHandler {
	return &swapHandler{inner: inner}
}

func (h *swapHandler) swap(inner slog.Handler) {
	h.mu.Lock()
	h.inner = inner
	h.mu.Unlock()
}

func (h *swapHandler) current() slog.Handler {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.inner
}

// Enabled implements slog.Handler.
func (h *swapHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.current().Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *swapHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.current().Handle(ctx, r)
}

// WithAttrs implements slog.Handler. The derived handler is pinned to
// the chain current at derivation time.
func (h *swapHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.current().WithAttrs(attrs)
}

// WithGroup implements slog.Handler.
func (h *swapHandler) WithGroup(name string) slog.Handler {
	return h.current().WithGroup(name)
}
