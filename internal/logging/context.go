package logging

import (
	"context"
	"time"
)

// DetachContext returns a context that keeps parent's values but ignores its
// cancellation. Ledger writes use it so a finished request does not abort them.
func DetachContext(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}

// DetachContextWithTimeout detaches from parent and applies its own deadline.
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
