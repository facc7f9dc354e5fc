package email

import (
	"context"
	"time"
)

// newEmailContext detaches cancellation so a finished request does not abort
// an async send, while keeping request-scoped values such as the logger.
func newEmailContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	parent = context.WithoutCancel(parent)
	return context.WithTimeout(parent, timeout)
}
