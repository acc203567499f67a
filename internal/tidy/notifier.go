package tidy

import "context"

// Notifier delivers the end-of-batch summary to the user.
// Implementations must return promptly once ctx is done.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string) error { return nil }
