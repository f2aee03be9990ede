// Package effectors delivers best-effort notifications about completed actions.
package effectors

import (
	"context"
	"errors"

	"github.com/jdmmit/agente/internal/logging"
)

// Notifier sends a short titled message somewhere the user will see it.
// Failures are reported but callers treat them as non-fatal.
type Notifier interface {
	Notify(ctx context.Context, title, message string) error
}

// Nop discards notifications; used when no channel is configured
type Nop struct{}

func (Nop) Notify(ctx context.Context, title, message string) error { return nil }

// LogNotifier writes notifications to the log, standing in for a desktop
// notification on headless hosts
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, title, message string) error {
	logging.For("notify").Infow(title, "message", message)
	return nil
}

// Multi fans a notification out to every notifier and joins their errors
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, title, message string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, title, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Combine returns the simplest notifier covering ns: Nop for none, the
// notifier itself for one, Multi otherwise
func Combine(ns ...Notifier) Notifier {
	switch len(ns) {
	case 0:
		return Nop{}
	case 1:
		return ns[0]
	default:
		return Multi(ns)
	}
}
