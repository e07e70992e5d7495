// Package notify delivers transient user-facing messages (toasts) produced by
// store and session effects.
package notify

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Level is the severity of a notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelSuccess:
		return "success"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Notification is a single message for the user.
type Notification struct {
	Level   Level
	Message string
}

// Notifier delivers notifications. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Nop discards every notification.
var Nop Notifier = Func(func(context.Context, Notification) {})

// Log writes notifications to the context logger.
type Log struct{}

func (Log) Notify(ctx context.Context, n Notification) {
	lg := zctx.From(ctx)
	fields := []zap.Field{zap.Stringer("level", n.Level), zap.String("message", n.Message)}
	switch n.Level {
	case LevelWarning:
		lg.Warn("Notification", fields...)
	case LevelError:
		lg.Error("Notification", fields...)
	default:
		lg.Info("Notification", fields...)
	}
}

// Recorder keeps every notification in memory. The UI adapter drains it after
// each event; tests inspect it directly.
type Recorder struct {
	mu  sync.Mutex
	buf []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, n)
}

// Drain returns the recorded notifications and resets the recorder.
func (r *Recorder) Drain() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.buf
	r.buf = nil
	return out
}

// Multi fans a notification out to several notifiers in order.
func Multi(ns ...Notifier) Notifier {
	return Func(func(ctx context.Context, n Notification) {
		for _, x := range ns {
			x.Notify(ctx, n)
		}
	})
}
