package orders

import (
	"github.com/rs/zerolog"
)

// Level is the severity of a Notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a user-facing message about a mutation outcome.
type Notice struct {
	Level   Level
	Message string
	OrderID string
}

// Notifier presents notices to the operator.
type Notifier interface {
	Notify(Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notice)

// Notify calls fn.
func (fn NotifierFunc) Notify(n Notice) { fn(n) }

// LogNotifier writes notices to a zerolog logger.
type LogNotifier struct {
	Logger zerolog.Logger
}

// Notify logs n at info or error level.
func (l LogNotifier) Notify(n Notice) {
	ev := l.Logger.Info()
	if n.Level == LevelError {
		ev = l.Logger.Error()
	}
	ev.Str("order_id", n.OrderID).Str("level", string(n.Level)).Msg(n.Message)
}
