package lifeops

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrNotImplemented = errors.New("not implemented")
)

// Logger is the minimal logging surface long-lived components accept.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Notifier receives store-change signals; the HTTP layer fans them out to
// connected UI clients.
type Notifier interface {
	Notify(topic string)
}

type NotifierFunc func(topic string)

func (f NotifierFunc) Notify(topic string) {
	if f != nil {
		f(topic)
	}
}
