package mvtree

// Logger interface matches the implementation of slog.
// See package logger for adapters to zap and logrus.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DiscardLogger is the default logger that compiles to a no-op
type DiscardLogger struct{}

func (d DiscardLogger) Debug(string, ...any) {}

func (d DiscardLogger) Info(string, ...any) {}

func (d DiscardLogger) Warn(string, ...any) {}

func (d DiscardLogger) Error(string, ...any) {}
