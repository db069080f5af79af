// Package logger is the structured logging facade used across graphbench.
package logger

// Logger is implemented by the zap adapter and the no-op logger.
type Logger interface {
	Debug(msg string, args ...Field)
	Info(msg string, args ...Field)
	Warn(msg string, args ...Field)
	Error(msg string, args ...Field)
	With(args ...Field) Logger
}

type Field struct {
	Key   string
	Value any
}
