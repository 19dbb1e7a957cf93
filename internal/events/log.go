package events

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogSink writes events to a zap logger.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a sink over l.
func NewLogSink(l *zap.Logger) *LogSink {
	return &LogSink{log: l}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) IsConfigured() bool { return s.log != nil }

func (s *LogSink) Send(_ context.Context, e *Event) error {
	fields := make([]zap.Field, 0, len(e.Metadata)+2)
	fields = append(fields, zap.String("event", string(e.Type)), zap.String("title", e.Title))
	for k, v := range e.Metadata {
		fields = append(fields, zap.String(k, v))
	}
	s.log.Check(levelFor(e.Severity), e.Message).Write(fields...)
	return nil
}

func levelFor(s Severity) zapcore.Level {
	switch s {
	case SeverityWarning:
		return zapcore.WarnLevel
	case SeverityError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
