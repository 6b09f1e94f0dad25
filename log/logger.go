// Package log provides structured logging scoped to a single recorder (its
// rule's topic and protocol, and its discovered read path).
//
// Two logger variants are available:
//   - Logger: non-sugared zap.Logger for the hot recorder path (structured fields)
//   - SugaredLogger: printf-style logging for startup/debug surfaces
//
// Use Logger.Sugar() to obtain a SugaredLogger when needed.
package log

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger provides structured logging with recorder context.
//
// Use this for the packet-processing path where performance matters.
// For startup/debug surfaces, use Sugar() to get a SugaredLogger.
type Logger struct {
	zap  *zap.Logger
	meta RecorderMeta
}

// SugaredLogger provides printf-style logging for startup and debug surfaces.
type SugaredLogger struct {
	sugar *zap.SugaredLogger
}

// RecorderMeta identifies the recorder a Logger's entries belong to.
type RecorderMeta struct {
	// Protocol is the rule's transport protocol (file, cfg, log, prpc, pubsub, rpc).
	Protocol string
	// Topic is the rule's configured topic glob.
	Topic string
	// ReadPath is the discovered input stream path this recorder owns.
	ReadPath string
}

// NewLogger creates a new logger with recorder context. Output defaults to
// os.Stderr.
func NewLogger(meta RecorderMeta) *Logger {
	return newLoggerWithWriter(meta, os.Stderr)
}

// WithOutput returns a new logger with a different output writer.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	return newLoggerWithWriter(l.meta, w)
}

func newLoggerWithWriter(meta RecorderMeta, w io.Writer) *Logger {
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig()),
		zapcore.AddSync(w),
		zapcore.DebugLevel,
	)

	contextFields := []zap.Field{
		zap.String("protocol", meta.Protocol),
		zap.String("topic", meta.Topic),
	}
	if meta.ReadPath != "" {
		contextFields = append(contextFields, zap.String("read_path", meta.ReadPath))
	}

	zapLogger := zap.New(core).With(contextFields...)
	return &Logger{zap: zapLogger, meta: meta}
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:     "timestamp",
		LevelKey:    "level",
		MessageKey:  "message",
		EncodeTime:  zapcore.RFC3339NanoTimeEncoder,
		EncodeLevel: zapcore.LowercaseLevelEncoder,
	}
}

// Debug logs a debug message.
func (l *Logger) Debug(message string, fields map[string]any) {
	l.zap.Debug(message, zap.Any("fields", fields))
}

// Info logs an info message.
func (l *Logger) Info(message string, fields map[string]any) {
	l.zap.Info(message, zap.Any("fields", fields))
}

// Warn logs a warning message.
func (l *Logger) Warn(message string, fields map[string]any) {
	l.zap.Warn(message, zap.Any("fields", fields))
}

// Error logs an error message.
func (l *Logger) Error(message string, fields map[string]any) {
	l.zap.Error(message, zap.Any("fields", fields))
}

// Sugar returns a SugaredLogger for printf-style logging.
func (l *Logger) Sugar() *SugaredLogger {
	return &SugaredLogger{sugar: l.zap.Sugar()}
}

// Debugf logs a debug message with printf-style formatting.
func (s *SugaredLogger) Debugf(template string, args ...any) {
	s.sugar.Debugf(template, args...)
}

// Infof logs an info message with printf-style formatting.
func (s *SugaredLogger) Infof(template string, args ...any) {
	s.sugar.Infof(template, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (s *SugaredLogger) Warnf(template string, args ...any) {
	s.sugar.Warnf(template, args...)
}

// Errorf logs an error message with printf-style formatting.
func (s *SugaredLogger) Errorf(template string, args ...any) {
	s.sugar.Errorf(template, args...)
}

// With returns a SugaredLogger with additional context fields.
func (s *SugaredLogger) With(args ...any) *SugaredLogger {
	return &SugaredLogger{sugar: s.sugar.With(args...)}
}
