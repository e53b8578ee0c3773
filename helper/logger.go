package helper

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var base = newBase()

func newBase() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetupLogger sets the level and output shared by every Logger.
func SetupLogger(level string, out io.Writer) {
	if out != nil {
		base.SetOutput(out)
	}
	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base.SetLevel(lvl)
}

// Logger provides structured logging functionality
type Logger struct {
	prefix string
	entry  *logrus.Entry
}

// NewLogger creates a new logger instance with optional prefix
func NewLogger(prefix string) *Logger {
	entry := logrus.NewEntry(base)
	if prefix != "" {
		entry = entry.WithField("component", prefix)
	}
	return &Logger{prefix: prefix, entry: entry}
}

// WithField returns a child logger carrying an extra field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{prefix: l.prefix, entry: l.entry.WithField(key, value)}
}

func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{prefix: l.prefix, entry: l.entry.WithFields(logrus.Fields(fields))}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.entry.Debugf(format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.entry.Fatalf(format, args...)
}

// Section creates a section header in logs
func (l *Logger) Section(title string) {
	l.entry.Infof("=== %s ===", title)
}

// Global logger instance
var AppLogger = NewLogger("PAYVERIFY")

func Debug(format string, args ...interface{}) {
	AppLogger.Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	AppLogger.Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	AppLogger.Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	AppLogger.Error(format, args...)
}

func Fatal(format string, args ...interface{}) {
	AppLogger.Fatal(format, args...)
}
