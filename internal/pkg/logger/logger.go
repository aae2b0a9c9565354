package logger

import (
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

type Config struct {
	Level    string
	Format   string
	Output   string
	FilePath string
}

// Logger wraps logrus with the key/value convenience surface the services
// use. Variadic pairs are folded into structured fields.
type Logger struct {
	entry *logrus.Entry
}

func New(cfg Config) (*Logger, error) {
	base := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	base.SetLevel(level)

	if cfg.Format == "text" {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		base.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	}

	var out io.Writer = os.Stdout
	if cfg.Output == "file" && cfg.FilePath != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     14, // days
			Compress:   true,
		}
	}
	base.SetOutput(out)

	return &Logger{entry: logrus.NewEntry(base)}, nil
}

func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{entry: l.entry.WithFields(fields)}
}

func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.kv(kv).Debug(msg) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.kv(kv).Info(msg) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.kv(kv).Warn(msg) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.kv(kv).Error(msg) }

func (l *Logger) kv(pairs []interface{}) *logrus.Entry {
	entry := l.entry
	for i := 0; i+1 < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			continue
		}
		entry = entry.WithField(key, pairs[i+1])
	}
	return entry
}

// LogService records one service operation with its duration and outcome.
func (l *Logger) LogService(service, operation string, duration time.Duration, fields map[string]interface{}, err error) {
	entry := l.entry.WithFields(Fields{
		"service":     service,
		"operation":   operation,
		"duration_ms": duration.Milliseconds(),
	})
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	if err != nil {
		entry.WithError(err).Error("service operation failed")
		return
	}
	entry.Info("service operation completed")
}

// LogStream records one streaming lifecycle event for a conversation.
func (l *Logger) LogStream(conversationID, phase string, fields map[string]interface{}) {
	entry := l.entry.WithFields(Fields{
		"conversation_id": conversationID,
		"phase":           phase,
	})
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Info("stream event")
}
