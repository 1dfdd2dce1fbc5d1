// Package logger provides structured JSON logging for all services.
package logger

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Logger is the logging interface shared by every service.
type Logger interface {
	Info(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Debug(message string, fields map[string]interface{})
	Fatal(message string, fields map[string]interface{})
}

type jsonLogger struct {
	service string
	out     *log.Logger
}

// New returns a Logger that writes one JSON object per line to stdout.
func New(service string) Logger {
	return &jsonLogger{
		service: service,
		out:     log.New(os.Stdout, "", 0),
	}
}

func (l *jsonLogger) write(level, message string, fields map[string]interface{}) {
	entry := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level,
		"service":   l.service,
		"message":   message,
	}
	for k, v := range fields {
		entry[k] = v
	}

	line, _ := json.Marshal(entry)
	l.out.Println(string(line))
}

func (l *jsonLogger) Info(message string, fields map[string]interface{}) {
	l.write("info", message, fields)
}

func (l *jsonLogger) Warn(message string, fields map[string]interface{}) {
	l.write("warn", message, fields)
}

func (l *jsonLogger) Error(message string, fields map[string]interface{}) {
	l.write("error", message, fields)
}

func (l *jsonLogger) Debug(message string, fields map[string]interface{}) {
	l.write("debug", message, fields)
}

func (l *jsonLogger) Fatal(message string, fields map[string]interface{}) {
	l.write("fatal", message, fields)
	os.Exit(1)
}

// NewNop returns a Logger that discards everything. Intended for tests.
func NewNop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(message string, fields map[string]interface{})  {}
func (l *nopLogger) Warn(message string, fields map[string]interface{})  {}
func (l *nopLogger) Error(message string, fields map[string]interface{}) {}
func (l *nopLogger) Debug(message string, fields map[string]interface{}) {}
func (l *nopLogger) Fatal(message string, fields map[string]interface{}) {}
