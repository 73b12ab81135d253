package main

import (
	"log"

	"github.com/aaoifi-enhancement/standardsengine/pipecore/agents"
)

// stdLogger implements agents.Logger using standard library log.
type stdLogger struct {
	debug  bool
	fields []any
}

func newStdLogger(debug bool) *stdLogger {
	return &stdLogger{debug: debug}
}

func (l *stdLogger) Debug(msg string, keysAndValues ...any) {
	if !l.debug {
		return
	}
	log.Printf("[DEBUG] %s %v", msg, l.merge(keysAndValues))
}

func (l *stdLogger) Info(msg string, keysAndValues ...any) {
	log.Printf("[INFO] %s %v", msg, l.merge(keysAndValues))
}

func (l *stdLogger) Warn(msg string, keysAndValues ...any) {
	log.Printf("[WARN] %s %v", msg, l.merge(keysAndValues))
}

func (l *stdLogger) Error(msg string, keysAndValues ...any) {
	log.Printf("[ERROR] %s %v", msg, l.merge(keysAndValues))
}

func (l *stdLogger) Bind(fields ...any) agents.Logger {
	bound := make([]any, 0, len(l.fields)+len(fields))
	bound = append(bound, l.fields...)
	bound = append(bound, fields...)
	return &stdLogger{debug: l.debug, fields: bound}
}

func (l *stdLogger) merge(keysAndValues []any) []any {
	if len(l.fields) == 0 {
		return keysAndValues
	}
	merged := make([]any, 0, len(l.fields)+len(keysAndValues))
	merged = append(merged, l.fields...)
	merged = append(merged, keysAndValues...)
	return merged
}
