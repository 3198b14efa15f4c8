package logging

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"harvest-engine/internal/logging/types"
)

// hub is the adapter set shared by a root logger and every logger derived from it.
type hub struct {
	mu       sync.RWMutex
	adapters map[string]types.LogAdapter
	level    atomic.Int32
}

func (h *hub) write(entry *types.LogEntry) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.adapters))
	for name := range h.adapters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.adapters[name].Write(entry); err != nil {
			// stderr, so a broken adapter cannot recurse into itself
			fmt.Fprintf(os.Stderr, "logging adapter %s error: %v\n", name, err)
		}
	}
}

// MultiLogger fans every entry out to all registered adapters
type MultiLogger struct {
	hub     *hub
	context context.Context
	fields  map[string]interface{}
}

// NewMultiLogger creates a logger with no adapters at info level
func NewMultiLogger() *MultiLogger {
	h := &hub{adapters: make(map[string]types.LogAdapter)}
	h.level.Store(int32(InfoLevel))
	return &MultiLogger{
		hub:     h,
		context: context.Background(),
		fields:  map[string]interface{}{},
	}
}

func (l *MultiLogger) Debug(message string, fields ...map[string]interface{}) {
	l.Log(DebugLevel, message, fields...)
}

func (l *MultiLogger) Info(message string, fields ...map[string]interface{}) {
	l.Log(InfoLevel, message, fields...)
}

func (l *MultiLogger) Warn(message string, fields ...map[string]interface{}) {
	l.Log(WarnLevel, message, fields...)
}

func (l *MultiLogger) Error(message string, fields ...map[string]interface{}) {
	l.Log(ErrorLevel, message, fields...)
}

// Fatal logs, flushes adapters and exits the process
func (l *MultiLogger) Fatal(message string, fields ...map[string]interface{}) {
	l.Log(FatalLevel, message, fields...)
	_ = l.Close()
	os.Exit(1)
}

// Log logs a message at the specified level
func (l *MultiLogger) Log(level LogLevel, message string, fields ...map[string]interface{}) {
	if level < l.GetLevel() {
		return
	}

	l.hub.write(&types.LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
		Context:   l.context,
		Fields:    l.mergeFields(fields...),
	})
}

func (l *MultiLogger) derive(ctx context.Context, fields map[string]interface{}) *MultiLogger {
	return &MultiLogger{hub: l.hub, context: ctx, fields: fields}
}

func (l *MultiLogger) WithContext(ctx context.Context) Logger {
	return l.derive(ctx, l.mergeFields())
}

func (l *MultiLogger) WithField(key string, value interface{}) Logger {
	return l.derive(l.context, l.mergeFields(map[string]interface{}{key: value}))
}

func (l *MultiLogger) WithFields(fields map[string]interface{}) Logger {
	return l.derive(l.context, l.mergeFields(fields))
}

// SetLevel changes the level for this logger and everything derived from the same root
func (l *MultiLogger) SetLevel(level LogLevel) {
	l.hub.level.Store(int32(level))
}

func (l *MultiLogger) GetLevel() LogLevel {
	return LogLevel(l.hub.level.Load())
}

// AddAdapter registers an adapter; names must be unique
func (l *MultiLogger) AddAdapter(adapter types.LogAdapter) error {
	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()

	name := adapter.Name()
	if _, exists := l.hub.adapters[name]; exists {
		return fmt.Errorf("adapter %s already exists", name)
	}
	l.hub.adapters[name] = adapter
	return nil
}

// RemoveAdapter closes and unregisters an adapter
func (l *MultiLogger) RemoveAdapter(adapterName string) error {
	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()

	adapter, exists := l.hub.adapters[adapterName]
	if !exists {
		return fmt.Errorf("adapter %s not found", adapterName)
	}
	delete(l.hub.adapters, adapterName)
	return adapter.Close()
}

// Close closes all adapters
func (l *MultiLogger) Close() error {
	l.hub.mu.Lock()
	defer l.hub.mu.Unlock()

	var failures []string
	for name, adapter := range l.hub.adapters {
		if err := adapter.Close(); err != nil {
			failures = append(failures, fmt.Sprintf("adapter %s: %v", name, err))
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("failed to close adapters: %s", strings.Join(failures, ", "))
	}
	return nil
}

func (l *MultiLogger) mergeFields(extra ...map[string]interface{}) map[string]interface{} {
	merged := make(map[string]interface{}, len(l.fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, m := range extra {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

// ParseLogLevel parses a string log level into LogLevel
func ParseLogLevel(levelStr string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}
