package adapters

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"harvest-engine/internal/logging/types"
)

// StreamAdapter writes one formatted line per entry to an io.Writer (stdout, stderr, a buffer)
type StreamAdapter struct {
	name      string
	out       io.Writer
	format    string
	colorized bool
	mu        sync.Mutex
}

// StreamConfig represents configuration for a stream adapter
type StreamConfig struct {
	Format    string `yaml:"format"`    // json or text
	Colorized bool   `yaml:"colorized"` // ANSI level colors, text format only
}

// NewStreamAdapter creates an adapter writing to out
func NewStreamAdapter(name string, out io.Writer, config StreamConfig) *StreamAdapter {
	return &StreamAdapter{
		name:      name,
		out:       out,
		format:    strings.ToLower(config.Format),
		colorized: config.Colorized,
	}
}

func (a *StreamAdapter) Write(entry *types.LogEntry) error {
	line, err := formatEntry(entry, a.format, a.colorized)
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_, err = fmt.Fprintln(a.out, line)
	return err
}

func (a *StreamAdapter) Close() error  { return nil }
func (a *StreamAdapter) Health() error { return nil }
func (a *StreamAdapter) Name() string  { return a.name }

func formatEntry(entry *types.LogEntry, format string, colorized bool) (string, error) {
	if format == "text" {
		return formatText(entry, colorized), nil
	}
	return formatJSON(entry)
}

func formatJSON(entry *types.LogEntry) (string, error) {
	data := make(map[string]interface{}, len(entry.Fields)+3)
	for k, v := range entry.Fields {
		if err, ok := v.(error); ok {
			v = err.Error()
		}
		data[k] = v
	}
	data["level"] = entry.Level.String()
	data["message"] = entry.Message
	data["time"] = entry.Timestamp.Format(time.RFC3339Nano)

	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func formatText(entry *types.LogEntry, colorized bool) string {
	level := strings.ToUpper(entry.Level.String())
	if colorized {
		level = colorizeLevel(level)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", entry.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"), level, entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}
	return b.String()
}

func colorizeLevel(level string) string {
	const reset = "\033[0m"
	switch level {
	case "DEBUG":
		return "\033[90m" + level + reset
	case "INFO":
		return "\033[34m" + level + reset
	case "WARN":
		return "\033[33m" + level + reset
	case "ERROR", "FATAL":
		return "\033[31m" + level + reset
	default:
		return level
	}
}
