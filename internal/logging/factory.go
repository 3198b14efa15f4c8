package logging

import (
	"fmt"
	"os"

	"harvest-engine/internal/logging/adapters"
	"harvest-engine/internal/logging/types"
)

// AdapterFactory creates logging adapters based on configuration
type AdapterFactory struct{}

// NewAdapterFactory creates a new adapter factory
func NewAdapterFactory() *AdapterFactory {
	return &AdapterFactory{}
}

// CreateAdapter creates a logging adapter based on the provided configuration
func (f *AdapterFactory) CreateAdapter(adapterConfig types.AdapterConfig) (types.LogAdapter, error) {
	switch adapterConfig.Type {
	case "stdout", "stderr":
		out := os.Stdout
		if adapterConfig.Type == "stderr" {
			out = os.Stderr
		}
		return adapters.NewStreamAdapter(adapterConfig.Name, out, adapters.StreamConfig{
			Format:    getStringOption(adapterConfig.Options, "format", "json"),
			Colorized: getBoolOption(adapterConfig.Options, "colorized", false),
		}), nil
	case "file":
		return adapters.NewFileAdapter(adapterConfig.Name, adapters.FileConfig{
			FilePath:    getStringOption(adapterConfig.Options, "file_path", ""),
			Format:      getStringOption(adapterConfig.Options, "format", "json"),
			MaxSize:     int64(getIntOption(adapterConfig.Options, "max_size", 0)),
			MaxBackups:  getIntOption(adapterConfig.Options, "max_backups", 5),
			CreateDirs:  getBoolOption(adapterConfig.Options, "create_dirs", true),
			SyncOnWrite: getBoolOption(adapterConfig.Options, "sync_on_write", false),
		})
	default:
		return nil, fmt.Errorf("unsupported adapter type: %s", adapterConfig.Type)
	}
}

func getStringOption(options map[string]interface{}, key string, defaultValue string) string {
	if str, ok := options[key].(string); ok {
		return str
	}
	return defaultValue
}

// yaml decodes numbers as int, json as float64
func getIntOption(options map[string]interface{}, key string, defaultValue int) int {
	switch v := options[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return defaultValue
}

func getBoolOption(options map[string]interface{}, key string, defaultValue bool) bool {
	if b, ok := options[key].(bool); ok {
		return b
	}
	return defaultValue
}
