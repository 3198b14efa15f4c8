package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"harvest-engine/internal/logging/types"
)

// FileAdapter appends entries to a file and rotates it by size
type FileAdapter struct {
	name   string
	config FileConfig

	mu   sync.Mutex
	file *os.File
	size int64
}

// FileConfig represents configuration for the file adapter
type FileConfig struct {
	FilePath    string      `yaml:"file_path"`
	Format      string      `yaml:"format"`      // json or text
	MaxSize     int64       `yaml:"max_size"`    // bytes before rotation, 0 disables rotation
	MaxBackups  int         `yaml:"max_backups"` // rotated files kept
	CreateDirs  bool        `yaml:"create_dirs"`
	FileMode    os.FileMode `yaml:"file_mode"`
	SyncOnWrite bool        `yaml:"sync_on_write"`
}

// NewFileAdapter opens (or creates) the log file
func NewFileAdapter(name string, config FileConfig) (*FileAdapter, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("file_path is required for file adapter")
	}
	if config.FileMode == 0 {
		config.FileMode = 0644
	}
	if config.MaxBackups == 0 {
		config.MaxBackups = 5
	}
	config.Format = strings.ToLower(config.Format)

	if config.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(config.FilePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directories: %w", err)
		}
	}

	a := &FileAdapter{name: name, config: config}
	if err := a.open(); err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return a, nil
}

func (a *FileAdapter) Write(entry *types.LogEntry) error {
	line, err := formatEntry(entry, a.config.Format, false)
	if err != nil {
		return fmt.Errorf("failed to format log entry: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return fmt.Errorf("log file %s is closed", a.config.FilePath)
	}

	if a.config.MaxSize > 0 && a.size >= a.config.MaxSize {
		if err := a.rotate(); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	n, err := a.file.WriteString(line + "\n")
	a.size += int64(n)
	if err != nil {
		return fmt.Errorf("failed to write to log file: %w", err)
	}

	if a.config.SyncOnWrite {
		return a.file.Sync()
	}
	return nil
}

func (a *FileAdapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	return err
}

func (a *FileAdapter) Health() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		return fmt.Errorf("log file is not open")
	}
	if _, err := a.file.Stat(); err != nil {
		return fmt.Errorf("log file is not accessible: %w", err)
	}
	return nil
}

func (a *FileAdapter) Name() string {
	return a.name
}

func (a *FileAdapter) open() error {
	file, err := os.OpenFile(a.config.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, a.config.FileMode)
	if err != nil {
		return err
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	a.file = file
	a.size = stat.Size()
	return nil
}

// rotate must be called with a.mu held
func (a *FileAdapter) rotate() error {
	if err := a.file.Close(); err != nil {
		return err
	}
	a.file = nil

	backup := fmt.Sprintf("%s.%s", a.config.FilePath, time.Now().Format("20060102-150405.000"))
	if err := os.Rename(a.config.FilePath, backup); err != nil {
		return err
	}

	a.pruneBackups()
	return a.open()
}

func (a *FileAdapter) pruneBackups() {
	matches, err := filepath.Glob(a.config.FilePath + ".*")
	if err != nil || len(matches) <= a.config.MaxBackups {
		return
	}

	// timestamp suffixes sort chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(matches)))
	for _, stale := range matches[a.config.MaxBackups:] {
		if err := os.Remove(stale); err != nil {
			fmt.Fprintf(os.Stderr, "failed to remove old log backup %s: %v\n", stale, err)
		}
	}
}
