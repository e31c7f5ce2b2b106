package storage

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"lokipool/internal/shared/logger"
)

// Storage defines how the candidate address list is persisted.
type Storage interface {
	Load() ([]string, error)
	Save(addresses []string) error
}

// FileStorage implements Storage with a plain text file, one
// host:port address per line.
type FileStorage struct {
	filePath string
	mu       sync.Mutex
}

// NewFileStorage creates a FileStorage backed by the given path.
func NewFileStorage(filePath string) *FileStorage {
	return &FileStorage{
		filePath: filePath,
	}
}

// Path returns the backing file path.
func (fs *FileStorage) Path() string {
	return fs.filePath
}

// Ensure creates an empty proxy file when none exists yet.
func (fs *FileStorage) Ensure() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if _, err := os.Stat(fs.filePath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	f, err := os.Create(fs.filePath)
	if err != nil {
		return err
	}
	return f.Close()
}

// Load reads the address list from disk. A missing file yields an
// empty list; blank lines are skipped.
func (fs *FileStorage) Load() ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	l := logger.WithComponent("ProxyPool/Storage")

	file, err := os.Open(fs.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			l.Info().Str("path", fs.filePath).Msg("Proxy file not found, starting with an empty pool.")
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var addresses []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		addresses = append(addresses, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	l.Info().Int("count", len(addresses)).Msg("Loaded addresses from proxy file.")
	return addresses, nil
}

// Save rewrites the proxy file with the given addresses, dropping
// everything that was there before.
func (fs *FileStorage) Save(addresses []string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	var sb strings.Builder
	for _, addr := range addresses {
		sb.WriteString(addr)
		sb.WriteString("\n")
	}
	return os.WriteFile(fs.filePath, []byte(sb.String()), 0644)
}
