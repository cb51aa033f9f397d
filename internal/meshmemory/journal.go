package meshmemory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Journal is a durable, append-only episodic memory log. Implementations
// must be safe for concurrent use.
type Journal interface {
	// Append writes record to durable storage.
	Append(ctx context.Context, record MemoryRecord) error
	// Tail returns the most recent limit records, oldest first.
	Tail(ctx context.Context, limit int) ([]MemoryRecord, error)
	// Clear removes all journal contents.
	Clear(ctx context.Context) error
}

// FileJournal is a Journal backed by a newline-delimited JSON file, flushed
// on every append.
type FileJournal struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// OpenFileJournal opens (creating if necessary) a journal file at path.
func OpenFileJournal(path string) (*FileJournal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("meshmemory: create journal directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("meshmemory: open journal file: %w", err)
	}

	return &FileJournal{path: path, file: file}, nil
}

// Path returns the underlying journal file path.
func (j *FileJournal) Path() string { return j.path }

// Append implements Journal.
func (j *FileJournal) Append(ctx context.Context, record MemoryRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return &SerializationError{Source: err}
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.file.Write(line); err != nil {
		return fmt.Errorf("meshmemory: append journal entry: %w", err)
	}
	return j.file.Sync()
}

// Tail implements Journal.
func (j *FileJournal) Tail(ctx context.Context, limit int) ([]MemoryRecord, error) {
	if limit <= 0 {
		return nil, nil
	}

	j.mu.Lock()
	data, err := os.ReadFile(j.path)
	j.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("meshmemory: read journal file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []MemoryRecord
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var record MemoryRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, &SerializationError{Source: err}
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("meshmemory: scan journal file: %w", err)
	}

	if len(records) <= limit {
		return records, nil
	}
	return records[len(records)-limit:], nil
}

// Clear implements Journal.
func (j *FileJournal) Clear(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.file.Truncate(0); err != nil {
		return fmt.Errorf("meshmemory: truncate journal file: %w", err)
	}
	if _, err := j.file.Seek(0, 0); err != nil {
		return fmt.Errorf("meshmemory: rewind journal file: %w", err)
	}
	return j.file.Sync()
}

// Close releases the underlying file handle.
func (j *FileJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
