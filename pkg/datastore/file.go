package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tzrikka/xdg"
)

const (
	DirName         = "slackdevkit"
	DefaultFileName = "workspaces.json"

	fileFlags = os.O_CREATE | os.O_TRUNC | os.O_WRONLY
	filePerms = xdg.NewFilePermissions
)

// FileStore is a [Datastore] backed by a single local JSON
// file, which contains a map of team IDs to their records.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a [FileStore] that reads and writes the given file path.
// If the path is empty, it uses a default file under the user's XDG data directory.
// Either way, it creates the file and its parent directories if they don't exist.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		p, err := xdg.CreateFile(xdg.DataHome, DirName, DefaultFileName)
		if err != nil {
			return nil, fmt.Errorf("failed to create data file: %w", err)
		}
		return &FileStore{path: p}, nil
	}

	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), xdg.NewDirectoryPermissions); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, filePerms) //gosec:disable G304 // Specified by admin by design.
	if err != nil {
		return nil, fmt.Errorf("failed to create data file: %w", err)
	}
	_ = f.Close()

	return &FileStore{path: path}, nil
}

// Path returns the absolute path of the store's JSON file.
func (s *FileStore) Path() string {
	return s.path
}

// Get reads the record stored under the given team ID, or returns an empty record.
func (s *FileStore) Get(_ context.Context, teamID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readJSON()
	if err != nil {
		return nil, err
	}

	if r := m[teamID]; r != nil {
		return r, nil
	}
	return Record{}, nil
}

// Save rewrites the store's file, with the given record under the given team ID.
func (s *FileStore) Save(_ context.Context, teamID string, r Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.readJSON()
	if err != nil {
		return nil, err
	}

	m[teamID] = r
	if err := s.writeJSON(m); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *FileStore) readJSON() (map[string]Record, error) {
	// Special case: empty files can't be parsed as JSON, but this initial state is valid.
	fi, err := os.Stat(s.path)
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return map[string]Record{}, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var m map[string]Record
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse data file %q: %w", s.path, err)
	}
	if m == nil {
		m = map[string]Record{}
	}

	return m, nil
}

func (s *FileStore) writeJSON(m map[string]Record) error {
	f, err := os.OpenFile(s.path, fileFlags, filePerms)
	if err != nil {
		return err
	}
	defer f.Close()

	e := json.NewEncoder(f)
	e.SetIndent("", "  ")
	return e.Encode(m)
}
