package dsm

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/OmarSalvatierra99/portfolio/internal/utils"

	"golang.org/x/sys/unix"
)

func NewDsmStore(path string) *DsmStore {
	return &DsmStore{
		path:              path,
		filesystemHandler: utils.NewFilesystemExecutor(),
	}
}

type DsmStore struct {
	path              string
	mu                sync.Mutex
	filesystemHandler utils.FilesystemHandler
}

func (s *DsmStore) withLock(fn func(st *DeployState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	lockPath := s.path + ".lock"
	if err := s.filesystemHandler.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	lf, err := s.filesystemHandler.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return err
	}
	defer lf.Close()

	if err := s.filesystemHandler.Flock(int(lf.Fd()), unix.LOCK_EX); err != nil {
		return err
	}
	defer s.filesystemHandler.Flock(int(lf.Fd()), unix.LOCK_UN)

	st, err := s.loadOrInit()
	if err != nil {
		return err
	}

	if err := fn(st); err != nil {
		return err
	}

	return s.atomicSave(st)
}

// withRead runs fn on a snapshot without touching the lock file, so
// status queries work on a fresh host before any state exists.
func (s *DsmStore) withRead(fn func(st *DeployState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.loadOrInit()
	if err != nil {
		return err
	}

	return fn(st)
}

func (s *DsmStore) loadOrInit() (*DeployState, error) {
	b, err := s.filesystemHandler.ReadFile(s.path)
	if err != nil {
		if s.filesystemHandler.IsNotExist(err) {
			return &DeployState{
				Version:  "0.1.0",
				Projects: map[string]ProjectMark{},
			}, nil
		}
		return nil, err
	}

	var st DeployState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("deploy state json broken: %w", err)
	}
	if st.Projects == nil {
		st.Projects = map[string]ProjectMark{}
	}
	return &st, nil
}

func (s *DsmStore) atomicSave(st *DeployState) error {
	tmp := s.path + ".tmp"

	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	f, err := s.filesystemHandler.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return s.filesystemHandler.Rename(tmp, s.path)
}

func (s *DsmStore) SetDeployState() error {
	return s.withLock(func(st *DeployState) error {
		st.Version = "0.1.0"
		if st.Projects == nil {
			st.Projects = map[string]ProjectMark{}
		}
		return nil
	})
}
