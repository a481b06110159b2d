package utils

import (
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

type FilesystemHandler interface {
	MkdirAll(path string, perm os.FileMode) error
	ReadFile(name string) ([]byte, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	WriteFileSync(name string, data []byte, perm os.FileMode) error
	ReadDir(name string) ([]fs.DirEntry, error)
	Open(name string) (*os.File, error)
	OpenFile(name string, flag int, perm os.FileMode) (*os.File, error)
	Stat(name string) (fs.FileInfo, error)
	Lstat(name string) (fs.FileInfo, error)
	Symlink(oldname string, newname string) error
	Readlink(name string) (string, error)
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath string, newpath string) error
	IsNotExist(err error) bool
	Flock(fd int, how int) error
	Chmod(name string, mode os.FileMode) error
}

func NewFilesystemExecutor() *FilesystemExecutor {
	return &FilesystemExecutor{}
}

type FilesystemExecutor struct{}

func (e *FilesystemExecutor) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

func (s *FilesystemExecutor) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

func (s *FilesystemExecutor) WriteFile(name string, data []byte, perm os.FileMode) error {
	return os.WriteFile(name, data, perm)
}

// WriteFileSync writes data and fsyncs before returning, so the content
// is durable on disk before any path that references it is created.
func (s *FilesystemExecutor) WriteFileSync(name string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (s *FilesystemExecutor) ReadDir(name string) ([]fs.DirEntry, error) {
	return os.ReadDir(name)
}

func (s *FilesystemExecutor) Open(name string) (*os.File, error) {
	return os.Open(name)
}

func (s *FilesystemExecutor) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(name, flag, perm)
}

func (s *FilesystemExecutor) Stat(name string) (fs.FileInfo, error) {
	return os.Stat(name)
}

func (s *FilesystemExecutor) Lstat(name string) (fs.FileInfo, error) {
	return os.Lstat(name)
}

func (s *FilesystemExecutor) Symlink(oldname string, newname string) error {
	return os.Symlink(oldname, newname)
}

func (s *FilesystemExecutor) Readlink(name string) (string, error) {
	return os.Readlink(name)
}

func (s *FilesystemExecutor) Remove(name string) error {
	return os.Remove(name)
}

func (s *FilesystemExecutor) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

func (s *FilesystemExecutor) Rename(oldpath string, newpath string) error {
	return os.Rename(oldpath, newpath)
}

func (s *FilesystemExecutor) IsNotExist(err error) bool {
	return os.IsNotExist(err)
}

func (s *FilesystemExecutor) Flock(fd int, how int) error {
	return unix.Flock(fd, how)
}

func (s *FilesystemExecutor) Chmod(name string, mode os.FileMode) error {
	return os.Chmod(name, mode)
}
