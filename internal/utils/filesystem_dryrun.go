package utils

import (
	"fmt"
	"io"
	"io/fs"
	"os"
)

func NewDryRunFilesystem(inner FilesystemHandler, out io.Writer) *DryRunFilesystem {
	return &DryRunFilesystem{inner: inner, out: out}
}

// DryRunFilesystem delegates reads to the real filesystem and swallows
// every mutation after echoing it. Paired with the dry-run command
// factory it lets a deploy run report its plan without changing the host.
type DryRunFilesystem struct {
	inner FilesystemHandler
	out   io.Writer
}

func (d *DryRunFilesystem) would(format string, args ...any) {
	fmt.Fprintf(d.out, "[dry-run] "+format+"\n", args...)
}

func (d *DryRunFilesystem) MkdirAll(path string, perm os.FileMode) error {
	d.would("would create directory: %s", path)
	return nil
}

func (d *DryRunFilesystem) ReadFile(name string) ([]byte, error) {
	return d.inner.ReadFile(name)
}

func (d *DryRunFilesystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	d.would("would write %d bytes: %s", len(data), name)
	return nil
}

func (d *DryRunFilesystem) WriteFileSync(name string, data []byte, perm os.FileMode) error {
	d.would("would write %d bytes: %s", len(data), name)
	return nil
}

func (d *DryRunFilesystem) ReadDir(name string) ([]fs.DirEntry, error) {
	return d.inner.ReadDir(name)
}

func (d *DryRunFilesystem) Open(name string) (*os.File, error) {
	return d.inner.Open(name)
}

func (d *DryRunFilesystem) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return d.inner.OpenFile(name, flag, perm)
}

func (d *DryRunFilesystem) Stat(name string) (fs.FileInfo, error) {
	return d.inner.Stat(name)
}

func (d *DryRunFilesystem) Lstat(name string) (fs.FileInfo, error) {
	return d.inner.Lstat(name)
}

func (d *DryRunFilesystem) Symlink(oldname string, newname string) error {
	d.would("would symlink: %s -> %s", newname, oldname)
	return nil
}

func (d *DryRunFilesystem) Readlink(name string) (string, error) {
	return d.inner.Readlink(name)
}

func (d *DryRunFilesystem) Remove(name string) error {
	d.would("would remove: %s", name)
	return nil
}

func (d *DryRunFilesystem) RemoveAll(path string) error {
	d.would("would remove tree: %s", path)
	return nil
}

func (d *DryRunFilesystem) Rename(oldpath string, newpath string) error {
	d.would("would rename: %s -> %s", oldpath, newpath)
	return nil
}

func (d *DryRunFilesystem) IsNotExist(err error) bool {
	return d.inner.IsNotExist(err)
}

func (d *DryRunFilesystem) Flock(fd int, how int) error {
	return d.inner.Flock(fd, how)
}

func (d *DryRunFilesystem) Chmod(name string, mode os.FileMode) error {
	d.would("would chmod %o: %s", mode, name)
	return nil
}
