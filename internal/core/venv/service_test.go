package venv

import (
	"errors"
	"io/fs"
	"os"
	"strings"
	"testing"

	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/core/project"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
)

type fakeCommandFactory struct {
	calls []string
	dirs  []string
	fail  map[string]error
}

func (f *fakeCommandFactory) Command(name string, args ...string) utils.CommandExecutor {
	return &fakeCommand{factory: f, line: strings.Join(append([]string{name}, args...), " ")}
}

type fakeCommand struct {
	factory *fakeCommandFactory
	line    string
	dir     string
}

func (c *fakeCommand) exec() error {
	c.factory.calls = append(c.factory.calls, c.line)
	c.factory.dirs = append(c.factory.dirs, c.dir)
	for sub, err := range c.factory.fail {
		if strings.Contains(c.line, sub) {
			return err
		}
	}
	return nil
}

func (c *fakeCommand) Run() error { return c.exec() }
func (c *fakeCommand) Output() ([]byte, error) {
	return nil, c.exec()
}
func (c *fakeCommand) CombineOutput() ([]byte, error) {
	return nil, c.exec()
}
func (c *fakeCommand) SetDir(dir string) { c.dir = dir }

type fakeFilesystem struct {
	existing map[string]bool
}

func (f *fakeFilesystem) MkdirAll(path string, perm os.FileMode) error { return nil }
func (f *fakeFilesystem) ReadFile(name string) ([]byte, error)         { return nil, os.ErrNotExist }
func (f *fakeFilesystem) WriteFile(name string, data []byte, perm os.FileMode) error {
	return nil
}
func (f *fakeFilesystem) WriteFileSync(name string, data []byte, perm os.FileMode) error {
	return nil
}
func (f *fakeFilesystem) ReadDir(name string) ([]fs.DirEntry, error) { return nil, nil }
func (f *fakeFilesystem) Open(name string) (*os.File, error)         { return nil, os.ErrNotExist }
func (f *fakeFilesystem) OpenFile(name string, flag int, perm os.FileMode) (*os.File, error) {
	return nil, os.ErrNotExist
}
func (f *fakeFilesystem) Stat(name string) (fs.FileInfo, error) {
	if f.existing[name] {
		return nil, nil
	}
	return nil, os.ErrNotExist
}
func (f *fakeFilesystem) Lstat(name string) (fs.FileInfo, error) {
	return f.Stat(name)
}
func (f *fakeFilesystem) Symlink(oldname string, newname string) error { return nil }
func (f *fakeFilesystem) Readlink(name string) (string, error)         { return "", os.ErrNotExist }
func (f *fakeFilesystem) Remove(name string) error                     { return nil }
func (f *fakeFilesystem) RemoveAll(path string) error                  { return nil }
func (f *fakeFilesystem) Rename(oldpath string, newpath string) error  { return nil }
func (f *fakeFilesystem) IsNotExist(err error) bool                    { return os.IsNotExist(err) }
func (f *fakeFilesystem) Flock(fd int, how int) error                  { return nil }
func (f *fakeFilesystem) Chmod(name string, mode os.FileMode) error    { return nil }

func testSettings() *config.Settings {
	return &config.Settings{
		ServiceUser: "deploy",
		WebUser:     "http",
	}
}

func flaskSpec() project.Spec {
	return project.Spec{
		Name: "blog",
		Dir:  "/srv/projects/blog",
		Kind: project.KindFlask,
	}
}

func TestEnsureSkipsExistingVenv(t *testing.T) {
	factory := &fakeCommandFactory{}
	svc := &VenvService{
		settings:       testSettings(),
		commandFactory: factory,
		filesystemHandler: &fakeFilesystem{existing: map[string]bool{
			"/srv/projects/blog/venv":              true,
			"/srv/projects/blog/venv/bin/python":   true,
			"/srv/projects/blog/venv/bin/gunicorn": true,
		}},
	}

	warnings, err := svc.Ensure(flaskSpec())
	if err != nil {
		t.Fatalf("expected ensure to succeed, got %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", warnings)
	}

	for _, call := range factory.calls {
		if strings.Contains(call, "-m venv") {
			t.Fatalf("expected no venv creation, got %q", call)
		}
		if strings.Contains(call, "install gunicorn") {
			t.Fatalf("expected no gunicorn install, got %q", call)
		}
		if strings.Contains(call, "requirements.txt") {
			t.Fatalf("expected no requirements install, got %q", call)
		}
	}

	last := factory.calls[len(factory.calls)-1]
	if !strings.Contains(last, "gunicorn --version") {
		t.Fatalf("expected version smoke test last, got %q", last)
	}
}

func TestEnsureCreatesVenvAsServiceUser(t *testing.T) {
	factory := &fakeCommandFactory{}
	svc := &VenvService{
		settings:       testSettings(),
		commandFactory: factory,
		filesystemHandler: &fakeFilesystem{existing: map[string]bool{
			"/srv/projects/blog/venv/bin/python":   true,
			"/srv/projects/blog/venv/bin/gunicorn": true,
			"/srv/projects/blog/requirements.txt":  true,
		}},
	}

	if _, err := svc.Ensure(flaskSpec()); err != nil {
		t.Fatalf("expected ensure to succeed, got %v", err)
	}

	if len(factory.calls) == 0 || factory.calls[0] != "sudo -u deploy python3 -m venv venv" {
		t.Fatalf("expected venv creation first, got %v", factory.calls)
	}
	if factory.dirs[0] != "/srv/projects/blog" {
		t.Fatalf("expected project dir as cwd, got %q", factory.dirs[0])
	}

	foundReqs := false
	for _, call := range factory.calls {
		if strings.Contains(call, "install -r requirements.txt") {
			foundReqs = true
		}
	}
	if !foundReqs {
		t.Fatalf("expected requirements install, got %v", factory.calls)
	}
}

func TestEnsureRepairsBrokenVenv(t *testing.T) {
	factory := &fakeCommandFactory{}
	svc := &VenvService{
		settings:       testSettings(),
		commandFactory: factory,
		filesystemHandler: &fakeFilesystem{existing: map[string]bool{
			"/srv/projects/blog/venv":              true,
			"/srv/projects/blog/venv/bin/gunicorn": true,
		}},
	}

	if _, err := svc.Ensure(flaskSpec()); err != nil {
		t.Fatalf("expected repair to succeed, got %v", err)
	}
	if len(factory.calls) == 0 || factory.calls[0] != "sudo -u deploy python3 -m venv venv" {
		t.Fatalf("expected venv repair for a missing interpreter, got %v", factory.calls)
	}
}

func TestEnsurePipUpgradeFailureIsWarning(t *testing.T) {
	factory := &fakeCommandFactory{fail: map[string]error{"--upgrade": errors.New("exit status 1")}}
	svc := &VenvService{
		settings:       testSettings(),
		commandFactory: factory,
		filesystemHandler: &fakeFilesystem{existing: map[string]bool{
			"/srv/projects/blog/venv":              true,
			"/srv/projects/blog/venv/bin/python":   true,
			"/srv/projects/blog/venv/bin/gunicorn": true,
		}},
	}

	warnings, err := svc.Ensure(flaskSpec())
	if err != nil {
		t.Fatalf("expected tolerated failure, got %v", err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "pip upgrade failed") {
		t.Fatalf("expected pip upgrade warning, got %v", warnings)
	}
}

func TestEnsureGunicornInstallFailureFatal(t *testing.T) {
	factory := &fakeCommandFactory{fail: map[string]error{"install gunicorn": errors.New("exit status 1")}}
	svc := &VenvService{
		settings:       testSettings(),
		commandFactory: factory,
		filesystemHandler: &fakeFilesystem{existing: map[string]bool{
			"/srv/projects/blog/venv":            true,
			"/srv/projects/blog/venv/bin/python": true,
		}},
	}

	_, err := svc.Ensure(flaskSpec())
	if err == nil {
		t.Fatalf("expected fatal error, got nil")
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %T", err)
	}
	if stepErr.Step != "gunicorn" || stepErr.Project != "blog" {
		t.Fatalf("expected gunicorn step attribution, got %+v", stepErr)
	}
}

func TestEnsurePhpIsNoop(t *testing.T) {
	factory := &fakeCommandFactory{}
	svc := &VenvService{
		settings:          testSettings(),
		commandFactory:    factory,
		filesystemHandler: &fakeFilesystem{existing: map[string]bool{}},
	}

	warnings, err := svc.Ensure(project.Spec{Name: "static", Dir: "/srv/projects/static", Kind: project.KindPhp})
	if err != nil || len(warnings) != 0 {
		t.Fatalf("expected noop, got warnings=%v err=%v", warnings, err)
	}
	if len(factory.calls) != 0 {
		t.Fatalf("expected no commands, got %v", factory.calls)
	}
}

func TestValidateEntrypointMissingApp(t *testing.T) {
	svc := &VenvService{
		settings:          testSettings(),
		commandFactory:    &fakeCommandFactory{},
		filesystemHandler: &fakeFilesystem{existing: map[string]bool{}},
	}

	err := svc.ValidateEntrypoint(flaskSpec())
	if err == nil {
		t.Fatalf("expected validation error, got nil")
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %T", err)
	}
	if stepErr.Step != "validate" {
		t.Fatalf("expected validate step, got %q", stepErr.Step)
	}
}

func TestValidateEntrypointProbeFails(t *testing.T) {
	factory := &fakeCommandFactory{fail: map[string]error{"from app import app": errors.New("exit status 1")}}
	svc := &VenvService{
		settings:       testSettings(),
		commandFactory: factory,
		filesystemHandler: &fakeFilesystem{existing: map[string]bool{
			"/srv/projects/blog/app.py":          true,
			"/srv/projects/blog/venv/bin/python": true,
		}},
	}

	if err := svc.ValidateEntrypoint(flaskSpec()); err == nil {
		t.Fatalf("expected probe failure, got nil")
	}
}

func TestValidateEntrypointWithoutVenv(t *testing.T) {
	factory := &fakeCommandFactory{}
	svc := &VenvService{
		settings:       testSettings(),
		commandFactory: factory,
		filesystemHandler: &fakeFilesystem{existing: map[string]bool{
			"/srv/projects/blog/app.py": true,
		}},
	}

	if err := svc.ValidateEntrypoint(flaskSpec()); err != nil {
		t.Fatalf("expected file check only, got %v", err)
	}
	if len(factory.calls) != 0 {
		t.Fatalf("expected no probe without venv, got %v", factory.calls)
	}
}

func TestFixPermissions(t *testing.T) {
	factory := &fakeCommandFactory{}
	svc := &VenvService{
		settings:          testSettings(),
		commandFactory:    factory,
		filesystemHandler: &fakeFilesystem{existing: map[string]bool{}},
	}

	if err := svc.FixPermissions(flaskSpec()); err != nil {
		t.Fatalf("expected permissions fix to succeed, got %v", err)
	}
	if len(factory.calls) != 2 {
		t.Fatalf("expected chown then chmod, got %v", factory.calls)
	}
	if factory.calls[0] != "chown -R deploy:http /srv/projects/blog" {
		t.Fatalf("unexpected chown call %q", factory.calls[0])
	}
	if factory.calls[1] != "chmod -R 755 /srv/projects/blog" {
		t.Fatalf("unexpected chmod call %q", factory.calls[1])
	}
}
