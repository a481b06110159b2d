package utils

import (
	"os/exec"
)

func NewCommandFactory() *ExecCommandFactory {
	return &ExecCommandFactory{}
}

// commandFactory creates commandExecutor instances.
//
// The factory abstracts process creation so that callers do not depend
// directly on exec.Command. This makes the behavior testable by replacing
// the factory with a mock implementation, and lets a deploy run swap in
// the dry-run factory without touching call sites.
type CommandFactory interface {
	Command(name string, args ...string) CommandExecutor
}

// execCommandFactory is the default implementation of commandFactory.
//
// It creates commandExecutor values backed by *exec.Cmd and launches
// real OS processes.
type ExecCommandFactory struct{}

// Command returns a commandExecutor that executes the given command
// using exec.Cmd.
func (e *ExecCommandFactory) Command(name string, args ...string) CommandExecutor {
	return &ExecCmd{cmd: exec.Command(name, args...)}
}

// commandExecutor represents a system command run to completion.
//
// Deploys shell out to short-lived tools (pip, systemctl, nginx,
// journalctl) and only ever need the exit status and captured output,
// so the surface stays much smaller than exec.Cmd.
type CommandExecutor interface {
	Run() error
	Output() ([]byte, error)
	CombineOutput() ([]byte, error)
	SetDir(dir string)
}

// execCmd is the concrete commandExecutor backed by exec.Cmd.
//
// It delegates all operations to the underlying exec.Cmd instance.
type ExecCmd struct {
	cmd *exec.Cmd
}

func (e *ExecCmd) Run() error {
	return e.cmd.Run()
}

func (e *ExecCmd) Output() ([]byte, error) {
	return e.cmd.Output()
}

func (e *ExecCmd) CombineOutput() ([]byte, error) {
	return e.cmd.CombinedOutput()
}

// SetDir sets the working directory for the underlying command.
// Installer steps run with the project directory as cwd.
func (e *ExecCmd) SetDir(dir string) {
	e.cmd.Dir = dir
}
