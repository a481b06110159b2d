package utils

import (
	"fmt"
	"io"
	"strings"

	"al.essio.dev/pkg/shellescape"
)

// CommandLine renders a command as a single shell-quoted line for
// logging and dry-run echo.
func CommandLine(name string, args ...string) string {
	quoted := make([]string, 0, len(args)+1)
	quoted = append(quoted, shellescape.Quote(name))
	for _, a := range args {
		quoted = append(quoted, shellescape.Quote(a))
	}
	return strings.Join(quoted, " ")
}

func NewEchoCommandFactory(inner CommandFactory, out io.Writer) *EchoCommandFactory {
	return &EchoCommandFactory{inner: inner, out: out}
}

// echoCommandFactory prints each command before delegating to the real
// factory. Used in verbose mode.
type EchoCommandFactory struct {
	inner CommandFactory
	out   io.Writer
}

func (e *EchoCommandFactory) Command(name string, args ...string) CommandExecutor {
	fmt.Fprintf(e.out, "+ %s\n", CommandLine(name, args...))
	return e.inner.Command(name, args...)
}

func NewDryRunCommandFactory(out io.Writer) *DryRunCommandFactory {
	return &DryRunCommandFactory{out: out}
}

// dryRunCommandFactory echoes the commands a run would execute and
// reports success for every one of them. No process is ever started.
type DryRunCommandFactory struct {
	out io.Writer
}

func (d *DryRunCommandFactory) Command(name string, args ...string) CommandExecutor {
	fmt.Fprintf(d.out, "[dry-run] would run: %s\n", CommandLine(name, args...))
	return &noopCmd{}
}

type noopCmd struct{}

func (c *noopCmd) Run() error                     { return nil }
func (c *noopCmd) Output() ([]byte, error)        { return []byte{}, nil }
func (c *noopCmd) CombineOutput() ([]byte, error) { return []byte{}, nil }
func (c *noopCmd) SetDir(dir string)              {}
