package systemd

import (
	"context"

	"github.com/OmarSalvatierra99/portfolio/internal/core/project"
)

type SystemdServiceHandler interface {
	RenderUnit(spec project.Spec) string
	WriteUnit(spec project.Spec) (bool, error)
	DaemonReload() error
	Enable(name string) error
	Restart(name string) error
	IsActive(name string) (bool, error)
	WaitActive(ctx context.Context, name string) error
	JournalTail(name string, lines int) (string, error)
}
