package systemd

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/sethvargo/go-retry"

	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/core/project"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
)

func NewSystemdService(settings *config.Settings, factory utils.CommandFactory, fsh utils.FilesystemHandler) *SystemdService {
	return &SystemdService{
		settings:          settings,
		commandFactory:    factory,
		filesystemHandler: fsh,
	}
}

type SystemdService struct {
	settings          *config.Settings
	commandFactory    utils.CommandFactory
	filesystemHandler utils.FilesystemHandler
}

// RenderUnit produces the gunicorn unit for a flask project. ExecStart
// uses the venv's absolute gunicorn path and binds the assigned port on
// all interfaces; PORT is exported for apps that read it themselves.
func (s *SystemdService) RenderUnit(spec project.Spec) string {
	description := fmt.Sprintf("%s Portfolio Flask Application", spec.Name)
	if spec.IsMain() {
		description = "Main Portfolio Flask Application"
	}

	workers := spec.Workers
	if workers <= 0 {
		workers = 2
	}

	venvBin := filepath.Join(utils.VenvDir(spec.Dir), "bin")
	return fmt.Sprintf(`[Unit]
Description=%s
After=network.target

[Service]
Type=notify
User=%s
Group=%s
WorkingDirectory=%s
Environment="PATH=%s"
Environment="PORT=%d"
ExecStart=%s --bind 0.0.0.0:%d --workers %d --timeout 120 app:app
Restart=always
RestartSec=10

[Install]
WantedBy=multi-user.target
`,
		description,
		s.settings.ServiceUser,
		s.settings.ServiceUser,
		spec.Dir,
		venvBin,
		spec.Port,
		// ExecStart is word-split by systemd; a spaced project path
		// survives single-quoted
		shellescape.Quote(utils.VenvGunicorn(spec.Dir)),
		spec.Port,
		workers,
	)
}

// WriteUnit writes the rendered unit, returning whether the file
// changed. A byte-identical unit is left alone so the caller can skip
// the daemon reload.
func (s *SystemdService) WriteUnit(spec project.Spec) (bool, error) {
	path := utils.UnitFilePath(s.settings.UnitDir, spec.Name)
	content := []byte(s.RenderUnit(spec))

	existing, err := s.filesystemHandler.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err != nil && !s.filesystemHandler.IsNotExist(err) {
		return false, fmt.Errorf("reading unit %s: %w", path, err)
	}

	if err := s.filesystemHandler.WriteFileSync(path, content, 0o644); err != nil {
		return false, fmt.Errorf("writing unit %s: %w", path, err)
	}
	return true, nil
}

func (s *SystemdService) DaemonReload() error {
	if out, err := s.commandFactory.Command("systemctl", "daemon-reload").CombineOutput(); err != nil {
		return fmt.Errorf("daemon-reload failed: %s: %w", strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (s *SystemdService) Enable(name string) error {
	unit := utils.UnitName(name)
	if out, err := s.commandFactory.Command("systemctl", "enable", unit).CombineOutput(); err != nil {
		return fmt.Errorf("enabling %s: %s: %w", unit, strings.TrimSpace(string(out)), err)
	}
	return nil
}

func (s *SystemdService) Restart(name string) error {
	unit := utils.UnitName(name)
	if out, err := s.commandFactory.Command("systemctl", "restart", unit).CombineOutput(); err != nil {
		return fmt.Errorf("restarting %s: %s: %w", unit, strings.TrimSpace(string(out)), err)
	}
	return nil
}

// IsActive reports the unit state. systemctl exits nonzero for
// inactive units, which is a state here, not an error.
func (s *SystemdService) IsActive(name string) (bool, error) {
	out, err := s.commandFactory.Command("systemctl", "is-active", utils.UnitName(name)).Output()
	state := strings.TrimSpace(string(out))
	if state == "" && err != nil {
		return false, err
	}
	return state == "active", nil
}

// WaitActive polls is-active with fibonacci backoff until the unit
// reports active or the attempts run out.
func (s *SystemdService) WaitActive(ctx context.Context, name string) error {
	backoff := retry.WithMaxRetries(5, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		active, err := s.IsActive(name)
		if err != nil {
			return retry.RetryableError(err)
		}
		if !active {
			return retry.RetryableError(fmt.Errorf("unit %s not active yet", utils.UnitName(name)))
		}
		return nil
	})
}

func (s *SystemdService) JournalTail(name string, lines int) (string, error) {
	out, err := s.commandFactory.Command(
		"journalctl", "-u", utils.UnitName(name), "-n", strconv.Itoa(lines), "--no-pager",
	).Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}
