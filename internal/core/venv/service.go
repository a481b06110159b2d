package venv

import (
	"fmt"
	"strings"

	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/core/project"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
)

// importProbe runs inside the project venv and fails when app.py does
// not expose a module-level app object.
const importProbe = "from app import app; assert app is not None"

func NewVenvService(settings *config.Settings, factory utils.CommandFactory, fsh utils.FilesystemHandler) *VenvService {
	return &VenvService{
		settings:          settings,
		commandFactory:    factory,
		filesystemHandler: fsh,
	}
}

type VenvService struct {
	settings          *config.Settings
	commandFactory    utils.CommandFactory
	filesystemHandler utils.FilesystemHandler
}

// Ensure provisions the project venv and its packages. Pip upgrade and
// requirements failures degrade to warnings; a missing interpreter or
// gunicorn is fatal for the project. PHP projects have no venv.
func (s *VenvService) Ensure(spec project.Spec) ([]string, error) {
	if spec.Kind == project.KindPhp {
		return nil, nil
	}

	var warnings []string

	if !s.exists(utils.VenvDir(spec.Dir)) {
		if out, err := s.runAsUser(spec.Dir, "python3", "-m", "venv", "venv"); err != nil {
			return warnings, &StepError{Step: "venv", Project: spec.Name, Output: string(out), Err: err}
		}
	} else if !s.exists(utils.VenvPython(spec.Dir)) {
		// a venv directory without an interpreter is a broken half
		// creation; python3 -m venv repairs it in place
		if out, err := s.runAsUser(spec.Dir, "python3", "-m", "venv", "venv"); err != nil {
			return warnings, &StepError{Step: "venv", Project: spec.Name, Output: string(out), Err: err}
		}
	}

	pip := utils.VenvPip(spec.Dir)
	if out, err := s.runAsUser(spec.Dir, pip, "install", "--upgrade", "pip", "setuptools", "wheel"); err != nil {
		warnings = append(warnings, fmt.Sprintf("pip upgrade failed: %s", describe(out, err)))
	}

	if s.exists(utils.RequirementsPath(spec.Dir)) {
		if out, err := s.runAsUser(spec.Dir, pip, "install", "-r", "requirements.txt"); err != nil {
			warnings = append(warnings, fmt.Sprintf("requirements install failed: %s", describe(out, err)))
		}
	}

	gunicorn := utils.VenvGunicorn(spec.Dir)
	if !s.exists(gunicorn) {
		if out, err := s.runAsUser(spec.Dir, pip, "install", "gunicorn"); err != nil {
			return warnings, &StepError{Step: "gunicorn", Project: spec.Name, Output: string(out), Err: err}
		}
	}
	if out, err := s.runAsUser(spec.Dir, gunicorn, "--version"); err != nil {
		return warnings, &StepError{Step: "gunicorn", Project: spec.Name, Output: string(out), Err: err}
	}

	return warnings, nil
}

// ValidateEntrypoint checks that app.py exists and actually imports.
// Without a venv python only the file check applies.
func (s *VenvService) ValidateEntrypoint(spec project.Spec) error {
	if spec.Kind == project.KindPhp {
		return nil
	}

	if !s.exists(utils.FlaskEntrypoint(spec.Dir)) {
		return &StepError{Step: "validate", Project: spec.Name, Err: fmt.Errorf("app.py not found in %s", spec.Dir)}
	}

	python := utils.VenvPython(spec.Dir)
	if !s.exists(python) {
		return nil
	}
	if out, err := s.runAsUser(spec.Dir, python, "-c", importProbe); err != nil {
		return &StepError{Step: "validate", Project: spec.Name, Output: string(out), Err: fmt.Errorf("flask app import failed")}
	}
	return nil
}

// FixPermissions hands the project tree to the service user and web
// group so gunicorn and nginx can both read it.
func (s *VenvService) FixPermissions(spec project.Spec) error {
	owner := s.settings.ServiceUser + ":" + s.settings.WebUser
	if out, err := s.run("chown", "-R", owner, spec.Dir); err != nil {
		return &StepError{Step: "permissions", Project: spec.Name, Output: string(out), Err: err}
	}
	if out, err := s.run("chmod", "-R", "755", spec.Dir); err != nil {
		return &StepError{Step: "permissions", Project: spec.Name, Output: string(out), Err: err}
	}
	return nil
}

func (s *VenvService) runAsUser(dir string, args ...string) ([]byte, error) {
	sudoArgs := append([]string{"-u", s.settings.ServiceUser}, args...)
	cmd := s.commandFactory.Command("sudo", sudoArgs...)
	cmd.SetDir(dir)
	return cmd.CombineOutput()
}

func (s *VenvService) run(name string, args ...string) ([]byte, error) {
	return s.commandFactory.Command(name, args...).CombineOutput()
}

func (s *VenvService) exists(path string) bool {
	_, err := s.filesystemHandler.Stat(path)
	return err == nil
}

func describe(out []byte, err error) string {
	line := strings.TrimSpace(string(out))
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = strings.TrimSpace(line[:i])
	}
	if line == "" {
		return err.Error()
	}
	return line
}
