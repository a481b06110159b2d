package utils

import "path/filepath"

const (
	SystemdUnitDir     = "/etc/systemd/system"
	NginxConfPath      = "/etc/nginx/nginx.conf"
	NginxAvailableDir  = "/etc/nginx/sites-available"
	NginxEnabledDir    = "/etc/nginx/sites-enabled"
	LetsencryptLiveDir = "/etc/letsencrypt/live"
	PhpFpmSocketPath   = "/run/php-fpm/php-fpm.sock"

	StateDirName = ".portfolio"
)

// State files live under <root>/.portfolio so they travel with the
// portfolio checkout instead of a system directory.

func StateDir(root string) string {
	return filepath.Join(root, StateDirName)
}

func PamStorePath(root string) string {
	return filepath.Join(StateDir(root), "ports.json")
}

func DsmStorePath(root string) string {
	return filepath.Join(StateDir(root), "state.json")
}

func DeployLockPath(root string) string {
	return filepath.Join(StateDir(root), "deploy.lock")
}

func AuditLogDir(root string) string {
	return filepath.Join(StateDir(root), "log")
}

func AuditLogPath(root string) string {
	return filepath.Join(AuditLogDir(root), "deploy.jsonl")
}

func ProjectsDir(root string) string {
	return filepath.Join(root, "projects")
}

func VenvDir(projectDir string) string {
	return filepath.Join(projectDir, "venv")
}

func VenvPython(projectDir string) string {
	return filepath.Join(VenvDir(projectDir), "bin", "python")
}

func VenvPip(projectDir string) string {
	return filepath.Join(VenvDir(projectDir), "bin", "pip")
}

func VenvGunicorn(projectDir string) string {
	return filepath.Join(VenvDir(projectDir), "bin", "gunicorn")
}

func RequirementsPath(projectDir string) string {
	return filepath.Join(projectDir, "requirements.txt")
}

func FlaskEntrypoint(projectDir string) string {
	return filepath.Join(projectDir, "app.py")
}

// UnitName returns the systemd unit name for a project. All units share
// the portfolio- prefix so they can be listed and purged together.
func UnitName(project string) string {
	return "portfolio-" + project
}

func UnitFilePath(unitDir, project string) string {
	return filepath.Join(unitDir, UnitName(project)+".service")
}

func SiteAvailablePath(availableDir, site string) string {
	return filepath.Join(availableDir, site)
}

func SiteEnabledPath(enabledDir, site string) string {
	return filepath.Join(enabledDir, site)
}
