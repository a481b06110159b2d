package project

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/store/pam"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
)

const mainSiteName = "portfolio"

func NewRegistryService(settings *config.Settings) *RegistryService {
	return &RegistryService{
		settings:          settings,
		filesystemHandler: utils.NewFilesystemExecutor(),
		pamHandler:        pam.NewPamManager(pam.NewPamStore(settings.PamStorePath)),
	}
}

type RegistryService struct {
	settings          *config.Settings
	filesystemHandler utils.FilesystemHandler
	pamHandler        pam.PamHandler
}

// Discover scans the projects directory and classifies every entry.
// The main portfolio site comes first, sub-projects follow in
// directory order. Ports are not resolved here; see AssignPorts.
func (s *RegistryService) Discover() ([]Spec, []Skipped, error) {
	entries, err := s.filesystemHandler.ReadDir(s.settings.ProjectsDir)
	if err != nil {
		if s.filesystemHandler.IsNotExist(err) {
			return nil, nil, fmt.Errorf("projects directory %s not found", s.settings.ProjectsDir)
		}
		return nil, nil, fmt.Errorf("reading projects directory: %w", err)
	}

	specs := []Spec{{
		Name:    s.settings.MainName,
		Site:    mainSiteName,
		Dir:     s.settings.Root,
		Kind:    KindMain,
		Port:    s.settings.MainPort,
		Domain:  s.settings.BaseDomain,
		Workers: s.settings.MainWorkers,
	}}
	var skipped []Skipped

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if slices.Contains(s.settings.SkipProjects, name) {
			skipped = append(skipped, Skipped{Name: name, Reason: "listed in skip list"})
			continue
		}

		dir := filepath.Join(s.settings.ProjectsDir, name)
		spec, ok := s.classify(name, dir)
		if !ok {
			skipped = append(skipped, Skipped{Name: name, Reason: "no app.py or index.php entrypoint"})
			continue
		}
		specs = append(specs, spec)
	}

	return specs, skipped, nil
}

func (s *RegistryService) classify(name, dir string) (Spec, bool) {
	if s.exists(utils.FlaskEntrypoint(dir)) {
		return Spec{
			Name:    name,
			Site:    name,
			Dir:     dir,
			Kind:    KindFlask,
			Domain:  s.DomainFor(name),
			Workers: s.settings.Workers,
		}, true
	}

	if s.exists(filepath.Join(dir, "public", "index.php")) {
		return Spec{
			Name:         name,
			Site:         name,
			Dir:          dir,
			Kind:         KindPhp,
			Domain:       s.DomainFor(name),
			DocumentRoot: filepath.Join(dir, "public"),
		}, true
	}
	if s.exists(filepath.Join(dir, "index.php")) {
		return Spec{
			Name:         name,
			Site:         name,
			Dir:          dir,
			Kind:         KindPhp,
			Domain:       s.DomainFor(name),
			DocumentRoot: dir,
		}, true
	}

	return Spec{}, false
}

func (s *RegistryService) exists(path string) bool {
	_, err := s.filesystemHandler.Stat(path)
	return err == nil
}

// AssignPorts resolves and persists a port for every flask project.
// The main site keeps its configured port and php projects get none.
func (s *RegistryService) AssignPorts(specs []Spec) error {
	return s.assignPorts(specs, s.pamHandler.EnsureAssignments)
}

// PreviewPorts resolves ports without persisting anything.
func (s *RegistryService) PreviewPorts(specs []Spec) error {
	return s.assignPorts(specs, s.pamHandler.PreviewAssignments)
}

func (s *RegistryService) assignPorts(specs []Spec, resolve func([]string, map[string]int, int, int) (map[string]int, error)) error {
	var names []string
	for _, spec := range specs {
		if spec.Kind == KindFlask {
			names = append(names, spec.Name)
		}
	}
	if len(names) == 0 {
		return nil
	}

	ports, err := resolve(names, s.settings.FixedPorts, s.settings.PortStart, s.settings.PortEnd)
	if err != nil {
		return fmt.Errorf("assigning ports: %w", err)
	}

	for i := range specs {
		if specs[i].Kind != KindFlask {
			continue
		}
		port, ok := ports[specs[i].Name]
		if !ok {
			return fmt.Errorf("no port resolved for project=%s", specs[i].Name)
		}
		specs[i].Port = port
	}
	return nil
}

// DomainFor returns the override for a project name when one is
// configured, otherwise <name>.<base domain>.
func (s *RegistryService) DomainFor(name string) string {
	if domain, ok := s.settings.DomainOverrides[name]; ok {
		return domain
	}
	return name + "." + s.settings.BaseDomain
}
