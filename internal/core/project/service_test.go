package project

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/store/pam"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
)

func newTestService(t *testing.T, root string) *RegistryService {
	t.Helper()
	settings := &config.Settings{
		Root:         root,
		ProjectsDir:  filepath.Join(root, "projects"),
		BaseDomain:   "example.com",
		MainName:     "main",
		MainPort:     5000,
		MainWorkers:  4,
		Workers:      2,
		PortStart:    5001,
		PortEnd:      5100,
		FixedPorts:   map[string]int{"pinned": 5002},
		SkipProjects: []string{"sasp-php"},
		DomainOverrides: map[string]string{
			"legacy": "old.example.net",
		},
	}
	return &RegistryService{
		settings:          settings,
		filesystemHandler: utils.NewFilesystemExecutor(),
		pamHandler:        pam.NewPamManager(pam.NewPamStore(filepath.Join(t.TempDir(), "ports.json"))),
	}
}

func scaffold(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func TestDiscoverClassifies(t *testing.T) {
	root := t.TempDir()
	scaffold(t, root, map[string]string{
		"projects/blog/app.py":           "app = None\n",
		"projects/shop/public/index.php": "<?php\n",
		"projects/legacy/index.php":      "<?php\n",
		"projects/.hidden/app.py":        "app = None\n",
		"projects/sasp-php/index.php":    "<?php\n",
		"projects/junk/README.md":        "nothing here\n",
		"projects/notes.txt":             "stray file\n",
	})
	svc := newTestService(t, root)

	specs, skipped, err := svc.Discover()
	if err != nil {
		t.Fatalf("expected discovery to succeed, got %v", err)
	}

	if len(specs) != 4 {
		t.Fatalf("expected 4 specs, got %d: %+v", len(specs), specs)
	}
	if specs[0].Kind != KindMain || specs[0].Name != "main" || specs[0].Site != "portfolio" {
		t.Fatalf("expected main spec first, got %+v", specs[0])
	}
	if specs[0].Port != 5000 || specs[0].Domain != "example.com" {
		t.Fatalf("expected main port and domain, got %+v", specs[0])
	}

	byName := map[string]Spec{}
	for _, spec := range specs[1:] {
		byName[spec.Name] = spec
	}

	blog := byName["blog"]
	if blog.Kind != KindFlask || blog.Domain != "blog.example.com" || blog.Workers != 2 {
		t.Fatalf("expected flask blog spec, got %+v", blog)
	}
	shop := byName["shop"]
	if shop.Kind != KindPhp || shop.DocumentRoot != filepath.Join(root, "projects", "shop", "public") {
		t.Fatalf("expected php shop with public docroot, got %+v", shop)
	}
	legacy := byName["legacy"]
	if legacy.Kind != KindPhp || legacy.DocumentRoot != filepath.Join(root, "projects", "legacy") {
		t.Fatalf("expected php legacy with project docroot, got %+v", legacy)
	}
	if legacy.Domain != "old.example.net" {
		t.Fatalf("expected legacy domain override, got %q", legacy.Domain)
	}

	reasons := map[string]string{}
	for _, sk := range skipped {
		reasons[sk.Name] = sk.Reason
	}
	if _, ok := reasons["sasp-php"]; !ok {
		t.Fatalf("expected sasp-php skipped, got %v", skipped)
	}
	if _, ok := reasons["junk"]; !ok {
		t.Fatalf("expected junk skipped, got %v", skipped)
	}
	if _, ok := reasons[".hidden"]; ok {
		t.Fatalf("expected hidden dirs silently ignored, got %v", skipped)
	}
}

func TestDiscoverMissingProjectsDir(t *testing.T) {
	svc := newTestService(t, t.TempDir())

	if _, _, err := svc.Discover(); err == nil {
		t.Fatalf("expected error for missing projects dir, got nil")
	}
}

func TestAssignPortsReservedValue(t *testing.T) {
	root := t.TempDir()
	scaffold(t, root, map[string]string{
		"projects/alpha/app.py":     "app = None\n",
		"projects/beta/app.py":      "app = None\n",
		"projects/pinned/app.py":    "app = None\n",
		"projects/static/index.php": "<?php\n",
	})
	svc := newTestService(t, root)

	specs, _, err := svc.Discover()
	if err != nil {
		t.Fatalf("expected discovery to succeed, got %v", err)
	}
	if err := svc.AssignPorts(specs); err != nil {
		t.Fatalf("expected assignment to succeed, got %v", err)
	}

	ports := map[string]int{}
	for _, spec := range specs {
		ports[spec.Name] = spec.Port
	}
	if ports["alpha"] != 5001 {
		t.Fatalf("expected alpha=5001, got %d", ports["alpha"])
	}
	if ports["pinned"] != 5002 {
		t.Fatalf("expected pinned to keep its fixed port, got %d", ports["pinned"])
	}
	if ports["beta"] != 5003 {
		t.Fatalf("expected beta to skip the reserved value, got %d", ports["beta"])
	}
	if ports["main"] != 5000 {
		t.Fatalf("expected main untouched, got %d", ports["main"])
	}
	if ports["static"] != 0 {
		t.Fatalf("expected php project without port, got %d", ports["static"])
	}
}

func TestPreviewPortsDoesNotPersist(t *testing.T) {
	root := t.TempDir()
	scaffold(t, root, map[string]string{
		"projects/alpha/app.py": "app = None\n",
	})
	svc := newTestService(t, root)

	specs, _, err := svc.Discover()
	if err != nil {
		t.Fatalf("expected discovery to succeed, got %v", err)
	}
	if err := svc.PreviewPorts(specs); err != nil {
		t.Fatalf("expected preview to succeed, got %v", err)
	}
	if specs[1].Port != 5001 {
		t.Fatalf("expected alpha=5001, got %d", specs[1].Port)
	}
	if _, err := svc.pamHandler.GetPort("alpha"); err == nil {
		t.Fatalf("expected nothing persisted after preview, got a port")
	}
}

func TestDomainFor(t *testing.T) {
	svc := newTestService(t, t.TempDir())

	if got := svc.DomainFor("blog"); got != "blog.example.com" {
		t.Fatalf("expected derived domain, got %q", got)
	}
	if got := svc.DomainFor("legacy"); got != "old.example.net" {
		t.Fatalf("expected override, got %q", got)
	}
}
