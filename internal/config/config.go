package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/OmarSalvatierra99/portfolio/internal/utils"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultBaseDomain   = "omar-xyz.shop"
	defaultUpstreamHost = "127.0.0.1"
	defaultMainName     = "main"
	defaultMainPort     = 5000
	defaultMainWorkers  = 4
	defaultWorkers      = 2
	defaultPortStart    = 5001
	defaultPortEnd      = 5100

	manifestFileName = "portfolio.yaml"
)

// Load resolves settings in order: compiled defaults, .env next to the
// portfolio root, PORTFOLIO_* environment variables, the YAML manifest,
// CLI flag overrides. A missing manifest is fine unless the path came
// from a flag.
func Load(overrides Overrides) (*Settings, error) {
	root := overrides.Root
	if root == "" {
		root = os.Getenv("PORTFOLIO_ROOT")
	}
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving portfolio root: %w", err)
	}

	// .env fills the environment without clobbering variables that are
	// already set, so real env vars keep winning over the file.
	envPath := filepath.Join(root, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, fmt.Errorf("loading %s: %w", envPath, err)
		}
	}

	s := &Settings{
		Root:         root,
		BaseDomain:   envOrDefault("PORTFOLIO_BASE_DOMAIN", defaultBaseDomain),
		UpstreamHost: envOrDefault("PORTFOLIO_UPSTREAM_HOST", defaultUpstreamHost),
		MainName:     envOrDefault("PORTFOLIO_MAIN_NAME", defaultMainName),
		ServiceUser:  os.Getenv("PORTFOLIO_SERVICE_USER"),
		WebUser:      os.Getenv("PORTFOLIO_WEB_USER"),
		CertDir:      os.Getenv("PORTFOLIO_CERT_DIR"),
		FixedPorts: map[string]int{
			"pasanotas": 5002,
		},
		SkipProjects: []string{"sasp-php"},
		DomainOverrides: map[string]string{
			"scan-actas-nacimiento": "actas." + defaultBaseDomain,
		},
		UnitDir:           utils.SystemdUnitDir,
		NginxConfPath:     utils.NginxConfPath,
		SitesAvailableDir: utils.NginxAvailableDir,
		SitesEnabledDir:   utils.NginxEnabledDir,
	}

	if s.MainPort, err = intFromEnv("PORTFOLIO_MAIN_PORT", defaultMainPort); err != nil {
		return nil, err
	}
	if s.MainWorkers, err = intFromEnv("PORTFOLIO_MAIN_WORKERS", defaultMainWorkers); err != nil {
		return nil, err
	}
	if s.Workers, err = intFromEnv("PORTFOLIO_WORKERS", defaultWorkers); err != nil {
		return nil, err
	}
	if s.PortStart, err = intFromEnv("PORTFOLIO_PORT_START", defaultPortStart); err != nil {
		return nil, err
	}
	if s.PortEnd, err = intFromEnv("PORTFOLIO_PORT_END", defaultPortEnd); err != nil {
		return nil, err
	}

	manifestPath := overrides.ManifestPath
	explicit := manifestPath != ""
	if manifestPath == "" {
		manifestPath = filepath.Join(root, manifestFileName)
	}
	b, err := os.ReadFile(manifestPath)
	if err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading manifest %s: %w", manifestPath, err)
		}
	} else {
		var m Manifest
		if err := yaml.Unmarshal(b, &m); err != nil {
			return nil, fmt.Errorf("manifest %s broken: %w", manifestPath, err)
		}
		applyManifest(s, &m)
	}

	if overrides.BaseDomain != "" {
		s.BaseDomain = overrides.BaseDomain
	}
	if overrides.UpstreamHost != "" {
		s.UpstreamHost = overrides.UpstreamHost
	}
	if overrides.ServiceUser != "" {
		s.ServiceUser = overrides.ServiceUser
	}
	if overrides.WebUser != "" {
		s.WebUser = overrides.WebUser
	}
	if overrides.CertDir != "" {
		s.CertDir = overrides.CertDir
	}

	s.ProjectsDir = utils.ProjectsDir(s.Root)
	s.PamStorePath = utils.PamStorePath(s.Root)
	s.DsmStorePath = utils.DsmStorePath(s.Root)
	s.DeployLockPath = utils.DeployLockPath(s.Root)
	s.AuditLogPath = utils.AuditLogPath(s.Root)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func applyManifest(s *Settings, m *Manifest) {
	if m.Root != "" {
		s.Root = m.Root
	}
	if m.BaseDomain != "" {
		s.BaseDomain = m.BaseDomain
	}
	if m.UpstreamHost != "" {
		s.UpstreamHost = m.UpstreamHost
	}
	if m.MainName != "" {
		s.MainName = m.MainName
	}
	if m.MainPort > 0 {
		s.MainPort = m.MainPort
	}
	if m.MainWorkers > 0 {
		s.MainWorkers = m.MainWorkers
	}
	if m.Workers > 0 {
		s.Workers = m.Workers
	}
	if m.PortStart > 0 {
		s.PortStart = m.PortStart
	}
	if m.PortEnd > 0 {
		s.PortEnd = m.PortEnd
	}
	if m.ServiceUser != "" {
		s.ServiceUser = m.ServiceUser
	}
	if m.WebUser != "" {
		s.WebUser = m.WebUser
	}
	if m.CertDir != "" {
		s.CertDir = m.CertDir
	}
	for name, port := range m.FixedPorts {
		s.FixedPorts[name] = port
	}
	for name, domain := range m.Domains {
		s.DomainOverrides[name] = domain
	}
	for _, name := range m.Skip {
		if !slices.Contains(s.SkipProjects, name) {
			s.SkipProjects = append(s.SkipProjects, name)
		}
	}
	for _, p := range m.Projects {
		if p.Name == "" {
			continue
		}
		if p.Port > 0 {
			s.FixedPorts[p.Name] = p.Port
		}
		if p.Domain != "" {
			s.DomainOverrides[p.Name] = p.Domain
		}
		if p.Skip && !slices.Contains(s.SkipProjects, p.Name) {
			s.SkipProjects = append(s.SkipProjects, p.Name)
		}
	}
}

func (s *Settings) Validate() error {
	if !filepath.IsAbs(s.Root) {
		return fmt.Errorf("portfolio root must be absolute, got %q", s.Root)
	}
	if s.BaseDomain == "" {
		return fmt.Errorf("base domain is required")
	}
	if s.PortStart < 1024 {
		return fmt.Errorf("port range start %d below 1024", s.PortStart)
	}
	if s.PortEnd < s.PortStart {
		return fmt.Errorf("port range %d-%d is empty", s.PortStart, s.PortEnd)
	}
	if s.MainPort < 1024 {
		return fmt.Errorf("main port %d below 1024", s.MainPort)
	}
	if s.MainPort >= s.PortStart && s.MainPort <= s.PortEnd {
		return fmt.Errorf("main port %d inside assignable range %d-%d", s.MainPort, s.PortStart, s.PortEnd)
	}

	seen := map[int]string{}
	for name, port := range s.FixedPorts {
		if port < s.PortStart || port > s.PortEnd {
			return fmt.Errorf("fixed port %d for %s outside range %d-%d", port, name, s.PortStart, s.PortEnd)
		}
		if other, ok := seen[port]; ok {
			return fmt.Errorf("fixed port %d assigned to both %s and %s", port, other, name)
		}
		seen[port] = name
	}
	return nil
}

func envOrDefault(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func intFromEnv(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, v, err)
	}
	return n, nil
}
