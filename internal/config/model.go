package config

// Settings is the resolved run configuration. It is read-only after
// Load returns; services receive it by pointer and never mutate it.
type Settings struct {
	Root        string
	ProjectsDir string

	BaseDomain   string
	UpstreamHost string

	MainName    string
	MainPort    int
	MainWorkers int
	Workers     int

	PortStart  int
	PortEnd    int
	FixedPorts map[string]int

	SkipProjects    []string
	DomainOverrides map[string]string

	ServiceUser string
	WebUser     string

	UnitDir           string
	NginxConfPath     string
	SitesAvailableDir string
	SitesEnabledDir   string

	// CertDir points at the letsencrypt live directory. Empty means
	// plain HTTP sites.
	CertDir string

	PamStorePath   string
	DsmStorePath   string
	DeployLockPath string
	AuditLogPath   string
}

type Manifest struct {
	Root         string            `yaml:"root,omitempty"`
	BaseDomain   string            `yaml:"base_domain,omitempty"`
	UpstreamHost string            `yaml:"upstream_host,omitempty"`
	MainName     string            `yaml:"main_name,omitempty"`
	MainPort     int               `yaml:"main_port,omitempty"`
	MainWorkers  int               `yaml:"main_workers,omitempty"`
	Workers      int               `yaml:"workers,omitempty"`
	PortStart    int               `yaml:"port_start,omitempty"`
	PortEnd      int               `yaml:"port_end,omitempty"`
	ServiceUser  string            `yaml:"service_user,omitempty"`
	WebUser      string            `yaml:"web_user,omitempty"`
	CertDir      string            `yaml:"cert_dir,omitempty"`
	FixedPorts   map[string]int    `yaml:"fixed_ports,omitempty"`
	Skip         []string          `yaml:"skip,omitempty"`
	Domains      map[string]string `yaml:"domains,omitempty"`
	Projects     []ManifestProject `yaml:"projects,omitempty"`
}

// ManifestProject pins per-project decisions that discovery would
// otherwise make on its own.
type ManifestProject struct {
	Name   string `yaml:"name"`
	Port   int    `yaml:"port,omitempty"`
	Domain string `yaml:"domain,omitempty"`
	Skip   bool   `yaml:"skip,omitempty"`
}

// Overrides carries CLI flag values. Flags win over every other source.
type Overrides struct {
	Root         string
	ManifestPath string
	BaseDomain   string
	UpstreamHost string
	ServiceUser  string
	WebUser      string
	CertDir      string
}
