package project

type Kind string

const (
	KindFlask Kind = "flask"
	KindPhp   Kind = "php"
	KindMain  Kind = "main"
)

// Spec describes one deployable project. Dir is absolute. Port is zero
// for php projects, which are served through php-fpm instead of a
// gunicorn upstream.
type Spec struct {
	Name         string
	Site         string
	Dir          string
	Kind         Kind
	Port         int
	Domain       string
	DocumentRoot string
	Workers      int
}

// Skipped records a directory that discovery refused to deploy.
type Skipped struct {
	Name   string
	Reason string
}

func (s Spec) IsMain() bool {
	return s.Kind == KindMain
}

// NeedsPort reports whether the project is served through a gunicorn
// upstream and therefore owns a loopback port.
func (s Spec) NeedsPort() bool {
	return s.Kind == KindFlask || s.Kind == KindMain
}
