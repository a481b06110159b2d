package pam

type PamStoreHandler interface {
	SetPortMap() error
}

type PamHandler interface {
	EnsureAssignments(names []string, fixed map[string]int, start, end int) (map[string]int, error)
	PreviewAssignments(names []string, fixed map[string]int, start, end int) (map[string]int, error)
	GetPort(name string) (int, error)
	GetPortList() (map[string]int, error)
	ReleasePort(name string) error
}
