package dsm

type DsmStoreHandler interface {
	SetDeployState() error
}

type DsmHandler interface {
	RecordState(name, state, reason, runId string, port int, domain string) error
	GetProject(name string) (ProjectMark, error)
	GetProjectList() ([]ProjectMark, error)
	GetLastRunId() (string, error)
}
