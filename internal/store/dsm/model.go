package dsm

import "time"

type ProjectMark struct {
	Name      string    `json:"name"`
	State     string    `json:"state"`
	Reason    string    `json:"reason,omitempty"`
	RunId     string    `json:"runId"`
	Port      int       `json:"port,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DeployState struct {
	Version   string                 `json:"version"`
	Projects  map[string]ProjectMark `json:"projects"`
	LastRunId string                 `json:"lastRunId,omitempty"`
	UpdatedAt time.Time              `json:"updatedAt"`
}
