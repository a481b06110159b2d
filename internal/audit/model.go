package audit

import (
	"time"

	"github.com/google/uuid"
)

// Record is one line of the deploy audit trail. Run-level records carry
// only the run id and event; project-level records add the project
// fields.
type Record struct {
	TS      string `json:"ts"`
	EventId string `json:"event_id"`
	RunId   string `json:"run_id"`
	Event   string `json:"event"`

	Project string `json:"project,omitempty"`
	State   string `json:"state,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Port    int    `json:"port,omitempty"`

	UnitChanged bool `json:"unit_changed,omitempty"`
	SiteChanged bool `json:"site_changed,omitempty"`

	DurationMs int64 `json:"duration_ms,omitempty"`
}

func NewRecord(runId string, event string) Record {
	return Record{
		TS:      time.Now().Format(time.RFC3339Nano),
		EventId: uuid.NewString(),
		RunId:   runId,
		Event:   event,
	}
}
