package deploy

import (
	"time"

	"github.com/OmarSalvatierra99/portfolio/internal/core/project"
)

type State string

// States advance in deploy order. A project stops at the last state it
// reached; failed absorbs any step error and skipped marks directories
// discovery refused.
const (
	StateDiscovered      State = "discovered"
	StateProvisioned     State = "provisioned"
	StateUnitWritten     State = "unit_written"
	StateProxyConfigured State = "proxy_configured"
	StateRunning         State = "running"
	StateFailed          State = "failed"
	StateSkipped         State = "skipped"
)

type Options struct {
	DryRun  bool
	Verbose bool
	NoStart bool

	// Project restricts the per-project pipeline to one name. Ports are
	// still assigned across the full discovery set so the filtered run
	// hands out the same numbers an unfiltered run would.
	Project string
}

type ProjectResult struct {
	Spec  project.Spec
	State State
	Err   error

	UnitChanged bool
	SiteChanged bool
	Warnings    []string
}

type Report struct {
	RunId     string
	StartedAt time.Time
	Duration  time.Duration

	Results []ProjectResult
	Skipped []project.Skipped

	// NginxErr holds a global nginx phase failure. Per-project work is
	// unaffected but the run as a whole counts as failed.
	NginxErr error

	NginxReloaded  bool
	DaemonReloaded bool
}

func (r *Report) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

func (r *Report) Failed() int {
	return len(r.Results) - r.Succeeded()
}

func (r *Report) HasFailures() bool {
	return r.Failed() > 0 || r.NginxErr != nil
}
