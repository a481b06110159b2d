package venv

import "fmt"

// StepError attributes a provisioning failure to one project and one
// pipeline step so the orchestrator can record it and move on.
type StepError struct {
	Step    string
	Project string
	Output  string
	Err     error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("project=%s step=%s: %v", e.Project, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
