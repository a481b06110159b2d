package venv

import "github.com/OmarSalvatierra99/portfolio/internal/core/project"

type VenvServiceHandler interface {
	Ensure(spec project.Spec) ([]string, error)
	ValidateEntrypoint(spec project.Spec) error
	FixPermissions(spec project.Spec) error
}
