package project

type RegistryServiceHandler interface {
	Discover() ([]Spec, []Skipped, error)
	AssignPorts(specs []Spec) error
	PreviewPorts(specs []Spec) error
	DomainFor(name string) string
}
