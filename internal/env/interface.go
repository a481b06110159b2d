package env

type BootstrapHandler interface {
	SetupRuntime() error
}
