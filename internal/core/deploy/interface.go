package deploy

import "context"

type DeployServiceHandler interface {
	Run(ctx context.Context, opts Options) (*Report, error)
}
