package nginx

import "github.com/OmarSalvatierra99/portfolio/internal/core/project"

type NginxServiceHandler interface {
	RenderSite(spec project.Spec) string
	WriteSite(spec project.Spec) (bool, error)
	EnableSite(site string) error
	DisableDefaultSite() error
	VerifySymlinks(sites []string) error
	EnsureMasterConfig() error
	CommentDefaultServer() (bool, error)
	Validate() error
	Reload() error
}
