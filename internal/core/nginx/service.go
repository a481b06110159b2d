package nginx

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/core/project"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
)

func NewNginxService(settings *config.Settings, factory utils.CommandFactory, fsh utils.FilesystemHandler) *NginxService {
	return &NginxService{
		settings:          settings,
		commandFactory:    factory,
		filesystemHandler: fsh,
	}
}

type NginxService struct {
	settings          *config.Settings
	commandFactory    utils.CommandFactory
	filesystemHandler utils.FilesystemHandler
}

// RenderSite picks the server-block template for the project kind. A
// configured cert dir switches every site to the redirect+TLS form.
func (s *NginxService) RenderSite(spec project.Spec) string {
	ssl := s.settings.CertDir != ""
	switch {
	case spec.Kind == project.KindPhp && ssl:
		return s.renderPhpSiteSSL(spec)
	case spec.Kind == project.KindPhp:
		return s.renderPhpSite(spec)
	case spec.IsMain() && ssl:
		return s.renderMainSiteSSL(spec)
	case spec.IsMain():
		return s.renderMainSite(spec)
	case ssl:
		return s.renderFlaskSiteSSL(spec)
	default:
		return s.renderFlaskSite(spec)
	}
}

func (s *NginxService) renderFlaskSite(spec project.Spec) string {
	return fmt.Sprintf(`server {
    listen 80;
    server_name %s;

    # Security headers
    add_header X-Content-Type-Options nosniff;
    add_header X-Frame-Options DENY;
    add_header Referrer-Policy strict-origin-when-cross-origin;

    # Max upload size
    client_max_body_size 10M;

    location / {
        proxy_pass http://%s:%d;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;

        # Timeouts
        proxy_connect_timeout 60s;
        proxy_send_timeout 60s;
        proxy_read_timeout 60s;
    }

    # Static files (if needed)
    location /static {
        proxy_pass http://%s:%d;
    }
}
`,
		spec.Domain,
		s.settings.UpstreamHost, spec.Port,
		s.settings.UpstreamHost, spec.Port,
	)
}

func (s *NginxService) renderMainSite(spec project.Spec) string {
	return fmt.Sprintf(`server {
    listen 80 default_server;
    server_name %s www.%s;

    # Security headers
    add_header X-Content-Type-Options nosniff;
    add_header X-Frame-Options DENY;
    add_header Referrer-Policy strict-origin-when-cross-origin;

    # Max upload size
    client_max_body_size 10M;

    location / {
        proxy_pass http://%s:%d;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;

        # Timeouts
        proxy_connect_timeout 60s;
        proxy_send_timeout 60s;
        proxy_read_timeout 60s;
    }

    # Static files
    location /static {
        alias %s/static;
        expires 30d;
        add_header Cache-Control "public, immutable";
    }
}
`,
		spec.Domain, spec.Domain,
		s.settings.UpstreamHost, spec.Port,
		spec.Dir,
	)
}

func (s *NginxService) renderFlaskSiteSSL(spec project.Spec) string {
	return fmt.Sprintf(`server {
    listen 80;
    server_name %s;
    return 301 https://$server_name$request_uri;
}

server {
    listen 443 ssl;
    http2 on;
    server_name %s;

    ssl_certificate %s/fullchain.pem;
    ssl_certificate_key %s/privkey.pem;

    # Security headers
    add_header X-Content-Type-Options nosniff;
    add_header X-Frame-Options DENY;
    add_header Referrer-Policy strict-origin-when-cross-origin;

    # Max upload size
    client_max_body_size 10M;

    location / {
        proxy_pass http://%s:%d;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;

        # Timeouts
        proxy_connect_timeout 60s;
        proxy_send_timeout 60s;
        proxy_read_timeout 60s;
    }

    # Static files (if needed)
    location /static {
        proxy_pass http://%s:%d;
    }
}
`,
		spec.Domain,
		spec.Domain,
		s.settings.CertDir, s.settings.CertDir,
		s.settings.UpstreamHost, spec.Port,
		s.settings.UpstreamHost, spec.Port,
	)
}

func (s *NginxService) renderMainSiteSSL(spec project.Spec) string {
	return fmt.Sprintf(`server {
    listen 80 default_server;
    server_name %s www.%s;
    return 301 https://$server_name$request_uri;
}

server {
    listen 443 ssl;
    http2 on;
    server_name %s www.%s;

    ssl_certificate %s/fullchain.pem;
    ssl_certificate_key %s/privkey.pem;

    # Security headers
    add_header X-Content-Type-Options nosniff;
    add_header X-Frame-Options DENY;
    add_header Referrer-Policy strict-origin-when-cross-origin;

    # Max upload size
    client_max_body_size 10M;

    location / {
        proxy_pass http://%s:%d;
        proxy_set_header Host $host;
        proxy_set_header X-Real-IP $remote_addr;
        proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
        proxy_set_header X-Forwarded-Proto $scheme;

        # Timeouts
        proxy_connect_timeout 60s;
        proxy_send_timeout 60s;
        proxy_read_timeout 60s;
    }

    # Static files
    location /static {
        alias %s/static;
        expires 30d;
        add_header Cache-Control "public, immutable";
    }
}
`,
		spec.Domain, spec.Domain,
		spec.Domain, spec.Domain,
		s.settings.CertDir, s.settings.CertDir,
		s.settings.UpstreamHost, spec.Port,
		spec.Dir,
	)
}

func (s *NginxService) renderPhpSite(spec project.Spec) string {
	return fmt.Sprintf(`server {
    listen 80;
    server_name %s;

    root %s;
    index index.php index.html;

    # Deny access to hidden files
    location ~ /\. {
        deny all;
    }

    # PHP processing
    location ~ \.php$ {
        include fastcgi_params;
        fastcgi_pass unix:%s;
        fastcgi_index index.php;
        fastcgi_param SCRIPT_FILENAME %s$fastcgi_script_name;
        fastcgi_param DOCUMENT_ROOT %s;
        fastcgi_param PATH_INFO $fastcgi_path_info;
    }

    # Try files fallback
    location / {
        try_files $uri $uri/ /index.php?$args;
    }
}
`,
		spec.Domain,
		spec.DocumentRoot,
		utils.PhpFpmSocketPath,
		spec.DocumentRoot,
		spec.DocumentRoot,
	)
}

func (s *NginxService) renderPhpSiteSSL(spec project.Spec) string {
	return fmt.Sprintf(`server {
    listen 80;
    server_name %s;
    return 301 https://$server_name$request_uri;
}

server {
    listen 443 ssl;
    http2 on;
    server_name %s;

    root %s;
    index index.php index.html;

    ssl_certificate %s/fullchain.pem;
    ssl_certificate_key %s/privkey.pem;

    # Deny access to hidden files
    location ~ /\. {
        deny all;
    }

    # PHP processing
    location ~ \.php$ {
        include fastcgi_params;
        fastcgi_pass unix:%s;
        fastcgi_index index.php;
        fastcgi_param SCRIPT_FILENAME %s$fastcgi_script_name;
        fastcgi_param DOCUMENT_ROOT %s;
        fastcgi_param PATH_INFO $fastcgi_path_info;
    }

    # Try files fallback
    location / {
        try_files $uri $uri/ /index.php?$args;
    }
}
`,
		spec.Domain,
		spec.Domain,
		spec.DocumentRoot,
		s.settings.CertDir, s.settings.CertDir,
		utils.PhpFpmSocketPath,
		spec.DocumentRoot,
		spec.DocumentRoot,
	)
}

// WriteSite renders and writes the available config, returning whether
// the file changed. The write is fsynced so the file is durable before
// EnableSite links to it.
func (s *NginxService) WriteSite(spec project.Spec) (bool, error) {
	if err := s.filesystemHandler.MkdirAll(s.settings.SitesAvailableDir, 0o755); err != nil {
		return false, fmt.Errorf("creating %s: %w", s.settings.SitesAvailableDir, err)
	}

	path := utils.SiteAvailablePath(s.settings.SitesAvailableDir, spec.Site)
	content := []byte(s.RenderSite(spec))

	existing, err := s.filesystemHandler.ReadFile(path)
	if err == nil && bytes.Equal(existing, content) {
		return false, nil
	}
	if err != nil && !s.filesystemHandler.IsNotExist(err) {
		return false, fmt.Errorf("reading site %s: %w", path, err)
	}

	if err := s.filesystemHandler.WriteFileSync(path, content, 0o644); err != nil {
		return false, fmt.Errorf("writing site %s: %w", path, err)
	}
	return true, nil
}

// EnableSite links the available config into sites-enabled. The
// available file must already exist on disk; an enabled link is never
// allowed to point at a missing target, so stale and dangling links
// are removed before relinking.
func (s *NginxService) EnableSite(site string) error {
	available := utils.SiteAvailablePath(s.settings.SitesAvailableDir, site)
	enabled := utils.SiteEnabledPath(s.settings.SitesEnabledDir, site)

	if _, err := s.filesystemHandler.Stat(available); err != nil {
		return fmt.Errorf("refusing to enable %s: available config missing: %w", site, err)
	}
	if err := s.filesystemHandler.MkdirAll(s.settings.SitesEnabledDir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", s.settings.SitesEnabledDir, err)
	}

	if _, err := s.filesystemHandler.Lstat(enabled); err == nil {
		if target, err := s.filesystemHandler.Readlink(enabled); err == nil && target == available {
			return nil
		}
		if err := s.filesystemHandler.Remove(enabled); err != nil {
			return fmt.Errorf("removing stale link %s: %w", enabled, err)
		}
	}

	if err := s.filesystemHandler.Symlink(available, enabled); err != nil {
		return fmt.Errorf("enabling site %s: %w", site, err)
	}
	return nil
}

// DisableDefaultSite drops the distribution's catch-all site so it
// cannot shadow the generated ones.
func (s *NginxService) DisableDefaultSite() error {
	link := utils.SiteEnabledPath(s.settings.SitesEnabledDir, "default")
	if _, err := s.filesystemHandler.Lstat(link); err != nil {
		if s.filesystemHandler.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := s.filesystemHandler.Remove(link); err != nil {
		return fmt.Errorf("removing default site: %w", err)
	}
	return nil
}

// VerifySymlinks checks that every site has an available file and an
// enabled link resolving to it.
func (s *NginxService) VerifySymlinks(sites []string) error {
	var problems []string
	for _, site := range sites {
		available := utils.SiteAvailablePath(s.settings.SitesAvailableDir, site)
		enabled := utils.SiteEnabledPath(s.settings.SitesEnabledDir, site)

		if _, err := s.filesystemHandler.Stat(available); err != nil {
			problems = append(problems, fmt.Sprintf("%s: available config missing", site))
			continue
		}
		if _, err := s.filesystemHandler.Lstat(enabled); err != nil {
			problems = append(problems, fmt.Sprintf("%s: not enabled", site))
			continue
		}
		target, err := s.filesystemHandler.Readlink(enabled)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: enabled entry is not a symlink", site))
			continue
		}
		if target != available {
			problems = append(problems, fmt.Sprintf("%s: link points at %s", site, target))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("nginx symlinks broken: %s", strings.Join(problems, "; "))
	}
	return nil
}
