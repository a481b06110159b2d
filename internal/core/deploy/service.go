package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/OmarSalvatierra99/portfolio/internal/audit"
	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/core/nginx"
	"github.com/OmarSalvatierra99/portfolio/internal/core/project"
	"github.com/OmarSalvatierra99/portfolio/internal/core/systemd"
	"github.com/OmarSalvatierra99/portfolio/internal/core/venv"
	"github.com/OmarSalvatierra99/portfolio/internal/env"
	"github.com/OmarSalvatierra99/portfolio/internal/preflight"
	"github.com/OmarSalvatierra99/portfolio/internal/store/dsm"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
)

const journalTailLines = 5

// NewDeployService wires the full pipeline. The command factory and
// filesystem handler are shared by every step, so the caller decides
// whether the run executes, echoes before executing, or only echoes.
func NewDeployService(settings *config.Settings, reporter *Reporter, auditWriter *audit.Writer, factory utils.CommandFactory, fsh utils.FilesystemHandler) *DeployService {
	s := &DeployService{
		settings:          settings,
		reporter:          reporter,
		auditWriter:       auditWriter,
		filesystemHandler: fsh,

		bootstrapHandler: env.NewBootstrapManager(settings),
		registryHandler:  project.NewRegistryService(settings),
		venvHandler:      venv.NewVenvService(settings, factory, fsh),
		systemdHandler:   systemd.NewSystemdService(settings, factory, fsh),
		nginxHandler:     nginx.NewNginxService(settings, factory, fsh),
		dsmHandler:       dsm.NewDsmManager(dsm.NewDsmStore(settings.DsmStorePath)),

		euid: os.Geteuid,
	}

	// DNS preflight is best effort. Hosts without a usable resolver
	// config simply run without it.
	if resolver, err := preflight.NewDnsResolver(); err == nil {
		s.preflightHandler = preflight.NewChecker(resolver)
	}

	return s
}

type DeployService struct {
	settings          *config.Settings
	reporter          *Reporter
	auditWriter       *audit.Writer
	filesystemHandler utils.FilesystemHandler

	bootstrapHandler env.BootstrapHandler
	registryHandler  project.RegistryServiceHandler
	venvHandler      venv.VenvServiceHandler
	systemdHandler   systemd.SystemdServiceHandler
	nginxHandler     nginx.NginxServiceHandler
	dsmHandler       dsm.DsmHandler
	preflightHandler preflight.CheckerHandler

	euid func() int
}

// Run converges the host onto the discovered project set. Every step is
// idempotent, so re-running after a partial failure finishes the work
// the previous run left behind.
func (s *DeployService) Run(ctx context.Context, opts Options) (*Report, error) {
	started := time.Now()

	// 1. privilege check: the run edits /etc and talks to systemd
	if !opts.DryRun && s.euid() != 0 {
		return nil, errors.New("deploy needs root, re-run with sudo or use --dry-run")
	}

	// 2. one run at a time per host
	if !opts.DryRun {
		release, err := s.acquireRunLock()
		if err != nil {
			return nil, err
		}
		defer release()
	}

	// 3. state directories and store files
	if !opts.DryRun {
		if err := s.bootstrapHandler.SetupRuntime(); err != nil {
			return nil, fmt.Errorf("preparing runtime state: %w", err)
		}
	}

	report := &Report{RunId: utils.NewUlid(), StartedAt: started}
	s.writeAudit(audit.NewRecord(report.RunId, "run.start"))

	// 4. discovery and port assignment
	specs, skipped, err := s.registryHandler.Discover()
	if err != nil {
		return nil, err
	}
	report.Skipped = skipped
	slog.Debug("discovery finished", "projects", len(specs), "skipped", len(skipped))

	if opts.DryRun {
		err = s.registryHandler.PreviewPorts(specs)
	} else {
		err = s.registryHandler.AssignPorts(specs)
	}
	if err != nil {
		return nil, err
	}

	if opts.Project != "" {
		specs, err = filterSpecs(specs, opts.Project)
		if err != nil {
			return nil, err
		}
	}

	// 5. DNS warnings, never fatal
	if opts.Verbose {
		s.preflightWarnings(ctx, specs)
	}

	// 6. per-project pipeline, failures stay contained
	for _, spec := range specs {
		report.Results = append(report.Results, s.deployProject(spec, opts))
	}

	// 7.-9. global phases
	s.reconcileNginx(report, opts)
	s.reloadUnits(report)
	if !opts.NoStart {
		s.startProjects(ctx, report, opts)
	}

	// 10. persist outcomes and report
	report.Duration = time.Since(started)
	s.finish(report, opts)
	s.reporter.Summary(report, opts.DryRun)

	return report, nil
}

// acquireRunLock takes the host-wide deploy lock without blocking. A
// held lock means another run is mid-flight and this one must not
// interleave with it.
func (s *DeployService) acquireRunLock() (func(), error) {
	// the lock file lives in the state dir, which does not exist before
	// the first run
	if err := s.filesystemHandler.MkdirAll(filepath.Dir(s.settings.DeployLockPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	lock := flock.New(s.settings.DeployLockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring deploy lock %s: %w", s.settings.DeployLockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("deploy lock %s is held, another run is in progress", s.settings.DeployLockPath)
	}
	return func() { lock.Unlock() }, nil
}

func filterSpecs(specs []project.Spec, name string) ([]project.Spec, error) {
	var known []string
	for _, spec := range specs {
		if spec.Name == name {
			return []project.Spec{spec}, nil
		}
		known = append(known, spec.Name)
	}
	return nil, fmt.Errorf("project %s not found, discovered: %s", name, strings.Join(known, ", "))
}

func (s *DeployService) preflightWarnings(ctx context.Context, specs []project.Spec) {
	if s.preflightHandler == nil {
		s.reporter.Debug("dns preflight unavailable on this host")
		return
	}
	domains := make([]string, 0, len(specs))
	for _, spec := range specs {
		domains = append(domains, spec.Domain)
	}
	for _, result := range s.preflightHandler.Check(ctx, domains, s.settings.UpstreamHost) {
		if result.Ok() {
			s.reporter.Debug("dns %s resolves to %s", result.Domain, strings.Join(result.Addresses, ", "))
			continue
		}
		s.reporter.Warn("dns %s: %s (%s)", result.Domain, result.Status, result.Detail)
	}
}

// deployProject walks one project through provision, unit and site. The
// first error stops this project and leaves its previous on-disk state
// in place.
func (s *DeployService) deployProject(spec project.Spec, opts Options) ProjectResult {
	res := ProjectResult{Spec: spec, State: StateDiscovered}

	s.reporter.Phase("%s (%s)", spec.Name, spec.Kind)

	warnings, err := s.venvHandler.Ensure(spec)
	res.Warnings = warnings
	for _, warning := range warnings {
		s.reporter.Warn("%s", warning)
	}
	if err != nil {
		return s.failProject(res, err)
	}
	if err := s.venvHandler.ValidateEntrypoint(spec); err != nil {
		return s.failProject(res, err)
	}
	if err := s.venvHandler.FixPermissions(spec); err != nil {
		return s.failProject(res, err)
	}
	res.State = StateProvisioned

	if spec.NeedsPort() {
		changed, err := s.systemdHandler.WriteUnit(spec)
		if err != nil {
			return s.failProject(res, err)
		}
		res.UnitChanged = changed
		res.State = StateUnitWritten
		if changed {
			s.reporter.Step("unit %s written", utils.UnitName(spec.Name))
		}
	}

	changed, err := s.nginxHandler.WriteSite(spec)
	if err != nil {
		return s.failProject(res, err)
	}
	res.SiteChanged = changed
	if changed {
		s.reporter.Step("site %s written", spec.Site)
	}

	// a dry run swallowed the site write above, so the enable
	// precondition cannot see the file yet
	if opts.DryRun {
		s.reporter.Step("would enable site %s", spec.Site)
	} else if err := s.nginxHandler.EnableSite(spec.Site); err != nil {
		return s.failProject(res, err)
	}
	res.State = StateProxyConfigured

	s.reporter.Ok("%s configured", spec.Name)
	return res
}

func (s *DeployService) failProject(res ProjectResult, err error) ProjectResult {
	res.State = StateFailed
	res.Err = err
	s.reporter.Fail("%v", err)
	return res
}

// reconcileNginx runs the host-wide nginx work. Reload happens at most
// once per run and only when a live site actually changed; a rejected
// config withholds the reload so the previous good config stays up.
func (s *DeployService) reconcileNginx(report *Report, opts Options) {
	if err := s.ensureNginxGlobals(report, opts); err != nil {
		// a dry run may be on a host without nginx installed at all
		if opts.DryRun {
			s.reporter.Warn("nginx: %v", err)
			return
		}
		report.NginxErr = err
		s.reporter.Fail("nginx: %v", err)
		return
	}

	changed := false
	for _, res := range report.Results {
		// a failed project never enabled its site, nothing live changed
		if res.SiteChanged && res.Err == nil {
			changed = true
			break
		}
	}
	if !changed {
		slog.Debug("no site changes, nginx reload skipped")
		return
	}

	if opts.DryRun {
		s.reporter.Step("would validate and reload nginx")
		return
	}

	if err := s.nginxHandler.Validate(); err != nil {
		report.NginxErr = err
		s.reporter.Fail("nginx config rejected, reload withheld: %v", err)
		return
	}
	if err := s.nginxHandler.Reload(); err != nil {
		report.NginxErr = err
		s.reporter.Fail("nginx: %v", err)
		return
	}
	report.NginxReloaded = true
	s.reporter.Ok("nginx reloaded")
}

func (s *DeployService) ensureNginxGlobals(report *Report, opts Options) error {
	if err := s.nginxHandler.EnsureMasterConfig(); err != nil {
		return err
	}
	if _, err := s.nginxHandler.CommentDefaultServer(); err != nil {
		return err
	}
	if err := s.nginxHandler.DisableDefaultSite(); err != nil {
		return err
	}

	sites := make([]string, 0, len(report.Results))
	for _, res := range report.Results {
		if res.Err == nil {
			sites = append(sites, res.Spec.Site)
		}
	}
	if err := s.nginxHandler.VerifySymlinks(sites); err != nil {
		// dry runs never created the links they verified
		if opts.DryRun {
			s.reporter.Warn("%v", err)
			return nil
		}
		return err
	}
	return nil
}

func (s *DeployService) reloadUnits(report *Report) {
	for _, res := range report.Results {
		if !res.UnitChanged {
			continue
		}
		if err := s.systemdHandler.DaemonReload(); err != nil {
			s.reporter.Warn("%v", err)
			return
		}
		report.DaemonReloaded = true
		return
	}
	slog.Debug("no unit changes, daemon-reload skipped")
}

// startProjects enables and restarts every gunicorn-backed project that
// survived the config phase. A restart failure regresses that project
// to failed but never blocks the others.
func (s *DeployService) startProjects(ctx context.Context, report *Report, opts Options) {
	for i := range report.Results {
		res := &report.Results[i]
		if res.Err != nil || !res.Spec.NeedsPort() {
			continue
		}
		name := res.Spec.Name

		if err := s.systemdHandler.Enable(name); err != nil {
			s.markFailed(res, err)
			continue
		}
		if err := s.systemdHandler.Restart(name); err != nil {
			s.markFailed(res, err)
			s.showJournal(name)
			continue
		}
		if opts.DryRun {
			res.State = StateRunning
			continue
		}
		if err := s.systemdHandler.WaitActive(ctx, name); err != nil {
			s.markFailed(res, err)
			s.showJournal(name)
			continue
		}
		res.State = StateRunning
		s.reporter.Ok("%s active", utils.UnitName(name))
	}
}

func (s *DeployService) markFailed(res *ProjectResult, err error) {
	res.State = StateFailed
	res.Err = err
	s.reporter.Fail("%v", err)
}

func (s *DeployService) showJournal(name string) {
	out, err := s.systemdHandler.JournalTail(name, journalTailLines)
	if err != nil {
		s.reporter.Debug("journal for %s unavailable: %v", utils.UnitName(name), err)
		return
	}
	for _, line := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		s.reporter.Step("%s", line)
	}
}

// finish persists per-project outcomes to the state store and the audit
// trail. Dry runs keep both untouched.
func (s *DeployService) finish(report *Report, opts Options) {
	for _, res := range report.Results {
		reason := ""
		if res.Err != nil {
			reason = res.Err.Error()
		}
		if !opts.DryRun {
			if err := s.dsmHandler.RecordState(res.Spec.Name, string(res.State), reason, report.RunId, res.Spec.Port, res.Spec.Domain); err != nil {
				s.reporter.Warn("recording state for %s: %v", res.Spec.Name, err)
			}
		}

		record := audit.NewRecord(report.RunId, "project.state")
		record.Project = res.Spec.Name
		record.State = string(res.State)
		record.Reason = reason
		record.Port = res.Spec.Port
		record.UnitChanged = res.UnitChanged
		record.SiteChanged = res.SiteChanged
		s.writeAudit(record)
	}

	if !opts.DryRun {
		for _, sk := range report.Skipped {
			if err := s.dsmHandler.RecordState(sk.Name, string(StateSkipped), sk.Reason, report.RunId, 0, ""); err != nil {
				s.reporter.Warn("recording state for %s: %v", sk.Name, err)
			}
		}
	}

	record := audit.NewRecord(report.RunId, "run.finish")
	record.DurationMs = report.Duration.Milliseconds()
	if report.NginxErr != nil {
		record.Reason = report.NginxErr.Error()
	}
	s.writeAudit(record)
}

func (s *DeployService) writeAudit(record audit.Record) {
	if err := s.auditWriter.WriteJSONL(record); err != nil {
		s.reporter.Warn("writing audit record: %v", err)
	}
}
