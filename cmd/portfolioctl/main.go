package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/OmarSalvatierra99/portfolio/internal/audit"
	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/core/deploy"
	"github.com/OmarSalvatierra99/portfolio/internal/core/project"
	"github.com/OmarSalvatierra99/portfolio/internal/core/systemd"
	"github.com/OmarSalvatierra99/portfolio/internal/preflight"
	"github.com/OmarSalvatierra99/portfolio/internal/store/dsm"
	"github.com/OmarSalvatierra99/portfolio/internal/store/pam"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
	"github.com/OmarSalvatierra99/portfolio/internal/watch"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd, args := os.Args[1], os.Args[2:]
	switch cmd {
	case "deploy":
		runDeploy(args, false)
	case "watch":
		runDeploy(args, true)
	case "status":
		runStatus(args)
	case "ports":
		runPorts(args)
	case "preflight":
		runPreflight(args)
	case "version":
		fmt.Println("portfolioctl " + version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: portfolioctl <command> [flags]

commands:
  deploy     converge venvs, units and nginx sites onto the project tree
  watch      redeploy automatically when project sources change
  status     show per-project deploy state and unit activity
  ports      show the persisted port map
  preflight  check project domains against DNS
  version    print the build version

run portfolioctl <command> -h for command flags
`)
}

func runDeploy(args []string, watchMode bool) {
	name := "deploy"
	if watchMode {
		name = "watch"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	var (
		dryRun   bool
		verbose  bool
		noStart  bool
		proj     string
		root     string
		manifest string
	)
	fs.BoolVar(&dryRun, "dry-run", false, "echo the plan without changing the host")
	fs.BoolVar(&dryRun, "d", false, "shorthand for -dry-run")
	fs.BoolVar(&verbose, "verbose", false, "command echo, dns preflight and debug logging")
	fs.BoolVar(&verbose, "v", false, "shorthand for -verbose")
	fs.BoolVar(&noStart, "no-start", false, "write configs but leave services alone")
	fs.StringVar(&proj, "project", "", "deploy a single project")
	fs.StringVar(&proj, "p", "", "shorthand for -project")
	fs.StringVar(&root, "root", "", "portfolio root (default: $PORTFOLIO_ROOT or cwd)")
	fs.StringVar(&manifest, "manifest", "", "manifest path (default: <root>/portfolio.yaml)")
	fs.Parse(args)

	if watchMode && dryRun {
		fmt.Fprintln(os.Stderr, "watch cannot dry-run")
		os.Exit(2)
	}

	level := slog.LevelWarn
	if watchMode {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}
	setupLogging(level)

	settings := loadSettings(root, manifest)
	opts := deploy.Options{DryRun: dryRun, Verbose: verbose, NoStart: noStart, Project: proj}

	svc, auditWriter := buildDeploy(settings, opts)
	if auditWriter != nil {
		defer auditWriter.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchMode {
		if os.Geteuid() != 0 {
			fatal(errors.New("watch needs root, re-run with sudo"))
		}
		watcher := watch.NewWatcher(settings, svc, opts)
		if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
			fatal(err)
		}
		return
	}

	report, err := svc.Run(ctx, opts)
	if err != nil {
		fatal(err)
	}
	if report.HasFailures() {
		os.Exit(1)
	}
}

// buildDeploy picks the executors for the run: dry runs only echo,
// verbose runs echo before executing, everything else just executes.
// The audit trail is skipped for dry runs and for users who could not
// write it anyway.
func buildDeploy(settings *config.Settings, opts deploy.Options) (*deploy.DeployService, *audit.Writer) {
	reporter := deploy.NewReporter(os.Stdout, opts.Verbose)

	factory := utils.CommandFactory(utils.NewCommandFactory())
	fsh := utils.FilesystemHandler(utils.NewFilesystemExecutor())
	var auditWriter *audit.Writer

	if opts.DryRun {
		factory = utils.NewDryRunCommandFactory(reporter.Out())
		fsh = utils.NewDryRunFilesystem(fsh, reporter.Out())
	} else {
		if os.Geteuid() == 0 {
			w, err := audit.NewWriter(settings.AuditLogPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "audit log unavailable: %v\n", err)
			} else {
				auditWriter = w
			}
		}
		if opts.Verbose {
			factory = utils.NewEchoCommandFactory(factory, reporter.Out())
		}
	}

	return deploy.NewDeployService(settings, reporter, auditWriter, factory, fsh), auditWriter
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	var (
		root     string
		manifest string
		tail     int
	)
	fs.StringVar(&root, "root", "", "portfolio root (default: $PORTFOLIO_ROOT or cwd)")
	fs.StringVar(&manifest, "manifest", "", "manifest path (default: <root>/portfolio.yaml)")
	fs.IntVar(&tail, "tail", 5, "audit records to show, 0 disables")
	fs.Parse(args)

	settings := loadSettings(root, manifest)

	dsmHandler := dsm.NewDsmManager(dsm.NewDsmStore(settings.DsmStorePath))
	marks, err := dsmHandler.GetProjectList()
	if err != nil {
		fatal(err)
	}
	if len(marks) == 0 {
		fmt.Println("no recorded deploys, run portfolioctl deploy first")
		return
	}

	systemdHandler := systemd.NewSystemdService(settings, utils.NewCommandFactory(), utils.NewFilesystemExecutor())
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tDOMAIN\tPORT\tUNIT\tSTATE\tUPDATED")
	for _, mark := range marks {
		port, unitState := "-", "-"
		if mark.Port != 0 {
			port = strconv.Itoa(mark.Port)
			active, err := systemdHandler.IsActive(mark.Name)
			switch {
			case err != nil:
				unitState = "unknown"
			case active:
				unitState = "active"
			default:
				unitState = "inactive"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			mark.Name, mark.Domain, port, unitState, mark.State, mark.UpdatedAt.Format(time.RFC3339))
	}
	tw.Flush()

	if runId, err := dsmHandler.GetLastRunId(); err == nil && runId != "" {
		fmt.Printf("\nlast run: %s\n", runId)
	}

	showAuditTail(settings, tail)
}

func showAuditTail(settings *config.Settings, lines int) {
	if lines <= 0 {
		return
	}
	out, err := utils.TailLines(settings.AuditLogPath, lines, 1<<20)
	if err != nil || len(out) == 0 {
		return
	}
	fmt.Println()
	fmt.Println("recent audit records:")
	fmt.Print(string(out))
}

func runPorts(args []string) {
	fs := flag.NewFlagSet("ports", flag.ExitOnError)
	var (
		root     string
		manifest string
		release  string
	)
	fs.StringVar(&root, "root", "", "portfolio root (default: $PORTFOLIO_ROOT or cwd)")
	fs.StringVar(&manifest, "manifest", "", "manifest path (default: <root>/portfolio.yaml)")
	fs.StringVar(&release, "release", "", "free the assignment for a project name")
	fs.Parse(args)

	settings := loadSettings(root, manifest)
	pamHandler := pam.NewPamManager(pam.NewPamStore(settings.PamStorePath))

	if release != "" {
		if err := pamHandler.ReleasePort(release); err != nil {
			fatal(err)
		}
		fmt.Printf("released %s\n", release)
		return
	}

	ports, err := pamHandler.GetPortList()
	if err != nil {
		fatal(err)
	}
	if len(ports) == 0 {
		fmt.Println("no ports assigned yet")
		return
	}

	names := make([]string, 0, len(ports))
	for name := range ports {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tPORT")
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%d\n", name, ports[name])
	}
	tw.Flush()
}

func runPreflight(args []string) {
	fs := flag.NewFlagSet("preflight", flag.ExitOnError)
	var (
		root     string
		manifest string
		expected string
	)
	fs.StringVar(&root, "root", "", "portfolio root (default: $PORTFOLIO_ROOT or cwd)")
	fs.StringVar(&manifest, "manifest", "", "manifest path (default: <root>/portfolio.yaml)")
	fs.StringVar(&expected, "expect", "", "address the domains should resolve to (default: upstream host)")
	fs.Parse(args)

	settings := loadSettings(root, manifest)

	specs, _, err := project.NewRegistryService(settings).Discover()
	if err != nil {
		fatal(err)
	}
	resolver, err := preflight.NewDnsResolver()
	if err != nil {
		fatal(err)
	}
	checker := preflight.NewChecker(resolver)

	host := expected
	if host == "" {
		host = settings.UpstreamHost
	}
	domains := make([]string, 0, len(specs))
	for _, spec := range specs {
		domains = append(domains, spec.Domain)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	bad := 0
	for _, result := range checker.Check(ctx, domains, host) {
		if result.Ok() {
			green.Printf("✓ %s -> %s\n", result.Domain, strings.Join(result.Addresses, ", "))
			continue
		}
		bad++
		red.Printf("✗ %s: %s (%s)\n", result.Domain, result.Status, result.Detail)
	}
	if bad > 0 {
		os.Exit(1)
	}
}

func loadSettings(root, manifest string) *config.Settings {
	settings, err := config.Load(config.Overrides{Root: root, ManifestPath: manifest})
	if err != nil {
		fatal(err)
	}
	// detection fills what neither env, manifest nor flags set
	if settings.ServiceUser == "" {
		settings.ServiceUser = utils.DetectServiceUser(settings.Root)
	}
	if settings.WebUser == "" {
		settings.WebUser = utils.DetectWebUser(utils.NewCommandFactory())
	}
	if settings.CertDir == "" {
		settings.CertDir = utils.DetectCertDir(utils.NewFilesystemExecutor(), settings.BaseDomain)
	}
	return settings
}

func setupLogging(level slog.Level) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "portfolioctl: %v\n", err)
	os.Exit(1)
}
