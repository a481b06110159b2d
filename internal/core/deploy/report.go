package deploy

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
)

// Reporter renders deploy progress for humans. Everything goes through
// one writer so command echo from the executors interleaves in order
// with the step lines.
type Reporter struct {
	out     io.Writer
	verbose bool

	headline *color.Color
	ok       *color.Color
	warn     *color.Color
	bad      *color.Color
}

func NewReporter(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:      out,
		verbose:  verbose,
		headline: color.New(color.Bold),
		ok:       color.New(color.FgGreen),
		warn:     color.New(color.FgYellow),
		bad:      color.New(color.FgRed),
	}
}

// Out exposes the underlying writer so command echo and dry-run output
// land in the same stream.
func (r *Reporter) Out() io.Writer {
	return r.out
}

func (r *Reporter) Phase(format string, args ...any) {
	r.headline.Fprintf(r.out, format+"\n", args...)
}

func (r *Reporter) Step(format string, args ...any) {
	fmt.Fprintf(r.out, "  "+format+"\n", args...)
}

func (r *Reporter) Ok(format string, args ...any) {
	r.ok.Fprintf(r.out, "  ✓ "+format+"\n", args...)
}

func (r *Reporter) Warn(format string, args ...any) {
	r.warn.Fprintf(r.out, "  ! "+format+"\n", args...)
}

func (r *Reporter) Fail(format string, args ...any) {
	r.bad.Fprintf(r.out, "  ✗ "+format+"\n", args...)
}

func (r *Reporter) Debug(format string, args ...any) {
	if !r.verbose {
		return
	}
	fmt.Fprintf(r.out, "  · "+format+"\n", args...)
}

// Summary prints the final per-project table and the run counts. The
// state column comes last because its cell may carry color codes,
// which tabwriter counts as width.
func (r *Reporter) Summary(report *Report, dryRun bool) {
	fmt.Fprintln(r.out)
	r.headline.Fprintf(r.out, "run %s finished in %s\n", report.RunId, report.Duration.Round(time.Millisecond))

	tw := tabwriter.NewWriter(r.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  PROJECT\tKIND\tPORT\tDOMAIN\tSTATE")
	for _, res := range report.Results {
		port := "-"
		if res.Spec.Port != 0 {
			port = strconv.Itoa(res.Spec.Port)
		}
		state := string(res.State)
		if dryRun {
			state += " (would)"
		}
		if res.Err != nil {
			state = r.bad.Sprint(state)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", res.Spec.Name, res.Spec.Kind, port, res.Spec.Domain, state)
	}
	tw.Flush()

	for _, res := range report.Results {
		if res.Err != nil {
			r.Fail("%s: %v", res.Spec.Name, res.Err)
		}
	}
	for _, sk := range report.Skipped {
		r.Warn("skipped %s: %s", sk.Name, sk.Reason)
	}
	if report.NginxErr != nil {
		r.Fail("nginx: %v", report.NginxErr)
	}
	if report.NginxReloaded {
		r.Step("nginx reloaded")
	}
	if report.DaemonReloaded {
		r.Step("systemd daemon reloaded")
	}

	counts := fmt.Sprintf("%d deployed, %d failed, %d skipped", report.Succeeded(), report.Failed(), len(report.Skipped))
	if report.HasFailures() {
		r.bad.Fprintln(r.out, counts)
	} else {
		r.ok.Fprintln(r.out, counts)
	}
}
