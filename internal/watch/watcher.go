package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/OmarSalvatierra99/portfolio/internal/config"
	"github.com/OmarSalvatierra99/portfolio/internal/core/deploy"
	"github.com/OmarSalvatierra99/portfolio/internal/utils"
)

const debounceDelay = 2 * time.Second

func NewWatcher(settings *config.Settings, deployHandler deploy.DeployServiceHandler, opts deploy.Options) *Watcher {
	return &Watcher{
		settings:          settings,
		deployHandler:     deployHandler,
		opts:              opts,
		filesystemHandler: utils.NewFilesystemExecutor(),
		debounce:          debounceDelay,
	}
}

// Watcher redeploys when project sources change. Deploys run one at a
// time; events arriving inside the debounce window fold into the
// pending run and events during a deploy wait for the next change.
type Watcher struct {
	settings          *config.Settings
	deployHandler     deploy.DeployServiceHandler
	opts              deploy.Options
	filesystemHandler utils.FilesystemHandler
	debounce          time.Duration
}

func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addTargets(watcher); err != nil {
		return err
	}

	var pending atomic.Bool
	trigger := func() {
		if pending.CompareAndSwap(false, true) {
			go func() {
				time.Sleep(w.debounce)
				w.redeploy(ctx)
				// new project directories need their own watches
				if err := w.addTargets(watcher); err != nil {
					slog.Debug("refreshing watch targets", "err", err)
				}
				pending.Store(false)
			}()
		}
	}

	slog.Info("watching for changes", "projects", w.settings.ProjectsDir)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-watcher.Events:
			if !w.relevant(ev) {
				continue
			}
			slog.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			trigger()
		case err := <-watcher.Errors:
			slog.Debug("watch error", "err", err)
		}
	}
}

// addTargets watches the portfolio root (main app and manifest), the
// projects directory (new and removed projects) and every project
// directory. fsnotify does not recurse, which keeps venv internals and
// bytecode caches out of the event stream.
func (w *Watcher) addTargets(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(w.settings.Root); err != nil {
		return err
	}
	if err := watcher.Add(w.settings.ProjectsDir); err != nil {
		return err
	}

	entries, err := w.filesystemHandler.ReadDir(w.settings.ProjectsDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") || entry.Name() == "venv" {
			continue
		}
		if err := watcher.Add(filepath.Join(w.settings.ProjectsDir, entry.Name())); err != nil {
			slog.Debug("watch add failed", "dir", entry.Name(), "err", err)
		}
	}
	return nil
}

// relevant drops the events a deploy itself produces: venv churn,
// bytecode caches, dotfiles (the state dir included) and bare chmods
// from permission fixes.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") || base == "venv" || base == "__pycache__" {
		return false
	}
	if strings.HasSuffix(base, ".pyc") {
		return false
	}
	return true
}

func (w *Watcher) redeploy(ctx context.Context) {
	report, err := w.deployHandler.Run(ctx, w.opts)
	if err != nil {
		slog.Error("deploy failed", "err", err)
		return
	}
	if report.HasFailures() {
		slog.Warn("deploy finished with failures", "failed", report.Failed())
		return
	}
	slog.Info("deploy finished", "run_id", report.RunId, "projects", len(report.Results))
}
