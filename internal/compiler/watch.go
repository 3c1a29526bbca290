package compiler

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jin-gizmo/docma/internal/logging"
	"github.com/jin-gizmo/docma/internal/tmplconf"
	"github.com/jin-gizmo/docma/internal/watcher"
)

// DefaultWatchDelay is the quiet period before a change triggers a
// recompile.
const DefaultWatchDelay = 300 * time.Millisecond

// Watch compiles srcDir into target, then recompiles after every batch of
// source changes until ctx is done. Compile failures are logged and do not
// stop the watch.
func Watch(ctx context.Context, srcDir, target string, opts Options, delay time.Duration) error {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if delay <= 0 {
		delay = DefaultWatchDelay
	}
	logger := opts.Logger.WithComponent("compiler").With("source", srcDir)

	absSrc, err := filepath.Abs(srcDir)
	if err != nil {
		return err
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return err
	}

	fw, err := watcher.NewFileWatcher(delay, opts.Logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	ex := &excludes{}
	ex.reload(absSrc)
	fw.AddFilter(watcher.NoHiddenFilter(absSrc))
	fw.AddFilter(watcher.NoEditorTempFilter)
	fw.AddFilter(watcher.OutsideFilter(absTarget))
	fw.AddFilter(ex.filter(absSrc))

	rebuild := func(ctx context.Context, events []watcher.ChangeEvent) error {
		for _, e := range events {
			logger.Debug(ctx, "Source changed", "path", e.Path, "change", e.Type.String())
		}
		ex.reload(absSrc)
		if err := Compile(ctx, srcDir, target, opts); err != nil {
			return err
		}
		logger.Info(ctx, "Recompiled", "changes", len(events))

		return nil
	}
	fw.AddHandler(rebuild)

	if err := Compile(ctx, srcDir, target, opts); err != nil {
		logger.Error(ctx, err, "Initial compile failed")
	}
	if err := fw.AddRecursive(absSrc); err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}
	logger.Info(ctx, "Watching for changes")
	<-ctx.Done()

	return nil
}

// excludes tracks the configuration's exclude patterns across edits.
type excludes struct {
	mu       sync.RWMutex
	patterns []string
}

func (e *excludes) reload(src string) {
	data, err := os.ReadFile(filepath.Join(src, tmplconf.ConfigFile))
	if err != nil {
		return
	}
	cfg, err := tmplconf.Parse(tmplconf.ConfigFile, data)
	if err != nil {
		return
	}
	e.mu.Lock()
	e.patterns = cfg.Exclude
	e.mu.Unlock()
}

func (e *excludes) filter(root string) watcher.FileFilter {
	return func(path string) bool {
		e.mu.RLock()
		patterns := e.patterns
		e.mu.RUnlock()

		return watcher.ExcludeFilter(root, patterns)(path)
	}
}
