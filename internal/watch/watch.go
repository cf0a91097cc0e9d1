// Package watch re-runs a job on a cron schedule and whenever a watched
// file changes. Runs never overlap; triggers that arrive during a run are
// coalesced into a single follow-up run.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	cronlib "github.com/robfig/cron/v3"

	"github.com/neboloop/agencycheck/internal/logging"
)

// Trigger says why a run started.
type Trigger struct {
	Reason string
	At     time.Time
}

// Trigger reasons
const (
	ReasonStart    = "start"
	ReasonSchedule = "schedule"
	ReasonFile     = "file changed"
	ReasonManual   = "manual"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher schedules runs.
type Watcher struct {
	// Schedule is a standard 5-field cron spec or descriptor ("@every 30m").
	// Empty disables scheduled runs.
	Schedule string
	// Files are watched for writes; empty disables file triggers.
	Files []string
	// RunOnStart queues one run immediately.
	RunOnStart bool
	// Debounce collapses bursts of file events (editors write several times).
	Debounce time.Duration

	Job func(ctx context.Context, t Trigger) error
	Log *slog.Logger

	pending chan Trigger
	once    sync.Once
}

// ValidateSchedule reports whether spec parses as a cron schedule.
func ValidateSchedule(spec string) error {
	if spec == "" {
		return nil
	}
	if _, err := cronlib.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

func (w *Watcher) init() {
	w.once.Do(func() {
		w.pending = make(chan Trigger, 1)
		if w.Log == nil {
			w.Log = logging.Component("watch")
		}
		if w.Debounce <= 0 {
			w.Debounce = defaultDebounce
		}
	})
}

// Fire queues a run. If one is already queued the trigger is dropped; it
// will be served by the queued run.
func (w *Watcher) Fire(reason string) {
	w.init()
	select {
	case w.pending <- Trigger{Reason: reason, At: time.Now()}:
	default:
		w.Log.Debug("run already queued", "reason", reason)
	}
}

// Run blocks until ctx is done, executing Job for each trigger.
func (w *Watcher) Run(ctx context.Context) error {
	w.init()
	if w.Job == nil {
		return fmt.Errorf("watch: job is required")
	}

	if w.Schedule != "" {
		sched := cronlib.New()
		if _, err := sched.AddFunc(w.Schedule, func() { w.Fire(ReasonSchedule) }); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", w.Schedule, err)
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
		w.Log.Info("scheduled", "spec", w.Schedule)
	}

	if len(w.Files) > 0 {
		fw, err := w.watchFiles()
		if err != nil {
			return err
		}
		defer fw.Close()
		go w.fileEvents(ctx, fw)
	}

	if w.RunOnStart {
		w.Fire(ReasonStart)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-w.pending:
			w.Log.Info("run triggered", "reason", t.Reason)
			start := time.Now()
			if err := w.Job(ctx, t); err != nil {
				w.Log.Warn("run failed", "reason", t.Reason, "error", err)
			} else {
				w.Log.Info("run finished", "elapsed", time.Since(start).Round(time.Millisecond))
			}
		}
	}
}

// watchFiles watches each file's directory; editors often replace files
// instead of writing them in place, which drops a direct watch.
func (w *Watcher) watchFiles() (*fsnotify.Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	dirs := map[string]bool{}
	for _, f := range w.Files {
		dir := filepath.Dir(f)
		if dirs[dir] {
			continue
		}
		dirs[dir] = true
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch directory %s: %w", dir, err)
		}
		w.Log.Info("watching", "dir", dir)
	}
	return fw, nil
}

func (w *Watcher) fileEvents(ctx context.Context, fw *fsnotify.Watcher) {
	watched := map[string]bool{}
	for _, f := range w.Files {
		if abs, err := filepath.Abs(f); err == nil {
			watched[abs] = true
		}
	}

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.Debounce, func() { w.Fire(ReasonFile) })
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.Log.Warn("watcher error", "error", err)
		}
	}
}
