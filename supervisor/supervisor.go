// Package supervisor discovers input streams under a Config's rules and
// hands each newly discovered path, at most once, to the first rule (in
// declaration order) whose topic glob matches it.
package supervisor

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/justapithecus/arkive/bus"
	"github.com/justapithecus/arkive/config"
	"github.com/justapithecus/arkive/log"
	"github.com/justapithecus/arkive/metrics"
	"github.com/justapithecus/arkive/recorder"
)

// Options configures a Supervisor.
type Options struct {
	Config *config.Resolved
	Bus    bus.Bus
	Arena  bus.Arena
	// AnnounceTopic is the single process-wide topic every Recorder
	// publishes its open/close events to.
	AnnounceTopic string
	Logger        *log.Logger
}

// Supervisor watches every rule's topic directory for newly appearing
// streams and constructs a Recorder for each one it accepts.
type Supervisor struct {
	opts Options

	mu        sync.Mutex
	seen      map[string]bool
	recorders []*recorder.Recorder

	watchers []*fsnotify.Watcher
	wg       sync.WaitGroup
}

// New constructs a Supervisor and starts watching every rule in
// opts.Config. On error, any watchers already started are closed.
func New(opts Options) (*Supervisor, error) {
	s := &Supervisor{opts: opts, seen: map[string]bool{}}
	for _, rule := range opts.Config.Rules {
		if err := s.watchRule(rule); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

func (s *Supervisor) watchRule(rule config.ResolvedRule) error {
	pattern := filepath.Join(s.opts.Config.SearchPath, rule.RelativeWatchPath)
	base := globBase(pattern)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addRecursive(w, base); err != nil {
		w.Close()
		return err
	}

	s.watchers = append(s.watchers, w)
	s.wg.Add(1)
	go s.watchLoop(w)
	return nil
}

// globBase returns the longest path prefix of pattern containing no glob
// metacharacters, the directory subtree a watcher must cover to observe
// every path the full pattern could ever match.
func globBase(pattern string) string {
	segments := strings.Split(pattern, string(filepath.Separator))
	var base []string
	for _, seg := range segments {
		if strings.ContainsAny(seg, "*?[{") {
			break
		}
		base = append(base, seg)
	}
	joined := strings.Join(base, string(filepath.Separator))
	if joined == "" {
		return string(filepath.Separator)
	}
	return joined
}

func addRecursive(w *fsnotify.Watcher, root string) error {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Supervisor) watchLoop(w *fsnotify.Watcher) {
	defer s.wg.Done()
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&fsnotify.Create == 0 {
				continue
			}
			s.handleCreate(w, event.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.opts.Logger.Sugar().Warnf("supervisor: watch error: %v", err)
		}
	}
}

func (s *Supervisor) handleCreate(w *fsnotify.Watcher, path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if info.IsDir() {
		_ = addRecursive(w, path)
		return
	}
	s.maybeTrack(path)
}

func (s *Supervisor) maybeTrack(path string) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}

	s.mu.Lock()
	if s.seen[abs] {
		s.mu.Unlock()
		return
	}
	s.seen[abs] = true
	s.mu.Unlock()

	s.maybeCreateRecorder(abs)
}

// maybeCreateRecorder matches abs against every rule in declaration order,
// constructing a Recorder for (and only for) the first rule that matches.
func (s *Supervisor) maybeCreateRecorder(abs string) {
	rel, err := filepath.Rel(s.opts.Config.SearchPath, abs)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	for _, rule := range s.opts.Config.Rules {
		matched, err := doublestar.Match(rule.RelativeWatchPath, rel)
		if err != nil || !matched {
			continue
		}

		rec, err := recorder.New(recorder.Options{
			Rule:              rule,
			ReadPath:          abs,
			RelativeWatchPath: rel,
			SavePath:          s.opts.Config.SavePath,
			AnnounceTopic:     s.opts.AnnounceTopic,
			Bus:               s.opts.Bus,
			Arena:             s.opts.Arena,
			StartTimeMono:     s.opts.Config.StartTimeMono,
			Logger: log.NewLogger(log.RecorderMeta{
				Protocol: string(rule.Protocol),
				Topic:    rule.Topic,
				ReadPath: abs,
			}),
		})
		if err != nil {
			s.opts.Logger.Error("failed to start recorder", map[string]any{"path": abs, "error": err.Error()})
			return
		}

		s.mu.Lock()
		s.recorders = append(s.recorders, rec)
		s.mu.Unlock()
		return
	}
}

// Metrics returns a snapshot of every currently-owned Recorder's counters,
// in construction order.
func (s *Supervisor) Metrics() []metrics.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := make([]metrics.Snapshot, len(s.recorders))
	for i, rec := range s.recorders {
		snaps[i] = rec.Metrics()
	}
	return snaps
}

// Close stops every watcher and shuts down every Recorder it started.
func (s *Supervisor) Close() {
	for _, w := range s.watchers {
		w.Close()
	}
	s.wg.Wait()

	s.mu.Lock()
	recorders := s.recorders
	s.recorders = nil
	s.mu.Unlock()

	for _, r := range recorders {
		r.Shutdown()
	}
}
