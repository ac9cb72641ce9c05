package lineparser

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// entry pairs a loaded parser with the priority parsed from its
// filename (lower runs first, per the "DDD_name.json" convention).
type entry struct {
	priority int
	parser   *RegexLineParser
}

// Repository resolves which LineParser applies to a file, and keeps
// the set of configured parsers current as their source directory
// changes on disk.
type Repository struct {
	mu      sync.RWMutex
	dir     string
	entries []entry
	byName  map[string]*RegexLineParser
	def     *DefaultParser
	log     zerolog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewRepository loads every "*.json" file directly under dir and
// starts watching it for changes. Malformed configs are skipped with a
// logged warning rather than failing the whole repository; the other
// parsers must still load.
func NewRepository(dir string, log zerolog.Logger) (*Repository, error) {
	r := &Repository{
		dir:  dir,
		def:  NewDefault(),
		log:  log.With().Str("component", "lineparser.Repository").Logger(),
		done: make(chan struct{}),
	}
	if err := r.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		// Hot reload is an enhancement, not core functionality; a
		// repository that can't watch still serves what it loaded.
		r.log.Warn().Err(err).Msg("parser config watcher unavailable, hot reload disabled")
		return r, nil
	}
	if err := watcher.Add(dir); err != nil {
		r.log.Warn().Err(err).Msg("could not watch parser config dir, hot reload disabled")
		watcher.Close()
		return r, nil
	}
	r.watcher = watcher
	go r.watchLoop()
	return r, nil
}

func (r *Repository) watchLoop() {
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.reload(); err != nil {
				r.log.Warn().Err(err).Msg("parser config reload failed, keeping previous set")
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Warn().Err(err).Msg("parser config watcher error")
		case <-r.done:
			return
		}
	}
}

// Close stops the hot-reload watcher, if any.
func (r *Repository) Close() error {
	close(r.done)
	if r.watcher != nil {
		return r.watcher.Close()
	}
	return nil
}

func (r *Repository) reload() error {
	bundled := bundledEntries()
	entries := make([]entry, len(bundled))
	copy(entries, bundled)
	byName := make(map[string]*RegexLineParser, len(bundled))
	for _, e := range bundled {
		byName[e.parser.Name()] = e.parser
	}

	matches, err := doublestar.Glob(os.DirFS(r.dir), "*.json")
	if err != nil {
		// A missing/unreadable config directory still leaves the
		// bundled defaults available.
		r.mu.Lock()
		r.entries = entries
		r.byName = byName
		r.mu.Unlock()
		return nil
	}
	sort.Strings(matches)

	for _, m := range matches {
		path := filepath.Join(r.dir, m)
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Warn().Err(err).Str("file", m).Msg("could not read parser config")
			continue
		}
		priority, name := splitPriority(m)
		p, err := Load(name, data)
		if err != nil {
			r.mu.RLock()
			prev, ok := r.byName[name]
			r.mu.RUnlock()
			if ok {
				// Keep the previously compiled parser of this name active.
				r.log.Warn().Err(err).Str("file", m).Msg("malformed parser config, keeping previous version")
				entries = append(entries, entry{priority: priority, parser: prev})
				byName[name] = prev
				continue
			}
			r.log.Warn().Err(err).Str("file", m).Msg("skipping malformed parser config")
			continue
		}
		if p.hasDetect {
			r.log.Warn().Str("file", m).Msg("scripted detectors are not supported; parser loads but never self-selects")
		}
		entries = append(entries, entry{priority: priority, parser: p})
		byName[name] = p
	}

	// A user config shadows a bundled default of the same name: drop the
	// bundled entry so Resolve doesn't still try to match against it.
	seen := make(map[string]bool, len(entries))
	deduped := make([]entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		name := entries[i].parser.Name()
		if seen[name] {
			continue
		}
		seen[name] = true
		deduped = append(deduped, entries[i])
	}
	for i, j := 0, len(deduped)-1; i < j; i, j = i+1, j-1 {
		deduped[i], deduped[j] = deduped[j], deduped[i]
	}
	entries = deduped

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].priority < entries[j].priority })

	r.mu.Lock()
	r.entries = entries
	r.byName = byName
	r.mu.Unlock()
	return nil
}

// splitPriority parses the "DDD_name.json" convention, defaulting to
// priority 0 and the full stem when no numeric prefix is present.
func splitPriority(filename string) (int, string) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	underscore := strings.Index(base, "_")
	if underscore <= 0 {
		return 0, base
	}
	n, err := strconv.Atoi(base[:underscore])
	if err != nil {
		return 0, base
	}
	return n, base[underscore+1:]
}

// Resolve returns the highest-priority parser whose IsMatch accepts
// sampleLines/fileName, falling back to the default passthrough parser
// when none do.
func (r *Repository) Resolve(sampleLines []string, fileName string) LineParser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.parser.IsMatch(sampleLines, fileName) {
			return e.parser
		}
	}
	return r.def
}

// ResolveByName returns a specific registered parser, or the default
// parser if name is empty or unknown.
func (r *Repository) ResolveByName(name string) LineParser {
	if name == "" {
		return r.def
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byName[name]; ok {
		return p
	}
	return r.def
}
