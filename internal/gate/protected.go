package gate

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultRefreshInterval is the protected-identity cache staleness bound
// from spec.md §4.2 ("refresh ≥ every 30s and immediately before every
// batch of gated operations").
const defaultRefreshInterval = 30 * time.Second

// fileIdentity is the device+inode (POSIX) pair that survives rename and
// symlink/hardlink tricks. On platforms without syscall.Stat_t this falls
// back to a hash of the path plus size and modtime (see identity_other.go),
// which does not survive a rename, a link under another name, or an
// in-place rewrite.
type fileIdentity struct {
	Dev uint64
	Ino uint64
}

// ProtectedRegistry determines whether a path refers to a protected file:
// config and secret files that are hard-blocked from modification
// regardless of gate configuration or yolo mode.
type ProtectedRegistry struct {
	mu sync.RWMutex

	exactBasenames  map[string]bool
	prefixBasenames []string
	globs           []string // case-insensitive on Windows and macOS, matched against NormalizedPath.Canonical

	workspaceRoot string
	refreshEvery  time.Duration

	identities   map[fileIdentity]bool
	lastRefresh  time.Time
	watcher      *fsnotify.Watcher
	watcherDirty bool // set by the fsnotify goroutine; consumed by Refresh
}

// defaultProtectedBasenames and defaultProtectedPrefixes implement the
// spec.md §4.2 default set.
var (
	defaultProtectedBasenames = []string{"ralph.config.json", ".env"}
	defaultProtectedPrefixes  = []string{".env."}
	defaultProtectedGlobs     = []string{"**/ralph.config.json", ".ralph/config.json"}
)

// NewProtectedRegistry builds a registry rooted at workspaceRoot, scanning
// it and up to three parent directories for protected basenames.
func NewProtectedRegistry(workspaceRoot string, extraBasenames, extraGlobs []string, refreshEvery time.Duration) *ProtectedRegistry {
	if refreshEvery <= 0 {
		refreshEvery = defaultRefreshInterval
	}
	exact := make(map[string]bool, len(defaultProtectedBasenames)+len(extraBasenames))
	for _, b := range defaultProtectedBasenames {
		exact[b] = true
	}
	for _, b := range extraBasenames {
		exact[b] = true
	}

	r := &ProtectedRegistry{
		exactBasenames:  exact,
		prefixBasenames: append([]string{}, defaultProtectedPrefixes...),
		globs:           append(append([]string{}, defaultProtectedGlobs...), extraGlobs...),
		workspaceRoot:   workspaceRoot,
		refreshEvery:    refreshEvery,
		identities:      make(map[fileIdentity]bool),
	}
	r.refreshIdentities()
	r.startWatcher()
	return r
}

// startWatcher installs an fsnotify watch on the workspace root and its
// ancestors so a protected file created after session start is flagged
// dirty immediately, instead of waiting out the refresh interval. Watch
// failures (e.g. sandboxed filesystems without inotify) are non-fatal —
// the timed/forced refresh paths still cover the invariant.
func (r *ProtectedRegistry) startWatcher() {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("gate.protected: fsnotify unavailable, relying on timed refresh", "error", err)
		return
	}
	for _, dir := range ancestorDirs(r.workspaceRoot, 3) {
		if err := w.Add(dir); err != nil {
			slog.Debug("gate.protected: watch failed", "dir", dir, "error", err)
		}
	}
	r.watcher = w
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					r.mu.Lock()
					r.watcherDirty = true
					r.mu.Unlock()
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

// Close releases the fsnotify watcher.
func (r *ProtectedRegistry) Close() {
	if r.watcher != nil {
		r.watcher.Close()
	}
}

// ancestorDirs returns root and up to n parent directories, closest first.
func ancestorDirs(root string, n int) []string {
	dirs := []string{root}
	cur := root
	for i := 0; i < n; i++ {
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		dirs = append(dirs, parent)
		cur = parent
	}
	return dirs
}

// IsProtected reports whether path refers to a protected file, per the
// four-stage match in spec.md §4.2. true is a hard block: callers must
// never allow it to be overridden by config or yolo mode.
func (r *ProtectedRegistry) IsProtected(path string) bool {
	np, err := Normalize(path)
	if err != nil {
		// An unparseable path can't be safely written to either; treat as
		// protected so the caller fails closed rather than open.
		return true
	}

	r.mu.RLock()
	exact := r.exactBasenames[np.Basename]
	r.mu.RUnlock()
	if exact {
		return true
	}

	for _, prefix := range r.prefixBasenames {
		if strings.HasPrefix(np.Basename, prefix) {
			return true
		}
	}

	for _, g := range r.globs {
		if globMatch(g, np.Canonical) {
			return true
		}
	}

	// Stage 4: identity cache, defeats symlink/hardlink renaming tricks.
	r.RefreshIfStale()
	if id, ok := statIdentity(path); ok {
		r.mu.RLock()
		protected := r.identities[id]
		r.mu.RUnlock()
		if protected {
			return true
		}
	}

	return false
}

// RefreshIfStale refreshes the identity cache if it is older than
// refreshEvery or if the fsnotify watcher observed a relevant change.
func (r *ProtectedRegistry) RefreshIfStale() {
	r.mu.RLock()
	stale := time.Since(r.lastRefresh) >= r.refreshEvery || r.watcherDirty
	r.mu.RUnlock()
	if stale {
		r.refreshIdentities()
	}
}

// ForceRefresh rebuilds the identity cache unconditionally. The orchestrator
// calls it in ProtectionCheck before every file-write tool call.
func (r *ProtectedRegistry) ForceRefresh() {
	r.refreshIdentities()
}

func (r *ProtectedRegistry) refreshIdentities() {
	identities := make(map[fileIdentity]bool)
	for _, dir := range ancestorDirs(r.workspaceRoot, 3) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			name := e.Name()
			protectedName := r.exactBasenames[name]
			if !protectedName {
				for _, prefix := range r.prefixBasenames {
					if strings.HasPrefix(name, prefix) {
						protectedName = true
						break
					}
				}
			}
			if !protectedName {
				continue
			}
			full := filepath.Join(dir, name)
			if id, ok := statIdentity(full); ok {
				identities[id] = true
			}
		}
	}

	r.mu.Lock()
	r.identities = identities
	r.lastRefresh = time.Now()
	r.watcherDirty = false
	r.mu.Unlock()
}

// globMatch implements the small subset of glob syntax the protected-file
// list needs: "**/" prefix (match at any depth) plus filepath.Match for the
// remainder. Matching is case-insensitive wherever caseInsensitiveFS
// reports true (Windows and macOS).
func globMatch(pattern, path string) bool {
	if caseInsensitiveFS() {
		pattern = strings.ToLower(pattern)
		path = strings.ToLower(path)
	}
	if strings.HasPrefix(pattern, "**/") {
		suffix := strings.TrimPrefix(pattern, "**/")
		if ok, _ := filepath.Match(suffix, path); ok {
			return true
		}
		// Match at any path depth: try against every suffix starting
		// after a "/".
		rest := path
		for {
			idx := strings.Index(rest, "/")
			if idx < 0 {
				break
			}
			rest = rest[idx+1:]
			if ok, _ := filepath.Match(suffix, rest); ok {
				return true
			}
		}
		return false
	}
	ok, _ := filepath.Match(pattern, path)
	return ok
}
