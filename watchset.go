package initshim

import (
	"path/filepath"
	"sort"
	"sync"
)

// watchEntry is the value stored for one watched path.
type watchEntry struct {
	source UnitName // path unit that registered it
	target UnitName // unit to start
}

// WatchSet is the live mapping from watched path to the unit it activates.
// Keys are the paths exactly as declared; lookups are exact string matches.
type WatchSet struct {
	mu      sync.RWMutex
	entries map[string]watchEntry
}

// NewWatchSet creates an empty WatchSet.
func NewWatchSet() *WatchSet {
	return &WatchSet{entries: make(map[string]watchEntry)}
}

// Add registers a path unit. A previous entry for the same path is replaced.
func (w *WatchSet) Add(pu PathUnit) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries[pu.Path] = watchEntry{source: pu.Name, target: pu.Unit}
}

// Remove drops every entry registered by the named path unit and reports
// how many were removed.
func (w *WatchSet) Remove(name UnitName) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := 0
	for path, e := range w.entries {
		if e.source == name {
			delete(w.entries, path)
			n++
		}
	}
	return n
}

// Has reports whether the named path unit has any entry.
func (w *WatchSet) Has(name UnitName) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, e := range w.entries {
		if e.source == name {
			return true
		}
	}
	return false
}

// Lookup returns the unit to start for an exact path.
func (w *WatchSet) Lookup(path string) (UnitName, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	e, ok := w.entries[path]
	return e.target, ok
}

// Len returns the number of watched paths.
func (w *WatchSet) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

// Dirs returns the sorted, distinct parent directories of all watched paths.
func (w *WatchSet) Dirs() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	seen := make(map[string]struct{}, len(w.entries))
	dirs := make([]string, 0, len(w.entries))
	for path := range w.entries {
		dir := filepath.Dir(path)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	return dirs
}

// Paths returns a copy of the mapping from watched path to target unit.
func (w *WatchSet) Paths() map[string]UnitName {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make(map[string]UnitName, len(w.entries))
	for path, e := range w.entries {
		out[path] = e.target
	}
	return out
}
