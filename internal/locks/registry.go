// Package locks provides the cross-agent resource lock registry.
//
// Two independent key spaces are guarded: file paths and UI element
// identifiers. Acquisition is non-blocking and fail-fast; there is no
// queueing and no fairness. Locks serialize access across agents, they
// are not a scheduling primitive.
package locks

import (
	"sync"

	"github.com/siddharthanagula3/agiworkforce-desktop-app-sub003/internal/types"
)

// Registry tracks held locks for files and UI elements. One exclusive
// mutex per key space keeps the check-then-insert atomic.
type Registry struct {
	filesMu sync.Mutex
	files   map[string]struct{}

	uiMu sync.Mutex
	ui   map[string]struct{}
}

// NewRegistry creates an empty lock registry.
func NewRegistry() *Registry {
	return &Registry{
		files: make(map[string]struct{}),
		ui:    make(map[string]struct{}),
	}
}

// Guard represents one held lock. Release returns the key to the
// registry; releasing more than once is a no-op, so a guard can be
// released early and still deferred safely.
type Guard struct {
	once    sync.Once
	release func()
}

// Release returns the guarded key to the registry. Exactly the guard's
// own key is removed, never any other.
func (g *Guard) Release() {
	g.once.Do(g.release)
}

// TryAcquireFile attempts to lock a file path. It fails immediately
// when the path is already locked by any holder.
func (r *Registry) TryAcquireFile(path string) (*Guard, error) {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	if _, held := r.files[path]; held {
		return nil, types.NewErrorf(types.LOCK_HELD, "file %s is already locked", path)
	}
	r.files[path] = struct{}{}

	return &Guard{release: func() {
		r.filesMu.Lock()
		defer r.filesMu.Unlock()
		delete(r.files, path)
	}}, nil
}

// TryAcquireUIElement attempts to lock a UI element identifier. It
// fails immediately when the element is already locked.
func (r *Registry) TryAcquireUIElement(selector string) (*Guard, error) {
	r.uiMu.Lock()
	defer r.uiMu.Unlock()

	if _, held := r.ui[selector]; held {
		return nil, types.NewErrorf(types.LOCK_HELD, "UI element %q is already locked", selector)
	}
	r.ui[selector] = struct{}{}

	return &Guard{release: func() {
		r.uiMu.Lock()
		defer r.uiMu.Unlock()
		delete(r.ui, selector)
	}}, nil
}

// IsFileLocked reports whether a file path is currently locked.
func (r *Registry) IsFileLocked(path string) bool {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	_, held := r.files[path]
	return held
}

// IsUIElementLocked reports whether a UI element is currently locked.
func (r *Registry) IsUIElementLocked(selector string) bool {
	r.uiMu.Lock()
	defer r.uiMu.Unlock()
	_, held := r.ui[selector]
	return held
}

// WithFile acquires the file lock, runs fn, and releases on every exit
// path including panic.
func (r *Registry) WithFile(path string, fn func() error) error {
	guard, err := r.TryAcquireFile(path)
	if err != nil {
		return err
	}
	defer guard.Release()
	return fn()
}

// WithUIElement acquires the UI element lock, runs fn, and releases on
// every exit path including panic.
func (r *Registry) WithUIElement(selector string, fn func() error) error {
	guard, err := r.TryAcquireUIElement(selector)
	if err != nil {
		return err
	}
	defer guard.Release()
	return fn()
}
