package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBot/lib/wait"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"slices"
)

var Logger = logger.GetLogger("rendezvous")

// ErrNotFound is returned by Await when no handle was published for the identifier in time
var ErrNotFound = errors.New("device not found")

// Registry maps device identifiers to session handles. It is safe for concurrent use.
type Registry[H comparable] struct {
	handles *xsync.MapOf[string, H]
}

// lookupResult is the value polled by Await
type lookupResult[H comparable] struct {
	handle H
	found  bool
}

// New creates an empty registry
func New[H comparable]() *Registry[H] {
	return &Registry[H]{
		handles: xsync.NewMapOf[string, H](),
	}
}

// Publish stores the handle for the identifier and returns the handle it replaced, if any
func (r *Registry[H]) Publish(id string, h H) (previous H, replaced bool) {
	previous, replaced = r.handles.LoadAndStore(id, h)
	if replaced {
		Logger.Warningf("device %q reconnected, replacing its previous session", id)
	} else {
		Logger.Infof("device %q is available", id)
	}
	return previous, replaced
}

// Lookup returns the handle published for the identifier
func (r *Registry[H]) Lookup(id string) (H, bool) {
	return r.handles.Load(id)
}

// Await waits until a handle is published for the identifier or the wait spec elapsed
func (r *Registry[H]) Await(ctx context.Context, id string, spec wait.Spec) (H, error) {
	result, ok, err := wait.Until(ctx, spec,
		func(res lookupResult[H]) bool { return !res.found },
		func() (lookupResult[H], error) {
			h, found := r.Lookup(id)
			return lookupResult[H]{handle: h, found: found}, nil
		})
	if err != nil {
		var zero H
		return zero, fmt.Errorf("awaiting device %q: %w", id, err)
	}
	if !ok {
		var zero H
		return zero, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return result.handle, nil
}

// Remove deletes the identifier from the registry
func (r *Registry[H]) Remove(id string) {
	r.handles.Delete(id)
}

// RemoveIf deletes the identifier only if it still maps to the given handle.
// A session uses it on exit so that it does not remove the handle of a newer session.
func (r *Registry[H]) RemoveIf(id string, h H) bool {
	removed := false
	r.handles.Compute(id, func(current H, loaded bool) (H, bool) {
		if loaded && current == h {
			removed = true
			return current, true
		}
		return current, !loaded
	})
	if removed {
		Logger.Infof("device %q is gone", id)
	}
	return removed
}

// Keys returns the sorted identifiers of all published handles
func (r *Registry[H]) Keys() []string {
	keys := make([]string, 0, r.handles.Size())
	r.handles.Range(func(id string, _ H) bool {
		keys = append(keys, id)
		return true
	})
	slices.Sort(keys)
	return keys
}

// Len returns the number of published handles
func (r *Registry[H]) Len() int {
	return r.handles.Size()
}
