package tasks

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Handle is the cancellable unit of background execution for one
// session's pipeline: a cancel func paired with a done channel.
type Handle struct {
	cancel   context.CancelFunc
	done     chan struct{}
	doneOnce sync.Once
}

func NewHandle(cancel context.CancelFunc) *Handle {
	return &Handle{
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Cancel requests cooperative termination of the pipeline.
func (h *Handle) Cancel() {
	h.cancel()
}

// Finish marks the pipeline as exited. Safe to call more than once.
func (h *Handle) Finish() {
	h.doneOnce.Do(func() { close(h.done) })
}

// Done is closed when the pipeline goroutine has fully exited.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Registry is the side table associating session ids with their running
// pipeline handles, so that deletion and TTL expiry can cancel in-flight
// work. Handles are not part of the persisted session record.
type Registry struct {
	mu      sync.Mutex
	handles map[uuid.UUID]*Handle
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[uuid.UUID]*Handle)}
}

func (r *Registry) Register(id uuid.UUID, handle *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[id] = handle
}

// Cancel cancels and removes the handle for id, reporting whether one
// was registered. Cancelling an unknown id is a no-op.
func (r *Registry) Cancel(id uuid.UUID) bool {
	r.mu.Lock()
	handle, ok := r.handles[id]
	delete(r.handles, id)
	r.mu.Unlock()

	if ok {
		handle.Cancel()
	}
	return ok
}

// Remove drops the bookkeeping entry without cancelling; called by the
// pipeline itself on normal exit.
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, id)
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}
