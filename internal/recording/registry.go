package recording

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loykin/flowcap/internal/runner"
	"github.com/loykin/flowcap/internal/store"
)

// Entry is one tracked recorder process.
type Entry struct {
	Record store.Record
	Handle runner.Handle

	// claimed is taken by whoever reports the end of the session first:
	// Stop, Shutdown or the exit watcher.
	claimed   atomic.Bool
	closers   []io.Closer
	closeOnce sync.Once
}

func (e *Entry) claim() bool { return e.claimed.CompareAndSwap(false, true) }

func (e *Entry) closeOutput() {
	e.closeOnce.Do(func() {
		for _, c := range e.closers {
			_ = c.Close()
		}
	})
}

// Registry maps session ids to live recorder processes. The lock covers map
// access only; signalling and waiting happen outside it.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

func (r *Registry) Add(id string, e *Entry) {
	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()
}

func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok
}

// Remove deletes id and returns what was tracked for it.
func (r *Registry) Remove(id string) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	return e, ok
}

// RemoveIf deletes id only while it still maps to e.
func (r *Registry) RemoveIf(id string, e *Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[id]; ok && cur == e {
		delete(r.entries, id)
		return true
	}
	return false
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// IDs returns the tracked session ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// PIDs maps each tracked session to its recorder PID.
func (r *Registry) PIDs() map[string]int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int32, len(r.entries))
	for id, e := range r.entries {
		out[id] = int32(e.Handle.PID())
	}
	return out
}

func (r *Registry) drain() map[string]*Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.entries
	r.entries = make(map[string]*Entry)
	return out
}

// Shutdown empties the registry and terminates every process it held,
// waiting for each to exit until ctx is done. It returns the entries it
// terminated; sessions whose exit was already reported are skipped.
func (r *Registry) Shutdown(ctx context.Context, grace time.Duration) (map[string]*Entry, error) {
	all := r.drain()
	terminated := make(map[string]*Entry, len(all))
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for id, e := range all {
		if !e.claim() {
			e.closeOutput()
			continue
		}
		terminated[id] = e
		wg.Add(1)
		go func(id string, e *Entry) {
			defer wg.Done()
			if err := e.Handle.Terminate(grace); err != nil && !errors.Is(err, runner.ErrProcessDone) {
				mu.Lock()
				errs = append(errs, errors.New(id+": "+err.Error()))
				mu.Unlock()
			}
			select {
			case <-e.Handle.Done():
			case <-ctx.Done():
			}
			e.closeOutput()
		}(id, e)
	}
	wg.Wait()
	return terminated, errors.Join(errs...)
}
