package vault

import (
	"os"
	"sync"

	"github.com/atavus-go/safefs/internal/safelog"
)

// Entry is the per-handle state an open file keeps alive for the duration of
// its descriptor: the file itself plus its rehydrated header.
type Entry struct {
	File   *os.File
	Header *Header
}

// OpenFiles is a handle-keyed table of live Entry values. The original
// implementation threads these through an intrusive doubly linked list
// (node.c's addLink/findLink/delLink) guarded by one global mutex; a Go
// program has no need for the list's splice-out-by-pointer trick, so this
// keeps the same key/reuse/delete semantics over a plain map.
type OpenFiles struct {
	mu  sync.Mutex
	log *safelog.Logger
	m   map[uint64]*Entry
}

// NewOpenFiles returns an empty table. log may be nil to disable the reuse
// notice.
func NewOpenFiles(log *safelog.Logger) *OpenFiles {
	return &OpenFiles{m: make(map[uint64]*Entry), log: log}
}

// Add registers entry under handle, or returns the already-registered entry
// if handle is already in use (mirrors addLink's reuse-on-collision return).
func (o *OpenFiles) Add(handle uint64, entry *Entry) *Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.m[handle]; ok {
		if o.log != nil {
			o.log.Debugf("addLink", "reusing handle=%d", handle)
		}
		return existing
	}
	o.m[handle] = entry
	return entry
}

// Find returns the entry registered under handle, or nil.
func (o *OpenFiles) Find(handle uint64) *Entry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.m[handle]
}

// Delete zeroes and removes the entry registered under handle, if any.
func (o *OpenFiles) Delete(handle uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.m[handle]
	if !ok {
		return
	}
	if entry.Header != nil {
		entry.Header.Zero()
	}
	delete(o.m, handle)
}

// Len reports the number of live handles, for tests and diagnostics.
func (o *OpenFiles) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.m)
}
