// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ringstore implements the agent-resident RAM tier: a per-metric
// ring buffer of packed samples, a process-wide metric handle registry,
// and the time-aligned query iterator that reads the ring back out.
//
// # Registry
//
// MetricRegistry maps a compact MetricId to a reference-counted
// MetricHandle. A single RWMutex guards structural mutation (insert,
// unlink); the refcount itself is atomic and follows an "acquire or
// fail" discipline so that a handle whose refcount has reached zero is
// treated as gone even if a concurrent reader still holds the map
// shared-locked.
//
// # Ring buffer
//
// Each MetricHandle owns a fixed-capacity array of sample.Sample. There
// is exactly one writer per handle (the collector that created it via
// GetOrCreate); any number of readers may walk the array concurrently.
// Because each slot is a single machine word and the Empty pattern is
// reserved, a reader that races a writer sees either the old value or
// the new one, never a torn mix — see pkg/sample.
package ringstore

import (
	"sync"
	"sync/atomic"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
)

// MetricId is opaque to callers; the registry owns the id space.
type MetricId uint64

// Descriptor is the (externally owned) chart/dimension identity a handle
// points back to. The disk engine, the registry UI, and the alerting
// rules language all consume richer descriptors than this; the RAM
// engine only needs enough to size and label a ring.
type Descriptor struct {
	Chart          string
	Dimension      string
	UpdateEverySec int64
	Capacity       int
}

// refState values for MetricHandle.refcount.
const (
	refDeleting int32 = 0
)

// Handle is the reference-counted handle the registry hands out.
// 0 ≤ currentEntry < capacity always, and currentEntry is the slot of
// the most recent write (derived from its timestamp). If counter <
// capacity the valid samples occupy the counter slots ending at
// currentEntry, otherwise every slot is valid.
type Handle struct {
	id  MetricId
	reg *MetricRegistry

	mu   sync.Mutex // serializes descriptor back-pointer swaps only
	desc *Descriptor

	ring *ring

	refcount atomic.Int32

	// collection cursor state, single-writer
	counter       uint64
	currentEntry  int
	lastUpdatedS  int64
	updateEveryS  int64
}

// ID returns the handle's MetricId.
func (h *Handle) ID() MetricId { return h.id }

// Descriptor returns the handle's current back-pointer. Safe for
// concurrent use; the pointer itself may be swapped by GetOrCreate.
func (h *Handle) Descriptor() *Descriptor {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.desc
}

func (h *Handle) setDescriptor(d *Descriptor) {
	h.mu.Lock()
	h.desc = d
	h.mu.Unlock()
}

// acquire attempts to move the refcount from n to n+1 for n>0. It fails
// ("refcount already zero") iff the handle is being deleted.
func (h *Handle) acquire() bool {
	for {
		n := h.refcount.Load()
		if n <= refDeleting {
			return false
		}
		if h.refcount.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// releaseAndAcquireForDeletion decrements the refcount. If the
// decrement is the 1->0 transition, this caller "wins" the race to
// delete the handle and the method returns true.
func (h *Handle) releaseAndAcquireForDeletion() bool {
	for {
		n := h.refcount.Load()
		if n <= refDeleting {
			cclog.Errorf("[RINGSTORE]> release of handle %d with non-positive refcount %d", h.id, n)
			return false
		}
		if n == 1 {
			if h.refcount.CompareAndSwap(1, refDeleting) {
				return true
			}
			continue
		}
		if h.refcount.CompareAndSwap(n, n-1) {
			return false
		}
	}
}

// MetricRegistry is the process-wide concurrent MetricId -> Handle map.
type MetricRegistry struct {
	mu     sync.RWMutex
	byID   map[MetricId]*Handle
	byUUID map[string]MetricId
	nextID atomic.Uint64

	memBytes atomic.Int64
}

// NewMetricRegistry returns an empty registry.
func NewMetricRegistry() *MetricRegistry {
	return &MetricRegistry{
		byID:   make(map[MetricId]*Handle),
		byUUID: make(map[string]MetricId),
	}
}

// MemoryBytes reports the registry's best-effort accounting of bytes
// held by live handles and their ring buffers.
func (r *MetricRegistry) MemoryBytes() int64 {
	return r.memBytes.Load()
}

// GetOrCreate returns the handle for externalUUID, creating it (and
// allocating a fresh MetricId) on first use. If the handle already
// exists but its descriptor has gone stale — the caller recreated the
// chart/dimension object the descriptor used to point at — the
// back-pointer is atomically updated under the exclusive lock.
func (r *MetricRegistry) GetOrCreate(externalUUID string, desc *Descriptor) *Handle {
	for {
		if h, ok := r.GetByUUID(externalUUID); ok {
			if h.Descriptor() != desc {
				h.setDescriptor(desc)
			}
			return h
		}

		r.mu.Lock()
		// Re-check: another goroutine may have inserted while we waited
		// for the write lock (double-checked locking).
		if id, ok := r.byUUID[externalUUID]; ok {
			h := r.byID[id]
			r.mu.Unlock()
			if h != nil && h.acquire() {
				if h.Descriptor() != desc {
					h.setDescriptor(desc)
				}
				return h
			}
			continue
		}

		id := MetricId(r.nextID.Add(1))
		h := &Handle{
			id:           id,
			reg:          r,
			desc:         desc,
			ring:         newRing(desc.Capacity),
			updateEveryS: desc.UpdateEverySec,
		}
		h.refcount.Store(1)
		r.byID[id] = h
		r.byUUID[externalUUID] = id
		r.mu.Unlock()

		r.memBytes.Add(int64(desc.Capacity)*4 + handleOverheadBytes)
		return h
	}
}

// handleOverheadBytes approximates the fixed per-handle bookkeeping
// cost, for MemoryBytes accounting.
const handleOverheadBytes = 96

// GetByID returns the handle for id with its refcount incremented, or
// (nil, false) if the id is unknown or the handle is being deleted.
func (r *MetricRegistry) GetByID(id MetricId) (*Handle, bool) {
	r.mu.RLock()
	h, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !h.acquire() {
		return nil, false
	}
	return h, true
}

// GetByUUID returns the handle registered under externalUUID.
func (r *MetricRegistry) GetByUUID(externalUUID string) (*Handle, bool) {
	r.mu.RLock()
	id, ok := r.byUUID[externalUUID]
	if !ok {
		r.mu.RUnlock()
		return nil, false
	}
	h := r.byID[id]
	r.mu.RUnlock()
	if h == nil || !h.acquire() {
		return nil, false
	}
	return h, true
}

// Release decrements h's refcount. If this is the transition to zero,
// h is unlinked from the registry under the exclusive lock, memory
// accounting is updated, and h becomes unreachable.
func (r *MetricRegistry) Release(h *Handle) {
	if !h.releaseAndAcquireForDeletion() {
		return
	}

	r.mu.Lock()
	delete(r.byID, h.id)
	for uuid, id := range r.byUUID {
		if id == h.id {
			delete(r.byUUID, uuid)
			break
		}
	}
	r.mu.Unlock()

	r.memBytes.Add(-(int64(cap(h.ring.data))*4 + handleOverheadBytes))
	h.ring.release()
}

// Retention is a cheap probe returning the [firstSeen, lastSeen] window
// for a metric without materializing a query cursor.
func (r *MetricRegistry) Retention(id MetricId) (firstSeenS, lastSeenS int64, ok bool) {
	h, ok := r.GetByID(id)
	if !ok {
		return 0, 0, false
	}
	defer r.Release(h)

	firstSeenS, lastSeenS = h.retentionWindow()
	return firstSeenS, lastSeenS, true
}

// RetentionDelete forcibly unlinks id regardless of refcount, used by
// the retention worker for metrics whose descriptor has been removed.
// Readers already holding the handle keep it valid until their own
// Release drops the last reference.
func (r *MetricRegistry) RetentionDelete(id MetricId) {
	r.mu.Lock()
	h, ok := r.byID[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byID, id)
	for uuid, hid := range r.byUUID {
		if hid == id {
			delete(r.byUUID, uuid)
			break
		}
	}
	r.mu.Unlock()

	// Drop the registry's own reference; the handle is freed once the
	// last collector/query reader releases theirs.
	r.Release(h)
}

// Len reports the number of live handles, for diagnostics and tests.
func (r *MetricRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

// ListEntry is one row of a registry enumeration, as used by the
// metrics.list MCP method.
type ListEntry struct {
	ID         MetricId
	UUID       string
	Descriptor *Descriptor
}

// List returns a snapshot of every live metric. The snapshot is taken
// under the read lock but handles are not individually acquired, so a
// descriptor observed here may be released concurrently; callers that
// need a stable handle should follow up with GetByID.
func (r *MetricRegistry) List() []ListEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ListEntry, 0, len(r.byUUID))
	for uuid, id := range r.byUUID {
		h, ok := r.byID[id]
		if !ok {
			continue
		}
		out = append(out, ListEntry{ID: id, UUID: uuid, Descriptor: h.Descriptor()})
	}
	return out
}
