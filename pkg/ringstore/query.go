// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringstore

import (
	"github.com/ClusterCockpit/nd-agent-core/pkg/sample"
)

// Point is one evenly-spaced output value of a Query, spanning the
// half-open interval (Start, End].
type Point struct {
	Start        int64
	End          int64
	Value        float64
	Flags        sample.Flags
	AnomalyCount int
	Count        int
	Empty        bool
}

// Query is a read cursor over a Handle's ring, producing one Point per
// update_every_s tick of the requested window. It holds its own
// reference on the handle so the ring cannot be freed out from under
// an in-flight query; callers must call Close when done.
//
// Field names and arithmetic are grounded on rrddim_query_init /
// rrddim_query_next_metric / rrddim_slot2time / rrddim_time2slot.
type Query struct {
	h      *Handle
	reg    *MetricRegistry
	closed bool

	dt       int64
	capacity int
	lastSlot int // slot holding the most recently written sample at query_init time

	slot          int   // next slot to read
	slotTimestamp int64 // time boundary of the current read slot window
	lastTimestamp int64 // time boundary of the final slot in the window
	nextTimestamp int64 // next_timestamp cursor, advances by dt every call
	endS          int64 // end_s, for query_finished
}

// slotToTime is the cursor-relative form of rrddim_slot2time: distance
// from lastSlot, scaled by dt, subtracted from last_updated_s.
func (q *Query) slotToTime(slot int, lastUpdatedS, firstEntryTimeS int64) int64 {
	back := (q.lastSlot - slot) % q.capacity
	if back < 0 {
		back += q.capacity
	}
	t := lastUpdatedS - q.dt*int64(back)
	if t < firstEntryTimeS {
		t = firstEntryTimeS
	}
	if t > lastUpdatedS {
		t = lastUpdatedS
	}
	return t
}

// timeToQuerySlot maps a timestamp to a ring slot relative to lastSlot,
// grounded on the same mapping rrddim_query_init uses, then clamps to
// [firstSlot, lastSlot] when t falls outside the retention window.
func (q *Query) timeToQuerySlot(t, lastUpdatedS int64, firstSlot int) int {
	back := (lastUpdatedS - t) / q.dt
	if back < 0 {
		back = 0
	}
	slot := q.lastSlot - int(back)
	slot %= q.capacity
	if slot < 0 {
		slot += q.capacity
	}

	// Clamp into the valid [firstSlot, lastSlot] arc. Both arcs are
	// expressed as "distance back from lastSlot" so they compare
	// directly regardless of wraparound.
	distFirst := (q.lastSlot - firstSlot) % q.capacity
	if distFirst < 0 {
		distFirst += q.capacity
	}
	distSlot := (q.lastSlot - slot) % q.capacity
	if distSlot < 0 {
		distSlot += q.capacity
	}
	if distSlot > distFirst {
		slot = firstSlot
	}
	return slot
}

// NewQuery opens a cursor over id covering [afterS, beforeS]. The
// window is clamped to the metric's actual retention. If the metric
// has never been written, the query is immediately finished.
func (r *MetricRegistry) NewQuery(id MetricId, afterS, beforeS int64) (*Query, bool) {
	h, ok := r.GetByID(id)
	if !ok {
		return nil, false
	}
	if h.counter == 0 {
		r.Release(h)
		return nil, false
	}

	capacity := len(h.ring.data)
	dt := h.updateEveryS
	if dt <= 0 {
		dt = 1
	}

	// h.currentEntry already names the slot of the most recent write
	// (it is derived directly from wall-clock time, not a post-write
	// increment — see StoreSample), so it doubles as last_slot here.
	lastSlot := h.currentEntry
	// Before the ring wraps, the valid samples are the counter slots
	// ending at lastSlot; afterwards every slot is valid and the oldest
	// one is the slot after lastSlot.
	firstSlot := (lastSlot + 1) % capacity
	if h.counter < uint64(capacity) {
		firstSlot = (lastSlot - int(h.counter) + 1 + capacity) % capacity
	}

	firstEntryTimeS, _ := h.retentionWindow()

	q := &Query{
		h:        h,
		reg:      r,
		dt:       dt,
		capacity: capacity,
		lastSlot: lastSlot,
		endS:     beforeS,
	}

	startSlot := q.timeToQuerySlot(afterS, h.lastUpdatedS, firstSlot)
	endSlot := q.timeToQuerySlot(beforeS, h.lastUpdatedS, firstSlot)

	q.slot = startSlot
	q.slotTimestamp = q.slotToTime(startSlot, h.lastUpdatedS, firstEntryTimeS)
	q.lastTimestamp = q.slotToTime(endSlot, h.lastUpdatedS, firstEntryTimeS)
	q.nextTimestamp = afterS

	return q, true
}

// Next returns the next point and true, or a zero Point and false once
// the query is exhausted (grounded on rrddim_query_next_metric).
func (q *Query) Next() (Point, bool) {
	if q.closed || q.Finished() {
		return Point{}, false
	}

	thisTS := q.nextTimestamp
	q.nextTimestamp += q.dt

	if thisTS < q.slotTimestamp || thisTS > q.lastTimestamp {
		return Point{Start: thisTS - q.dt, End: thisTS, Empty: true}, true
	}

	s := q.h.ring.data[q.slot]
	q.slot = (q.slot + 1) % q.capacity
	q.slotTimestamp += q.dt

	if sample.IsEmpty(s) {
		return Point{Start: thisTS - q.dt, End: thisTS, Empty: true}, true
	}
	v, flags := sample.Unpack(s)
	anomalyCount := 0
	if sample.IsAnomalous(s) {
		anomalyCount = 1
	}
	return Point{
		Start:        thisTS - q.dt,
		End:          thisTS,
		Value:        v,
		Flags:        flags,
		AnomalyCount: anomalyCount,
		Count:        1,
	}, true
}

// Finished reports whether the query has no more points to produce,
// without consuming one — grounded on rrddim_query_is_finished.
func (q *Query) Finished() bool {
	return q.closed || q.nextTimestamp > q.endS
}

// Close releases the query's reference on the underlying handle. It
// is safe to call Close more than once.
func (q *Query) Close() {
	if q.closed {
		return
	}
	q.closed = true
	q.reg.Release(q.h)
}
