// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ringstore

import (
	"sync"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	"github.com/ClusterCockpit/nd-agent-core/pkg/sample"
)

// ring is the fixed-capacity wraparound array backing a single metric.
// Slot arithmetic, gap fill, and flush-on-huge-gap are grounded on
// rrddim_collect_store_metric / rrddim_fill_the_gap / rrddim_time2slot.
type ring struct {
	data []sample.Sample
}

func newRing(capacity int) *ring {
	if capacity <= 0 {
		capacity = 1
	}
	r := &ring{data: acquireRingBuf(capacity)}
	for i := range r.data {
		r.data[i] = sample.Empty
	}
	return r
}

func (r *ring) release() {
	releaseRingBuf(r.data)
	r.data = nil
}

// timeToSlot maps a wall-clock second to a ring slot, matching
// rrddim_time2slot's division by update_every and modulo capacity.
func timeToSlot(timestampS, updateEveryS int64, capacity int) int {
	if updateEveryS <= 0 {
		updateEveryS = 1
	}
	slot := (timestampS / updateEveryS) % int64(capacity)
	if slot < 0 {
		slot += int64(capacity)
	}
	return int(slot)
}

// slotToTime is the inverse of timeToSlot for the slot nearest to
// "around" that differs by a multiple of update_every and lies within
// one ring revolution of it — grounded on rrddim_slot2time.
func slotToTime(slot int, updateEveryS, around int64, capacity int) int64 {
	if updateEveryS <= 0 {
		updateEveryS = 1
	}
	aroundSlot := timeToSlot(around, updateEveryS, capacity)
	delta := slot - aroundSlot
	if delta > capacity/2 {
		delta -= capacity
	} else if delta < -capacity/2 {
		delta += capacity
	}
	return around + int64(delta)*updateEveryS
}

// storeResult reports what StoreSample actually did, for callers that
// want to log or count flushes distinctly from ordinary gap fills.
type storeResult int

const (
	storeOK storeResult = iota
	storeGapFilled
	storeFlushed
)

// StoreSample appends a single collected value at timestampS. A gap
// shorter than the ring's capacity is backfilled with Empty slots; a
// gap that would overwrite the whole ring flushes it first. The
// caller is the sole writer for h; concurrent readers observe whole
// Sample words only, never a torn update.
func (h *Handle) StoreSample(timestampS int64, value float64, flags sample.Flags) storeResult {
	capacity := len(h.ring.data)
	updateEvery := h.updateEveryS
	if updateEvery <= 0 {
		updateEvery = 1
		h.updateEveryS = 1
	}

	if h.counter == 0 {
		h.currentEntry = timeToSlot(timestampS, updateEvery, capacity)
		h.ring.data[h.currentEntry] = sample.Pack(value, flags)
		h.counter = 1
		h.lastUpdatedS = timestampS
		return storeOK
	}

	gapSeconds := timestampS - h.lastUpdatedS
	if gapSeconds <= 0 {
		cclog.Debugf("[RINGSTORE]> handle %d: out-of-order or duplicate sample at t=%d (last=%d), ignored", h.id, timestampS, h.lastUpdatedS)
		return storeOK
	}

	missedSlots := gapSeconds/updateEvery - 1
	result := storeOK

	if missedSlots >= int64(capacity) {
		// Gap spans (or exceeds) a full revolution: nothing in the
		// current ring is still valid at the new write position, so
		// flush every slot to Empty before writing, matching
		// rrddim_store_metric_flush. The flush also restarts the
		// retention accounting: the ring now holds only the sample
		// about to be written.
		for i := range h.ring.data {
			h.ring.data[i] = sample.Empty
		}
		h.counter = 0
		result = storeFlushed
	} else if missedSlots > 0 {
		h.fillGap(h.currentEntry, missedSlots, capacity)
		result = storeGapFilled
	}

	h.currentEntry = timeToSlot(timestampS, updateEvery, capacity)
	h.ring.data[h.currentEntry] = sample.Pack(value, flags)
	h.counter++
	h.lastUpdatedS = timestampS
	return result
}

// fillGap writes Empty into the missed slots strictly between
// fromEntry (exclusive) and the next real write, grounded on
// rrddim_fill_the_gap.
func (h *Handle) fillGap(fromEntry int, missedSlots int64, capacity int) {
	entry := fromEntry
	for i := int64(0); i < missedSlots; i++ {
		entry = (entry + 1) % capacity
		h.ring.data[entry] = sample.Empty
		if h.counter < uint64(capacity) {
			h.counter++
		}
	}
}

// SetUpdateEvery changes the handle's expected collection interval.
// The ring is flushed first (every slot Empty, counter, cursor and
// last-update time reset), since every slot's implied timestamp is
// derived from the interval; the next StoreSample starts afresh.
func (h *Handle) SetUpdateEvery(updateEveryS int64) {
	if updateEveryS <= 0 {
		updateEveryS = 1
	}
	for i := range h.ring.data {
		h.ring.data[i] = sample.Empty
	}
	h.counter = 0
	h.currentEntry = 0
	h.lastUpdatedS = 0
	h.updateEveryS = updateEveryS
}

// retentionWindow returns the oldest and newest timestamps still
// represented in the ring, derived from the write cursor rather than
// stored per slot.
func (h *Handle) retentionWindow() (firstSeenS, lastSeenS int64) {
	if h.counter == 0 {
		return 0, 0
	}
	capacity := len(h.ring.data)
	span := int64(capacity - 1)
	if h.counter <= uint64(capacity) {
		span = int64(h.counter - 1)
	}
	first := h.lastUpdatedS - span*h.updateEveryS
	return first, h.lastUpdatedS
}

// ringBufPool buckets *[]sample.Sample slices by capacity, mirroring
// the teacher's PersistentBufferPool: reusing ring arrays avoids a
// fresh allocation and GC churn every time a metric is deleted and a
// same-sized one created moments later (chart churn during job
// startup/teardown is the common case this amortizes).
type ringBufPool struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

var globalRingPool = &ringBufPool{pools: make(map[int]*sync.Pool)}

func (p *ringBufPool) poolFor(capacity int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pl, ok := p.pools[capacity]
	if !ok {
		cap := capacity
		pl = &sync.Pool{New: func() any {
			return make([]sample.Sample, cap)
		}}
		p.pools[capacity] = pl
	}
	return pl
}

func acquireRingBuf(capacity int) []sample.Sample {
	buf := globalRingPool.poolFor(capacity).Get().([]sample.Sample)
	if len(buf) != capacity {
		return make([]sample.Sample, capacity)
	}
	return buf
}

func releaseRingBuf(buf []sample.Sample) {
	if buf == nil {
		return
	}
	globalRingPool.poolFor(len(buf)).Put(buf)
}
