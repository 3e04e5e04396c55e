package ringstore

import (
	"testing"

	"github.com/ClusterCockpit/nd-agent-core/pkg/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandle(t *testing.T, capacity int, updateEvery int64) (*MetricRegistry, *Handle) {
	t.Helper()
	reg := NewMetricRegistry()
	h := reg.GetOrCreate("test-uuid", &Descriptor{
		Chart:          "system.cpu",
		Dimension:      "user",
		UpdateEverySec: updateEvery,
		Capacity:       capacity,
	})
	require.NotNil(t, h)
	return reg, h
}

func TestGetOrCreateReturnsSameHandleForSameUUID(t *testing.T) {
	reg, h1 := newTestHandle(t, 10, 1)
	h2 := reg.GetOrCreate("test-uuid", h1.Descriptor())
	assert.Equal(t, h1.ID(), h2.ID())
	assert.Equal(t, 1, reg.Len())
}

func TestCollectAndQueryContiguous(t *testing.T) {
	reg, h := newTestHandle(t, 60, 1)

	base := int64(1_000_000)
	for i := int64(0); i < 5; i++ {
		res := h.StoreSample(base+i, float64(i)*1.5, sample.FlagNone)
		assert.Equal(t, storeOK, res)
	}

	q, ok := reg.NewQuery(h.ID(), base, base+4)
	require.True(t, ok)
	defer q.Close()

	var got []Point
	for {
		p, more := q.Next()
		if !more {
			break
		}
		got = append(got, p)
	}
	require.Len(t, got, 5)
	for i, p := range got {
		assert.False(t, p.Empty)
		assert.InDelta(t, float64(i)*1.5, p.Value, 0.01)
		assert.Equal(t, base+int64(i), p.End)
		assert.Equal(t, base+int64(i)-1, p.Start)
	}
}

// TestQueryScenarioS1 reproduces the literal three-point collect-and-query
// scenario: capacity=10, update_every_s=1, values 10/20/30 at t=1000..1002,
// queried over [1000,1002].
func TestQueryScenarioS1(t *testing.T) {
	reg, h := newTestHandle(t, 10, 1)
	h.StoreSample(1000, 10.0, sample.FlagNone)
	h.StoreSample(1001, 20.0, sample.FlagNone)
	h.StoreSample(1002, 30.0, sample.FlagNone)

	q, ok := reg.NewQuery(h.ID(), 1000, 1002)
	require.True(t, ok)
	defer q.Close()

	want := []Point{
		{Start: 999, End: 1000, Value: 10.0, Count: 1},
		{Start: 1000, End: 1001, Value: 20.0, Count: 1},
		{Start: 1001, End: 1002, Value: 30.0, Count: 1},
	}
	for _, w := range want {
		p, more := q.Next()
		require.True(t, more)
		assert.False(t, p.Empty)
		assert.Equal(t, w.Start, p.Start)
		assert.Equal(t, w.End, p.End)
		assert.InDelta(t, w.Value, p.Value, 0.01)
	}
	assert.True(t, q.Finished())
}

func TestGapShorterThanCapacityIsFilled(t *testing.T) {
	_, h := newTestHandle(t, 60, 1)

	base := int64(1_000_000)
	res := h.StoreSample(base, 1.0, sample.FlagNone)
	assert.Equal(t, storeOK, res)

	// Skip 3 seconds, well inside the 60-slot ring.
	res = h.StoreSample(base+4, 2.0, sample.FlagNone)
	assert.Equal(t, storeGapFilled, res)

	for t2 := base + 1; t2 < base+4; t2++ {
		slot := timeToSlot(t2, h.updateEveryS, len(h.ring.data))
		assert.True(t, sample.IsEmpty(h.ring.data[slot]), "slot for t=%d should be empty", t2)
	}
}

func TestGapLargerThanCapacityFlushes(t *testing.T) {
	_, h := newTestHandle(t, 10, 1)

	base := int64(1_000_000)
	res := h.StoreSample(base, 1.0, sample.FlagNone)
	assert.Equal(t, storeOK, res)

	res = h.StoreSample(base+100, 2.0, sample.FlagNone)
	assert.Equal(t, storeFlushed, res)

	for i, s := range h.ring.data {
		slot := timeToSlot(base+100, h.updateEveryS, len(h.ring.data))
		if i == slot {
			assert.False(t, sample.IsEmpty(s))
			continue
		}
		assert.True(t, sample.IsEmpty(s), "slot %d should be empty after flush", i)
	}
}

func TestReleaseDropsHandleAtZeroRefcount(t *testing.T) {
	reg, h := newTestHandle(t, 10, 1)
	reg.Release(h)
	assert.Equal(t, 0, reg.Len())

	_, ok := reg.GetByID(h.ID())
	assert.False(t, ok)
}

func TestConcurrentAcquireReleaseDoesNotDoubleFree(t *testing.T) {
	reg, h := newTestHandle(t, 10, 1)
	id := h.ID()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 200; j++ {
				if hh, ok := reg.GetByID(id); ok {
					reg.Release(hh)
				}
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	reg.Release(h)
	assert.Equal(t, 0, reg.Len())
}

func TestRetentionWindowTracksWriteCursor(t *testing.T) {
	reg, h := newTestHandle(t, 5, 1)
	base := int64(2_000_000)
	for i := int64(0); i < 3; i++ {
		h.StoreSample(base+i, float64(i), sample.FlagNone)
	}

	first, last, ok := reg.Retention(h.ID())
	require.True(t, ok)
	assert.Equal(t, base, first)
	assert.Equal(t, base+2, last)
}

func TestQueryWindowBeyondRetentionClampsAndEmitsEmptyPoints(t *testing.T) {
	reg, h := newTestHandle(t, 10, 1)
	h.StoreSample(1000, 1.0, sample.FlagNone)

	q, ok := reg.NewQuery(h.ID(), 5000, 5002)
	require.True(t, ok)
	defer q.Close()

	p, more := q.Next()
	require.True(t, more)
	assert.True(t, p.Empty)
}

func TestQueryOnNeverWrittenMetricFails(t *testing.T) {
	reg := NewMetricRegistry()
	h := reg.GetOrCreate("never-written", &Descriptor{Capacity: 10, UpdateEverySec: 1})
	_, ok := reg.NewQuery(h.ID(), 0, 10)
	assert.False(t, ok)
}
