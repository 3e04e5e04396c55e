// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resampler

import (
	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
)

// Series is a query result after any requested downsampling: one value
// per tick at IntervalS spacing, NaN for empty points.
type Series struct {
	IntervalS int64
	Values    []float64
}

// FetchSeries drains a Query to completion and, if maxPoints is
// positive and the raw series exceeds it, downsamples it with LTTB
// onto an interval of nativeIntervalS * len / maxPoints (rounded
// down). The result can still hold more than maxPoints values: when
// that interval rounds down to nativeIntervalS, or the raw series has
// fewer than 100 points, the series is returned unchanged. This mirrors the
// teacher's own APIQuery/FetchData facade shape, adapted to read from
// a ringstore.Query instead of a buffer-chain store.
func FetchSeries(q *ringstore.Query, nativeIntervalS int64, maxPoints int) (Series, error) {
	var values []float64
	for {
		p, more := q.Next()
		if !more {
			break
		}
		if p.Empty {
			values = append(values, nanValue())
			continue
		}
		values = append(values, p.Value)
	}

	if maxPoints <= 0 || len(values) <= maxPoints || nativeIntervalS <= 0 {
		return Series{IntervalS: nativeIntervalS, Values: values}, nil
	}

	targetIntervalS := nativeIntervalS * int64(len(values)) / int64(maxPoints)
	if targetIntervalS <= nativeIntervalS {
		return Series{IntervalS: nativeIntervalS, Values: values}, nil
	}

	downsampled, newFreq, err := LargestTriangleThreeBucket(values, int(nativeIntervalS), int(targetIntervalS))
	if err != nil {
		return Series{}, err
	}
	return Series{IntervalS: int64(newFreq), Values: downsampled}, nil
}

func nanValue() float64 {
	var zero float64
	return zero / zero
}
