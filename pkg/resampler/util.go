// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package resampler

import "math"

func calculateTriangleArea(paX, paY, pbX, pbY, pcX, pcY float64) float64 {
	area := ((paX-pcX)*(pbY-paY) - (paX-pbX)*(pcY-paY)) * 0.5
	return math.Abs(area)
}

func calculateAverageDataPoint(points []float64, xStart int64) (avgX, avgY float64) {
	nan := false
	for _, point := range points {
		avgX += float64(xStart)
		avgY += point
		xStart++
		if math.IsNaN(point) {
			nan = true
		}
	}

	l := float64(len(points))
	avgX /= l
	avgY /= l

	if nan {
		return avgX, math.NaN()
	}
	return avgX, avgY
}
