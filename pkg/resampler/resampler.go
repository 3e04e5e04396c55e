// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package resampler downsamples a raw query result to a target point
// count, for windows where the query iterator's native cadence
// produces far more points than a caller wants to render or transmit.
package resampler

import (
	"errors"
	"fmt"
	"math"
)

// SimpleResampler keeps every step'th value, where step = new_frequency /
// old_frequency. It is the cheap choice when the caller only needs a
// coarser grid, not a visually faithful downsample.
func SimpleResampler(data []float64, oldFrequency, newFrequency int64) ([]float64, error) {
	if oldFrequency == 0 || newFrequency == 0 {
		return nil, errors.New("either old or new frequency is set to 0")
	}
	if newFrequency%oldFrequency != 0 {
		return nil, errors.New("new sampling frequency should be a multiple of the old frequency")
	}

	step := int(newFrequency / oldFrequency)
	newLen := len(data) / step
	if newLen == 0 || len(data) < 100 || newLen >= len(data) {
		return data, nil
	}

	newData := make([]float64, newLen)
	for i := 0; i < newLen; i++ {
		newData[i] = data[i*step]
	}
	return newData, nil
}

// LargestTriangleThreeBucket downsamples data to roughly
// len(data)/(new_frequency/old_frequency) points using the LTTB
// algorithm, which picks the point in each bucket that forms the
// largest triangle with the previously chosen point and the next
// bucket's average, preserving visual shape better than naive
// decimation.
//
// Inspired by one of the algorithms from https://skemman.is/bitstream/1946/15343/3/SS_MSthesis.pdf
// Adapted from https://github.com/haoel/downsampling/blob/master/core/lttb.go
func LargestTriangleThreeBucket(data []float64, oldFrequency, newFrequency int) ([]float64, int, error) {
	if oldFrequency == 0 || newFrequency == 0 {
		return data, oldFrequency, nil
	}
	if newFrequency%oldFrequency != 0 {
		return nil, 0, fmt.Errorf("new sampling frequency %d should be a multiple of the old frequency %d", newFrequency, oldFrequency)
	}

	step := newFrequency / oldFrequency
	newDataLength := len(data) / step
	if newDataLength == 0 || len(data) < 100 || newDataLength >= len(data) {
		return data, oldFrequency, nil
	}

	newData := make([]float64, 0, newDataLength)

	// Bucket size. Leave room for start and end data points.
	bucketSize := float64(len(data)-2) / float64(newDataLength-2)

	newData = append(newData, data[0]) // Always add the first point.

	// Three pointers:
	// bucketLow    - current bucket's beginning location
	// bucketMiddle - current bucket's ending location, also the
	//                beginning location of the next bucket
	// bucketHigh   - the next bucket's ending location
	bucketLow := 1
	bucketMiddle := int(math.Floor(bucketSize)) + 1

	var prevMaxAreaPoint int

	for i := 0; i < newDataLength-2; i++ {
		bucketHigh := int(math.Floor(float64(i+2)*bucketSize)) + 1
		if bucketHigh >= len(data)-1 {
			bucketHigh = len(data) - 2
		}

		avgPointX, avgPointY := calculateAverageDataPoint(data[bucketMiddle:bucketHigh+1], int64(bucketMiddle))

		currBucketStart := bucketLow
		currBucketEnd := bucketMiddle

		pointX := prevMaxAreaPoint
		pointY := data[prevMaxAreaPoint]

		maxArea := -1.0
		var maxAreaPoint int
		for ; currBucketStart < currBucketEnd; currBucketStart++ {
			area := calculateTriangleArea(float64(pointX), pointY, avgPointX, avgPointY, float64(currBucketStart), data[currBucketStart])
			if area > maxArea {
				maxArea = area
				maxAreaPoint = currBucketStart
			}
		}

		newData = append(newData, data[maxAreaPoint])
		prevMaxAreaPoint = maxAreaPoint

		bucketLow = bucketMiddle
		bucketMiddle = bucketHigh
	}

	newData = append(newData, data[len(data)-1]) // Always add the last point.

	return newData, newFrequency, nil
}
