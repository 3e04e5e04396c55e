// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved. This file is part of nd-agent-core.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package nats

import (
	"fmt"
	"time"

	cclog "github.com/ClusterCockpit/cc-lib/v2/ccLogger"
	influx "github.com/influxdata/line-protocol/v2/lineprotocol"

	"github.com/ClusterCockpit/nd-agent-core/pkg/ringstore"
	"github.com/ClusterCockpit/nd-agent-core/pkg/sample"
)

// StreamSubject returns the NATS subject a collector publishes newly
// appended samples for metricID to, per SPEC_FULL §6.
func StreamSubject(metricID ringstore.MetricId) string {
	return fmt.Sprintf("agent.stream.%d", metricID)
}

// StreamSample is one line-protocol-encoded point published on a
// StreamSubject: one measurement ("sample"), tagged with the chart and
// dimension it belongs to, one "value" field, and the flag bits
// carried as boolean fields so a subscriber can reconstruct quality
// without re-parsing the packed word.
type StreamSample struct {
	Chart      string
	Dimension  string
	TimestampS int64
	Value      float64
	Flags      sample.Flags
}

// EncodeStreamSample serializes s as a single InfluxDB line-protocol
// line, grounded on the decode-side field layout the teacher used for
// its own NATS line-protocol ingestion (measurement + tags + fields +
// timestamp).
func EncodeStreamSample(s StreamSample) ([]byte, error) {
	var enc influx.Encoder
	enc.SetPrecision(influx.Nanosecond)

	enc.StartLine("sample")
	enc.AddTag("chart", s.Chart)
	enc.AddTag("dimension", s.Dimension)
	enc.AddField("value", influx.MustNewValue(s.Value))
	enc.AddField("reset", influx.MustNewValue(s.Flags&sample.FlagReset != 0))
	enc.AddField("partial", influx.MustNewValue(s.Flags&sample.FlagPartial != 0))
	enc.AddField("anomalous", influx.MustNewValue(s.Flags&sample.FlagAnomalous != 0))
	enc.EndLine(time.Unix(s.TimestampS, 0))

	if err := enc.Err(); err != nil {
		return nil, fmt.Errorf("encode stream sample: %w", err)
	}
	return enc.Bytes(), nil
}

// DecodeStreamSample decodes a single line-protocol-encoded point
// published on a StreamSubject. Grounded on the teacher's own
// line-protocol decode loop (measurement, then tags, then fields,
// then timestamp), rewritten against StreamSample instead of a
// generic cross-package message type.
func DecodeStreamSample(dec *influx.Decoder) (StreamSample, error) {
	var out StreamSample

	if _, err := dec.Measurement(); err != nil {
		return out, err
	}

	for {
		key, value, err := dec.NextTag()
		if err != nil {
			return out, err
		}
		if key == nil {
			break
		}
		switch string(key) {
		case "chart":
			out.Chart = string(value)
		case "dimension":
			out.Dimension = string(value)
		}
	}

	for {
		key, value, err := dec.NextField()
		if err != nil {
			return out, err
		}
		if key == nil {
			break
		}
		switch string(key) {
		case "value":
			if value.Kind() == influx.Float {
				out.Value = value.FloatV()
			}
		case "reset":
			if value.Kind() == influx.Bool && value.BoolV() {
				out.Flags |= sample.FlagReset
			}
		case "partial":
			if value.Kind() == influx.Bool && value.BoolV() {
				out.Flags |= sample.FlagPartial
			}
		case "anomalous":
			if value.Kind() == influx.Bool && value.BoolV() {
				out.Flags |= sample.FlagAnomalous
			}
		}
	}

	t, err := dec.Time(influx.Nanosecond, time.Time{})
	if err != nil {
		return out, err
	}
	out.TimestampS = t.Unix()
	return out, nil
}

// PublishSample best-effort publishes a collected point for
// replication to peer agents. Failures are logged and otherwise
// ignored — this path is never part of the durability story (the RAM
// tier's own write already succeeded before PublishSample is called).
func (c *Client) PublishSample(metricID ringstore.MetricId, s StreamSample) {
	body, err := EncodeStreamSample(s)
	if err != nil {
		cclog.Warnf("NATS: failed to encode stream sample for metric %d: %v", metricID, err)
		return
	}
	if err := c.Publish(StreamSubject(metricID), body); err != nil {
		cclog.Warnf("NATS: failed to publish stream sample for metric %d: %v", metricID, err)
	}
}
