// Copyright (c) 2016 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package orchestrator

import (
	"context"
	"encoding/json"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/prometheus/client_golang/prometheus"
)

// cpuUsageGauge/memoryUsageGauge back the `events --stats` surface: a
// lightweight metrics collector keyed by container id, populated only when
// cgroups accounting is available (§1 puts full accounting out of scope, so
// readings stay zero-valued until something sets them) rather than a second,
// parallel stats representation.
var (
	cpuUsageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cc_vmrt_container_cpu_usage_nanoseconds",
		Help: "Cumulative CPU time consumed by the container, in nanoseconds.",
	}, []string{"id"})
	memoryUsageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cc_vmrt_container_memory_usage_bytes",
		Help: "Current memory usage of the container, in bytes.",
	}, []string{"id"})
)

// StatsResources is the `cpu_stats`/`memory_stats` payload of an events
// --stats reading.
type StatsResources struct {
	CPU    map[string]interface{} `json:"cpu_stats"`
	Memory map[string]interface{} `json:"memory_stats"`
}

// readGauge extracts a single label's current value from a GaugeVec without
// standing up a full registry/scrape round trip.
func readGauge(vec *prometheus.GaugeVec, id string) float64 {
	var m dto.Metric
	if err := vec.WithLabelValues(id).Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

// Stats is one `events --stats` reading. The original C source set two
// distinct JSON fields both named "id" in get_container_stats — a bug, not
// an intentional second field (§9 Open Question); this keeps exactly one.
type Stats struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Resources StatsResources `json:"data"`
}

// Stats reads a single stats snapshot for id (§4.7/§6.1 "events --stats").
func (o *Orchestrator) Stats(id string) (*Stats, error) {
	if _, err := o.Store.Load(id); err != nil {
		return nil, err
	}
	return &Stats{
		Type: "stats",
		ID:   id,
		Resources: StatsResources{
			CPU:    map[string]interface{}{"usage_nanos": readGauge(cpuUsageGauge, id)},
			Memory: map[string]interface{}{"usage_bytes": readGauge(memoryUsageGauge, id)},
		},
	}, nil
}

// WatchStats implements `events --stats --interval N`: it calls emit with a
// fresh reading every interval until ctx is cancelled. interval <= 0 means
// print once and return, matching the original's "interval 0 shows once".
func (o *Orchestrator) WatchStats(ctx context.Context, id string, interval time.Duration, emit func(*Stats) error) error {
	st, err := o.Stats(id)
	if err != nil {
		return err
	}
	if err := emit(st); err != nil {
		return err
	}
	if interval <= 0 {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st, err := o.Stats(id)
			if err != nil {
				return err
			}
			if err := emit(st); err != nil {
				return err
			}
		}
	}
}

// MarshalStats is a convenience wrapper matching the teacher's
// json.MarshalIndent-to-stdout idiom used by the `state` subcommand.
func MarshalStats(st *Stats) ([]byte, error) {
	return json.MarshalIndent(st, "", "  ")
}
