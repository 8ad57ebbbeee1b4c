// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks how many entries are pending across all work
	// queues at the moment of the last supervisor poll.
	QueueDepth = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "depth",
			Help:      "Number of pending entries across all queues",
		},
	)

	// JobsProcessed tracks processor outcomes by success/failure.
	JobsProcessed = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "jobs_processed_total",
			Help:      "Total number of work queue jobs processed",
		},
		[]string{"status"}, // success, failure
	)

	// JobsDeduplicated tracks entries skipped because their identity was
	// already in flight.
	JobsDeduplicated = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "jobs_deduplicated_total",
			Help:      "Total number of entries skipped for an in-flight identity",
		},
	)

	// JobProcessingDuration tracks processor call latency.
	JobProcessingDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workqueue",
			Name:      "job_duration_seconds",
			Help:      "Work queue job processing duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
