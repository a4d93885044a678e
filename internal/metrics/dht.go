// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DHTAttachmentTransitions counts attachment state machine
	// transitions, labeled by the state entered.
	DHTAttachmentTransitions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dht",
			Name:      "attachment_transitions_total",
			Help:      "Total number of DHT attachment state transitions, by state entered",
		},
		[]string{"state"},
	)

	// DHTAttachmentState is a gauge reflecting the current attachment
	// state as an enum index (see dhtclient.AttachmentState).
	DHTAttachmentState = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "dht",
			Name:      "attachment_state",
			Help:      "Current DHT attachment state, as dhtclient.AttachmentState's integer value",
		},
	)

	// DHTOperationDuration tracks DHT RPC latency by operation.
	DHTOperationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dht",
			Name:      "operation_duration_seconds",
			Help:      "Duration of DHT client operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
		},
		[]string{"operation", "status"}, // put, get; ok, error
	)

	// DHTAttachRetries counts attach attempts beyond the first.
	DHTAttachRetries = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dht",
			Name:      "attach_retries_total",
			Help:      "Total number of DHT attach retries performed",
		},
	)
)
