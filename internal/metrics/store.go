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
	// PublishedApps counts successful publishes.
	PublishedApps = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "published_total",
			Help:      "Total number of apps successfully published",
		},
	)

	// PublishBytes tracks the size of published package content.
	PublishBytes = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "publish_bytes",
			Help:      "Size in bytes of published package content",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 12),
		},
	)

	// DownloadedApps counts successful downloads, by source.
	DownloadedApps = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "downloaded_total",
			Help:      "Total number of apps successfully downloaded, by lookup source",
		},
		[]string{"source"}, // dht, legacy_fallback
	)

	// ChunksFetched counts individual chunk record fetches during
	// reassembly.
	ChunksFetched = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "chunks_fetched_total",
			Help:      "Total number of content chunks fetched during package reassembly",
		},
	)
)
