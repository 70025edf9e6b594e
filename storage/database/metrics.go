// Copyright 2018 The klaytn Authors
// This file is part of the klaytn library.
//
// The klaytn library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The klaytn library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the klaytn library. If not, see <http://www.gnu.org/licenses/>.

package database

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Storage engine metrics, exported the same way the teacher exposes
// its go-metrics registry to Prometheus (cmd/kcn/main.go's
// prometheusmetrics.NewPrometheusProvider), but registered directly
// against client_golang since this package owns no outer metrics
// registry of its own.
var (
	readQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cuprated",
		Subsystem: "storage",
		Name:      "read_queue_depth",
		Help:      "Number of read requests currently queued for the read pool.",
	})
	writeQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "cuprated",
		Subsystem: "storage",
		Name:      "write_queue_depth",
		Help:      "Number of write requests currently queued for the writer actor.",
	})
	readLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cuprated",
		Subsystem: "storage",
		Name:      "read_request_seconds",
		Help:      "Time spent servicing a single read-pool request.",
		Buckets:   prometheus.DefBuckets,
	})
	writeLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cuprated",
		Subsystem: "storage",
		Name:      "write_request_seconds",
		Help:      "Time spent servicing a single writer-actor request.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(readQueueDepth, writeQueueDepth, readLatency, writeLatency)
}

func observeRead(queued int, start time.Time) {
	readQueueDepth.Set(float64(queued))
	readLatency.Observe(time.Since(start).Seconds())
}

func observeWrite(queued int, start time.Time) {
	writeQueueDepth.Set(float64(queued))
	writeLatency.Observe(time.Since(start).Seconds())
}
