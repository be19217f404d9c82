// Copyright 2023 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package sql

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "relc"

// CacheMetrics counts the activity of a resolution cache.
type CacheMetrics struct {
	Hits          prometheus.Counter
	Misses        prometheus.Counter
	Invalidations prometheus.Counter
}

// NewCacheMetrics creates the counters of the named cache and registers them
// with reg when it is not nil.
func NewCacheMetrics(reg prometheus.Registerer, cache string) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: cache,
			Name:      "hits_total",
			Help:      "Number of lookups served from the cache.",
		}),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: cache,
			Name:      "misses_total",
			Help:      "Number of lookups not found in the cache.",
		}),
		Invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: cache,
			Name:      "invalidations_total",
			Help:      "Number of entries evicted because the catalog changed.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Hits, m.Misses, m.Invalidations)
	}
	return m
}
