// metrics.go
//
// Hierarchical settings service for jam-build applications
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of settingsdb.
// settingsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// settingsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with settingsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package services

import (
	"context"

	"github.com/localnerve/settingsdb/internal/settings"
	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics counts settings cache traffic by operation and result.
type CacheMetrics struct {
	requests *prometheus.CounterVec
}

// NewCacheMetrics registers the settings cache counters with reg.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "settingsdb",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Settings cache requests by operation and result.",
		}, []string{"backend", "op", "result"}),
	}
	reg.MustRegister(m.requests)
	return m
}

// Instrument wraps cache so every call is counted under backend.
func (m *CacheMetrics) Instrument(backend string, cache settings.Cache) *InstrumentedCache {
	return &InstrumentedCache{Cache: cache, backend: backend, metrics: m}
}

// InstrumentedCache is a settings.Cache that reports to CacheMetrics.
type InstrumentedCache struct {
	settings.Cache
	backend string
	metrics *CacheMetrics
}

func (c *InstrumentedCache) count(op, result string) {
	c.metrics.requests.WithLabelValues(c.backend, op, result).Inc()
}

// Get implements settings.Cache.
func (c *InstrumentedCache) Get(ctx context.Context, key string) (string, bool, error) {
	value, ok, err := c.Cache.Get(ctx, key)
	switch {
	case err != nil:
		c.count("get", "error")
	case ok:
		c.count("get", "hit")
	default:
		c.count("get", "miss")
	}
	return value, ok, err
}

// Set implements settings.Cache.
func (c *InstrumentedCache) Set(ctx context.Context, key, value string) error {
	err := c.Cache.Set(ctx, key, value)
	c.count("set", result(err))
	return err
}

// Add implements settings.Cache.
func (c *InstrumentedCache) Add(ctx context.Context, key, value string) (bool, error) {
	added, err := c.Cache.Add(ctx, key, value)
	switch {
	case err != nil:
		c.count("add", "error")
	case added:
		c.count("add", "stored")
	default:
		c.count("add", "exists")
	}
	return added, err
}

// Delete implements settings.Cache.
func (c *InstrumentedCache) Delete(ctx context.Context, key string) error {
	err := c.Cache.Delete(ctx, key)
	c.count("delete", result(err))
	return err
}

// Ping forwards to the wrapped cache when it can be pinged.
func (c *InstrumentedCache) Ping(ctx context.Context) error {
	if p, ok := c.Cache.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
