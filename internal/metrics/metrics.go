// SPDX-License-Identifier: MPL-2.0

// Package metrics holds the Prometheus counters kpmd records for helper
// invocations, lifecycle operations and watcher activity.
//
// Counters live in a private registry owned by each Metrics value, so tests
// and multiple daemons in one process never collide on registration. A nil
// *Metrics is a valid no-op receiver.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// ResultSuccess marks an operation that completed.
	ResultSuccess = "success"
	// ResultFailure marks an operation the helper (or filesystem) rejected.
	ResultFailure = "failure"
	// ResultError marks an operation that could not be attempted at all,
	// such as a helper process that failed to spawn.
	ResultError = "error"

	namespace = "kpmd"
)

// Metrics bundles the kpmd counters and the registry they are registered in.
type Metrics struct {
	registry          *prometheus.Registry
	helperInvocations *prometheus.CounterVec
	lifecycleOps      *prometheus.CounterVec
	watchEvents       *prometheus.CounterVec
	watchErrors       prometheus.Counter
}

// New creates a Metrics value with all counters registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		helperInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "helper_invocations_total",
				Help:      "Helper subprocess invocations by operation and result.",
			},
			[]string{"op", "result"},
		),
		lifecycleOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_operations_total",
				Help:      "Module lifecycle operations by operation and result.",
			},
			[]string{"op", "result"},
		),
		watchEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_events_total",
				Help:      "Filesystem events received from the module directory by kind.",
			},
			[]string{"kind"},
		),
		watchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_errors_total",
			Help:      "Non-fatal errors reported by the filesystem watcher.",
		}),
	}

	m.registry.MustRegister(m.helperInvocations, m.lifecycleOps, m.watchEvents, m.watchErrors)
	return m
}

// Registry returns the registry holding the kpmd counters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// HelperInvocation counts one helper subprocess call.
func (m *Metrics) HelperInvocation(op, result string) {
	if m == nil {
		return
	}
	m.helperInvocations.WithLabelValues(op, result).Inc()
}

// LifecycleOperation counts one load or unload performed by the lifecycle layer.
func (m *Metrics) LifecycleOperation(op, result string) {
	if m == nil {
		return
	}
	m.lifecycleOps.WithLabelValues(op, result).Inc()
}

// WatchEvent counts one classified filesystem event.
func (m *Metrics) WatchEvent(kind string) {
	if m == nil {
		return
	}
	m.watchEvents.WithLabelValues(kind).Inc()
}

// WatchError counts one non-fatal watcher error.
func (m *Metrics) WatchError() {
	if m == nil {
		return
	}
	m.watchErrors.Inc()
}

// Summary gathers every counter with a non-zero value into a flat map keyed
// by "name{label=value,...}". It is used for the shutdown log line.
func (m *Metrics) Summary() (map[string]float64, error) {
	out := make(map[string]float64)
	if m == nil {
		return out, nil
	}

	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			counter := metric.GetCounter()
			if counter == nil || counter.GetValue() == 0 {
				continue
			}

			labels := make([]string, 0, len(metric.GetLabel()))
			for _, lp := range metric.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			sort.Strings(labels)

			key := mf.GetName()
			if len(labels) > 0 {
				key += "{" + strings.Join(labels, ",") + "}"
			}
			out[key] = counter.GetValue()
		}
	}

	return out, nil
}
