package observability

import (
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	nativecommon "gigchain/native/common"
)

type moduleMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	custody    *prometheus.GaugeVec
	throttles  *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording custody
// module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gigchain",
				Subsystem: "module",
				Name:      "operations_total",
				Help:      "Total state-changing module operations segmented by module, operation and outcome.",
			}, []string{"module", "operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "gigchain",
				Subsystem: "module",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for module operations including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "operation"}),
			custody: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "gigchain",
				Name:      "custody_balance",
				Help:      "Value currently held in custody by each module, in base units.",
			}, []string{"module"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "gigchain",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of API requests rejected by throttling policies.",
			}, []string{"route", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.operations,
			moduleRegistry.latency,
			moduleRegistry.custody,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of one module operation.
func (m *moduleMetrics) Observe(module, operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	module = labelOrUnknown(module)
	operation = labelOrUnknown(operation)
	m.operations.WithLabelValues(module, operation, Outcome(err)).Inc()
	m.latency.WithLabelValues(module, operation).Observe(duration.Seconds())
}

// SetCustody publishes the custody total of a module.
func (m *moduleMetrics) SetCustody(module string, amount *uint256.Int) {
	if m == nil || amount == nil {
		return
	}
	value, _ := new(big.Float).SetInt(amount.ToBig()).Float64()
	m.custody.WithLabelValues(labelOrUnknown(module)).Set(value)
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" so dashboards remain consistent.
func (m *moduleMetrics) RecordThrottle(route, reason string) {
	if m == nil {
		return
	}
	m.throttles.WithLabelValues(labelOrUnknown(route), labelOrUnknown(reason)).Inc()
}

var outcomeCategories = []struct {
	err   error
	label string
}{
	{nativecommon.ErrModulePaused, "paused"},
	{nativecommon.ErrReentrantCall, "reentrant"},
	{nativecommon.ErrUnauthorized, "unauthorized"},
	{nativecommon.ErrNotFound, "not_found"},
	{nativecommon.ErrAlreadyExists, "already_exists"},
	{nativecommon.ErrInvalidState, "invalid_state"},
	{nativecommon.ErrDeadline, "deadline"},
	{nativecommon.ErrInvalidValue, "invalid_value"},
	{nativecommon.ErrCustody, "custody"},
}

// Outcome maps an operation error onto a bounded label set.
func Outcome(err error) string {
	if err == nil {
		return "success"
	}
	for _, c := range outcomeCategories {
		if errors.Is(err, c.err) {
			return c.label
		}
	}
	return "internal"
}

func labelOrUnknown(v string) string {
	if trimmed := strings.TrimSpace(v); trimmed != "" {
		return trimmed
	}
	return "unknown"
}
