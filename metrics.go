package goIssuer

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricIssueSuccess counts tokens issued from credentials.
	MetricIssueSuccess MetricID = iota
	// MetricIssueUnauthorized counts issuance attempts that ended Unauthorized.
	MetricIssueUnauthorized
	// MetricRenewSuccess counts renewed tokens.
	MetricRenewSuccess
	// MetricRenewUnauthorized counts renewal attempts that ended Unauthorized.
	MetricRenewUnauthorized
	// MetricVerificationMiss counts credential lookups that resolved no identity.
	MetricVerificationMiss
	// MetricVerifierError counts identity backend failures.
	MetricVerifierError
	// MetricCanceled counts calls abandoned through context cancellation.
	MetricCanceled
	// MetricClaimConversionError counts malformed renewal claims.
	MetricClaimConversionError
	// MetricSigningConfigurationError counts signing key failures.
	MetricSigningConfigurationError
	// MetricTokenFormatError counts unrepresentable claim payloads.
	MetricTokenFormatError
	// MetricJTIGenerationError counts token identifier source failures.
	MetricJTIGenerationError
	// MetricPolicyRejected counts issuances refused by the missing-record policy.
	MetricPolicyRejected
	// MetricAuditDropped counts audit events that never reached the sink.
	MetricAuditDropped
	// MetricIssueLatency is the end-to-end Issue latency histogram.
	MetricIssueLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters. A nil *Metrics is a valid no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates counters according to cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only MetricIssueLatency is a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricIssueLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters; histograms are included only when latency is enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricIssueLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricIssueLatency].buckets[i])
		}
		s.Histograms[MetricIssueLatency] = buckets
	}

	return s
}

func failureMetric(kind FailureKind) (MetricID, bool) {
	switch kind {
	case FailureVerificationMiss:
		return MetricVerificationMiss, true
	case FailureVerifierError:
		return MetricVerifierError, true
	case FailureCanceled:
		return MetricCanceled, true
	case FailureClaimConversion:
		return MetricClaimConversionError, true
	case FailureSigningConfiguration:
		return MetricSigningConfigurationError, true
	case FailureTokenFormat:
		return MetricTokenFormatError, true
	case FailureJTIGeneration:
		return MetricJTIGenerationError, true
	case FailurePolicyRejected:
		return MetricPolicyRejected, true
	default:
		return 0, false
	}
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
