package internaldefs

import (
	goIssuer "github.com/MrEthical07/goIssuer"
)

// Series is one labeled member of a counter family.
type Series struct {
	ID         goIssuer.MetricID
	LabelValue string
}

// CounterFamily groups engine counters exported under one name and one label.
type CounterFamily struct {
	Name   string
	Help   string
	Label  string
	Series []Series
}

// HistogramDef names an engine histogram.
type HistogramDef struct {
	ID   goIssuer.MetricID
	Name string
	Help string
}

// Counter is an engine counter exported without labels.
type Counter struct {
	ID   goIssuer.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter for audit events that never reached the sink.
const AuditDroppedName = "goissuer_audit_dropped_total"

// Counters lists unlabeled counters, rendered after the families.
var Counters = []Counter{
	{ID: goIssuer.MetricAuditDropped, Name: AuditDroppedName, Help: "Audit events dropped under backpressure or after close."},
}

// CounterFamilies lists every exported counter in render order.
var CounterFamilies = []CounterFamily{
	{
		Name:  "goissuer_issue_total",
		Help:  "Token issuance attempts by outcome.",
		Label: "outcome",
		Series: []Series{
			{ID: goIssuer.MetricIssueSuccess, LabelValue: "success"},
			{ID: goIssuer.MetricIssueUnauthorized, LabelValue: "unauthorized"},
		},
	},
	{
		Name:  "goissuer_renew_total",
		Help:  "Token renewal attempts by outcome.",
		Label: "outcome",
		Series: []Series{
			{ID: goIssuer.MetricRenewSuccess, LabelValue: "success"},
			{ID: goIssuer.MetricRenewUnauthorized, LabelValue: "unauthorized"},
		},
	},
	{
		Name:  "goissuer_failures_total",
		Help:  "Unauthorized outcomes by failure kind.",
		Label: "kind",
		Series: []Series{
			{ID: goIssuer.MetricVerificationMiss, LabelValue: goIssuer.FailureVerificationMiss.String()},
			{ID: goIssuer.MetricVerifierError, LabelValue: goIssuer.FailureVerifierError.String()},
			{ID: goIssuer.MetricCanceled, LabelValue: goIssuer.FailureCanceled.String()},
			{ID: goIssuer.MetricClaimConversionError, LabelValue: goIssuer.FailureClaimConversion.String()},
			{ID: goIssuer.MetricSigningConfigurationError, LabelValue: goIssuer.FailureSigningConfiguration.String()},
			{ID: goIssuer.MetricTokenFormatError, LabelValue: goIssuer.FailureTokenFormat.String()},
			{ID: goIssuer.MetricJTIGenerationError, LabelValue: goIssuer.FailureJTIGeneration.String()},
			{ID: goIssuer.MetricPolicyRejected, LabelValue: goIssuer.FailurePolicyRejected.String()},
		},
	},
}

// HistogramDefs lists exported histograms.
var HistogramDefs = []HistogramDef{
	{ID: goIssuer.MetricIssueLatency, Name: "goissuer_issue_latency_seconds", Help: "End-to-end Issue latency."},
}

// HistogramBounds are the upper bounds, in seconds, of the engine's eight latency buckets.
var HistogramBounds = [8]string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form exporters expect.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i, n := range raw {
		running += n
		out[i] = running
	}
	return out
}
