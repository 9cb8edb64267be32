// Package prometheus renders token engine metrics as Prometheus text.
//
// Counters are exported as labeled families (goissuer_issue_total{outcome},
// goissuer_renew_total{outcome}, goissuer_failures_total{kind}); the Issue
// latency histogram is goissuer_issue_latency_seconds. Callers mount
// [Exporter.Handler]; nothing is registered globally.
package prometheus
