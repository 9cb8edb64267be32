package goIssuer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goIssuer/claims"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{})}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func buildAuditTestEngine(t *testing.T, audit AuditConfig, sink AuditSink) *Engine {
	t.Helper()

	cfg := testConfig(newStepClock(time.Second))
	cfg.Audit = audit
	engine, err := New().
		WithConfig(cfg).
		WithVerifier(&fakeVerifier{records: map[Credentials]IdentityRecord{aliceCreds: aliceRecord}}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return engine
}

func receiveEvent(t *testing.T, sink *ChannelSink) AuditEvent {
	t.Helper()
	select {
	case ev := <-sink.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for audit event")
	}
	return AuditEvent{}
}

func TestAuditDisabledNoSinkCalls(t *testing.T) {
	sink := &countingSink{}
	engine := buildAuditTestEngine(t, AuditConfig{Enabled: false}, sink)

	_, _ = engine.Issue(context.Background(), aliceCreds)
	engine.Close()

	if sink.Count() != 0 {
		t.Fatalf("expected no audit sink calls when disabled, got %d", sink.Count())
	}
}

func TestAuditIssueEvents(t *testing.T) {
	sink := NewChannelSink(8)
	engine := buildAuditTestEngine(t, AuditConfig{Enabled: true, BufferSize: 8}, sink)
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "203.0.113.9")
	if _, err := engine.Issue(ctx, aliceCreds); err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	ok := receiveEvent(t, sink)
	if ok.Event != AuditTokenIssued || ok.Operation != "issue" || !ok.Success || ok.UserID != "1" || ok.IP != "203.0.113.9" {
		t.Fatalf("unexpected success event: %+v", ok)
	}
	if ok.JTI == "" {
		t.Fatal("success event must carry the jti")
	}
	if ok.Timestamp.IsZero() || ok.Timestamp.Location() != time.UTC {
		t.Fatalf("event must be stamped in UTC, got %v", ok.Timestamp)
	}

	_, _ = engine.Issue(ctx, Credentials{Username: "bob", Password: "pw"})
	miss := receiveEvent(t, sink)
	if miss.Event != AuditTokenIssueFailed || miss.Success || miss.Kind != "verification_miss" || miss.JTI != "" {
		t.Fatalf("unexpected failure event: %+v", miss)
	}
}

func TestAuditRenewEvents(t *testing.T) {
	sink := NewChannelSink(8)
	engine := buildAuditTestEngine(t, AuditConfig{Enabled: true, BufferSize: 8}, sink)
	defer engine.Close()

	if _, err := engine.Renew(context.Background(), claims.MapPrincipal{claims.TypePrimarySID: "42"}); err != nil {
		t.Fatalf("Renew failed: %v", err)
	}
	if ev := receiveEvent(t, sink); ev.Event != AuditTokenRenewed || ev.Operation != "renew" || ev.UserID != "42" {
		t.Fatalf("unexpected renew event: %+v", ev)
	}

	_, _ = engine.Renew(context.Background(), claims.MapPrincipal{claims.TypePrimarySID: "x"})
	if ev := receiveEvent(t, sink); ev.Event != AuditTokenRenewFailed || ev.Kind != "claim_conversion" {
		t.Fatalf("unexpected renew failure event: %+v", ev)
	}
}

func TestAuditDropIfFullCountsDrops(t *testing.T) {
	sink := newGateSink()
	engine := buildAuditTestEngine(t, AuditConfig{Enabled: true, BufferSize: 1, DropIfFull: true}, sink)

	for i := 0; i < 20; i++ {
		_, _ = engine.Issue(context.Background(), aliceCreds)
	}
	if engine.MetricsSnapshot().Counters[MetricAuditDropped] == 0 {
		t.Fatal("expected dropped audit events under backpressure")
	}

	close(sink.gate)
	engine.Close()
}

func TestAuditCloseFlushesBuffered(t *testing.T) {
	sink := &countingSink{}
	engine := buildAuditTestEngine(t, AuditConfig{Enabled: true, BufferSize: 64}, sink)

	for i := 0; i < 10; i++ {
		_, _ = engine.Issue(context.Background(), aliceCreds)
	}
	engine.Close()

	if got := sink.Count(); got != 10 {
		t.Fatalf("expected 10 flushed events, got %d", got)
	}
}

func TestJSONWriterSinkOmitsSecrets(t *testing.T) {
	var buf bytes.Buffer
	engine := buildAuditTestEngine(t, AuditConfig{Enabled: true, BufferSize: 4}, NewJSONWriterSink(&buf))

	tok, err := engine.Issue(context.Background(), aliceCreds)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	engine.Close()

	line := strings.TrimSpace(buf.String())
	var ev AuditEvent
	if err := json.Unmarshal([]byte(line), &ev); err != nil {
		t.Fatalf("invalid audit json %q: %v", line, err)
	}
	if ev.Event != AuditTokenIssued || ev.Operation != "issue" || ev.JTI == "" || ev.Timestamp.IsZero() {
		t.Fatalf("unexpected event %+v", ev)
	}
	for _, secret := range []string{aliceCreds.Password + `"`, tok.AccessToken, testSecret} {
		if strings.Contains(line, secret) {
			t.Fatalf("audit line leaks %q", secret)
		}
	}
}

func TestAuditTrailRecordAfterCloseCountsDrop(t *testing.T) {
	sink := &countingSink{}
	metrics := NewMetrics(MetricsConfig{Enabled: true})
	trail := newAuditTrail(AuditConfig{Enabled: true, BufferSize: 4}, sink, time.Now, metrics)

	trail.record(context.Background(), opIssue, AuditEvent{Event: AuditTokenIssued})
	trail.close()
	trail.close()
	trail.record(context.Background(), opIssue, AuditEvent{Event: AuditTokenIssued})

	if got := sink.Count(); got != 1 {
		t.Fatalf("expected 1 delivered event, got %d", got)
	}
	if got := metrics.Value(MetricAuditDropped); got != 1 {
		t.Fatalf("expected 1 dropped event, got %d", got)
	}
}

func TestAuditTrailCloseRaceLosesNothingSilently(t *testing.T) {
	for _, dropIfFull := range []bool{false, true} {
		sink := &countingSink{}
		metrics := NewMetrics(MetricsConfig{Enabled: true})
		trail := newAuditTrail(AuditConfig{Enabled: true, BufferSize: 2, DropIfFull: dropIfFull}, sink, time.Now, metrics)

		const writers, perWriter = 8, 50
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for j := 0; j < perWriter; j++ {
					trail.record(context.Background(), opRenew, AuditEvent{Event: AuditTokenRenewed})
				}
			}()
		}
		close(start)
		trail.close()
		wg.Wait()

		delivered := uint64(sink.Count())
		dropped := metrics.Value(MetricAuditDropped)
		if delivered+dropped != writers*perWriter {
			t.Fatalf("dropIfFull=%v: delivered %d + dropped %d != %d", dropIfFull, delivered, dropped, writers*perWriter)
		}
	}
}

func TestAuditTrailStampsClockAndClientIP(t *testing.T) {
	sink := NewChannelSink(1)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	trail := newAuditTrail(AuditConfig{Enabled: true, BufferSize: 1}, sink, func() time.Time { return at }, nil)
	defer trail.close()

	trail.record(WithClientIP(context.Background(), "192.0.2.4"), opIssue, AuditEvent{Event: AuditTokenIssued, IP: "spoofed"})
	ev := receiveEvent(t, sink)
	if !ev.Timestamp.Equal(at) || ev.Timestamp.Location() != time.UTC {
		t.Fatalf("expected UTC stamp of %v, got %v", at, ev.Timestamp)
	}
	if ev.IP != "192.0.2.4" || ev.Operation != "issue" {
		t.Fatalf("unexpected stamped event %+v", ev)
	}
}

func TestAuditTrailDisabledIsNil(t *testing.T) {
	trail := newAuditTrail(AuditConfig{Enabled: false}, NoOpSink{}, nil, nil)
	if trail != nil {
		t.Fatal("expected nil trail when audit is disabled")
	}
	trail.record(context.Background(), opIssue, AuditEvent{})
	trail.close()
}
