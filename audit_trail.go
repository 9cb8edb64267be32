package goIssuer

import (
	"context"
	"sync"
	"time"
)

// auditTrail stamps engine outcomes and delivers them to a sink from one goroutine.
//
// Events that cannot be delivered, because the queue is full under DropIfFull
// or the trail is already closed, are counted in MetricAuditDropped.
type auditTrail struct {
	sink       AuditSink
	now        func() time.Time
	metrics    *Metrics
	dropIfFull bool

	// mu orders record against close: sends happen under RLock, close under Lock.
	mu     sync.RWMutex
	closed bool
	queue  chan AuditEvent
	done   chan struct{}
}

func newAuditTrail(cfg AuditConfig, sink AuditSink, now func() time.Time, metrics *Metrics) *auditTrail {
	if !cfg.Enabled {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	if now == nil {
		now = time.Now
	}

	t := &auditTrail{
		sink:       sink,
		now:        now,
		metrics:    metrics,
		dropIfFull: cfg.DropIfFull,
		queue:      make(chan AuditEvent, cfg.BufferSize),
		done:       make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *auditTrail) run() {
	defer close(t.done)
	for event := range t.queue {
		t.sink.Emit(context.Background(), event)
	}
}

// record stamps event with the issuance clock and the request's client IP and
// queues it. Without DropIfFull it waits for queue space.
func (t *auditTrail) record(ctx context.Context, op operation, event AuditEvent) {
	if t == nil {
		return
	}
	event.Timestamp = t.now().UTC()
	event.Operation = string(op)
	if ctx != nil {
		event.IP = clientIPFromContext(ctx)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		t.metrics.Inc(MetricAuditDropped)
		return
	}
	if !t.dropIfFull {
		t.queue <- event
		return
	}
	select {
	case t.queue <- event:
	default:
		t.metrics.Inc(MetricAuditDropped)
	}
}

// close stops intake and returns once every queued event reached the sink.
func (t *auditTrail) close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if !t.closed {
		t.closed = true
		close(t.queue)
	}
	t.mu.Unlock()
	<-t.done
}
