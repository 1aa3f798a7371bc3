package core

import (
	"brewcore/pkg/domain"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type logRecord struct {
	level string
	msg   string
	args  []any
}

type captureLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *captureLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, logRecord{level: level, msg: msg, args: args})
}

func (l *captureLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *captureLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *captureLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.records {
		if r.level == level && r.msg == msg {
			return true
		}
	}
	return false
}

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

func (c *captureAuditRecorder) has(op string, status AuditStatus, predicate func(AuditEntry) bool) bool {
	for _, entry := range c.entries {
		if entry.Operation == op && entry.Status == status {
			if predicate == nil || predicate(entry) {
				return true
			}
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	err error
}

type captureTracer struct {
	ended []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

func TestServiceObservability(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	logs := &captureLogger{}
	svc := newTestService(t, WithAuditRecorder(audit), WithMetricsRecorder(metrics), WithTracer(tracer), WithLogger(logs))

	b := mustCreateBatch(t, svc, "fv1", day(0))
	if !audit.has("create_batch", AuditStatusSuccess, func(e AuditEntry) bool {
		return e.EntityID == b.ID && e.Entity == EntityBatch && e.Action == ActionCreate && e.Timestamp.Equal(day(0).Add(9*time.Hour))
	}) {
		t.Fatalf("expected audit entry for create_batch, got %+v", audit.entries)
	}
	if !metrics.has("create_batch", true) || !tracer.has("create_batch", true) {
		t.Fatalf("expected metrics and span for create_batch")
	}

	if _, _, err := svc.CreateBatch(ctx, CreateBatchRequest{RecipeID: "pale", TankID: "fv1", StartDate: day(1)}); err == nil {
		t.Fatalf("expected conflict")
	}
	if !audit.has("create_batch", AuditStatusError, func(e AuditEntry) bool { return strings.Contains(e.Error, "occupied by batch "+b.ID) }) {
		t.Fatalf("expected audit error entry, got %+v", audit.entries)
	}
	if !metrics.has("create_batch", false) || !tracer.has("create_batch", false) {
		t.Fatalf("expected failed create_batch observed")
	}
	if !logs.has("info", "operation rejected") {
		t.Fatalf("expected domain rejection logged at info")
	}

	if _, err := svc.GetBatch(ctx, b.ID); err != nil {
		t.Fatalf("get: %v", err)
	}
	if audit.has("get_batch", AuditStatusSuccess, nil) {
		t.Fatalf("reads must not be audited")
	}
	if !metrics.has("get_batch", true) || !logs.has("debug", "operation completed") {
		t.Fatalf("expected reads measured and logged at debug")
	}

	if _, _, err := svc.SetPackagingDate(ctx, b.ID, day(20)); err != nil {
		t.Fatalf("set packaging date: %v", err)
	}
	mustCreateBatch(t, svc, "fv2", day(0))
	if _, _, err := svc.ReassignTank(ctx, b.ID, "fv2"); err == nil {
		t.Fatalf("expected conflict on fv2")
	}
	if !audit.has("reassign_tank", AuditStatusError, func(e AuditEntry) bool { return e.EntityID == b.ID && e.Action == ActionUpdate }) {
		t.Fatalf("expected reassign_tank failure audited")
	}
}

func TestServiceLogsRuleViolationsAndInvariants(t *testing.T) {
	ctx := context.Background()
	logs := &captureLogger{}
	svc := newTestService(t, WithLogger(logs))
	first := mustCreateBatch(t, svc, "fv1", day(0))
	mustCreateBatch(t, svc, "fv1", day(13))

	if _, _, err := svc.SetPackagingDate(ctx, first.ID, day(14)); err == nil {
		t.Fatalf("expected rule violation")
	}
	if !logs.has("warn", "rule blocked transaction") {
		t.Fatalf("expected violation logged at warn")
	}

	svc.logFailure("confirm_unload", first.ID, domain.InvariantError{Detail: "orphan actual"})
	if !logs.has("error", "invariant violated") {
		t.Fatalf("expected invariant logged at error")
	}
	svc.logFailure("confirm_unload", first.ID, errors.New("disk full"))
	if !logs.has("error", "operation failed") {
		t.Fatalf("expected unknown failure logged at error")
	}
}

func TestRecordAuditIgnoresUnknownOperation(t *testing.T) {
	audit := &captureAuditRecorder{}
	svc := NewInMemoryService(nil, WithAuditRecorder(audit))
	svc.recordAuditSuccess(context.Background(), "unknown_op", "x", time.Millisecond)
	if len(audit.entries) != 0 {
		t.Fatalf("expected unknown operation skipped, got %+v", audit.entries)
	}
}

func TestServiceOptionsIgnoreNil(t *testing.T) {
	svc := NewInMemoryService(nil, WithLogger(nil), WithClock(nil), WithAuditRecorder(nil),
		WithMetricsRecorder(nil), WithTracer(nil), WithLocker(nil), WithArchive(nil))
	if svc.logger == nil || svc.clock == nil || svc.audit == nil || svc.metrics == nil ||
		svc.tracer == nil || svc.locker == nil || svc.archive == nil {
		t.Fatalf("expected defaults retained")
	}
	var l noopLogger
	l.Debug("d", "k", 1)
	l.Info("i", "k", 2)
	l.Warn("w", "k", 3)
	l.Error("e", "k", 4)
}

func TestServiceWithExporters(t *testing.T) {
	var buf bytes.Buffer
	metrics := NewExpvarMetricsRecorder("")
	tracer := NewJSONTracer(&buf)
	svc := newTestService(t, WithMetricsRecorder(metrics), WithTracer(tracer))
	mustCreateBatch(t, svc, "fv1", day(0))

	snapshot := metrics.Snapshot()
	if snapshot.Results["create_batch"][AuditStatusSuccess] != 1 {
		t.Fatalf("expected one successful create_batch, got %+v", snapshot.Results)
	}
	found := false
	for _, entry := range tracer.Entries() {
		if entry.Operation == "create_batch" && entry.Status == AuditStatusSuccess {
			found = true
		}
	}
	if !found || !strings.Contains(buf.String(), `"operation":"create_batch"`) {
		t.Fatalf("expected create_batch trace entry, got %s", buf.String())
	}
}

func TestLogAuditRecorderWritesEntries(t *testing.T) {
	logs := &captureLogger{}
	svc := newTestService(t, WithAuditRecorder(NewLogAuditRecorder(logs)))
	b := mustCreateBatch(t, svc, "fv1", day(0))
	if _, _, err := svc.AdvanceStatus(context.Background(), b.ID, StatusPackaged); err == nil {
		t.Fatalf("expected skipped status rejected")
	}
	if !logs.has("info", "audit") || !logs.has("warn", "audit") {
		t.Fatalf("expected success and failure audit records, got %+v", logs.records)
	}
	NewLogAuditRecorder(nil).Record(context.Background(), AuditEntry{Operation: "create_batch"})
}

func TestJSONTracerRetainsRecentSpans(t *testing.T) {
	tracer := NewJSONTracer(nil)
	for i := 0; i < jsonTraceRetention+10; i++ {
		_, span := tracer.Start(context.Background(), fmt.Sprintf("op-%d", i))
		span.End(nil)
	}
	entries := tracer.Entries()
	if len(entries) != jsonTraceRetention {
		t.Fatalf("expected %d spans retained, got %d", jsonTraceRetention, len(entries))
	}
	if entries[0].Operation != "op-10" || entries[len(entries)-1].Operation != fmt.Sprintf("op-%d", jsonTraceRetention+9) {
		t.Fatalf("expected the oldest spans dropped, got %s..%s", entries[0].Operation, entries[len(entries)-1].Operation)
	}
}
