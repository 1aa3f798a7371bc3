package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestRecorderExposesOperationMetrics(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()
	rec.Observe(ctx, "create_batch", true, 3*time.Millisecond)
	rec.Observe(ctx, "create_batch", false, time.Millisecond)
	rec.Observe(ctx, "create_batch", false, time.Millisecond)
	rec.Observe(ctx, "", true, time.Millisecond)

	srv := httptest.NewServer(rec.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body := string(raw)
	for _, want := range []string{
		`brewcore_operations_total{operation="create_batch",status="success"} 1`,
		`brewcore_operations_total{operation="create_batch",status="error"} 2`,
		`brewcore_operation_duration_seconds_count{operation="create_batch"} 3`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in scrape output:\n%s", want, body)
		}
	}
	if strings.Contains(body, `operation=""`) {
		t.Fatalf("expected unnamed operation dropped")
	}
}

func TestRecordersAreIsolated(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	a.Observe(context.Background(), "get_batch", true, time.Millisecond)
	families, err := b.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == "brewcore_operations_total" && len(mf.GetMetric()) != 0 {
			t.Fatalf("expected second registry untouched")
		}
	}
}
