package core

import (
	"context"
	"time"
)

// Logger is the structured logging surface used by the service. Arguments
// after the message are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// AuditStatus records whether an audited operation succeeded.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one audited service operation.
type AuditEntry struct {
	Operation string        `json:"operation"`
	Entity    EntityType    `json:"entity"`
	Action    Action        `json:"action"`
	EntityID  string        `json:"entity_id,omitempty"`
	Status    AuditStatus   `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// AuditRecorder receives audit entries for mutating operations.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

// MetricsRecorder observes the outcome and latency of every operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts a span around every operation.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended with the operation's error, nil on success.
type TraceSpan interface {
	End(err error)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type operationMeta struct {
	entity EntityType
	action Action
}

// auditedOperations lists the mutating operations and what they touch.
// Reads are traced and measured but not audited.
var auditedOperations = map[string]operationMeta{
	"create_batch":          {EntityBatch, ActionCreate},
	"create_turn":           {EntityBatch, ActionCreate},
	"reassign_tank":         {EntityBatch, ActionUpdate},
	"advance_status":        {EntityBatch, ActionUpdate},
	"set_packaging_date":    {EntityBatch, ActionUpdate},
	"update_actual":         {EntityBatch, ActionUpdate},
	"add_lot_assignment":    {EntityBatch, ActionUpdate},
	"remove_lot_assignment": {EntityBatch, ActionUpdate},
	"confirm_unload":        {EntityWarehouseItem, ActionUpdate},
	"load_finished_goods":   {EntityWarehouseItem, ActionCreate},
	"delete_batch":          {EntityBatch, ActionDelete},
	"put_recipe":            {EntityRecipe, ActionUpdate},
	"put_location":          {EntityLocation, ActionUpdate},
	"put_master_item":       {EntityMasterItem, ActionUpdate},
	"receive_stock":         {EntityWarehouseItem, ActionCreate},
}
