package httpapi

import (
	"brewcore/internal/core"
	"brewcore/pkg/domain"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorResponseMapping(t *testing.T) {
	blocked := core.RuleViolationError{Result: core.Result{Violations: []core.Violation{{
		Rule: "tank_occupancy", Severity: core.SeverityBlock, Message: "overlap", Entity: core.EntityBatch, EntityID: "b2",
	}}}}
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"rule violation", fmt.Errorf("set packaging date: %w", blocked), http.StatusConflict, "rule_violation"},
		{"lock", fmt.Errorf("%w: tank:fv1", domain.ErrLockNotObtained), http.StatusConflict, "lock_not_obtained"},
		{"batch referenced", fmt.Errorf("delete batch: %w", domain.BatchReferencedError{BatchID: "p", TurnIDs: []string{"t1"}}), http.StatusConflict, "batch_referenced"},
		{"archived", fmt.Errorf("%w: b1 (lot 24001)", domain.ErrArchived), http.StatusConflict, "archived"},
		{"negative stock", domain.NegativeStockError{MaterialID: "malt", LotNumber: "L1", Requested: dec("5"), Available: dec("2")}, http.StatusUnprocessableEntity, "negative_stock"},
		{"plain validation", fmt.Errorf("%w: lot number required", domain.ErrValidation), http.StatusUnprocessableEntity, "validation"},
		{"invariant", domain.InvariantError{Detail: "orphan actual"}, http.StatusInternalServerError, "invariant"},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := errorResponse(tc.err)
			if status != tc.status {
				t.Fatalf("expected %d, got %d (%v)", tc.status, status, body)
			}
			if code, _ := body["code"].(string); code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, code)
			}
		})
	}

	_, body := errorResponse(blocked)
	violations, ok := body["violations"].([]violationPayload)
	if !ok || len(violations) != 1 || violations[0].Rule != "tank_occupancy" || violations[0].EntityID != "b2" {
		t.Fatalf("unexpected violations %v", body["violations"])
	}
	_, body = errorResponse(domain.InvariantError{Detail: "orphan actual"})
	if body["error"] != "internal error" {
		t.Fatalf("expected invariant detail hidden, got %v", body)
	}
}
