package httpapi

import (
	"brewcore/internal/core"
	"brewcore/pkg/domain"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type violationPayload struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
	Entity   string `json:"entity,omitempty"`
	EntityID string `json:"entity_id,omitempty"`
}

func violationsPayload(res core.Result) []violationPayload {
	out := make([]violationPayload, 0, len(res.Violations))
	for _, v := range res.Violations {
		out = append(out, violationPayload{
			Rule:     v.Rule,
			Severity: string(v.Severity),
			Message:  v.Message,
			Entity:   string(v.Entity),
			EntityID: v.EntityID,
		})
	}
	return out
}

// errorResponse maps a service error onto a status code and a JSON body with
// the structured fields of the typed error.
func errorResponse(err error) (int, gin.H) {
	body := gin.H{"error": err.Error()}

	var (
		conflict   domain.SchedulingConflictError
		capacity   domain.CapacityExceededError
		transition domain.InvalidTransitionError
		incomplete domain.IncompleteAssignmentError
		processed  domain.AlreadyProcessedError
		negative   domain.NegativeStockError
		notFound   domain.NotFoundError
		referenced domain.BatchReferencedError
		invalid    core.ValidationError
		blocked    core.RuleViolationError
	)
	switch {
	case errors.As(err, &notFound):
		body["code"] = "not_found"
		body["entity"] = string(notFound.Entity)
		body["id"] = notFound.ID
		return http.StatusNotFound, body
	case errors.As(err, &conflict):
		body["code"] = "scheduling_conflict"
		body["tank_id"] = conflict.TankID
		body["conflicting_batch_id"] = conflict.BatchID
		body["conflicting_lot_code"] = conflict.LotCode
		body["available_from"] = conflict.AvailableFrom.Format(time.DateOnly)
		return http.StatusConflict, body
	case errors.As(err, &capacity):
		body["code"] = "capacity_exceeded"
		body["tank_id"] = capacity.TankID
		body["required"] = capacity.Required.String()
		body["available"] = capacity.Available.String()
		return http.StatusConflict, body
	case errors.As(err, &transition):
		body["code"] = "invalid_transition"
		body["from"] = string(transition.From)
		body["to"] = string(transition.To)
		return http.StatusConflict, body
	case errors.As(err, &processed):
		body["code"] = "already_processed"
		body["operation"] = processed.Operation
		return http.StatusConflict, body
	case errors.As(err, &referenced):
		body["code"] = "batch_referenced"
		body["turn_ids"] = referenced.TurnIDs
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrArchived):
		body["code"] = "archived"
		return http.StatusConflict, body
	case errors.Is(err, domain.ErrLockNotObtained):
		body["code"] = "lock_not_obtained"
		return http.StatusConflict, body
	case errors.As(err, &blocked):
		body["code"] = "rule_violation"
		body["violations"] = violationsPayload(blocked.Result)
		return http.StatusConflict, body
	case errors.As(err, &incomplete):
		body["code"] = "incomplete_assignment"
		body["stage"] = string(incomplete.Stage)
		body["pending"] = incomplete.Pending
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &negative):
		body["code"] = "negative_stock"
		body["material_id"] = negative.MaterialID
		body["lot_number"] = negative.LotNumber
		body["requested"] = negative.Requested.String()
		body["available"] = negative.Available.String()
		return http.StatusUnprocessableEntity, body
	case errors.As(err, &invalid):
		body["code"] = "validation"
		body["fields"] = invalid.Fields
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrValidation):
		body["code"] = "validation"
		return http.StatusUnprocessableEntity, body
	case errors.Is(err, domain.ErrInvariant):
		return http.StatusInternalServerError, gin.H{"error": "internal error", "code": "invariant"}
	}
	return http.StatusInternalServerError, gin.H{"error": "internal error"}
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message})
}
