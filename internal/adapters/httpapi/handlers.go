package httpapi

import (
	"brewcore/internal/core"
	"brewcore/pkg/domain"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler adapts core.Service operations to gin handlers.
type Handler struct {
	svc    *core.Service
	logger *zap.Logger
}

// NewHandler constructs the HTTP handler adapter.
func NewHandler(svc *core.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// respond writes payload under key, adding non-blocking rule findings.
func respond(c *gin.Context, status int, key string, payload any, res core.Result) {
	body := gin.H{key: payload}
	if len(res.Violations) > 0 {
		body["violations"] = violationsPayload(res)
	}
	c.JSON(status, body)
}

func (h *Handler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.Warn("invalid request body", zap.String("path", c.Request.URL.Path), zap.Error(err))
		badRequest(c, "invalid request body")
		return false
	}
	return true
}

func stageParam(c *gin.Context) core.Stage {
	return domain.Stage(c.Param("stage"))
}

// CreateBatch handles POST /batches.
func (h *Handler) CreateBatch(c *gin.Context) {
	var req createBatchRequest
	if !h.bind(c, &req) {
		return
	}
	batch, res, err := h.svc.CreateBatch(c.Request.Context(), core.CreateBatchRequest{
		RecipeID:  req.RecipeID,
		TankID:    req.TankID,
		StartDate: req.StartDate.Time,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, "batch", batch, res)
}

// CreateTurn handles POST /batches/:id/turns.
func (h *Handler) CreateTurn(c *gin.Context) {
	var req createTurnRequest
	if !h.bind(c, &req) {
		return
	}
	batch, res, err := h.svc.CreateTurn(c.Request.Context(), core.CreateTurnRequest{
		ParentBatchID: c.Param("id"),
		RecipeID:      req.RecipeID,
		StartDate:     req.StartDate.Time,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, "batch", batch, res)
}

// ReassignTank handles PUT /batches/:id/tank.
func (h *Handler) ReassignTank(c *gin.Context) {
	var req reassignTankRequest
	if !h.bind(c, &req) {
		return
	}
	batch, res, err := h.svc.ReassignTank(c.Request.Context(), c.Param("id"), req.TankID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "batch", batch, res)
}

// AdvanceStatus handles POST /batches/:id/status.
func (h *Handler) AdvanceStatus(c *gin.Context) {
	var req advanceStatusRequest
	if !h.bind(c, &req) {
		return
	}
	batch, res, err := h.svc.AdvanceStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "batch", batch, res)
}

// SetPackagingDate handles PUT /batches/:id/packaging-date.
func (h *Handler) SetPackagingDate(c *gin.Context) {
	var req packagingDateRequest
	if !h.bind(c, &req) {
		return
	}
	batch, res, err := h.svc.SetPackagingDate(c.Request.Context(), c.Param("id"), req.PackagingDate.Time)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "batch", batch, res)
}

// UpdateActual handles PATCH /batches/:id/stages/:stage/actual.
func (h *Handler) UpdateActual(c *gin.Context) {
	var patch actualPatch
	if !h.bind(c, &patch) {
		return
	}
	batch, res, err := h.svc.UpdateActual(c.Request.Context(), c.Param("id"), stageParam(c), patch.apply)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "batch", batch, res)
}

// AddLotAssignment handles POST /batches/:id/stages/:stage/ingredients/:ingredient/lots.
func (h *Handler) AddLotAssignment(c *gin.Context) {
	var req lotAssignmentRequest
	if !h.bind(c, &req) {
		return
	}
	ingredient, res, err := h.svc.AddLotAssignment(c.Request.Context(), c.Param("id"), stageParam(c), c.Param("ingredient"),
		core.LotAssignment{LotNumber: req.LotNumber, Quantity: req.Quantity})
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "ingredient", ingredient, res)
}

// RemoveLotAssignment handles DELETE /batches/:id/stages/:stage/ingredients/:ingredient/lots/:lot.
func (h *Handler) RemoveLotAssignment(c *gin.Context) {
	ingredient, res, err := h.svc.RemoveLotAssignment(c.Request.Context(), c.Param("id"), stageParam(c),
		c.Param("ingredient"), c.Param("lot"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "ingredient", ingredient, res)
}

// ConfirmUnload handles POST /batches/:id/stages/:stage/unload.
func (h *Handler) ConfirmUnload(c *gin.Context) {
	movements, res, err := h.svc.ConfirmUnload(c.Request.Context(), c.Param("id"), stageParam(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "movements", movements, res)
}

// LoadFinishedGoods handles POST /batches/:id/finished-goods.
func (h *Handler) LoadFinishedGoods(c *gin.Context) {
	var req finishedGoodsRequest
	if !h.bind(c, &req) {
		return
	}
	movements, res, err := h.svc.LoadFinishedGoods(c.Request.Context(), c.Param("id"), req.LocationID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "movements", movements, res)
}

// DeleteBatch handles DELETE /batches/:id.
func (h *Handler) DeleteBatch(c *gin.Context) {
	if _, err := h.svc.DeleteBatch(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetBatch handles GET /batches/:id.
func (h *Handler) GetBatch(c *gin.Context) {
	batch, err := h.svc.GetBatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batch})
}

// ListBatches handles GET /batches?status=&tank_id=.
func (h *Handler) ListBatches(c *gin.Context) {
	batches, err := h.svc.ListBatches(c.Request.Context(), core.BatchFilter{
		Status: domain.BatchStatus(c.Query("status")),
		TankID: c.Query("tank_id"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches})
}

// ListTurns handles GET /batches/:id/turns.
func (h *Handler) ListTurns(c *gin.Context) {
	turns, err := h.svc.ListTurns(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"batches": turns})
}

// TraceForward handles GET /batches/:id/trace.
func (h *Handler) TraceForward(c *gin.Context) {
	rows, err := h.svc.TraceForward(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// TraceBackward handles GET /trace?lot=.
func (h *Handler) TraceBackward(c *gin.Context) {
	rows, err := h.svc.TraceBackward(c.Request.Context(), c.Query("lot"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

// TankAvailability handles GET /tanks/:id/availability?recipe_id=&start_date=&exclude_batch_id=.
// An occupied tank answers 409 with the conflicting batch.
func (h *Handler) TankAvailability(c *gin.Context) {
	start, err := parseDate(c.Query("start_date"))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	err = h.svc.CheckReservation(c.Request.Context(), core.ReservationRequest{
		TankID:         c.Param("id"),
		RecipeID:       c.Query("recipe_id"),
		StartDate:      start,
		ExcludeBatchID: c.Query("exclude_batch_id"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true})
}

// TankSchedule handles GET /tanks/:id/schedule.
func (h *Handler) TankSchedule(c *gin.Context) {
	occupancies, err := h.svc.TankSchedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"occupancies": occupancies})
}

// PutRecipe handles PUT /recipes/:id.
func (h *Handler) PutRecipe(c *gin.Context) {
	var recipe core.Recipe
	if !h.bind(c, &recipe) {
		return
	}
	recipe.ID = c.Param("id")
	saved, res, err := h.svc.PutRecipe(c.Request.Context(), recipe)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "recipe", saved, res)
}

// ListRecipes handles GET /recipes.
func (h *Handler) ListRecipes(c *gin.Context) {
	recipes, err := h.svc.ListRecipes(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// PutLocation handles PUT /locations/:id.
func (h *Handler) PutLocation(c *gin.Context) {
	var location core.Location
	if !h.bind(c, &location) {
		return
	}
	location.ID = c.Param("id")
	saved, res, err := h.svc.PutLocation(c.Request.Context(), location)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "location", saved, res)
}

// ListLocations handles GET /locations.
func (h *Handler) ListLocations(c *gin.Context) {
	locations, err := h.svc.ListLocations(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"locations": locations})
}

// PutMasterItem handles PUT /items/:id.
func (h *Handler) PutMasterItem(c *gin.Context) {
	var item core.MasterItem
	if !h.bind(c, &item) {
		return
	}
	item.ID = c.Param("id")
	saved, res, err := h.svc.PutMasterItem(c.Request.Context(), item)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusOK, "item", saved, res)
}

// ReceiveStock handles POST /stock.
func (h *Handler) ReceiveStock(c *gin.Context) {
	var req core.ReceiveStockRequest
	if !h.bind(c, &req) {
		return
	}
	movement, res, err := h.svc.ReceiveStock(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, "movement", movement, res)
}

// ListStock handles GET /stock?material_id=&lot_number=&location_id=.
func (h *Handler) ListStock(c *gin.Context) {
	items, err := h.svc.ListStock(c.Request.Context(), core.StockFilter{
		MaterialID: c.Query("material_id"),
		LotNumber:  c.Query("lot_number"),
		LocationID: c.Query("location_id"),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// AvailableLot handles GET /stock/:material/lots/:lot.
func (h *Handler) AvailableLot(c *gin.Context) {
	available, err := h.svc.AvailableLot(c.Request.Context(), c.Param("material"), c.Param("lot"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"material_id": c.Param("material"),
		"lot_number":  c.Param("lot"),
		"available":   available.String(),
	})
}
