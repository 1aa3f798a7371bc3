// Package httpapi exposes the brewery service over HTTP using gin.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// New wires the gin engine with the brewery routes, health check and the
// metrics endpoint. A nil metrics handler leaves /metrics unregistered.
func New(handler *Handler, metrics http.Handler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	batches := r.Group("/batches")
	batches.GET("", handler.ListBatches)
	batches.POST("", handler.CreateBatch)
	batches.GET("/:id", handler.GetBatch)
	batches.DELETE("/:id", handler.DeleteBatch)
	batches.GET("/:id/turns", handler.ListTurns)
	batches.POST("/:id/turns", handler.CreateTurn)
	batches.PUT("/:id/tank", handler.ReassignTank)
	batches.POST("/:id/status", handler.AdvanceStatus)
	batches.PUT("/:id/packaging-date", handler.SetPackagingDate)
	batches.PATCH("/:id/stages/:stage/actual", handler.UpdateActual)
	batches.POST("/:id/stages/:stage/ingredients/:ingredient/lots", handler.AddLotAssignment)
	batches.DELETE("/:id/stages/:stage/ingredients/:ingredient/lots/:lot", handler.RemoveLotAssignment)
	batches.POST("/:id/stages/:stage/unload", handler.ConfirmUnload)
	batches.POST("/:id/finished-goods", handler.LoadFinishedGoods)
	batches.GET("/:id/trace", handler.TraceForward)

	r.GET("/trace", handler.TraceBackward)
	r.GET("/tanks/:id/availability", handler.TankAvailability)
	r.GET("/tanks/:id/schedule", handler.TankSchedule)

	r.GET("/recipes", handler.ListRecipes)
	r.PUT("/recipes/:id", handler.PutRecipe)
	r.GET("/locations", handler.ListLocations)
	r.PUT("/locations/:id", handler.PutLocation)
	r.PUT("/items/:id", handler.PutMasterItem)
	r.GET("/stock", handler.ListStock)
	r.POST("/stock", handler.ReceiveStock)
	r.GET("/stock/:material/lots/:lot", handler.AvailableLot)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if metrics != nil {
		r.GET("/metrics", gin.WrapH(metrics))
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
