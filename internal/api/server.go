// Package api exposes the inventory service over HTTP. The surface is thin:
// handlers bind, delegate to the ledger, menu store, or deduction engine, and
// shape responses. All business rules live below this layer.
package api

import (
	"net/http"

	"larder/internal/engine"
	"larder/internal/ledger"
	"larder/internal/menu"
	"larder/internal/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Server is the main API handler for the inventory service.
type Server struct {
	router  *gin.Engine
	stock   ledger.Ledger
	menu    *menu.Store
	engine  *engine.Engine
	hub     *Hub
	metrics *monitoring.Collector
	log     zerolog.Logger
}

// NewServer creates the API server and wires its routes.
func NewServer(stock ledger.Ledger, menuStore *menu.Store, eng *engine.Engine, metrics *monitoring.Collector, log zerolog.Logger) *Server {
	s := &Server{
		router:  gin.New(),
		stock:   stock,
		menu:    menuStore,
		engine:  eng,
		hub:     NewHub(log),
		metrics: metrics,
		log:     log.With().Str("component", "api").Logger(),
	}

	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Larder API is running"})
	})

	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	{
		// Deduction engine
		v1.POST("/inventory/deduct-for-order", s.DeductForOrder)

		// Stock management
		v1.POST("/inventory/items", s.CreateItem)
		v1.GET("/inventory/items", s.ListItems)
		v1.GET("/inventory/items/:id", s.GetItem)
		v1.PUT("/inventory/items/:id", s.UpdateItem)
		v1.DELETE("/inventory/items/:id", s.DeleteItem)
		v1.POST("/inventory/items/:id/adjust", s.AdjustStock)
		v1.POST("/inventory/items/bulk", s.BulkUpsertItems)

		// Reporting
		v1.GET("/inventory/alerts/low-stock", s.LowStockAlerts)
		v1.GET("/inventory/transactions", s.Transactions)
		v1.GET("/inventory/dashboard/stats", s.DashboardStats)

		// Menu / recipes
		v1.POST("/menu/items", s.CreateMenuItem)
		v1.GET("/menu/items", s.ListMenuItems)
		v1.POST("/menu/import", s.ImportMenu)
	}
}

// Router returns the Gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}
