// README: HTTP route registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coload/internal/http/handlers"
	"coload/internal/http/middleware"
)

func registerRoutes(r *gin.Engine, deps ServerDeps) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	matchHandler := handlers.NewMatchHandler(deps.Matches, deps.Shipments)
	api.GET("/matches", matchHandler.List)
	api.GET("/matches/:id", matchHandler.Get)
	api.PUT("/matches/:id/status", matchHandler.UpdateStatus)

	admin := api.Group("", middleware.RequireAdmin())

	adminHandler := handlers.NewAdminHandler(deps.Rejections, deps.Job)
	admin.DELETE("/rejections", adminHandler.ClearRejection)
	admin.POST("/matching/run", adminHandler.TriggerRun)

	locationHandler := handlers.NewLocationHandler(deps.Locations)
	admin.POST("/admin/locations/:id/geocode", locationHandler.Geocode)
}
