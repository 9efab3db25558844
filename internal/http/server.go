// README: API gateway; builds the gin engine and delegates to module services.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"coload/internal/http/handlers"
	"coload/internal/http/middleware"
	"coload/internal/infra"
	"coload/internal/logger"
	"coload/internal/metrics"
)

type ServerDeps struct {
	Matches    handlers.MatchService
	Shipments  handlers.ShipmentLookup
	Rejections handlers.RejectionClearer
	Job        handlers.JobRunner
	Locations  handlers.Geocoder
	Verifier   infra.TokenVerifier
	Log        logger.Logger
	Metrics    *metrics.Metrics
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Logging(s.deps.Log, s.deps.Metrics), middleware.Recovery(s.deps.Log))
	registerRoutes(r, s.deps)
	return r
}
