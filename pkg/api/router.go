package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/instrument"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/logging"
)

// NewRouter mounts the health, metrics and /api/v1 routes.
func NewRouter(a *API, auth func(http.Handler) http.Handler, requestTimeout time.Duration, logger log.FieldLogger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", HealthCheckHandler)
	r.Method(http.MethodGet, "/metrics", instrument.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth)

		r.Get("/keypoints", a.ListKeypoints)
		r.Get("/keypoints/summary", a.KeypointSummary)
		r.Get("/keypoints/{keypointId}", a.GetKeypoint)
		r.Get("/feeders", a.ListFeeders)
		r.Get("/regions", a.ListRegions)
		r.Get("/regions/{regionId}", a.GetRegion)
		r.Get("/system/total", a.SystemTotal)
	})
	return r
}
