// pkg/api/handlers.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/rflihmmm/pln-monitor-sub001/pkg/engine"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/model"
	"github.com/rflihmmm/pln-monitor-sub001/pkg/persistence"
)

// API holds the handler dependencies.
type API struct {
	Engine *engine.Engine
	logger log.FieldLogger
}

func NewAPI(e *engine.Engine, logger log.FieldLogger) *API {
	return &API{Engine: e, logger: logger}
}

// ListKeypoints handles GET /keypoints?type=&status=&ids=
func (a *API) ListKeypoints(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, a.logger)
	filter, err := parseKeypointFilter(r)
	if err != nil {
		rw.SendError(http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.Engine.Keypoints(r.Context(), ScopeFrom(r.Context()), filter)
	if err != nil {
		a.sendViewError(rw, err)
		return
	}
	rw.SendSuccess(http.StatusOK, "", items)
}

// KeypointSummary handles GET /keypoints/summary
func (a *API) KeypointSummary(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, a.logger)
	summary, err := a.Engine.Summary(r.Context(), ScopeFrom(r.Context()))
	if err != nil {
		a.sendViewError(rw, err)
		return
	}
	rw.SendSuccess(http.StatusOK, "", summary)
}

// GetKeypoint handles GET /keypoints/{keypointId}
func (a *API) GetKeypoint(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, a.logger)
	id, err := strconv.ParseInt(chi.URLParam(r, "keypointId"), 10, 64)
	if err != nil {
		rw.SendError(http.StatusBadRequest, "invalid keypoint id")
		return
	}
	detail, err := a.Engine.Keypoint(r.Context(), ScopeFrom(r.Context()), id)
	if err != nil {
		a.sendViewError(rw, err)
		return
	}
	rw.SendSuccess(http.StatusOK, "", detail)
}

// ListFeeders handles GET /feeders
func (a *API) ListFeeders(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, a.logger)
	feeders, err := a.Engine.Feeders(r.Context(), ScopeFrom(r.Context()))
	if err != nil {
		a.sendViewError(rw, err)
		return
	}
	rw.SendSuccess(http.StatusOK, "", feeders)
}

// ListRegions handles GET /regions
func (a *API) ListRegions(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, a.logger)
	regions, err := a.Engine.Regions(r.Context(), ScopeFrom(r.Context()))
	if err != nil {
		a.sendViewError(rw, err)
		return
	}
	rw.SendSuccess(http.StatusOK, "", regions)
}

// GetRegion handles GET /regions/{regionId}
func (a *API) GetRegion(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, a.logger)
	id, err := strconv.ParseInt(chi.URLParam(r, "regionId"), 10, 64)
	if err != nil {
		rw.SendError(http.StatusBadRequest, "invalid region id")
		return
	}
	region, err := a.Engine.Region(r.Context(), ScopeFrom(r.Context()), id)
	if err != nil {
		a.sendViewError(rw, err)
		return
	}
	rw.SendSuccess(http.StatusOK, "", region)
}

// SystemTotal handles GET /system/total
func (a *API) SystemTotal(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, a.logger)
	total, err := a.Engine.SystemTotal(r.Context(), ScopeFrom(r.Context()))
	if err != nil {
		a.sendViewError(rw, err)
		return
	}
	rw.SendSuccess(http.StatusOK, "", total)
}

// sendViewError never exposes the underlying error; the engine has logged it.
func (a *API) sendViewError(rw *ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrNotFound) {
		rw.SendError(http.StatusNotFound, "not found")
		return
	}
	rw.SendError(http.StatusBadGateway, engine.ErrUnavailable.Error())
}

func parseKeypointFilter(r *http.Request) (engine.KeypointFilter, error) {
	var f engine.KeypointFilter
	q := r.URL.Query()

	if v := strings.TrimSpace(q.Get("type")); v != "" {
		t := model.ParseEntityType(v)
		if !strings.EqualFold(t.String(), v) {
			return f, fmt.Errorf("invalid type %q", v)
		}
		f.Type = &t
	}

	switch v := strings.ToLower(strings.TrimSpace(q.Get("status"))); v {
	case "":
	case engine.StatusActive, engine.StatusInactive:
		f.Status = v
	default:
		return f, fmt.Errorf("invalid status %q", v)
	}

	for _, part := range strings.Split(q.Get("ids"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return f, fmt.Errorf("invalid id %q", part)
		}
		f.IDs = append(f.IDs, id)
	}
	return f, nil
}

// HealthCheckHandler reports liveness. It does not touch the stores.
func HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","timestamp":%q}`+"\n", time.Now().UTC().Format(time.RFC3339))
}
