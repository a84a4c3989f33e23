package rest

import (
	"context"
	"net/http"
	"slices"
	"strconv"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
	"github.com/ewilliams-labs/cadence/internal/core/services"
	"github.com/ewilliams-labs/cadence/internal/worker"
)

type activityRequest struct {
	Activity string `json:"activity"`
}

type preferencesRequest struct {
	IncludeRegional *bool `json:"include_regional"`
}

type recommendationsResponse struct {
	Activity        domain.ActivityCategory `json:"activity"`
	Recommendations []domain.Track          `json:"recommendations"`
	CanPublish      bool                    `json:"can_publish"`
}

// parseSelectable accepts only the activities a user can pick by hand.
func parseSelectable(label string) (domain.ActivityCategory, bool) {
	a, err := domain.ParseActivity(label)
	if err != nil || !slices.Contains(domain.Selectable(), a) {
		return domain.ActivityUnknown, false
	}
	return a, true
}

// SetActivity handles PUT /activity.
func (h *Handler) SetActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	a, ok := parseSelectable(req.Activity)
	if !ok {
		writeErrorWithCode(w, http.StatusBadRequest, "activity must be one of walking, running, sitting, exercising, driving", errCodeBadRequest)
		return
	}
	sess := sessionFrom(r)
	sess.SetActivity(a)
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// SetPreferences handles PUT /preferences.
func (h *Handler) SetPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IncludeRegional == nil {
		writeErrorWithCode(w, http.StatusBadRequest, "include_regional is required", errCodeBadRequest)
		return
	}
	sess := sessionFrom(r)
	sess.SetPreferences(domain.Preferences{IncludeRegional: *req.IncludeRegional})
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// TriggerRecommendations handles POST /recommendations. The fetch runs on
// the worker pool; clients poll GET / for the outcome. Only one fetch per
// session may be queued at a time.
func (h *Handler) TriggerRecommendations(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if _, busy := h.inflight.LoadOrStore(sess.ID(), struct{}{}); busy || sess.Loading() {
		if !busy {
			h.inflight.Delete(sess.ID())
		}
		writeErrorWithCode(w, http.StatusConflict, "A recommendation request is already in progress.", errCodeBusy)
		return
	}

	accepted := h.pool.Submit(worker.Job{
		Name:      "fetch_recommendations",
		SessionID: sess.ID(),
		Run: func(ctx context.Context) error {
			defer h.inflight.Delete(sess.ID())
			_, err := h.svc.Orch.FetchRecommendations(ctx, sess)
			return err
		},
	})
	if !accepted {
		h.inflight.Delete(sess.ID())
		writeErrorWithCode(w, http.StatusServiceUnavailable, "Too many requests in progress. Try again shortly.", errCodeBusy)
		return
	}
	writeJSON(w, http.StatusAccepted, sess.Snapshot())
}

// GetRecommendations handles GET /recommendations. The optional activity and
// include_regional parameters update the selection before a synchronous fetch.
func (h *Handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	q := r.URL.Query()

	if raw := q.Get("activity"); raw != "" {
		a, ok := parseSelectable(raw)
		if !ok {
			writeErrorWithCode(w, http.StatusBadRequest, "unknown activity", errCodeBadRequest)
			return
		}
		sess.SetActivity(a)
	}
	if raw := q.Get("include_regional"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeErrorWithCode(w, http.StatusBadRequest, "include_regional must be a boolean", errCodeBadRequest)
			return
		}
		sess.SetPreferences(domain.Preferences{IncludeRegional: v})
	}

	tracks, err := h.svc.Orch.FetchRecommendations(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{
		Activity:        sess.Activity(),
		Recommendations: tracks,
		CanPublish:      sess.CanPublish(),
	})
}

// HeartRate handles POST /heart-rate: the mobile path. Sensor access is
// requested on first use.
func (h *Handler) HeartRate(w http.ResponseWriter, r *http.Request) {
	if h.svc.Monitor == nil {
		writeErrorWithCode(w, http.StatusNotImplemented, "heart-rate sensor not configured", errCodeSensor)
		return
	}
	sess := sessionFrom(r)

	if h.svc.Monitor.Authorization() == services.SensorNotDetermined {
		if _, err := h.svc.Monitor.RequestSensorAuthorization(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}

	reading, err := h.svc.Monitor.FetchHeartRate(r.Context(), sess)
	if err != nil {
		h.log.Info("heart-rate fetch failed", zap.String("session_id", sess.ID()), zap.Error(err))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}
