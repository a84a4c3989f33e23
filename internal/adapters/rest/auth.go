package rest

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/cadence/internal/core/services"
)

// Index handles GET /. It returns the session snapshot, and on the way back
// from the provider it completes the callback and redirects to the same page
// without the code.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	if code, ok := services.CallbackCode(r.URL); ok {
		if err := h.svc.Auth.CompleteCallback(r.Context(), sess, code); err != nil {
			// the outcome is on the session; the redirect shows it
			h.log.Info("callback failed", zap.String("session_id", sess.ID()), zap.Error(err))
		}
		http.Redirect(w, r, services.StripCode(r.URL).String(), http.StatusSeeOther)
		return
	}

	writeJSON(w, http.StatusOK, sess.Snapshot())
}

// Login handles GET /login by sending the browser to the provider.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	authURL, err := h.svc.Auth.Initiate(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Logout handles POST /logout.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := h.svc.Auth.Logout(r.Context(), sess); err != nil {
		h.log.Warn("logout failed", zap.String("session_id", sess.ID()), zap.Error(err))
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}
