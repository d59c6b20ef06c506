package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"taskhive.io/internal/authz"
	"taskhive.io/internal/obs"
)

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "taskhive-identity",
		"version": a.cfg.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"name":    "taskhive-identity",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.cfg.Version,
	}
	// personalized when a valid credential was attached by the optional gate
	if claims, ok := identityFromRequest(r); ok {
		payload["user"] = claims.Username
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleProtected stands in for the business handlers: it echoes the
// permission context the middleware attached.
func (a *API) handleProtected(w http.ResponseWriter, r *http.Request) {
	pc, ok := authz.PermissionFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusInternalServerError, "missing permission context")
		return
	}
	payload := map[string]any{
		"resource": pc.Resource.String(),
		"action":   pc.Action.String(),
		"role":     pc.Role.Name,
		"user_id":  pc.Identity.UserID,
		"allowed":  pc.Allowed,
	}
	if pc.Context != nil && pc.Context.TargetID != "" {
		payload["target_id"] = pc.Context.TargetID
	}
	writeJSON(w, http.StatusOK, payload)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
