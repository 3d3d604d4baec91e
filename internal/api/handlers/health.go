package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"qrstudio/internal/engine/render"
	"qrstudio/internal/engine/sessions"
)

type HealthHandler struct {
	manager *sessions.Manager
	max     int
}

func NewHealthHandler(manager *sessions.Manager, maxSessions int) *HealthHandler {
	return &HealthHandler{manager: manager, max: maxSessions}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	// Encoder round trip
	if _, err := render.Encode(render.Config{Size: render.MinSize, Content: "health", Level: render.LevelHigh}); err != nil {
		checks["renderer"] = "unhealthy: " + err.Error()
	} else {
		checks["renderer"] = "healthy"
	}

	active := h.manager.Len()
	if h.max > 0 && active >= h.max {
		checks["sessions"] = "unhealthy: at capacity (" + strconv.Itoa(active) + ")"
	} else {
		checks["sessions"] = "healthy"
	}

	status := "healthy"
	for _, check := range checks {
		if len(check) >= 9 && check[:9] == "unhealthy" {
			status = "degraded"
			break
		}
	}

	response := struct {
		Status    string            `json:"status"`
		Timestamp int64             `json:"timestamp"`
		Sessions  int               `json:"sessions"`
		Checks    map[string]string `json:"checks"`
	}{
		Status:    status,
		Timestamp: time.Now().Unix(),
		Sessions:  active,
		Checks:    checks,
	}

	statusCode := http.StatusOK
	if status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
