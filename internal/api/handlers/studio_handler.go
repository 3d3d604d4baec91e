package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"qrstudio/internal/api/middleware"
	"qrstudio/internal/engine/sessions"
	"qrstudio/internal/engine/studio"
	"qrstudio/internal/pkg/errors"
	"qrstudio/internal/platform/auth"
	"qrstudio/internal/platform/config"
	"qrstudio/internal/platform/download"
	"qrstudio/internal/platform/metrics"
)

type StudioHandler struct {
	manager  *sessions.Manager
	tokenSvc *auth.TokenService
	metrics  *metrics.Metrics
	cookie   config.SessionsConfig
}

func NewStudioHandler(manager *sessions.Manager, tokenSvc *auth.TokenService, m *metrics.Metrics, cookie config.SessionsConfig) *StudioHandler {
	return &StudioHandler{
		manager:  manager,
		tokenSvc: tokenSvc,
		metrics:  m,
		cookie:   cookie,
	}
}

type templateResponse struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	Foreground string `json:"foreground"`
	Background string `json:"background"`
}

func (h *StudioHandler) Templates(w http.ResponseWriter, r *http.Request) {
	list := studio.Templates()
	out := make([]templateResponse, len(list))
	for i, t := range list {
		out[i] = templateResponse{
			Index:      i,
			Name:       t.Name,
			Foreground: t.Foreground.String(),
			Background: t.Background.String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *StudioHandler) Sizes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Sizes   []studio.Size `json:"sizes"`
		Default studio.Size   `json:"default"`
	}{
		Sizes:   studio.Sizes(),
		Default: studio.DefaultSize,
	})
}

func (h *StudioHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Create()
	if err != nil {
		writeStudioError(w, err)
		return
	}

	token, err := h.tokenSvc.GenerateSessionToken(sess.ID)
	if err != nil {
		h.manager.Delete(sess.ID)
		hlog.FromRequest(r).Error().Err(err).Msg("failed to sign session token")
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create session", nil)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookie.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})

	hlog.FromRequest(r).Info().Str("session_id", sess.ID).Msg("session created")
	writeJSON(w, http.StatusCreated, struct {
		SessionID string      `json:"session_id"`
		Token     string      `json:"token"`
		View      studio.View `json:"view"`
	}{
		SessionID: sess.ID,
		Token:     token,
		View:      sess.View(),
	})
}

func (h *StudioHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, func(c *studio.Controller) error { return nil })
}

func (h *StudioHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	h.manager.Delete(sess.ID)

	http.SetCookie(w, &http.Cookie{
		Name:   h.cookie.CookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *StudioHandler) UpdateContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Primary   string `json:"primary"`
		Secondary string `json:"secondary"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, func(c *studio.Controller) error {
		return c.SetContentFromInputs(req.Primary, req.Secondary)
	})
}

func (h *StudioHandler) UpdateSize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Size int `json:"size"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, func(c *studio.Controller) error {
		return c.SetSize(studio.Size(req.Size))
	})
}

func (h *StudioHandler) ApplyTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Index == nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "index is required", nil)
		return
	}
	h.dispatch(w, r, func(c *studio.Controller) error {
		return c.ApplyTemplate(*req.Index)
	})
}

func (h *StudioHandler) UpdateColor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel string `json:"channel"`
		Value   string `json:"value"`
	}
	if !decode(w, r, &req) {
		return
	}

	ch, err := studio.ParseChannel(req.Channel)
	if err != nil {
		writeStudioError(w, err)
		return
	}
	color, err := studio.ParseColor(req.Value)
	if err != nil {
		writeStudioError(w, err)
		return
	}

	h.dispatch(w, r, func(c *studio.Controller) error {
		return c.SetCustomColor(ch, color)
	})
}

func (h *StudioHandler) UpdateTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Dark bool `json:"dark"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.dispatch(w, r, func(c *studio.Controller) error {
		c.SetTheme(req.Dark)
		return nil
	})
}

func (h *StudioHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, func(c *studio.Controller) error {
		return c.Reset()
	})
}

// Canvas serves the current symbol inline, without redrawing.
func (h *StudioHandler) Canvas(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	var data []byte
	err := sess.Do(func(c *studio.Controller) error {
		var err error
		data, err = c.PNG()
		return err
	})
	if err != nil {
		writeStudioError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *StudioHandler) Export(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())

	// nothing may reach w until the export has succeeded
	var saved memoryFile
	var name string
	_, err := sess.Dispatch(func(c *studio.Controller) error {
		var err error
		name, err = c.ExportImage(&saved)
		return err
	})
	if err != nil {
		writeStudioError(w, err)
		return
	}

	if err := (download.ResponseSaver{W: w}).Save(name, saved.data); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("file", name).Msg("export write failed")
		return
	}
	h.metrics.Exports.Inc()
	hlog.FromRequest(r).Info().Str("session_id", sess.ID).Str("file", name).Msg("image exported")
}

func (h *StudioHandler) dispatch(w http.ResponseWriter, r *http.Request, fn func(c *studio.Controller) error) {
	sess := middleware.SessionFrom(r.Context())

	res, err := sess.Dispatch(fn)
	if err != nil {
		writeStudioError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return false
	}
	return true
}

type memoryFile struct {
	name string
	data []byte
}

func (f *memoryFile) Save(name string, data []byte) error {
	f.name = name
	f.data = data
	return nil
}
