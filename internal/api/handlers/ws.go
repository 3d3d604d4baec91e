package handlers

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/hlog"

	"qrstudio/internal/api/middleware"
	"qrstudio/internal/engine/sessions"
	"qrstudio/internal/engine/studio"
	"qrstudio/internal/pkg/errors"
	"qrstudio/internal/platform/config"
	"qrstudio/internal/platform/metrics"
)

const wsWriteWait = 10 * time.Second

// event types the page sends; anything else is counted as "unknown"
var wsEventTypes = map[string]bool{
	"content":  true,
	"size":     true,
	"template": true,
	"color":    true,
	"theme":    true,
	"reset":    true,
	"render":   true,
}

// wsEvent is one input event from the page. Only the fields of its type
// are read.
type wsEvent struct {
	Type      string `json:"type"`
	Primary   string `json:"primary,omitempty"`
	Secondary string `json:"secondary,omitempty"`
	Size      int    `json:"size,omitempty"`
	Index     *int   `json:"index,omitempty"`
	Channel   string `json:"channel,omitempty"`
	Value     string `json:"value,omitempty"`
	Dark      bool   `json:"dark,omitempty"`
}

type wsReply struct {
	Type   string                `json:"type"`
	View   *studio.View          `json:"view,omitempty"`
	Events []sessions.Event      `json:"events,omitempty"`
	Error  *errors.ErrorResponse `json:"error,omitempty"`
}

type WSHandler struct {
	upgrader  websocket.Upgrader
	readLimit int64
	manager   *sessions.Manager
	metrics   *metrics.Metrics
}

func NewWSHandler(cfg config.WebSocketConfig, manager *sessions.Manager, m *metrics.Metrics) *WSHandler {
	allowed := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = true
	}

	return &WSHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowed[origin] {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
		readLimit: cfg.ReadLimit,
		manager:   manager,
		metrics:   m,
	}
}

// Handle dispatches page events to the session one at a time, replying
// to each with the resulting view before reading the next.
func (h *WSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFrom(r.Context())
	logger := hlog.FromRequest(r).With().Str("session_id", sess.ID).Logger()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if h.readLimit > 0 {
		conn.SetReadLimit(h.readLimit)
	}

	for {
		var ev wsEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn().Err(err).Msg("websocket read failed")
			}
			return
		}

		label := ev.Type
		if !wsEventTypes[label] {
			label = "unknown"
		}
		h.metrics.WSEvents.WithLabelValues(label).Inc()

		// the session may have been deleted or swept since the upgrade
		if _, err := h.manager.Get(sess.ID); err != nil {
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			conn.WriteJSON(studioErrorReply(err))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "session ended"))
			logger.Info().Msg("websocket closed for ended session")
			return
		}

		reply := h.handleEvent(sess, ev)

		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			logger.Warn().Err(err).Msg("websocket write failed")
			return
		}
	}
}

func (h *WSHandler) handleEvent(sess *sessions.Session, ev wsEvent) wsReply {
	var fn func(c *studio.Controller) error

	switch ev.Type {
	case "content":
		fn = func(c *studio.Controller) error {
			return c.SetContentFromInputs(ev.Primary, ev.Secondary)
		}
	case "size":
		fn = func(c *studio.Controller) error {
			return c.SetSize(studio.Size(ev.Size))
		}
	case "template":
		if ev.Index == nil {
			return errorReply(http.StatusBadRequest, errors.ErrCodeInvalidInput, "index is required")
		}
		fn = func(c *studio.Controller) error {
			return c.ApplyTemplate(*ev.Index)
		}
	case "color":
		ch, err := studio.ParseChannel(ev.Channel)
		if err != nil {
			return studioErrorReply(err)
		}
		color, err := studio.ParseColor(ev.Value)
		if err != nil {
			return studioErrorReply(err)
		}
		fn = func(c *studio.Controller) error {
			return c.SetCustomColor(ch, color)
		}
	case "theme":
		fn = func(c *studio.Controller) error {
			c.SetTheme(ev.Dark)
			return nil
		}
	case "reset":
		fn = func(c *studio.Controller) error {
			return c.Reset()
		}
	case "render":
		fn = func(c *studio.Controller) error {
			return c.Render()
		}
	default:
		return errorReply(http.StatusBadRequest, errors.ErrCodeInvalidInput, "unknown event type "+ev.Type)
	}

	res, err := sess.Dispatch(fn)
	if err != nil {
		return studioErrorReply(err)
	}
	return wsReply{Type: "view", View: &res.View, Events: res.Events}
}

func errorReply(status int, code, message string) wsReply {
	return wsReply{
		Type: "error",
		Error: &errors.ErrorResponse{
			Error:   http.StatusText(status),
			Message: message,
			Code:    code,
		},
	}
}

func studioErrorReply(err error) wsReply {
	_, body := studioError(err)
	return wsReply{Type: "error", Error: &body}
}
