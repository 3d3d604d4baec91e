package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"qrstudio/internal/api/handlers"
	"qrstudio/internal/api/middleware"
	"qrstudio/internal/engine/render"
	"qrstudio/internal/engine/sessions"
	"qrstudio/internal/engine/studio"
	"qrstudio/internal/pkg/errors"
	"qrstudio/internal/platform/auth"
	"qrstudio/internal/platform/config"
	"qrstudio/internal/platform/metrics"
)

const pngMagic = "\x89PNG\r\n\x1a\n"

func testConfig() config.Config {
	return config.Config{
		Sessions: config.SessionsConfig{
			TTL:         time.Hour,
			MaxSessions: 10,
			CookieName:  "qr_session",
		},
		JWT: config.JWTConfig{
			Secret:          "test-secret",
			SessionTokenTTL: time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			ExportPerMinute:        30,
			APIWritePerMinute:      600,
			SessionCreatePerMinute: 60,
		},
		WebSocket: config.WebSocketConfig{ReadLimit: 4096},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()

	var manager *sessions.Manager
	m := metrics.New(func() float64 { return float64(manager.Len()) })
	manager = sessions.NewManager(cfg.Sessions.TTL, cfg.Sessions.MaxSessions, func() studio.Backend {
		return m.Instrument(render.NewCanvas())
	})
	tokenSvc := auth.NewTokenService(cfg.JWT)
	limiter := middleware.NewRateLimiter(map[string]int{
		"export":         cfg.RateLimit.ExportPerMinute,
		"api_write":      cfg.RateLimit.APIWritePerMinute,
		"session_create": cfg.RateLimit.SessionCreatePerMinute,
	})

	return NewRouter(&Dependencies{
		StudioHandler:     handlers.NewStudioHandler(manager, tokenSvc, m, cfg.Sessions),
		WSHandler:         handlers.NewWSHandler(cfg.WebSocket, manager, m),
		HealthHandler:     handlers.NewHealthHandler(manager, cfg.Sessions.MaxSessions),
		MetricsHandler:    handlers.NewMetricsHandler(m),
		SessionMiddleware: middleware.NewSessionMiddleware(tokenSvc, manager, cfg.Sessions.CookieName),
		RateLimiter:       limiter,
		Logger:            zerolog.Nop(),
	})
}

type created struct {
	SessionID string      `json:"session_id"`
	Token     string      `json:"token"`
	View      studio.View `json:"view"`
}

func createSession(t *testing.T, h http.Handler) created {
	t.Helper()

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("POST /api/v1/sessions status = %d, want %d: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}

	var c created
	if err := json.Unmarshal(rr.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return c
}

func do(h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var r io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) sessions.Result {
	t.Helper()
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var res sessions.Result
	if err := json.Unmarshal(rr.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return res
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) errors.ErrorResponse {
	t.Helper()
	var body errors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestCreateSession(t *testing.T) {
	h := newTestRouter(t, testConfig())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusCreated)
	}

	var cookie *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == "qr_session" {
			cookie = c
		}
	}
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly {
		t.Errorf("session cookie = %+v, want an HttpOnly qr_session cookie", cookie)
	}

	var c created
	if err := json.Unmarshal(rr.Body.Bytes(), &c); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if c.SessionID == "" || c.Token == "" {
		t.Errorf("session_id = %q, token = %q, want both set", c.SessionID, c.Token)
	}

	v := c.View
	if v.Content != studio.Example {
		t.Errorf("content = %q, want %q", v.Content, studio.Example)
	}
	if v.Status.Mode != studio.ModeURL || v.Status.ModeLabel != "Mode: url" {
		t.Errorf("status = %+v, want url mode", v.Status)
	}
	if v.Controls.Size != 256 || v.Controls.Template != 0 {
		t.Errorf("controls = %+v, want size 256 and template 0", v.Controls)
	}
	if v.Controls.Foreground != "#0b0b0b" || v.Controls.Background != "#ffffff" {
		t.Errorf("colors = %s/%s, want Classic", v.Controls.Foreground, v.Controls.Background)
	}
}

func TestSessionRequiresToken(t *testing.T) {
	h := newTestRouter(t, testConfig())

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(h, http.MethodGet, "/api/v1/session", tt.token, nil)
			if rr.Code != tt.want {
				t.Errorf("status = %d, want %d", rr.Code, tt.want)
			}
			if body := decodeError(t, rr); body.Code != errors.ErrCodeUnauthorized {
				t.Errorf("code = %s, want %s", body.Code, errors.ErrCodeUnauthorized)
			}
		})
	}
}

func TestUpdateContent(t *testing.T) {
	h := newTestRouter(t, testConfig())
	s := createSession(t, h)

	tests := []struct {
		name      string
		primary   string
		secondary string
		want      string
		mode      studio.Mode
	}{
		{"primary wins", " https://example.com/a ", "ignored", "https://example.com/a", studio.ModeURL},
		{"secondary fallback", "   ", "line one\nline two", "line one\nline two", studio.ModeText},
		{"both blank", "", "\t", studio.Example, studio.ModeURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(h, http.MethodPut, "/api/v1/session/content", s.Token, map[string]string{
				"primary":   tt.primary,
				"secondary": tt.secondary,
			})
			res := decodeResult(t, rr)
			if res.View.Content != tt.want {
				t.Errorf("content = %q, want %q", res.View.Content, tt.want)
			}
			if res.View.Status.Mode != tt.mode {
				t.Errorf("mode = %s, want %s", res.View.Status.Mode, tt.mode)
			}
		})
	}
}

func TestApplyTemplate(t *testing.T) {
	h := newTestRouter(t, testConfig())
	s := createSession(t, h)

	res := decodeResult(t, do(h, http.MethodPut, "/api/v1/session/template", s.Token, map[string]int{"index": 5}))
	if res.View.Controls.Template != 5 || res.View.Controls.Foreground != "#ffd66b" {
		t.Errorf("controls = %+v, want Midnight", res.View.Controls)
	}

	tests := []struct {
		name string
		body interface{}
		code string
	}{
		{"out of range", map[string]int{"index": 6}, errors.ErrCodeInvalidTemplate},
		{"negative", map[string]int{"index": -1}, errors.ErrCodeInvalidTemplate},
		{"missing index", map[string]string{}, errors.ErrCodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(h, http.MethodPut, "/api/v1/session/template", s.Token, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			if body := decodeError(t, rr); body.Code != tt.code {
				t.Errorf("code = %s, want %s", body.Code, tt.code)
			}
		})
	}

	// rejected indices leave the state alone
	res = decodeResult(t, do(h, http.MethodGet, "/api/v1/session", s.Token, nil))
	if res.View.Controls.Template != 5 {
		t.Errorf("template = %d after rejected updates, want 5", res.View.Controls.Template)
	}
}

func TestUpdateSize(t *testing.T) {
	h := newTestRouter(t, testConfig())
	s := createSession(t, h)

	res := decodeResult(t, do(h, http.MethodPut, "/api/v1/session/size", s.Token, map[string]int{"size": 512}))
	if res.View.Controls.Size != 512 || res.View.Status.SizeText != "512" {
		t.Errorf("size = %d (%s), want 512", res.View.Controls.Size, res.View.Status.SizeText)
	}

	rr := do(h, http.MethodPut, "/api/v1/session/size", s.Token, map[string]int{"size": 300})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("size 300 status = %d, want 400", rr.Code)
	}
}

func TestUpdateColor(t *testing.T) {
	h := newTestRouter(t, testConfig())
	s := createSession(t, h)

	res := decodeResult(t, do(h, http.MethodPut, "/api/v1/session/color", s.Token, map[string]string{
		"channel": "foreground",
		"value":   "#FF0000",
	}))
	if res.View.Controls.Template != studio.NoTemplate {
		t.Errorf("template = %d, want %d", res.View.Controls.Template, studio.NoTemplate)
	}
	if res.View.Controls.Foreground != "#ff0000" || res.View.Controls.Background != "#ffffff" {
		t.Errorf("colors = %s/%s, want #ff0000/#ffffff", res.View.Controls.Foreground, res.View.Controls.Background)
	}

	for _, body := range []map[string]string{
		{"channel": "foreground", "value": "red"},
		{"channel": "border", "value": "#000000"},
	} {
		if rr := do(h, http.MethodPut, "/api/v1/session/color", s.Token, body); rr.Code != http.StatusBadRequest {
			t.Errorf("PUT color %v status = %d, want 400", body, rr.Code)
		}
	}
}

func TestResetAndTheme(t *testing.T) {
	h := newTestRouter(t, testConfig())
	s := createSession(t, h)

	do(h, http.MethodPut, "/api/v1/session/content", s.Token, map[string]string{"primary": "hello"})
	do(h, http.MethodPut, "/api/v1/session/size", s.Token, map[string]int{"size": 1024})
	do(h, http.MethodPut, "/api/v1/session/template", s.Token, map[string]int{"index": 3})

	res := decodeResult(t, do(h, http.MethodPut, "/api/v1/session/theme", s.Token, map[string]bool{"dark": true}))
	if !res.View.Dark {
		t.Error("dark = false after theme toggle")
	}

	res = decodeResult(t, do(h, http.MethodPost, "/api/v1/session/reset", s.Token, nil))
	v := res.View
	if v.Content != studio.Example || v.Controls.Size != 256 || v.Controls.Template != 0 {
		t.Errorf("view after reset = %+v", v)
	}
	if v.Controls.Inputs.Primary != studio.Example || v.Controls.Inputs.Secondary != "" {
		t.Errorf("inputs after reset = %+v", v.Controls.Inputs)
	}
	if !v.Dark {
		t.Error("reset cleared the theme")
	}

	focused := false
	for _, ev := range res.Events {
		if ev.Type == sessions.EventFocus && ev.Target == "primary" {
			focused = true
		}
	}
	if !focused {
		t.Errorf("events = %+v, want a focus event", res.Events)
	}
}

func TestExport(t *testing.T) {
	h := newTestRouter(t, testConfig())
	s := createSession(t, h)

	before := decodeResult(t, do(h, http.MethodGet, "/api/v1/session", s.Token, nil)).View

	rr := do(h, http.MethodGet, "/api/v1/session/export", s.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	disp := rr.Header().Get("Content-Disposition")
	if !regexp.MustCompile(`^attachment; filename="qr-\d+\.png"$`).MatchString(disp) {
		t.Errorf("Content-Disposition = %q", disp)
	}
	if !strings.HasPrefix(rr.Body.String(), pngMagic) {
		t.Error("body is not a PNG")
	}

	after := decodeResult(t, do(h, http.MethodGet, "/api/v1/session", s.Token, nil)).View
	if after != before {
		t.Errorf("export changed the view: %+v -> %+v", before, after)
	}
}

func TestExportRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.ExportPerMinute = 1
	h := newTestRouter(t, cfg)
	s := createSession(t, h)

	if rr := do(h, http.MethodGet, "/api/v1/session/export", s.Token, nil); rr.Code != http.StatusOK {
		t.Fatalf("first export status = %d, want 200", rr.Code)
	}
	rr := do(h, http.MethodGet, "/api/v1/session/export", s.Token, nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second export status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}
}

func TestCanvas(t *testing.T) {
	h := newTestRouter(t, testConfig())
	s := createSession(t, h)

	rr := do(h, http.MethodGet, "/api/v1/session/qr.png", s.Token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("Content-Disposition") != "" {
		t.Error("inline canvas must not be an attachment")
	}
	if !strings.HasPrefix(rr.Body.String(), pngMagic) {
		t.Error("body is not a PNG")
	}
}

func TestDeleteSession(t *testing.T) {
	h := newTestRouter(t, testConfig())
	s := createSession(t, h)

	if rr := do(h, http.MethodDelete, "/api/v1/session", s.Token, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rr.Code)
	}
	rr := do(h, http.MethodGet, "/api/v1/session", s.Token, nil)
	if rr.Code != http.StatusNotFound {
		t.Errorf("GET after delete status = %d, want 404", rr.Code)
	}
}

func TestCatalog(t *testing.T) {
	h := newTestRouter(t, testConfig())

	rr := do(h, http.MethodGet, "/api/v1/templates", "", nil)
	var list []struct {
		Index int    `json:"index"`
		Name  string `json:"name"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode templates: %v", err)
	}
	if len(list) != 6 || list[0].Name != "Classic" || list[5].Name != "Midnight" {
		t.Errorf("templates = %+v", list)
	}

	rr = do(h, http.MethodGet, "/api/v1/sizes", "", nil)
	var sizes struct {
		Sizes   []int `json:"sizes"`
		Default int   `json:"default"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &sizes); err != nil {
		t.Fatalf("decode sizes: %v", err)
	}
	if len(sizes.Sizes) != 4 || sizes.Default != 256 {
		t.Errorf("sizes = %+v", sizes)
	}
}

func TestPageAndOps(t *testing.T) {
	h := newTestRouter(t, testConfig())
	createSession(t, h)

	tests := []struct {
		path     string
		wantType string
		contains string
	}{
		{"/", "text/html", "QR Studio"},
		{"/static/app.js", "javascript", "/api/v1/session/ws"},
		{"/health", "application/json", `"status":"healthy"`},
		{"/metrics", "text/plain", "qrstudio_sessions_active 1"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(h, http.MethodGet, tt.path, "", nil)
			if rr.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); !strings.Contains(ct, tt.wantType) {
				t.Errorf("Content-Type = %q, want %s", ct, tt.wantType)
			}
			if !strings.Contains(rr.Body.String(), tt.contains) {
				t.Errorf("body does not contain %q", tt.contains)
			}
		})
	}
}

func TestWebSocket(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, testConfig()))
	defer srv.Close()

	h := srv.Config.Handler
	s := createSession(t, h)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/session/ws?token=" + s.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	type reply struct {
		Type   string                `json:"type"`
		View   *studio.View          `json:"view"`
		Events []sessions.Event      `json:"events"`
		Error  *errors.ErrorResponse `json:"error"`
	}
	send := func(ev map[string]interface{}) reply {
		t.Helper()
		if err := conn.WriteJSON(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
		var r reply
		if err := conn.ReadJSON(&r); err != nil {
			t.Fatalf("read: %v", err)
		}
		return r
	}

	r := send(map[string]interface{}{"type": "template", "index": 2})
	if r.Type != "view" || r.View.Controls.Template != 2 {
		t.Fatalf("template reply = %+v", r)
	}
	types := map[string]bool{}
	for _, ev := range r.Events {
		types[ev.Type] = true
	}
	if !types[sessions.EventControls] || !types[sessions.EventStatus] {
		t.Errorf("events = %+v, want controls and status", r.Events)
	}

	r = send(map[string]interface{}{"type": "content", "primary": "plain words"})
	if r.View.Status.Mode != studio.ModeText {
		t.Errorf("mode = %s, want text", r.View.Status.Mode)
	}

	r = send(map[string]interface{}{"type": "template", "index": 9})
	if r.Type != "error" || r.Error.Code != errors.ErrCodeInvalidTemplate {
		t.Errorf("bad template reply = %+v", r)
	}

	r = send(map[string]interface{}{"type": "explode"})
	if r.Type != "error" || r.Error.Code != errors.ErrCodeInvalidInput {
		t.Errorf("unknown event reply = %+v", r)
	}

	r = send(map[string]interface{}{"type": "theme", "dark": true})
	if r.Type != "view" || !r.View.Dark {
		t.Errorf("theme reply = %+v", r)
	}
}

func dialSession(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/session/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestCreateSessionRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.SessionCreatePerMinute = 2
	h := newTestRouter(t, cfg)

	s := createSession(t, h)
	createSession(t, h)

	rr := do(h, http.MethodPost, "/api/v1/sessions", "", nil)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("third create status = %d, want 429", rr.Code)
	}
	if body := decodeError(t, rr); body.Code != errors.ErrCodeRateLimitExceeded {
		t.Errorf("code = %s, want %s", body.Code, errors.ErrCodeRateLimitExceeded)
	}

	// studio events draw from their own bucket
	rr = do(h, http.MethodPut, "/api/v1/session/content", s.Token, map[string]string{"primary": "still fine"})
	if rr.Code != http.StatusOK {
		t.Errorf("content update status = %d, want 200", rr.Code)
	}
}

func TestWebSocketEventLabelsBounded(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, testConfig()))
	defer srv.Close()

	h := srv.Config.Handler
	s := createSession(t, h)
	conn := dialSession(t, srv, s.Token)
	defer conn.Close()

	for i := 0; i < 5; i++ {
		if err := conn.WriteJSON(map[string]string{"type": "bogus-" + strings.Repeat("x", i)}); err != nil {
			t.Fatalf("write: %v", err)
		}
		var r struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&r); err != nil {
			t.Fatalf("read: %v", err)
		}
		if r.Type != "error" {
			t.Errorf("reply type = %q, want error", r.Type)
		}
	}

	body := do(h, http.MethodGet, "/metrics", "", nil).Body.String()
	series := 0
	for _, line := range strings.Split(body, "\n") {
		if strings.HasPrefix(line, "qrstudio_ws_events_total{") {
			series++
		}
	}
	if series != 1 {
		t.Errorf("ws event series = %d, want 1", series)
	}
	if !strings.Contains(body, `qrstudio_ws_events_total{type="unknown"} 5`) {
		t.Errorf("metrics missing unknown count:\n%s", body)
	}
	if strings.Contains(body, "bogus") {
		t.Error("client-supplied event type leaked into metric labels")
	}
}

func TestWebSocketClosesAfterDelete(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, testConfig()))
	defer srv.Close()

	h := srv.Config.Handler
	s := createSession(t, h)
	conn := dialSession(t, srv, s.Token)
	defer conn.Close()

	type reply struct {
		Type  string                `json:"type"`
		Error *errors.ErrorResponse `json:"error"`
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "theme", "dark": true}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var r reply
	if err := conn.ReadJSON(&r); err != nil || r.Type != "view" {
		t.Fatalf("theme reply = %+v, err = %v", r, err)
	}

	if rr := do(h, http.MethodDelete, "/api/v1/session", s.Token, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("DELETE status = %d, want 204", rr.Code)
	}

	if err := conn.WriteJSON(map[string]interface{}{"type": "reset"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	r = reply{}
	if err := conn.ReadJSON(&r); err != nil {
		t.Fatalf("read: %v", err)
	}
	if r.Type != "error" || r.Error == nil || r.Error.Code != errors.ErrCodeNotFound {
		t.Errorf("reply after delete = %+v, want NOT_FOUND error", r)
	}

	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Errorf("ReadMessage() error = %v, want policy-violation close", err)
	}
}
