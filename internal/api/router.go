package api

import (
	"context"
	"io/fs"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"

	apiContext "qrstudio/internal/api/context"
	"qrstudio/internal/api/handlers"
	"qrstudio/internal/api/middleware"
)

type Dependencies struct {
	StudioHandler     *handlers.StudioHandler
	WSHandler         *handlers.WSHandler
	HealthHandler     *handlers.HealthHandler
	MetricsHandler    *handlers.MetricsHandler
	SessionMiddleware *middleware.SessionMiddleware
	RateLimiter       *middleware.RateLimiter
	Logger            zerolog.Logger
}

func NewRouter(deps *Dependencies) http.Handler {
	router := httprouter.New()

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}

	// Page
	router.GET("/", wrap(index(assets)))
	router.ServeFiles("/static/*filepath", http.FS(assets))

	// Operations
	router.GET("/health", wrap(deps.HealthHandler.Check))
	router.GET("/metrics", wrap(deps.MetricsHandler.Export))

	// Catalog
	router.GET("/api/v1/templates", wrap(deps.StudioHandler.Templates))
	router.GET("/api/v1/sizes", wrap(deps.StudioHandler.Sizes))

	// Middleware references
	sessMid := deps.SessionMiddleware
	writeLimit := deps.RateLimiter.Limit("api_write")
	exportLimit := deps.RateLimiter.Limit("export")
	createLimit := deps.RateLimiter.Limit("session_create")

	// Session lifecycle
	router.POST("/api/v1/sessions", chain(deps.StudioHandler.CreateSession, createLimit))
	router.GET("/api/v1/session",
		chain(deps.StudioHandler.GetSession, sessMid.Handle))
	router.DELETE("/api/v1/session",
		chain(deps.StudioHandler.DeleteSession, sessMid.Handle))

	// Studio events
	router.PUT("/api/v1/session/content",
		chain(deps.StudioHandler.UpdateContent, sessMid.Handle, writeLimit))
	router.PUT("/api/v1/session/size",
		chain(deps.StudioHandler.UpdateSize, sessMid.Handle, writeLimit))
	router.PUT("/api/v1/session/template",
		chain(deps.StudioHandler.ApplyTemplate, sessMid.Handle, writeLimit))
	router.PUT("/api/v1/session/color",
		chain(deps.StudioHandler.UpdateColor, sessMid.Handle, writeLimit))
	router.PUT("/api/v1/session/theme",
		chain(deps.StudioHandler.UpdateTheme, sessMid.Handle, writeLimit))
	router.POST("/api/v1/session/reset",
		chain(deps.StudioHandler.Reset, sessMid.Handle, writeLimit))

	// Output
	router.GET("/api/v1/session/qr.png",
		chain(deps.StudioHandler.Canvas, sessMid.Handle))
	router.GET("/api/v1/session/export",
		chain(deps.StudioHandler.Export, sessMid.Handle, exportLimit))
	router.GET("/api/v1/session/ws",
		chain(deps.WSHandler.Handle, sessMid.Handle))

	return middleware.AccessLog(deps.Logger)(router)
}

// Helper function to chain middlewares
func chain(handler http.HandlerFunc, middlewares ...func(http.HandlerFunc) http.HandlerFunc) httprouter.Handle {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return wrap(handler)
}

// Convert http.HandlerFunc to httprouter.Handle
func wrap(handler http.HandlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		// Inject params into context
		ctx := context.WithValue(r.Context(), apiContext.Params, ps)
		handler(w, r.WithContext(ctx))
	}
}

func index(assets fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := fs.ReadFile(assets, "index.html")
		if err != nil {
			http.Error(w, "page not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	}
}
