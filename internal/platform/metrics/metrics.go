package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"qrstudio/internal/engine/render"
	"qrstudio/internal/engine/studio"
)

type Metrics struct {
	registry *prometheus.Registry

	Renders      *prometheus.CounterVec
	RenderErrors prometheus.Counter
	PNGEncodes   prometheus.Counter
	Exports      prometheus.Counter
	WSEvents     *prometheus.CounterVec
}

// New registers the studio collectors plus sessionsActive, which is read
// at scrape time.
func New(sessionsActive func() float64) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrstudio_renders_total",
			Help: "Symbols drawn, by content mode.",
		}, []string{"mode"}),
		RenderErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrstudio_render_errors_total",
			Help: "Draws rejected by the encoder.",
		}),
		PNGEncodes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrstudio_png_encodes_total",
			Help: "Canvas PNG encodes, previews and exports.",
		}),
		Exports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qrstudio_exports_total",
			Help: "PNG downloads handed to the client.",
		}),
		WSEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qrstudio_ws_events_total",
			Help: "Websocket events dispatched, by type.",
		}, []string{"type"}),
	}

	m.registry.MustRegister(m.Renders, m.RenderErrors, m.PNGEncodes, m.Exports, m.WSEvents)
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "qrstudio_sessions_active",
		Help: "Sessions currently held in memory.",
	}, sessionsActive))
	m.registry.MustRegister(collectors.NewGoCollector())

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument wraps a backend so its draws and encodes are counted.
func (m *Metrics) Instrument(next studio.Backend) studio.Backend {
	return &backend{next: next, m: m}
}

type backend struct {
	next studio.Backend
	m    *Metrics
}

func (b *backend) Draw(cfg render.Config) error {
	if err := b.next.Draw(cfg); err != nil {
		b.m.RenderErrors.Inc()
		return err
	}
	b.m.Renders.WithLabelValues(string(studio.Classify(cfg.Content))).Inc()
	return nil
}

func (b *backend) PNG() ([]byte, error) {
	data, err := b.next.PNG()
	if err == nil {
		b.m.PNGEncodes.Inc()
	}
	return data, err
}
