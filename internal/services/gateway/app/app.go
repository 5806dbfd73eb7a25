// Package app is the public edge of AgroNITY. It keeps the endpoints
// the static farm page posts to, adds the /api surface for newer
// clients, and puts every upstream service behind its own circuit
// breaker so one outage never takes the whole page down.
package app

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	AdvisoryURL    string
	PersistenceURL string
	EventsURL      string
	MarketURL      string

	HTTPTimeout     time.Duration
	BreakerFails    int
	BreakerOpenFor  time.Duration
	BreakerInterval time.Duration

	// DashboardCrop scopes the market block when the request does not
	// name a crop.
	DashboardCrop string
	StaticDir     string
}

type Gateway struct {
	cfg Config
	log *zap.SugaredLogger

	advisory    *Upstream
	persistence *Upstream
	events      *Upstream
	market      *Upstream

	// Last good dashboard blocks, served while a breaker is open.
	mu             sync.Mutex
	lastSensors    []SensorRow
	lastAdvisories []AdvisoryRow
	lastAlerts     []AlertRow
	lastMarket     *MarketStats
}

func New(cfg Config, log *zap.SugaredLogger) *Gateway {
	mk := func(name, base string) *Upstream {
		return NewUpstream(name, base, cfg.HTTPTimeout, cfg.BreakerFails, cfg.BreakerOpenFor, cfg.BreakerInterval)
	}
	return &Gateway{
		cfg:         cfg,
		log:         log,
		advisory:    mk("advisory", cfg.AdvisoryURL),
		persistence: mk("persistence", cfg.PersistenceURL),
		events:      mk("events", cfg.EventsURL),
		market:      mk("market", cfg.MarketURL),
	}
}

func (g *Gateway) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })

	// Endpoints the static farm page posts to, shape for shape.
	mux.HandleFunc("/analyze", g.handleAnalyze)
	mux.HandleFunc("/analyze_image", g.handleAnalyzeImage)

	mux.HandleFunc("/api/advisory", g.forwardWithLang("/advisory"))
	mux.HandleFunc("/api/query", g.forwardWithLang("/query"))
	mux.HandleFunc("/api/scenario", g.forwardWithLang("/scenario"))

	mux.HandleFunc("/api/crops", g.forward(g.advisory))
	mux.HandleFunc("/api/districts", g.forward(g.advisory))
	mux.HandleFunc("/api/fields", g.forward(g.advisory))
	mux.HandleFunc("/api/fields/", g.forward(g.advisory))

	mux.HandleFunc("/api/dashboard", g.handleDashboard)

	mux.HandleFunc("/api/market/", g.forward(g.market))
	mux.HandleFunc("/api/data/", g.forward(g.persistence))
	mux.HandleFunc("/api/events/", g.forward(g.events))

	if g.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(g.cfg.StaticDir)))
	}
	return mux
}

// WithCORS stamps permissive CORS headers and short-circuits preflight.
// The farm page may be opened straight from disk or any host.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept-Language")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
