// Package v1 is the control-plane HTTP surface: read-only health and
// introspection endpoints over the oracle's current state. It carries
// no domain logic of its own -- every handler just renders an Oracle
// snapshot as JSON.
package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/justinas/alice"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/ojo-network/rofl-price-oracle/oracle/observer"
	"github.com/ojo-network/rofl-price-oracle/oracle/types"
)

// Router serves the control-plane endpoints.
type Router struct {
	oracle Oracle
	logger zerolog.Logger
	mux    *mux.Router
}

// New builds a Router and registers its routes.
func New(oracle Oracle, logger zerolog.Logger) *Router {
	r := &Router{
		oracle: oracle,
		logger: logger.With().Str("module", "router").Logger(),
		mux:    mux.NewRouter(),
	}
	r.routes()
	return r
}

// Handler wraps the router with its middleware chain: request logging,
// panic recovery, and permissive CORS for read-only GET endpoints.
func (r *Router) Handler() http.Handler {
	chain := alice.New(r.loggingMiddleware, r.recoverMiddleware)
	return cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet},
	}).Handler(chain.Then(r.mux))
}

func (r *Router) routes() {
	r.mux.HandleFunc("/health", r.handleHealth).Methods(http.MethodGet)
	r.mux.HandleFunc("/prices", r.handlePrices).Methods(http.MethodGet)
	r.mux.HandleFunc("/prices/{base}/{quote}", r.handlePrice).Methods(http.MethodGet)
}

type pairStatusResponse struct {
	Pair              string  `json:"pair"`
	Price             float64 `json:"price,omitempty"`
	PriceAvailable    bool    `json:"price_available"`
	ActiveSources     int     `json:"active_sources"`
	ConfiguredSources int     `json:"configured_sources"`
	PendingSubmission int     `json:"pending_submission"`
	LastSubmit        string  `json:"last_submit,omitempty"`
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	statuses := r.oracle.PairStatuses()

	healthy := true
	for _, s := range statuses {
		if s.ActiveSources == 0 {
			healthy = false
			break
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"status": map[bool]string{true: "ok", false: "degraded"}[healthy],
		"pairs":  len(statuses),
	})
}

func (r *Router) handlePrices(w http.ResponseWriter, req *http.Request) {
	statuses := r.oracle.PairStatuses()

	resp := make([]pairStatusResponse, 0, len(statuses))
	for pair, s := range statuses {
		resp = append(resp, toPairStatusResponse(pair, s))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (r *Router) handlePrice(w http.ResponseWriter, req *http.Request) {
	vars := mux.Vars(req)
	pair := types.NewTradingPair(vars["base"], vars["quote"])

	statuses := r.oracle.PairStatuses()
	s, ok := statuses[pair]
	if !ok {
		http.Error(w, "pair not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, toPairStatusResponse(pair, s))
}

func toPairStatusResponse(pair types.TradingPair, s observer.Status) pairStatusResponse {
	resp := pairStatusResponse{
		Pair:              pair.Key(),
		PriceAvailable:    s.LastGoodPriceOK,
		ActiveSources:     s.ActiveSources,
		ConfiguredSources: s.ConfiguredSources,
		PendingSubmission: s.PendingObs,
	}
	if s.LastGoodPriceOK {
		resp.Price = s.LastGoodPrice
	}
	if !s.LastSubmit.IsZero() {
		resp.LastSubmit = s.LastSubmit.UTC().Format(time.RFC3339)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (r *Router) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		r.logger.Debug().
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

func (r *Router) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error().Interface("panic", rec).Msg("recovered from panic in handler")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, req)
	})
}
