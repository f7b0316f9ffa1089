package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/threatlens/threatlens/internal/alerts"
	"github.com/threatlens/threatlens/internal/auth"
	"github.com/threatlens/threatlens/internal/iplookup"
	"github.com/threatlens/threatlens/internal/logging"
	"github.com/threatlens/threatlens/internal/metrics"
	"github.com/threatlens/threatlens/internal/model"
	"github.com/threatlens/threatlens/internal/store"
	"github.com/threatlens/threatlens/internal/ws"
)

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	store  *store.Store
	engine *alerts.Engine
	authn  *auth.Authenticator
	lookup *iplookup.Client
	hub    *ws.Hub
	log    zerolog.Logger

	// defaultCooldown is applied to rules created without an explicit
	// cooldown_minutes.
	defaultCooldown int

	now func() time.Time // injectable for deterministic tests
}

// New creates a Handler wired to its collaborators and registers all
// routes on a gorilla/mux router.
func New(st *store.Store, engine *alerts.Engine, authn *auth.Authenticator, lookup *iplookup.Client, hub *ws.Hub, defaultCooldown int) http.Handler {
	h := &Handler{
		store:           st,
		engine:          engine,
		authn:           authn,
		lookup:          lookup,
		hub:             hub,
		log:             logging.WithComponent("api"),
		defaultCooldown: defaultCooldown,
		now:             time.Now,
	}

	r := mux.NewRouter()
	r.Use(h.instrument)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	v1.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	v1.HandleFunc("/health", h.health).Methods(http.MethodGet)

	sec := v1.NewRoute().Subrouter()
	sec.Use(authn.Middleware)
	sec.HandleFunc("/threats", h.listThreats).Methods(http.MethodGet)
	sec.HandleFunc("/threats", h.ingestThreat).Methods(http.MethodPost)
	sec.HandleFunc("/threats/{id}", h.getThreat).Methods(http.MethodGet)
	sec.HandleFunc("/threats/{id}", h.deleteThreat).Methods(http.MethodDelete)
	sec.HandleFunc("/search", h.search).Methods(http.MethodGet)
	sec.HandleFunc("/rules", h.listRules).Methods(http.MethodGet)
	sec.HandleFunc("/rules", h.createRule).Methods(http.MethodPost)
	sec.HandleFunc("/rules/{id}", h.getRule).Methods(http.MethodGet)
	sec.HandleFunc("/rules/{id}", h.updateRule).Methods(http.MethodPut)
	sec.HandleFunc("/rules/{id}", h.deleteRule).Methods(http.MethodDelete)
	sec.HandleFunc("/alerts", h.listAlerts).Methods(http.MethodGet)
	sec.HandleFunc("/lookup/ip/{addr}", h.lookupIP).Methods(http.MethodGet)
	sec.HandleFunc("/dashboard", h.dashboard).Methods(http.MethodGet)
	sec.HandleFunc("/reports/summary", h.reportSummary).Methods(http.MethodGet)
	sec.HandleFunc("/reports/export", h.reportExport).Methods(http.MethodGet)

	return r
}

// instrument records request count and latency per route template.
func (h *Handler) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(sw.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// --- auth -------------------------------------------------------------------

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := model.NewUser(req.Email, req.Name, h.now())
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	user.PasswordHash = hash

	if err := h.store.CreateUser(user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			jsonErr(w, http.StatusConflict, "email already registered")
			return
		}
		h.internalErr(w, err, "creating user")
		return
	}

	token, err := h.authn.IssueToken(user.ID)
	if err != nil {
		h.internalErr(w, err, "issuing token")
		return
	}
	h.log.Info().Str("user", user.Email).Msg("account registered")
	jsonResp(w, http.StatusCreated, TokenResponse{Token: token, User: toUserResponse(user)})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	user, err := h.store.GetUserByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		h.internalErr(w, err, "loading user")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		jsonErr(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	token, err := h.authn.IssueToken(user.ID)
	if err != nil {
		h.internalErr(w, err, "issuing token")
		return
	}
	if err := h.store.TouchLogin(user.ID, h.now()); err != nil {
		h.log.Warn().Err(err).Str("user", user.ID).Msg("updating last login failed")
	}
	jsonResp(w, http.StatusOK, TokenResponse{Token: token, User: toUserResponse(user)})
}

// --- health -----------------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(time.Time{})
	if err != nil {
		h.internalErr(w, err, "reading stats")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		ThreatCount: stats.Total,
		WSClients:   h.hub.Count(),
	})
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func (h *Handler) internalErr(w http.ResponseWriter, err error, context string) {
	h.log.Error().Err(err).Msg(context + " failed")
	jsonErr(w, http.StatusInternalServerError, "internal error")
}

func queryInt(r *http.Request, key, def string) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		v = def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
