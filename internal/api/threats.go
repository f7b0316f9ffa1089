package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/threatlens/threatlens/internal/metrics"
	"github.com/threatlens/threatlens/internal/model"
	"github.com/threatlens/threatlens/internal/store"
)

// countryBackfillTimeout bounds the best-effort lookup on ingest so a
// slow third-party service cannot stall ingestion.
const countryBackfillTimeout = 2 * time.Second

// ingestThreat handles POST /api/v1/threats. A value already known for
// the same type is re-observed (LastSeen/HitCount bump) instead of
// duplicated; either way every active alert rule is evaluated against
// the resulting record.
func (h *Handler) ingestThreat(w http.ResponseWriter, r *http.Request) {
	var req ThreatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := model.ValidateValue(req.Type, req.Value); err != nil {
		metrics.ThreatsIngestedTotal.WithLabelValues(string(req.Type), "rejected").Inc()
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	value := model.NormalizeValue(req.Type, req.Value)
	now := h.now()

	// Re-observation path: bump and evaluate.
	if existing, seen, err := h.store.ObserveThreat(req.Type, value, now); err != nil {
		h.internalErr(w, err, "observing threat")
		return
	} else if seen {
		metrics.ThreatsIngestedTotal.WithLabelValues(string(req.Type), "observed").Inc()
		fired := h.engine.Evaluate(existing, now)
		jsonResp(w, http.StatusOK, IngestResponse{Threat: existing, Observed: true, Alerts: fired})
		return
	}

	threat, err := model.NewThreatRecord(req.Type, value, now)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Severity != "" {
		if !req.Severity.IsValid() {
			jsonErr(w, http.StatusBadRequest, "unknown severity "+string(req.Severity))
			return
		}
		threat.Severity = req.Severity
	}
	threat.Source = req.Source
	threat.Category = req.Category
	threat.Country = req.Country
	threat.MalwareFamily = req.MalwareFamily
	threat.Description = req.Description
	threat.Tags = req.Tags

	if threat.Type == model.TypeIP && threat.Country == "" && h.lookup != nil {
		ctx, cancel := context.WithTimeout(r.Context(), countryBackfillTimeout)
		threat.Country = h.lookup.Country(ctx, threat.Value)
		cancel()
	}

	if err := h.store.PutThreat(threat); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Raced with a concurrent ingest of the same value; fall back
			// to the observation path.
			existing, _, obsErr := h.store.ObserveThreat(threat.Type, threat.Value, now)
			if obsErr != nil || existing == nil {
				h.internalErr(w, err, "storing threat")
				return
			}
			fired := h.engine.Evaluate(existing, now)
			jsonResp(w, http.StatusOK, IngestResponse{Threat: existing, Observed: true, Alerts: fired})
			return
		}
		h.internalErr(w, err, "storing threat")
		return
	}

	metrics.ThreatsIngestedTotal.WithLabelValues(string(threat.Type), "created").Inc()
	fired := h.engine.Evaluate(threat, now)
	h.log.Info().
		Str("type", string(threat.Type)).
		Str("value", threat.Value).
		Int("alerts", len(fired)).
		Msg("threat ingested")
	jsonResp(w, http.StatusCreated, IngestResponse{Threat: threat, Alerts: fired})
}

// listThreats handles GET /api/v1/threats with filter query parameters.
func (h *Handler) listThreats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ThreatFilters{
		Type:     model.ThreatType(q.Get("type")),
		Severity: model.Severity(q.Get("severity")),
		Source:   q.Get("source"),
		Category: q.Get("category"),
		Country:  q.Get("country"),
		Search:   q.Get("q"),
		Limit:    queryInt(r, "limit", "50"),
		Offset:   queryInt(r, "offset", "0"),
	}
	if days := queryInt(r, "days", "0"); days > 0 {
		f.Since = h.now().AddDate(0, 0, -days)
	}

	threats, total, err := h.store.ListThreats(f)
	if err != nil {
		h.internalErr(w, err, "listing threats")
		return
	}
	jsonResp(w, http.StatusOK, ThreatListResponse{
		Threats: threats,
		Total:   total,
		Limit:   f.Limit,
		Offset:  f.Offset,
	})
}

// getThreat handles GET /api/v1/threats/{id}.
func (h *Handler) getThreat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	threat, err := h.store.GetThreat(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "threat not found")
			return
		}
		h.internalErr(w, err, "loading threat")
		return
	}
	jsonResp(w, http.StatusOK, threat)
}

// deleteThreat handles DELETE /api/v1/threats/{id}.
func (h *Handler) deleteThreat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.store.DeleteThreat(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "threat not found")
			return
		}
		h.internalErr(w, err, "deleting threat")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// search handles GET /api/v1/search?q=. A query that parses as a known
// IoC type is first resolved through the exact value index; otherwise
// (or additionally, when the exact lookup misses) it falls back to
// substring search.
func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		jsonErr(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	resp := SearchResponse{Query: query, Threats: []*model.ThreatRecord{}}

	if typ := model.DetectType(query); typ != "" {
		resp.DetectedType = typ
		if t, err := h.store.FindThreatByValue(typ, model.NormalizeValue(typ, query)); err == nil {
			resp.Threats = append(resp.Threats, t)
			jsonResp(w, http.StatusOK, resp)
			return
		} else if !errors.Is(err, store.ErrNotFound) {
			h.internalErr(w, err, "searching threats")
			return
		}
	}

	threats, _, err := h.store.ListThreats(store.ThreatFilters{Search: query, Limit: 50})
	if err != nil {
		h.internalErr(w, err, "searching threats")
		return
	}
	resp.Threats = threats
	jsonResp(w, http.StatusOK, resp)
}
