package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/threatlens/threatlens/internal/model"
	"github.com/threatlens/threatlens/internal/reports"
	"github.com/threatlens/threatlens/internal/store"
)

// lookupIP handles GET /api/v1/lookup/ip/{addr}.
func (h *Handler) lookupIP(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["addr"]
	res, err := h.lookup.Lookup(r.Context(), addr)
	if err != nil {
		jsonErr(w, http.StatusBadGateway, err.Error())
		return
	}
	jsonResp(w, http.StatusOK, res)
}

// dashboard handles GET /api/v1/dashboard — everything the landing page
// charts need in one call.
func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	since := h.windowStart(r, now)

	summary, err := reports.BuildSummary(h.store, since, now)
	if err != nil {
		h.internalErr(w, err, "building summary")
		return
	}
	recent, _, err := h.store.ListThreats(store.ThreatFilters{Limit: 10})
	if err != nil {
		h.internalErr(w, err, "listing recent threats")
		return
	}
	alerts, err := h.store.RecentEvents("", 10)
	if err != nil {
		h.internalErr(w, err, "listing recent alerts")
		return
	}
	if recent == nil {
		recent = []*model.ThreatRecord{}
	}
	if alerts == nil {
		alerts = []*model.AlertEvent{}
	}
	jsonResp(w, http.StatusOK, DashboardResponse{
		Summary:       summary,
		RecentThreats: recent,
		RecentAlerts:  alerts,
	})
}

// reportSummary handles GET /api/v1/reports/summary?days=.
func (h *Handler) reportSummary(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	summary, err := reports.BuildSummary(h.store, h.windowStart(r, now), now)
	if err != nil {
		h.internalErr(w, err, "building summary")
		return
	}
	jsonResp(w, http.StatusOK, summary)
}

// reportExport handles GET /api/v1/reports/export?format=csv|json with
// the same filters as the threat list.
func (h *Handler) reportExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.ThreatFilters{
		Type:     model.ThreatType(q.Get("type")),
		Severity: model.Severity(q.Get("severity")),
		Source:   q.Get("source"),
		Country:  q.Get("country"),
	}
	if days := queryInt(r, "days", "0"); days > 0 {
		f.Since = h.now().AddDate(0, 0, -days)
	}

	threats, _, err := h.store.ListThreats(f)
	if err != nil {
		h.internalErr(w, err, "listing threats")
		return
	}

	filename := fmt.Sprintf("threats-%s", h.now().UTC().Format("20060102-150405"))
	switch q.Get("format") {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.json"`)
		if err := reports.WriteJSON(w, threats); err != nil {
			h.log.Error().Err(err).Msg("writing JSON export failed")
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
		if err := reports.WriteCSV(w, threats); err != nil {
			h.log.Error().Err(err).Msg("writing CSV export failed")
		}
	default:
		jsonErr(w, http.StatusBadRequest, "format must be csv or json")
	}
}

// windowStart turns a ?days= query into an absolute window start; zero
// means no window.
func (h *Handler) windowStart(r *http.Request, now time.Time) time.Time {
	if days := queryInt(r, "days", "0"); days > 0 {
		return now.AddDate(0, 0, -days)
	}
	return time.Time{}
}
