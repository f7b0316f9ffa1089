package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/threatlens/threatlens/internal/auth"
	"github.com/threatlens/threatlens/internal/model"
	"github.com/threatlens/threatlens/internal/store"
)

// createRule handles POST /api/v1/rules. The rule is owned by the
// authenticated caller; a missing cooldown_minutes falls back to the
// configured default.
func (h *Handler) createRule(w http.ResponseWriter, r *http.Request) {
	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cooldown := h.defaultCooldown
	if req.CooldownMinutes != nil {
		cooldown = *req.CooldownMinutes
	}

	rule, err := model.NewAlertRule(auth.UserID(r.Context()), req.Name, req.Conditions, cooldown, h.now())
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}

	if err := h.store.PutRule(rule); err != nil {
		h.internalErr(w, err, "storing rule")
		return
	}
	h.log.Info().Str("rule", rule.Name).Str("owner", rule.OwnerID).Msg("alert rule created")
	jsonResp(w, http.StatusCreated, rule)
}

// listRules handles GET /api/v1/rules — the caller's rules only.
func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.store.ListRules(auth.UserID(r.Context()))
	if err != nil {
		h.internalErr(w, err, "listing rules")
		return
	}
	if rules == nil {
		rules = []*model.AlertRule{}
	}
	jsonResp(w, http.StatusOK, rules)
}

// getRule handles GET /api/v1/rules/{id}.
func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := h.ownedRule(w, r)
	if !ok {
		return
	}
	jsonResp(w, http.StatusOK, rule)
}

// updateRule handles PUT /api/v1/rules/{id}. Only the definition fields
// change here; trigger bookkeeping is owned by the alert engine.
func (h *Handler) updateRule(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ownedRule(w, r); !ok {
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Conditions.Validate(); err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.CooldownMinutes != nil && *req.CooldownMinutes < 0 {
		jsonErr(w, http.StatusBadRequest, "cooldown must not be negative")
		return
	}

	id := mux.Vars(r)["id"]
	updated, err := h.store.UpdateRule(id, func(rule *model.AlertRule) error {
		if req.Name != "" {
			rule.Name = req.Name
		}
		rule.Conditions = req.Conditions
		if req.IsActive != nil {
			rule.IsActive = *req.IsActive
		}
		if req.CooldownMinutes != nil {
			rule.CooldownMinutes = *req.CooldownMinutes
		}
		rule.UpdatedAt = h.now()
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "rule not found")
			return
		}
		h.internalErr(w, err, "updating rule")
		return
	}
	jsonResp(w, http.StatusOK, updated)
}

// deleteRule handles DELETE /api/v1/rules/{id}.
func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ownedRule(w, r); !ok {
		return
	}
	if err := h.store.DeleteRule(mux.Vars(r)["id"]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "rule not found")
			return
		}
		h.internalErr(w, err, "deleting rule")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listAlerts handles GET /api/v1/alerts — the caller's recent events,
// newest first.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", "50")
	events, err := h.store.RecentEvents(auth.UserID(r.Context()), limit)
	if err != nil {
		h.internalErr(w, err, "listing alerts")
		return
	}
	if events == nil {
		events = []*model.AlertEvent{}
	}
	jsonResp(w, http.StatusOK, events)
}

// ownedRule loads the addressed rule and enforces that the caller owns
// it. Writes the error response itself when it returns ok=false.
func (h *Handler) ownedRule(w http.ResponseWriter, r *http.Request) (*model.AlertRule, bool) {
	rule, err := h.store.GetRule(mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonErr(w, http.StatusNotFound, "rule not found")
			return nil, false
		}
		h.internalErr(w, err, "loading rule")
		return nil, false
	}
	if rule.OwnerID != auth.UserID(r.Context()) {
		// Hide other users' rules entirely.
		jsonErr(w, http.StatusNotFound, "rule not found")
		return nil, false
	}
	return rule, true
}
