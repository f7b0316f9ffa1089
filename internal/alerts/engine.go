package alerts

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/logging"
	"github.com/threatlens/threatlens/internal/metrics"
	"github.com/threatlens/threatlens/internal/model"
	"github.com/threatlens/threatlens/internal/store"
)

// Publisher receives fired alert events for live distribution. The
// WebSocket hub implements it.
type Publisher interface {
	Publish(*model.AlertEvent)
}

// Engine evaluates every stored alert rule against observed threats and
// handles the consequences of a trigger: persisted bookkeeping, an
// AlertEvent document, live broadcast, and webhook delivery.
//
// Engine is safe for concurrent use.
type Engine struct {
	store *store.Store
	log   zerolog.Logger

	mu        sync.RWMutex
	webhooks  []config.WebhookConfig
	publisher Publisher

	client *http.Client
}

// New creates an Engine backed by st. Webhook targets come from cfg and
// may be swapped at runtime via SetWebhooks (config hot reload).
func New(st *store.Store, cfg config.AlertsConfig) *Engine {
	return &Engine{
		store:    st,
		log:      logging.WithComponent("alerts"),
		webhooks: cfg.Webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// SetPublisher wires the live event publisher. Must be called before
// the first Evaluate; a nil publisher disables broadcasts.
func (e *Engine) SetPublisher(p Publisher) {
	e.mu.Lock()
	e.publisher = p
	e.mu.Unlock()
}

// SetWebhooks replaces the webhook target list.
func (e *Engine) SetWebhooks(webhooks []config.WebhookConfig) {
	e.mu.Lock()
	e.webhooks = webhooks
	e.mu.Unlock()
	e.log.Info().Int("count", len(webhooks)).Msg("webhook targets updated")
}

// Evaluate tests every active rule against threat. Rules that fire have
// their trigger bookkeeping persisted through the store's serialized
// rule update, an AlertEvent is recorded, and notifications go out
// asynchronously. Returns the events that fired.
func (e *Engine) Evaluate(threat *model.ThreatRecord, now time.Time) []*model.AlertEvent {
	rules, err := e.store.ListActiveRules()
	if err != nil {
		e.log.Error().Err(err).Msg("listing active rules failed")
		return nil
	}

	var fired []*model.AlertEvent
	for _, rule := range rules {
		if !ShouldTrigger(rule, threat, now) {
			continue
		}

		// Re-check under the store's rule lock: a concurrent evaluation
		// may have triggered this rule and started its cooldown since
		// the list was read.
		updated, err := e.store.UpdateRule(rule.ID, func(r *model.AlertRule) error {
			if !ShouldTrigger(r, threat, now) {
				return errSuppressed
			}
			RecordTrigger(r, threat.ID, now)
			return nil
		})
		if errors.Is(err, errSuppressed) {
			metrics.AlertsSuppressedTotal.Inc()
			continue
		}
		if err != nil {
			e.log.Error().Err(err).Str("rule", rule.ID).Msg("recording trigger failed")
			continue
		}

		event := model.NewAlertEvent(updated, threat, now)
		if err := e.store.AppendEvent(event); err != nil {
			e.log.Error().Err(err).Str("rule", rule.ID).Msg("persisting alert event failed")
		}
		metrics.AlertsFiredTotal.Inc()
		fired = append(fired, event)

		e.log.Warn().
			Str("rule", updated.Name).
			Str("threat", threat.Value).
			Str("severity", string(threat.Severity)).
			Msg("alert fired")

		e.notify(event)
	}
	return fired
}

var errSuppressed = errors.New("alerts: trigger suppressed")

// notify fans the event out to the publisher and webhook targets.
func (e *Engine) notify(event *model.AlertEvent) {
	e.mu.RLock()
	pub := e.publisher
	targets := make([]config.WebhookConfig, len(e.webhooks))
	copy(targets, e.webhooks)
	e.mu.RUnlock()

	if pub != nil {
		pub.Publish(event)
	}
	if len(targets) > 0 {
		go e.deliver(event, targets)
	}
}
