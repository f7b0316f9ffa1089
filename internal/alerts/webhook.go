package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/threatlens/threatlens/internal/config"
	"github.com/threatlens/threatlens/internal/metrics"
	"github.com/threatlens/threatlens/internal/model"
)

// deliver sends webhook notifications for event to all targets.
// Errors are logged but do not affect the caller.
func (e *Engine) deliver(event *model.AlertEvent, targets []config.WebhookConfig) {
	for _, wh := range targets {
		url := wh.URL()
		if url == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = e.sendSlack(url, event)
		case "teams":
			err = e.sendTeams(url, event)
		case "http":
			err = e.sendHTTP(url, event)
		default:
			e.log.Warn().Str("type", wh.Type).Msg("unknown webhook type, skipping")
			continue
		}

		if err != nil {
			metrics.WebhookDeliveriesTotal.WithLabelValues(wh.Type, "failed").Inc()
			e.log.Error().Err(err).
				Str("type", wh.Type).
				Str("rule", event.RuleName).
				Msg("webhook delivery failed")
		} else {
			metrics.WebhookDeliveriesTotal.WithLabelValues(wh.Type, "success").Inc()
			e.log.Debug().
				Str("type", wh.Type).
				Str("rule", event.RuleName).
				Msg("webhook delivered")
		}
	}
}

func eventMessage(event *model.AlertEvent) string {
	return fmt.Sprintf("[%s] %s matched %s %q",
		event.Severity, event.RuleName, event.Type, event.Value)
}

func (e *Engine) sendSlack(url string, event *model.AlertEvent) error {
	body, _ := json.Marshal(map[string]string{
		"text": eventMessage(event),
	})
	return e.post(url, body)
}

func (e *Engine) sendTeams(url string, event *model.AlertEvent) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(event.Severity),
		"summary":    event.RuleName,
		"title":      fmt.Sprintf("ThreatLens Alert: %s", event.RuleName),
		"text":       eventMessage(event),
	}
	body, _ := json.Marshal(payload)
	return e.post(url, body)
}

func (e *Engine) sendHTTP(url string, event *model.AlertEvent) error {
	body, _ := json.Marshal(map[string]interface{}{"alert": event})
	return e.post(url, body)
}

func (e *Engine) post(url string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityColor(s model.Severity) string {
	switch s {
	case model.SeverityCritical:
		return "FF4F6A"
	case model.SeverityHigh:
		return "FFAB40"
	case model.SeverityMedium:
		return "FFD740"
	default:
		return "00D4FF"
	}
}
