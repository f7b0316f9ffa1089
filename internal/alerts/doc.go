// Package alerts implements rule matching and alert delivery. The
// matcher decides whether a rule fires for an observed threat, gated by
// the rule's active flag and cooldown deadline; the engine runs every
// rule against each observed threat, persists trigger bookkeeping,
// records alert events, and fans out notifications to the WebSocket hub
// and configured webhooks.
package alerts
