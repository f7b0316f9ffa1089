// Package ws implements the WebSocket hub that streams fired alert
// events to connected dashboard clients. Unlike a polling feed, the hub
// is event-driven: the alert engine publishes each fired event and the
// hub fans it out immediately.
package ws
