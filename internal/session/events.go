package session

import (
	"go.mau.fi/whatsmeow/types/events"
)

// EventKind identifies an engine event.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventQRIssued
	EventMessageReceived
	EventMessageSent
)

// Event is the typed form of a session event. All events flow through one
// ordered channel to a single consumer, which is what makes the ingest
// path's check-then-mark dedup race-free without extra locking.
type Event struct {
	Kind    EventKind
	QRCode  string
	Message *events.Message
}

// String returns the event kind name for logging.
func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	case EventQRIssued:
		return "qr_issued"
	case EventMessageReceived:
		return "message_received"
	case EventMessageSent:
		return "message_sent"
	default:
		return "unknown"
	}
}
