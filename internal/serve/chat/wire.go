package chat

import (
	convo "github.com/samsaffron/proxychat/internal/chat"
)

// Server->client event types.
const (
	EventSessionReady  = "session_ready"
	EventCatchup       = "catchup"
	EventMessageAdded  = "message_added"
	EventMessageUpdate = "message_update"
	EventStreaming     = "streaming"
	EventSettings      = "settings"
	EventCleared       = "cleared"
	EventError         = "error"
)

// WireEvent is the JSON envelope sent server->client.
// Every event after session_ready has a monotonic Seq for catchup replay.
type WireEvent struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`

	// session_ready
	SessionID string          `json:"session_id,omitempty"`
	History   []convo.Message `json:"history,omitempty"`

	// catchup
	Events []WireEvent `json:"events,omitempty"`

	// session_ready / settings
	Settings *convo.Settings `json:"settings,omitempty"`

	// session_ready / streaming
	Streaming *bool `json:"streaming,omitempty"`

	// message_added
	Message *convo.Message `json:"message,omitempty"`

	// message_update
	ID   string `json:"id,omitempty"`
	Text string `json:"text,omitempty"`

	// error
	Error string `json:"error,omitempty"`
}

// ClientEvent is the JSON envelope sent client->server.
type ClientEvent struct {
	Type string `json:"type"`

	// message
	Text string `json:"text,omitempty"`

	// settings
	Settings *convo.SettingsPatch `json:"settings,omitempty"`
}

// ToWireEvent converts a store change into a WireEvent. It reports false
// for changes the client does not need.
func ToWireEvent(c convo.Change) (WireEvent, bool) {
	switch c.Type {
	case convo.ChangeAppended:
		msg := c.Message
		return WireEvent{Type: EventMessageAdded, Message: &msg}, true
	case convo.ChangeUpdated:
		return WireEvent{Type: EventMessageUpdate, ID: c.Message.ID, Text: c.Message.Content}, true
	case convo.ChangeStreaming:
		streaming := c.Streaming
		return WireEvent{Type: EventStreaming, Streaming: &streaming}, true
	case convo.ChangeSettings:
		settings := c.Settings
		return WireEvent{Type: EventSettings, Settings: &settings}, true
	case convo.ChangeCleared:
		return WireEvent{Type: EventCleared}, true
	case convo.ChangeError:
		if c.Error == "" {
			return WireEvent{}, false
		}
		return WireEvent{Type: EventError, Error: c.Error}, true
	default:
		return WireEvent{}, false
	}
}
