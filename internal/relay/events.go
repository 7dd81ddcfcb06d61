package relay

import "encoding/json"

// Inbound event names.
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventSignal      = "signal"
	EventSetUserName = "set-user-name"
	EventChatMessage = "chat-message"

	// EventUnknown labels frames whose event name is missing or unrecognised.
	EventUnknown = "unknown"
)

// Outbound event names. EventSignal and EventChatMessage are shared with the
// inbound side.
const (
	EventConnected   = "connected"
	EventPeersList   = "peers-list"
	EventPeerJoined  = "peer-joined"
	EventPeerLeft    = "peer-left"
	EventUserNameSet = "user-name-set"
	EventError       = "error"
)

// Error categories carried in error events.
const (
	ErrTypeRoom     = "room"
	ErrTypeSignal   = "signal"
	ErrTypeUserName = "username"
	ErrTypeChat     = "chat"
	ErrTypeEvent    = "event"
)

// GuestName is the chat author used for connections without a display name.
const GuestName = "Guest"

// Event is one outbound message addressed to a single connection.
type Event struct {
	Name    string
	Payload any
}

// SignalRequest is the payload of an inbound signal event.
type SignalRequest struct {
	To   string          `json:"to"`
	Data json.RawMessage `json:"data"`
}

// SetNameRequest is the payload of an inbound set-user-name event.
type SetNameRequest struct {
	UserName string `json:"userName"`
}

// ChatRequest is the payload of an inbound chat-message event. Timestamp is
// the client's epoch milliseconds.
type ChatRequest struct {
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// ConnectedPayload tells a new connection its own id.
type ConnectedPayload struct {
	SocketID string `json:"socketId"`
}

// PeersListPayload lists the other members of a room just joined.
type PeersListPayload struct {
	Peers []string `json:"peers"`
}

// PeerPayload identifies a peer that joined or left.
type PeerPayload struct {
	SocketID string `json:"socketId"`
}

// SignalPayload is a forwarded signal. Data is passed through untouched.
type SignalPayload struct {
	From string          `json:"from"`
	Data json.RawMessage `json:"data"`
}

// UserNamePayload announces a display name change.
type UserNamePayload struct {
	SocketID string `json:"socketId"`
	UserName string `json:"userName"`
}

// ChatPayload is a broadcast chat message.
type ChatPayload struct {
	Author    string  `json:"author"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// ErrorPayload describes a rejected operation.
type ErrorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ErrorEvent builds an error event.
func ErrorEvent(errType, message string) Event {
	return Event{Name: EventError, Payload: ErrorPayload{Type: errType, Message: message}}
}
