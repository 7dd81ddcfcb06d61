// Package relay implements the signaling relay: the handlers for join, leave,
// disconnect, signal, set-user-name and chat-message events.
//
// The relay owns the room directory and the activity tracker and is their
// only mutator. Every handler runs to completion under one mutex, so events
// never interleave mid-handler even though each connection is served by its
// own goroutine. Outbound events are handed to a Sender, which must not block.
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/Tyrowin/roomrelay/internal/activity"
	"github.com/Tyrowin/roomrelay/internal/room"
	"github.com/Tyrowin/roomrelay/internal/validate"
)

// Sender delivers an event to one connection. Implementations must return
// without blocking; the relay calls Send while holding its lock. Delivery to
// an unknown or closed connection is silently dropped.
type Sender interface {
	Send(connID string, ev Event)
}

// Observer receives relay activity for metrics. rejection is "" for an
// accepted event and the error category otherwise.
type Observer interface {
	ObserveEvent(event, rejection string)
	ObserveSignal(kind string)
	ObserveState(connections, rooms int)
}

type nopObserver struct{}

func (nopObserver) ObserveEvent(string, string) {}
func (nopObserver) ObserveSignal(string)        {}
func (nopObserver) ObserveState(int, int)       {}

// Stats is a point-in-time view of the directory.
type Stats struct {
	Connections int `json:"connections"`
	Rooms       int `json:"rooms"`
}

// Relay is the signaling service. Create one with New.
type Relay struct {
	mu       sync.Mutex
	dir      *room.Directory
	tracker  *activity.Tracker
	sender   Sender
	logger   *slog.Logger
	observer Observer
	clock    activity.Clock
	limits   activity.Config
}

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the clock used for rate windows and missing chat timestamps.
func WithClock(clock activity.Clock) Option {
	return func(r *Relay) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(r *Relay) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithLimits sets the rate-limit thresholds.
func WithLimits(cfg activity.Config) Option {
	return func(r *Relay) {
		r.limits = cfg
	}
}

// New creates a relay that delivers events through sender.
func New(sender Sender, opts ...Option) *Relay {
	r := &Relay{
		dir:      room.NewDirectory(),
		sender:   sender,
		logger:   slog.New(slog.DiscardHandler),
		observer: nopObserver{},
		clock:    activity.RealClock{},
		limits:   activity.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.tracker = activity.NewTracker(r.limits, r.clock)
	r.logger = r.logger.With("component", "relay")
	return r
}

// Connect registers a new connection and tells it its id.
func (r *Relay) Connect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.dir.Connect(connID)
	r.tracker.Open(connID)
	r.sender.Send(connID, Event{Name: EventConnected, Payload: ConnectedPayload{SocketID: connID}})
	r.logger.Debug("connection registered", "conn", connID)
	r.observeStateLocked()
}

// Join moves connID into roomID. A connection already in a room, including
// roomID itself, leaves it first with the usual peer-left notifications. The
// joiner receives peers-list and every other member receives peer-joined.
func (r *Relay) Join(connID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.joinLocked(connID, roomID)
	r.observer.ObserveEvent(EventJoin, RejectionType(err))
	return err
}

func (r *Relay) joinLocked(connID, roomID string) error {
	s, ok := r.dir.Session(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if err := validate.RoomID(roomID); err != nil {
		return r.rejectLocked(connID, ErrTypeRoom, err)
	}
	if err := r.tracker.AllowJoin(connID); err != nil {
		return r.rejectWithMessageLocked(connID, ErrTypeRoom, "Too many room joins, try again later", err)
	}

	if s.InRoom() {
		r.leaveLocked(connID)
	}

	peers, err := r.dir.Add(connID, roomID)
	if err != nil {
		return fmt.Errorf("relay: join %q: %w", roomID, err)
	}
	if peers == nil {
		peers = []string{}
	}
	if name := r.dir.Name(connID); name != "" && r.dir.NameTaken(roomID, name, connID) {
		r.dir.ClearName(connID)
		r.logger.Debug("display name held in room, cleared", "conn", connID, "room", roomID, "name", name)
	}

	r.sender.Send(connID, Event{Name: EventPeersList, Payload: PeersListPayload{Peers: peers}})
	joined := Event{Name: EventPeerJoined, Payload: PeerPayload{SocketID: connID}}
	for _, peer := range peers {
		r.sender.Send(peer, joined)
	}

	r.logger.Info("peer joined room", "conn", connID, "room", roomID, "members", len(peers)+1)
	r.observeStateLocked()
	return nil
}

// Leave takes connID out of roomID. It is a no-op when connID is not a member
// of roomID.
func (r *Relay) Leave(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.dir.Session(connID)
	if !ok || s.Room != roomID {
		r.observer.ObserveEvent(EventLeave, "")
		return
	}
	r.leaveLocked(connID)
	r.observer.ObserveEvent(EventLeave, "")
	r.observeStateLocked()
}

// leaveLocked removes connID from its current room, clears its display name,
// and notifies the remaining members.
func (r *Relay) leaveLocked(connID string) {
	roomID, remaining, ok := r.dir.Remove(connID)
	if !ok {
		return
	}
	r.dir.ClearName(connID)

	left := Event{Name: EventPeerLeft, Payload: PeerPayload{SocketID: connID}}
	for _, peer := range remaining {
		r.sender.Send(peer, left)
	}
	r.logger.Info("peer left room", "conn", connID, "room", roomID, "members", len(remaining))
}

// Disconnect purges every trace of connID: room membership (with peer-left
// notifications), display name and activity record. Calling it again for the
// same id does nothing.
func (r *Relay) Disconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dir.Session(connID); !ok {
		return
	}
	r.leaveLocked(connID)
	r.dir.Disconnect(connID)
	r.tracker.Close(connID)
	r.logger.Debug("connection removed", "conn", connID)
	r.observeStateLocked()
}

// Signal forwards req.Data to req.To as {from, data} when both connections
// share a room. Otherwise the sender gets a signal error and nothing is
// forwarded.
func (r *Relay) Signal(fromID string, req SignalRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.signalLocked(fromID, req)
	r.observer.ObserveEvent(EventSignal, RejectionType(err))
	return err
}

func (r *Relay) signalLocked(fromID string, req SignalRequest) error {
	if _, ok := r.dir.Session(fromID); !ok {
		return ErrUnknownConnection
	}
	if req.To == "" {
		return r.rejectWithMessageLocked(fromID, ErrTypeSignal, "Signal target is required", nil)
	}
	if emptyPayload(req.Data) {
		return r.rejectWithMessageLocked(fromID, ErrTypeSignal, "Signal payload is empty", nil)
	}
	if !r.dir.SameRoom(fromID, req.To) {
		return r.rejectWithMessageLocked(fromID, ErrTypeSignal, "Target peer is not in your room", nil)
	}

	kind := classifySignal(req.Data)
	r.sender.Send(req.To, Event{Name: EventSignal, Payload: SignalPayload{From: fromID, Data: req.Data}})
	r.observer.ObserveSignal(kind)
	r.logger.Debug("signal relayed", "from", fromID, "to", req.To, "kind", kind, "bytes", len(req.Data))
	return nil
}

// SetName validates and stores a display name. Inside a room the name must be
// unused by the other members and the change is announced to every member,
// the setter included. Outside a room only the setter is acknowledged.
func (r *Relay) SetName(connID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.setNameLocked(connID, name)
	r.observer.ObserveEvent(EventSetUserName, RejectionType(err))
	return err
}

func (r *Relay) setNameLocked(connID, name string) error {
	s, ok := r.dir.Session(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if err := validate.UserName(name); err != nil {
		return r.rejectLocked(connID, ErrTypeUserName, err)
	}

	name = strings.TrimSpace(name)
	if s.InRoom() && r.dir.NameTaken(s.Room, name, connID) {
		return r.rejectWithMessageLocked(connID, ErrTypeUserName, "Username is already taken in this room", nil)
	}
	if err := r.dir.SetName(connID, name); err != nil {
		return fmt.Errorf("relay: set name: %w", err)
	}

	ev := Event{Name: EventUserNameSet, Payload: UserNamePayload{SocketID: connID, UserName: name}}
	if !s.InRoom() {
		r.sender.Send(connID, ev)
		return nil
	}
	for _, member := range r.dir.Members(s.Room) {
		r.sender.Send(member, ev)
	}
	r.logger.Debug("display name set", "conn", connID, "room", s.Room)
	return nil
}

// Chat broadcasts a chat message to the other members of the sender's room.
// Messages from a connection outside any room are dropped without an error.
// The author is always taken from the server-side display name.
func (r *Relay) Chat(connID string, req ChatRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	err := r.chatLocked(connID, req)
	r.observer.ObserveEvent(EventChatMessage, RejectionType(err))
	return err
}

func (r *Relay) chatLocked(connID string, req ChatRequest) error {
	s, ok := r.dir.Session(connID)
	if !ok {
		return ErrUnknownConnection
	}
	if !s.InRoom() {
		r.logger.Debug("chat message outside a room dropped", "conn", connID)
		return nil
	}
	if err := validate.ChatText(req.Text); err != nil {
		return r.rejectLocked(connID, ErrTypeChat, err)
	}
	if err := r.tracker.AllowMessage(connID); err != nil {
		return r.rejectWithMessageLocked(connID, ErrTypeChat, rateLimitMessage(err), err)
	}

	author := r.dir.Name(connID)
	if author == "" {
		author = GuestName
	}
	timestamp := req.Timestamp
	if timestamp <= 0 {
		timestamp = float64(r.clock.Now().UnixMilli())
	}

	ev := Event{Name: EventChatMessage, Payload: ChatPayload{Author: author, Text: req.Text, Timestamp: timestamp}}
	for _, member := range r.dir.Members(s.Room) {
		if member == connID {
			continue
		}
		r.sender.Send(member, ev)
	}
	return nil
}

func rateLimitMessage(err error) string {
	switch {
	case errors.Is(err, activity.ErrTooFast):
		return "You are sending messages too quickly"
	case errors.Is(err, activity.ErrMessageLimit):
		return "Message limit reached, try again in a minute"
	default:
		return "Message rejected"
	}
}

// Dispatch decodes data for the named inbound event and runs its handler.
// Unknown events and undecodable payloads are answered with an error event.
func (r *Relay) Dispatch(connID, event string, data json.RawMessage) error {
	switch event {
	case EventJoin:
		var roomID string
		if err := json.Unmarshal(data, &roomID); err != nil {
			return r.rejectEvent(connID, EventJoin, ErrTypeRoom, "Room ID must be a string")
		}
		return r.Join(connID, roomID)

	case EventLeave:
		var roomID string
		if err := json.Unmarshal(data, &roomID); err != nil {
			return r.rejectEvent(connID, EventLeave, ErrTypeRoom, "Room ID must be a string")
		}
		r.Leave(connID, roomID)
		return nil

	case EventSignal:
		var req SignalRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return r.rejectEvent(connID, EventSignal, ErrTypeSignal, "Malformed signal")
		}
		return r.Signal(connID, req)

	case EventSetUserName:
		var req SetNameRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return r.rejectEvent(connID, EventSetUserName, ErrTypeUserName, "Malformed username request")
		}
		return r.SetName(connID, req.UserName)

	case EventChatMessage:
		var req ChatRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return r.rejectEvent(connID, EventChatMessage, ErrTypeChat, "Malformed chat message")
		}
		return r.Chat(connID, req)

	default:
		return r.rejectEvent(connID, EventUnknown, ErrTypeEvent, fmt.Sprintf("Unknown event %q", event))
	}
}

// Reject sends an error event of type "event" to connID and returns the
// matching *RejectError. The transport uses it for frames it cannot decode.
func (r *Relay) Reject(connID, message string) error {
	return r.rejectEvent(connID, EventUnknown, ErrTypeEvent, message)
}

func (r *Relay) rejectEvent(connID, event, errType, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.dir.Session(connID); !ok {
		return ErrUnknownConnection
	}
	err := r.rejectWithMessageLocked(connID, errType, message, nil)
	r.observer.ObserveEvent(event, errType)
	return err
}

func (r *Relay) rejectLocked(connID, errType string, err error) error {
	message := err.Error()
	var verr *validate.Error
	if errors.As(err, &verr) {
		message = verr.Reason
	}
	return r.rejectWithMessageLocked(connID, errType, message, err)
}

func (r *Relay) rejectWithMessageLocked(connID, errType, message string, cause error) error {
	r.sender.Send(connID, ErrorEvent(errType, message))
	r.logger.Debug("operation rejected", "conn", connID, "type", errType, "reason", message)
	return &RejectError{Type: errType, Message: message, Err: cause}
}

// Stats returns the current connection and room counts.
func (r *Relay) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Connections: r.dir.SessionCount(), Rooms: r.dir.RoomCount()}
}

// Members returns the members of roomID in join order.
func (r *Relay) Members(roomID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir.Members(roomID)
}

// RoomOf returns the room connID currently occupies, or "".
func (r *Relay) RoomOf(connID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.dir.Session(connID); ok {
		return s.Room
	}
	return ""
}

func (r *Relay) observeStateLocked() {
	r.observer.ObserveState(r.dir.SessionCount(), r.dir.RoomCount())
}
