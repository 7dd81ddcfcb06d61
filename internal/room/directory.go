// Package room tracks which connections are in which rooms, and the display
// name each connection has chosen.
//
// A Directory keeps two maps in step: room id to the ordered list of member
// connection ids, and connection id to its Session. A connection is listed in
// a room exactly when that room is the session's current room, and a room is
// deleted as soon as its last member goes.
package room

import (
	"errors"
	"slices"
)

var (
	// ErrUnknownSession is returned for a connection id that was never
	// connected or has already been disconnected.
	ErrUnknownSession = errors.New("room: unknown session")
	// ErrAlreadyInRoom is returned by Add when the session still occupies a
	// room; callers remove it first.
	ErrAlreadyInRoom = errors.New("room: session already in a room")
)

// Session is the per-connection record looked up on every event.
type Session struct {
	ID   string
	Name string
	Room string
}

// InRoom reports whether the session currently occupies a room.
func (s *Session) InRoom() bool {
	return s.Room != ""
}

// Directory is the room membership table.
//
// Directory is not safe for concurrent use; the relay guards it.
type Directory struct {
	rooms    map[string][]string
	sessions map[string]*Session
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		rooms:    make(map[string][]string),
		sessions: make(map[string]*Session),
	}
}

// Connect registers a session for id and returns it. Connecting an existing id
// returns the existing session.
func (d *Directory) Connect(id string) *Session {
	if s, ok := d.sessions[id]; ok {
		return s
	}
	s := &Session{ID: id}
	d.sessions[id] = s
	return s
}

// Session looks up the session for id.
func (d *Directory) Session(id string) (*Session, bool) {
	s, ok := d.sessions[id]
	return s, ok
}

// Add puts the session into roomID and returns the members that were already
// there, in join order.
func (d *Directory) Add(id, roomID string) ([]string, error) {
	s, ok := d.sessions[id]
	if !ok {
		return nil, ErrUnknownSession
	}
	if s.InRoom() {
		return nil, ErrAlreadyInRoom
	}

	existing := slices.Clone(d.rooms[roomID])
	d.rooms[roomID] = append(d.rooms[roomID], id)
	s.Room = roomID
	return existing, nil
}

// Remove takes the session out of its current room. It returns the room it
// left and the members still there, or ok=false when the session was not in
// a room. The room is deleted once empty.
func (d *Directory) Remove(id string) (roomID string, remaining []string, ok bool) {
	s, found := d.sessions[id]
	if !found || !s.InRoom() {
		return "", nil, false
	}

	roomID = s.Room
	members := d.rooms[roomID]
	if i := slices.Index(members, id); i >= 0 {
		members = slices.Delete(members, i, i+1)
	}
	if len(members) == 0 {
		delete(d.rooms, roomID)
	} else {
		d.rooms[roomID] = members
	}
	s.Room = ""
	return roomID, slices.Clone(members), true
}

// Disconnect removes the session from its room and forgets it. The return
// values match Remove. Disconnecting an unknown id is a no-op.
func (d *Directory) Disconnect(id string) (roomID string, remaining []string, ok bool) {
	roomID, remaining, ok = d.Remove(id)
	delete(d.sessions, id)
	return roomID, remaining, ok
}

// Members returns a copy of the member list of roomID in join order.
func (d *Directory) Members(roomID string) []string {
	return slices.Clone(d.rooms[roomID])
}

// SameRoom reports whether a and b both occupy the same room.
func (d *Directory) SameRoom(a, b string) bool {
	sa, ok := d.sessions[a]
	if !ok || !sa.InRoom() {
		return false
	}
	sb, ok := d.sessions[b]
	if !ok {
		return false
	}
	return sa.Room == sb.Room
}

// NameTaken reports whether a member of roomID other than except already uses
// name. The comparison is exact.
func (d *Directory) NameTaken(roomID, name, except string) bool {
	for _, id := range d.rooms[roomID] {
		if id == except {
			continue
		}
		if s, ok := d.sessions[id]; ok && s.Name == name {
			return true
		}
	}
	return false
}

// SetName stores the display name for id. An empty name clears it.
func (d *Directory) SetName(id, name string) error {
	s, ok := d.sessions[id]
	if !ok {
		return ErrUnknownSession
	}
	s.Name = name
	return nil
}

// ClearName drops the display name for id. Unknown ids are ignored.
func (d *Directory) ClearName(id string) {
	if s, ok := d.sessions[id]; ok {
		s.Name = ""
	}
}

// Name returns the display name for id, or "" when none is set.
func (d *Directory) Name(id string) string {
	if s, ok := d.sessions[id]; ok {
		return s.Name
	}
	return ""
}

// RoomCount returns the number of non-empty rooms.
func (d *Directory) RoomCount() int {
	return len(d.rooms)
}

// SessionCount returns the number of connected sessions.
func (d *Directory) SessionCount() int {
	return len(d.sessions)
}
