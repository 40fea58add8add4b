package relay

import (
	"sync"

	"golang.org/x/exp/maps"
)

// RoomRegistry is the only cross-connection shared mutable state: rooms
// keyed by document id, and a global presence table keyed by session id.
// One coarse mutex guards the whole registry. Membership churn is rare
// relative to delta traffic, so contention is not a concern.
//
// The registry stores ids and presence only. Sessions (connections) are
// owned by the Relay.
type RoomRegistry struct {
	mu       sync.Mutex
	rooms    map[string]map[Id]bool
	sessions map[Id]*sessionEntry
}

type sessionEntry struct {
	documentId string
	userId     string
	presence   PresenceInfo
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:    map[string]map[Id]bool{},
		sessions: map[Id]*sessionEntry{},
	}
}

// Join creates the room if absent and inserts the session. Re-join by the
// same session id overwrites its presence. A session belongs to at most
// one room; joining a second document without leaving first is a caller
// error.
func (self *RoomRegistry) Join(documentId string, sessionId Id, userId string, presence PresenceInfo) {
	self.mu.Lock()
	defer self.mu.Unlock()

	room, ok := self.rooms[documentId]
	if !ok {
		room = map[Id]bool{}
		self.rooms[documentId] = room
	}
	room[sessionId] = true
	self.sessions[sessionId] = &sessionEntry{
		documentId: documentId,
		userId:     userId,
		presence:   presence,
	}
}

// ListOthers returns presence for every session in the room except the
// excluded one. Order is unspecified.
func (self *RoomRegistry) ListOthers(documentId string, excluding Id) []UserInfo {
	self.mu.Lock()
	defer self.mu.Unlock()

	others := []UserInfo{}
	for sessionId := range self.rooms[documentId] {
		if sessionId == excluding {
			continue
		}
		entry, ok := self.sessions[sessionId]
		if !ok {
			continue
		}
		others = append(others, UserInfo{
			SessionId: sessionId,
			UserId:    entry.userId,
			Presence:  entry.presence,
		})
	}
	return others
}

// Members returns the session ids in the room except the excluded one.
func (self *RoomRegistry) Members(documentId string, excluding Id) []Id {
	self.mu.Lock()
	defer self.mu.Unlock()

	members := []Id{}
	for sessionId := range self.rooms[documentId] {
		if sessionId != excluding {
			members = append(members, sessionId)
		}
	}
	return members
}

// Leave removes the session from its room and from the presence table,
// deleting the room if it becomes empty. No-op for unknown session ids.
func (self *RoomRegistry) Leave(sessionId Id) {
	self.mu.Lock()
	defer self.mu.Unlock()

	entry, ok := self.sessions[sessionId]
	if !ok {
		return
	}
	delete(self.sessions, sessionId)

	room, ok := self.rooms[entry.documentId]
	if !ok {
		return
	}
	delete(room, sessionId)
	if len(room) == 0 {
		delete(self.rooms, entry.documentId)
	}
}

func (self *RoomRegistry) RoomExists(documentId string) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	room, ok := self.rooms[documentId]
	return ok && 0 < len(room)
}

func (self *RoomRegistry) Rooms() []string {
	self.mu.Lock()
	defer self.mu.Unlock()
	return maps.Keys(self.rooms)
}
