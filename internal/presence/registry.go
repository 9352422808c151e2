// Package presence tracks which realtime connections are currently inside
// which chat room. It is the only source for live member counts.
package presence

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrAlreadyAttached = errors.New("member already attached to a room")

// Registry maps a room id to the set of members connected to it.
//
// Membership changes and fan-out share one lock, so every member of a room
// sees joins, messages and leaves in the same order.
type Registry struct {
	mu      sync.Mutex
	rooms   map[string]map[*Member]struct{}
	members map[*Member]string // member -> room id
}

func NewRegistry() *Registry {
	return &Registry{
		rooms:   make(map[string]map[*Member]struct{}),
		members: make(map[*Member]string),
	}
}

// Attach adds m to roomID and queues notice (if any) for every other member
// of that room. It returns the live count after the insertion.
func (r *Registry) Attach(roomID string, m *Member, notice []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[m]; ok {
		return 0, ErrAlreadyAttached
	}
	set, ok := r.rooms[roomID]
	if !ok {
		set = make(map[*Member]struct{})
		r.rooms[roomID] = set
	}
	if notice != nil {
		r.fanout(set, notice)
	}
	set[m] = struct{}{}
	r.members[m] = roomID
	return len(set), nil
}

// Detach removes m from its room. When members remain, notice is queued for
// them; otherwise the room entry is dropped. ok is false if m was not attached.
func (r *Registry) Detach(m *Member, notice []byte) (roomID string, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomID, ok = r.members[m]
	if !ok {
		return "", 0, false
	}
	delete(r.members, m)

	set := r.rooms[roomID]
	delete(set, m)
	remaining = len(set)
	if remaining == 0 {
		delete(r.rooms, roomID)
		return roomID, 0, true
	}
	if notice != nil {
		r.fanout(set, notice)
	}
	return roomID, remaining, true
}

// Broadcast queues frame for every member of roomID, returning how many
// members accepted it.
func (r *Registry) Broadcast(roomID string, frame []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fanout(r.rooms[roomID], frame)
}

func (r *Registry) Count(roomID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms[roomID])
}

func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

// RoomOf returns the room m is attached to.
func (r *Registry) RoomOf(m *Member) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.members[m]
	return id, ok
}

// fanout must be called with r.mu held. A member whose queue is full is
// closed; its connection then detaches through the normal path.
func (r *Registry) fanout(set map[*Member]struct{}, frame []byte) int {
	sent := 0
	for m := range set {
		if m.TrySend(frame) {
			sent++
			continue
		}
		zap.L().Warn("presence.slow_member", zap.String("member", m.ID), zap.String("identity", m.Identity))
		m.Close()
	}
	return sent
}
