package ws

import (
	"sync"

	"roomchat/internal/metrics"
	"roomchat/internal/presence"
	"roomchat/internal/services/room"

	"go.uber.org/zap"
)

// Lobby is the room-list broadcast domain. Every subscriber gets newRoom and
// removeRoom events whatever chat room it may be in. Delivery is
// best-effort: nothing is replayed to a subscriber that was offline.
type Lobby struct {
	mu   sync.RWMutex
	subs map[*presence.Member]struct{}
}

func NewLobby() *Lobby { return &Lobby{subs: map[*presence.Member]struct{}{}} }

func (l *Lobby) Subscribe(m *presence.Member) {
	l.mu.Lock()
	l.subs[m] = struct{}{}
	l.mu.Unlock()
	metrics.LobbySubscribers.Inc()
}

func (l *Lobby) Unsubscribe(m *presence.Member) {
	l.mu.Lock()
	_, ok := l.subs[m]
	delete(l.subs, m)
	l.mu.Unlock()
	if ok {
		metrics.LobbySubscribers.Dec()
	}
}

func (l *Lobby) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.subs)
}

// AnnounceCreated publishes a new room to the room list.
func (l *Lobby) AnnounceCreated(r room.RoomDTO) {
	l.broadcast(encode(EventNewRoom, r))
}

// AnnounceRemoved tells subscribers to drop roomID from their list.
func (l *Lobby) AnnounceRemoved(roomID string) {
	l.broadcast(encode(EventRemoveRoom, roomID))
	zap.L().Info("ws.room_removed_announced", zap.String("room", roomID))
}

func (l *Lobby) broadcast(msg []byte) {
	if msg == nil {
		return
	}
	// Take a quick snapshot of the current subscribers
	l.mu.RLock()
	subs := make([]*presence.Member, 0, len(l.subs))
	for m := range l.subs {
		subs = append(subs, m)
	}
	l.mu.RUnlock()

	for _, m := range subs {
		if !m.TrySend(msg) {
			m.Close()
		}
	}
}
