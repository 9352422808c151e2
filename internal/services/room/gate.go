package room

import "context"

// LiveCounter reports how many connections are currently inside a room.
type LiveCounter interface {
	Count(roomID string) int
}

// Gate decides whether a client may enter a room. Capacity is checked
// against live connections, never against a stored counter.
type Gate struct {
	rooms IRoomService
	live  LiveCounter
}

func NewGate(rooms IRoomService, live LiveCounter) *Gate {
	return &Gate{rooms: rooms, live: live}
}

// Authorize checks existence and password only. Every route that reads or
// writes a room's chat goes through it.
func (g *Gate) Authorize(ctx context.Context, roomID, password string) (*RoomDTO, error) {
	room, err := g.rooms.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.CheckPassword(password) {
		return nil, ErrInvalidPassword
	}
	return room, nil
}

// Admit returns the room when the client may proceed to the chat socket.
// Errors are ErrRoomNotFound, ErrInvalidPassword, ErrRoomFull or a wrapped
// ErrPersistence.
func (g *Gate) Admit(ctx context.Context, roomID, password string) (*RoomDTO, error) {
	room, err := g.Authorize(ctx, roomID, password)
	if err != nil {
		return nil, err
	}
	if g.live.Count(roomID) >= room.Max {
		return nil, ErrRoomFull
	}
	return room, nil
}
