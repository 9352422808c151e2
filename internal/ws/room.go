package ws

import (
	"context"
	"errors"
	"fmt"

	"roomchat/internal/metrics"
	"roomchat/internal/presence"
	"roomchat/internal/services/room"

	"go.uber.org/zap"
)

// MessageStore persists chat messages before they are relayed.
type MessageStore interface {
	SaveMessage(ctx context.Context, roomID, author, body string) (*room.MessageDTO, error)
}

// RoomEmptiedHandler is told when the last member of a room detaches.
type RoomEmptiedHandler interface {
	OnRoomEmptied(roomID string)
}

// ChatChannel is the in-room broadcast domain. Each room is its own
// sub-group; frames never cross from one room to another.
type ChatChannel struct {
	registry  *presence.Registry
	store     MessageStore
	lifecycle RoomEmptiedHandler
}

func NewChatChannel(reg *presence.Registry, store MessageStore, lifecycle RoomEmptiedHandler) *ChatChannel {
	return &ChatChannel{registry: reg, store: store, lifecycle: lifecycle}
}

// Attach puts m into roomID and tells the members already there. No capacity
// check happens here; the join gate runs before a client gets this far.
func (c *ChatChannel) Attach(roomID string, m *presence.Member) error {
	notice := encode(EventJoin, SystemBody{User: systemUser, Chat: m.Identity + " entered"})
	live, err := c.registry.Attach(roomID, m, notice)
	if err != nil {
		return err
	}
	metrics.ChatMembers.Inc()
	metrics.ActiveRooms.Set(float64(c.registry.RoomCount()))
	zap.L().Info("ws.chat_attach",
		zap.String("room", roomID),
		zap.String("identity", m.Identity),
		zap.Int("live", live),
	)
	return nil
}

// Send stores the message and only then relays it to every member of the
// room, the sender included. A store failure is returned wrapped in
// room.ErrPersistence and nothing is broadcast.
func (c *ChatChannel) Send(ctx context.Context, roomID, author, body string) (*room.MessageDTO, error) {
	msg, err := c.store.SaveMessage(ctx, roomID, author, body)
	if err != nil {
		metrics.ChatMessages.WithLabelValues("failed").Inc()
		if !errors.Is(err, room.ErrPersistence) {
			err = fmt.Errorf("%w: %w", room.ErrPersistence, err)
		}
		zap.L().Error("ws.chat_persist", zap.String("room", roomID), zap.String("identity", author), zap.Error(err))
		return nil, err
	}
	metrics.ChatMessages.WithLabelValues("ok").Inc()

	if frame := encode(EventChat, msg); frame != nil {
		c.registry.Broadcast(roomID, frame)
	}
	return msg, nil
}

// Detach removes m from its room. The remaining members get an exit notice;
// if nobody remains the room is handed to the lifecycle coordinator instead.
func (c *ChatChannel) Detach(m *presence.Member) {
	notice := encode(EventExit, SystemBody{User: systemUser, Chat: m.Identity + " left"})
	roomID, remaining, ok := c.registry.Detach(m, notice)
	if !ok {
		return
	}
	metrics.ChatMembers.Dec()
	metrics.ActiveRooms.Set(float64(c.registry.RoomCount()))
	zap.L().Info("ws.chat_detach",
		zap.String("room", roomID),
		zap.String("identity", m.Identity),
		zap.Int("live", remaining),
	)
	if remaining == 0 {
		c.lifecycle.OnRoomEmptied(roomID)
	}
}

// Live reports the current member count of roomID.
func (c *ChatChannel) Live(roomID string) int {
	return c.registry.Count(roomID)
}
