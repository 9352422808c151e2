// Package lifecycle tears rooms down once nobody is left in them.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"roomchat/internal/metrics"

	"go.uber.org/zap"
)

const deleteTimeout = 5 * time.Second

var ErrTeardown = errors.New("room teardown failed")

type RoomDeleter interface {
	DeleteRoom(ctx context.Context, id string) error
}

type Announcer interface {
	AnnounceRemoved(roomID string)
}

// Coordinator deletes a room record and, after a grace delay, tells every
// room-list subscriber that the room is gone. The announcement timer cannot
// be cancelled: a recreated room always gets a fresh id.
type Coordinator struct {
	rooms     RoomDeleter
	announcer Announcer
	grace     time.Duration

	mu      sync.Mutex
	closed  bool
	pending sync.WaitGroup
}

func New(rooms RoomDeleter, announcer Announcer, grace time.Duration) *Coordinator {
	return &Coordinator{rooms: rooms, announcer: announcer, grace: grace}
}

// OnRoomEmptied is called when the last member of roomID has detached.
func (c *Coordinator) OnRoomEmptied(roomID string) {
	ctx, cancel := context.WithTimeout(context.Background(), deleteTimeout)
	defer cancel()
	_ = c.Teardown(ctx, roomID) // logged inside
}

// Teardown issues the delete request and schedules the removal
// announcement. On failure nothing is announced and no retry is scheduled.
func (c *Coordinator) Teardown(ctx context.Context, roomID string) error {
	if err := c.rooms.DeleteRoom(ctx, roomID); err != nil {
		metrics.Teardowns.WithLabelValues("failed").Inc()
		zap.L().Error("lifecycle.teardown_failed", zap.String("room", roomID), zap.Error(err))
		return fmt.Errorf("%w: %s: %w", ErrTeardown, roomID, err)
	}
	metrics.Teardowns.WithLabelValues("ok").Inc()
	zap.L().Info("lifecycle.room_deleted", zap.String("room", roomID), zap.Duration("announce_in", c.grace))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		zap.L().Info("lifecycle.announce_skipped", zap.String("room", roomID))
		return nil
	}
	c.pending.Add(1)
	time.AfterFunc(c.grace, func() {
		defer c.pending.Done()
		c.announcer.AnnounceRemoved(roomID)
	})
	return nil
}

// Wait stops scheduling new announcements and blocks until the ones already
// scheduled have fired. Teardowns after Wait still delete the room.
func (c *Coordinator) Wait() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.pending.Wait()
}
