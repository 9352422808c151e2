package room

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type RoomDTO struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Max       int       `json:"max"`
	Owner     string    `json:"owner"`
	Locked    bool      `json:"locked"`
	CreatedAt time.Time `json:"createdAt" example:"2025-07-27T16:05:05Z"`

	passwordHash string
}

// CheckPassword reports whether password opens the room. Public rooms accept
// anything.
func (r *RoomDTO) CheckPassword(password string) bool {
	if r.passwordHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(r.passwordHash), []byte(password)) == nil
}

type MessageDTO struct {
	ID        int64     `json:"id"`
	Room      string    `json:"room"`
	User      string    `json:"user"`
	Chat      string    `json:"chat"`
	CreatedAt time.Time `json:"createdAt" example:"2025-07-27T16:05:05Z"`
}

type CreateRoomInput struct {
	Title    string
	Max      int
	Owner    string
	Password string
}

var (
	ErrRoomNotFound    = errors.New("room does not exist")
	ErrInvalidPassword = errors.New("wrong room password")
	ErrRoomFull        = errors.New("room is full")
	ErrRoomOccupied    = errors.New("room still has members")
	ErrInvalidRoom     = errors.New("room needs a title and a positive capacity")
	ErrPersistence     = errors.New("room store unavailable")
)

var passwordCost = bcrypt.DefaultCost

type IRoomService interface {
	CreateRoom(ctx context.Context, in CreateRoomInput) (*RoomDTO, error)
	GetRoom(ctx context.Context, id string) (*RoomDTO, error)
	ListRooms(ctx context.Context) ([]RoomDTO, error)
	DeleteRoom(ctx context.Context, id string) error
	SaveMessage(ctx context.Context, roomID, author, body string) (*MessageDTO, error)
	ListMessages(ctx context.Context, roomID string) ([]MessageDTO, error)
}

type roomService struct {
	db    *sql.DB
	cache *roomCache
}

var _ IRoomService = (*roomService)(nil)

// NewRoomService builds the room directory. rdc may be nil, in which case
// every lookup goes to Postgres.
func NewRoomService(db *sql.DB, rdc *redis.Client, cacheTTL time.Duration) IRoomService {
	return &roomService{
		db:    db,
		cache: newRoomCache(rdc, cacheTTL),
	}
}

func (svc *roomService) CreateRoom(ctx context.Context, in CreateRoomInput) (*RoomDTO, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || in.Max < 1 {
		return nil, ErrInvalidRoom
	}

	var hash string
	if in.Password != "" {
		b, err := bcrypt.GenerateFromPassword([]byte(in.Password), passwordCost)
		if err != nil {
			return nil, err
		}
		hash = string(b)
	}

	room := &RoomDTO{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Max:          in.Max,
		Owner:        in.Owner,
		Locked:       hash != "",
		passwordHash: hash,
	}
	const q = `INSERT INTO rooms (id, title, max, owner, password_hash)
	                VALUES ($1, $2, $3, $4, $5)
	             RETURNING created_at`
	err := svc.db.QueryRowContext(ctx, q,
		room.ID, room.Title, room.Max, room.Owner, hash,
	).Scan(&room.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: create room: %w", ErrPersistence, err)
	}

	svc.cache.put(ctx, room)
	return room, nil
}

func (svc *roomService) GetRoom(ctx context.Context, id string) (*RoomDTO, error) {
	// 1. Fast-path from the Redis hash
	if room, ok := svc.cache.get(ctx, id); ok {
		return room, nil
	}

	// 2. Otherwise go to Postgres
	const q = `SELECT id, title, max, owner, password_hash, created_at
	             FROM rooms WHERE id = $1`
	room := &RoomDTO{}
	err := svc.db.QueryRowContext(ctx, q, id).Scan(
		&room.ID, &room.Title, &room.Max, &room.Owner, &room.passwordHash, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("%w: find room %s: %w", ErrPersistence, id, err)
	}
	room.Locked = room.passwordHash != ""
	// Only CreateRoom writes the cache: a read racing DeleteRoom must not
	// bring a deleted room back after the evict.
	return room, nil
}

func (svc *roomService) ListRooms(ctx context.Context) ([]RoomDTO, error) {
	const q = `SELECT id, title, max, owner, password_hash, created_at
	             FROM rooms ORDER BY created_at DESC`
	rows, err := svc.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: list rooms: %w", ErrPersistence, err)
	}
	defer rows.Close()

	list := make([]RoomDTO, 0)
	for rows.Next() {
		var r RoomDTO
		if err := rows.Scan(&r.ID, &r.Title, &r.Max, &r.Owner, &r.passwordHash, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: list rooms: %w", ErrPersistence, err)
		}
		r.Locked = r.passwordHash != ""
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: list rooms: %w", ErrPersistence, err)
	}
	return list, nil
}

// DeleteRoom removes the room and its whole chat history. Deleting a room
// that is already gone is not an error.
func (svc *roomService) DeleteRoom(ctx context.Context, id string) error {
	tx, err := svc.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: delete room %s: %w", ErrPersistence, id, err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM chats WHERE room_id = $1`, id); err != nil {
		return fmt.Errorf("%w: delete chats %s: %w", ErrPersistence, id, err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id); err != nil {
		return fmt.Errorf("%w: delete room %s: %w", ErrPersistence, id, err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: delete room %s: %w", ErrPersistence, id, err)
	}

	svc.cache.evict(ctx, id)
	return nil
}

func (svc *roomService) SaveMessage(ctx context.Context, roomID, author, body string) (*MessageDTO, error) {
	msg := &MessageDTO{Room: roomID, User: author, Chat: body}
	const q = `INSERT INTO chats (room_id, author, body)
	                VALUES ($1, $2, $3)
	             RETURNING id, created_at`
	if err := svc.db.QueryRowContext(ctx, q, roomID, author, body).Scan(&msg.ID, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("%w: save message: %w", ErrPersistence, err)
	}
	return msg, nil
}

func (svc *roomService) ListMessages(ctx context.Context, roomID string) ([]MessageDTO, error) {
	const q = `SELECT id, room_id, author, body, created_at
	             FROM chats
	            WHERE room_id = $1
	         ORDER BY created_at ASC, id ASC`
	rows, err := svc.db.QueryContext(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: list messages: %w", ErrPersistence, err)
	}
	defer rows.Close()

	list := make([]MessageDTO, 0)
	for rows.Next() {
		var m MessageDTO
		if err := rows.Scan(&m.ID, &m.Room, &m.User, &m.Chat, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: list messages: %w", ErrPersistence, err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		zap.L().Warn("room.list_messages", zap.String("room", roomID), zap.Error(err))
		return nil, fmt.Errorf("%w: list messages: %w", ErrPersistence, err)
	}
	return list, nil
}
