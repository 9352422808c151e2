package roomhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"roomchat/internal/http/identity"
	"roomchat/internal/lifecycle"
	"roomchat/internal/ratelimit"
	"roomchat/internal/services/room"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type stubService struct {
	room.IRoomService

	rooms     map[string]room.RoomDTO
	messages  []room.MessageDTO
	createErr error
	listErr   error
	created   []room.CreateRoomInput
}

func (s *stubService) CreateRoom(_ context.Context, in room.CreateRoomInput) (*room.RoomDTO, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, in)
	r := room.RoomDTO{ID: "new", Title: in.Title, Max: in.Max, Owner: in.Owner, Locked: in.Password != ""}
	return &r, nil
}

func (s *stubService) GetRoom(_ context.Context, id string) (*room.RoomDTO, error) {
	r, ok := s.rooms[id]
	if !ok {
		return nil, room.ErrRoomNotFound
	}
	return &r, nil
}

func (s *stubService) ListRooms(context.Context) ([]room.RoomDTO, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]room.RoomDTO, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out, nil
}

func (s *stubService) ListMessages(_ context.Context, roomID string) ([]room.MessageDTO, error) {
	out := make([]room.MessageDTO, 0)
	for _, m := range s.messages {
		if m.Room == roomID {
			out = append(out, m)
		}
	}
	return out, nil
}

// stubGate checks passwords from a plain map and capacity from full.
type stubGate struct {
	svc       *stubService
	passwords map[string]string
	full      map[string]bool
}

func (g *stubGate) Authorize(ctx context.Context, roomID, password string) (*room.RoomDTO, error) {
	r, err := g.svc.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if want, ok := g.passwords[roomID]; ok && want != password {
		return nil, room.ErrInvalidPassword
	}
	return r, nil
}

func (g *stubGate) Admit(ctx context.Context, roomID, password string) (*room.RoomDTO, error) {
	r, err := g.Authorize(ctx, roomID, password)
	if err != nil {
		return nil, err
	}
	if g.full[roomID] {
		return nil, room.ErrRoomFull
	}
	return r, nil
}

type stubChat struct {
	live    map[string]int
	sent    []string
	sendErr error
}

func (c *stubChat) Send(_ context.Context, roomID, author, body string) (*room.MessageDTO, error) {
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	c.sent = append(c.sent, body)
	return &room.MessageDTO{ID: int64(len(c.sent)), Room: roomID, User: author, Chat: body}, nil
}

func (c *stubChat) Live(roomID string) int { return c.live[roomID] }

type stubLobby struct{ announced []room.RoomDTO }

func (l *stubLobby) AnnounceCreated(r room.RoomDTO) { l.announced = append(l.announced, r) }

type stubTeardown struct {
	torn []string
	err  error
}

func (t *stubTeardown) Teardown(_ context.Context, roomID string) error {
	if t.err != nil {
		return fmt.Errorf("%w: %s: %w", lifecycle.ErrTeardown, roomID, t.err)
	}
	t.torn = append(t.torn, roomID)
	return nil
}

type fixture struct {
	svc      *stubService
	gate     *stubGate
	chat     *stubChat
	lobby    *stubLobby
	teardown *stubTeardown
	engine   *gin.Engine
}

func newFixture(limiter *ratelimit.Limiter) *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		svc: &stubService{rooms: map[string]room.RoomDTO{
			"r1":    {ID: "r1", Title: "general", Max: 3, Owner: "#111111", CreatedAt: time.Unix(0, 0).UTC()},
			"vault": {ID: "vault", Title: "private", Max: 3, Owner: "#222222", Locked: true},
		}},
		chat:     &stubChat{live: map[string]int{"r1": 2}},
		lobby:    &stubLobby{},
		teardown: &stubTeardown{},
	}
	f.gate = &stubGate{
		svc:       f.svc,
		passwords: map[string]string{"vault": "s3cret"},
		full:      map[string]bool{},
	}

	f.engine = gin.New()
	f.engine.Use(func(c *gin.Context) {
		c.Set(identity.ContextKey, "#abcdef")
		c.Next()
	})
	New(f.svc, f.gate, f.chat, f.lobby, f.teardown, limiter).Register(f.engine)
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func TestList(t *testing.T) {
	f := newFixture(nil)

	w := f.do(http.MethodGet, "/rooms", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got []RoomView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	live := map[string]int{}
	for _, r := range got {
		live[r.ID] = r.Live
	}
	assert.Equal(t, map[string]int{"r1": 2, "vault": 0}, live)
}

func TestList_StoreDown(t *testing.T) {
	f := newFixture(nil)
	f.svc.listErr = fmt.Errorf("%w: boom", room.ErrPersistence)

	w := f.do(http.MethodGet, "/rooms", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreate(t *testing.T) {
	f := newFixture(nil)

	w := f.do(http.MethodPost, "/rooms", CreateRoomBody{Title: "games", Max: 4, Password: "pw"})
	require.Equal(t, http.StatusCreated, w.Code)

	require.Len(t, f.svc.created, 1)
	assert.Equal(t, "#abcdef", f.svc.created[0].Owner, "owner is the caller's identity")
	assert.Equal(t, "pw", f.svc.created[0].Password)

	require.Len(t, f.lobby.announced, 1)
	assert.Equal(t, "games", f.lobby.announced[0].Title)
	assert.True(t, f.lobby.announced[0].Locked)
}

func TestCreate_BadBody(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing title", CreateRoomBody{Max: 4}},
		{"capacity too small", CreateRoomBody{Title: "x", Max: 1}},
		{"capacity too large", CreateRoomBody{Title: "x", Max: 11}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			w := f.do(http.MethodPost, "/rooms", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, f.lobby.announced)
		})
	}
}

func TestCreate_StoreFailureNotAnnounced(t *testing.T) {
	f := newFixture(nil)
	f.svc.createErr = fmt.Errorf("%w: insert", room.ErrPersistence)

	w := f.do(http.MethodPost, "/rooms", CreateRoomBody{Title: "games", Max: 4})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, f.lobby.announced)
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		full     bool
		wantCode int
		wantRoom string
	}{
		{name: "admitted", path: "/rooms/r1", wantCode: http.StatusOK, wantRoom: "r1"},
		{name: "unknown room", path: "/rooms/nope", wantCode: http.StatusNotFound},
		{name: "locked without password", path: "/rooms/vault", wantCode: http.StatusForbidden},
		{name: "locked wrong password", path: "/rooms/vault?password=x", wantCode: http.StatusForbidden},
		{name: "locked right password", path: "/rooms/vault?password=s3cret", wantCode: http.StatusOK, wantRoom: "vault"},
		{name: "full", path: "/rooms/r1", full: true, wantCode: http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			f.gate.full["r1"] = tt.full
			f.svc.messages = []room.MessageDTO{
				{ID: 1, Room: "r1", User: "#111111", Chat: "earlier"},
				{ID: 2, Room: "vault", User: "#222222", Chat: "hidden"},
			}

			w := f.do(http.MethodGet, tt.path, nil)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode != http.StatusOK {
				assert.NotContains(t, w.Body.String(), "hidden")
				return
			}
			var got JoinResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.wantRoom, got.Room.ID)
			assert.Equal(t, "#abcdef", got.User)
			require.Len(t, got.Chats, 1)
		})
	}
}

func TestHistory(t *testing.T) {
	f := newFixture(nil)
	f.svc.messages = []room.MessageDTO{
		{ID: 1, Room: "r1", Chat: "a"},
		{ID: 2, Room: "other", Chat: "b"},
		{ID: 3, Room: "r1", Chat: "c"},
	}

	w := f.do(http.MethodGet, "/rooms/r1/chats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []room.MessageDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Chat)
	assert.Equal(t, "c", got[1].Chat)

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/rooms/nope/chats", nil).Code)
}

func TestSend(t *testing.T) {
	f := newFixture(nil)

	w := f.do(http.MethodPost, "/rooms/r1/chat", ChatBody{Chat: "hello"})
	require.Equal(t, http.StatusCreated, w.Code)
	var got room.MessageDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "#abcdef", got.User)
	assert.Equal(t, []string{"hello"}, f.chat.sent)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/rooms/r1/chat", ChatBody{}).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/rooms/nope/chat", ChatBody{Chat: "x"}).Code)
}

func TestSend_StoreFailure(t *testing.T) {
	f := newFixture(nil)
	f.chat.sendErr = fmt.Errorf("%w: save message", room.ErrPersistence)

	w := f.do(http.MethodPost, "/rooms/r1/chat", ChatBody{Chat: "hello"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "save message")
}

func TestSend_RateLimited(t *testing.T) {
	f := newFixture(ratelimit.New(0.001, 1))

	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/rooms/r1/chat", ChatBody{Chat: "1"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, f.do(http.MethodPost, "/rooms/r1/chat", ChatBody{Chat: "2"}).Code)
	assert.Len(t, f.chat.sent, 1)
}

func TestHistory_LockedRoom(t *testing.T) {
	f := newFixture(nil)
	f.svc.messages = []room.MessageDTO{{ID: 1, Room: "vault", User: "#222222", Chat: "hidden"}}

	for _, path := range []string{"/rooms/vault/chats", "/rooms/vault/chats?password=guess"} {
		w := f.do(http.MethodGet, path, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.NotContains(t, w.Body.String(), "hidden", path)
	}

	w := f.do(http.MethodGet, "/rooms/vault/chats?password=s3cret", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "hidden")
}

func TestSend_LockedRoom(t *testing.T) {
	f := newFixture(nil)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/rooms/vault/chat", ChatBody{Chat: "intruder"}).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodPost, "/rooms/vault/chat?password=guess", ChatBody{Chat: "intruder"}).Code)
	assert.Empty(t, f.chat.sent)

	assert.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/rooms/vault/chat?password=s3cret", ChatBody{Chat: "member"}).Code)
	assert.Equal(t, []string{"member"}, f.chat.sent)
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantCode int
	}{
		{"empty room", "/rooms/vault?password=s3cret", http.StatusAccepted},
		{"occupied room", "/rooms/r1", http.StatusConflict},
		{"unknown room", "/rooms/nope", http.StatusNotFound},
		{"locked without password", "/rooms/vault", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(nil)
			w := f.do(http.MethodDelete, tt.path, nil)
			require.Equal(t, tt.wantCode, w.Code)
			if tt.wantCode == http.StatusAccepted {
				assert.Equal(t, []string{"vault"}, f.teardown.torn)
			} else {
				assert.Empty(t, f.teardown.torn)
			}
		})
	}
}

func TestRemove_TeardownFailure(t *testing.T) {
	f := newFixture(nil)
	f.teardown.err = errors.New("db down")

	assert.Equal(t, http.StatusInternalServerError, f.do(http.MethodDelete, "/rooms/vault?password=s3cret", nil).Code)
}

type liveCount map[string]int

func (c liveCount) Count(roomID string) int { return c[roomID] }

// TestLockedRoom_RealGate runs the chat routes through room.Gate backed by
// the Postgres room service.
func TestLockedRoom_RealGate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	roomCols := []string{"id", "title", "max", "owner", "password_hash", "created_at"}
	expectRoom := func() {
		mock.ExpectQuery(`SELECT id, title, max, owner, password_hash, created_at`).
			WithArgs("vault").
			WillReturnRows(sqlmock.NewRows(roomCols).AddRow("vault", "private", 3, "#222222", string(hash), time.Now()))
	}

	svc := room.NewRoomService(db, nil, time.Minute)
	chat := &stubChat{live: map[string]int{}}
	engine := gin.New()
	engine.Use(func(c *gin.Context) {
		c.Set(identity.ContextKey, "#abcdef")
		c.Next()
	})
	New(svc, room.NewGate(svc, liveCount{}), chat, &stubLobby{}, &stubTeardown{}, nil).Register(engine)

	serve := func(method, path string, body any) int {
		var buf bytes.Buffer
		if body != nil {
			_ = json.NewEncoder(&buf).Encode(body)
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w.Code
	}

	expectRoom()
	assert.Equal(t, http.StatusForbidden, serve(http.MethodGet, "/rooms/vault/chats", nil))

	expectRoom()
	assert.Equal(t, http.StatusForbidden, serve(http.MethodPost, "/rooms/vault/chat?password=wrong", ChatBody{Chat: "intruder"}))
	assert.Empty(t, chat.sent)

	expectRoom()
	mock.ExpectQuery(`SELECT id, room_id, author, body, created_at`).
		WithArgs("vault").
		WillReturnRows(sqlmock.NewRows([]string{"id", "room_id", "author", "body", "created_at"}).
			AddRow(1, "vault", "#222222", "hidden", time.Now()))
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, "/rooms/vault/chats?password=s3cret", nil))

	assert.NoError(t, mock.ExpectationsWereMet())
}
