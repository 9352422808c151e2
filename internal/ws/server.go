package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"roomchat/internal/http/identity"
	"roomchat/internal/presence"
	"roomchat/internal/ratelimit"
	"roomchat/internal/services/room"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be < pongWait
	maxMessageSize = 4096
	handlerTimeout = 1900 * time.Millisecond
)

var ErrRateLimited = errors.New("rate_limited")

// ConnContext is the per-connection state handed to event handlers. A chat
// connection belongs to exactly one room for its whole life.
type ConnContext struct {
	RoomID   string
	Identity string
	Member   *presence.Member
	Server   *WsServer
}

// RoomFinder looks a room up before a chat socket is opened for it.
type RoomFinder interface {
	GetRoom(ctx context.Context, id string) (*room.RoomDTO, error)
}

type WsServer struct {
	rooms      RoomFinder
	lobby      *Lobby
	chat       *ChatChannel
	router     *Router
	limiter    *ratelimit.Limiter
	sendBuffer int
	upgrader   websocket.Upgrader
}

func NewWsServer(rooms RoomFinder, lobby *Lobby, chat *ChatChannel, limiter *ratelimit.Limiter, sendBuffer int) *WsServer {
	srv := &WsServer{
		rooms:      rooms,
		lobby:      lobby,
		chat:       chat,
		router:     NewRouter(),
		limiter:    limiter,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // dev-only
		},
	}
	srv.registerHandlers() // ← all chat socket events configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-points
// ---------------------------------------------------------------------------

// HandleRoom subscribes the caller to room-list events.
func (s *WsServer) HandleRoom(ginCtx *gin.Context) {
	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	member := presence.NewMember(identity.FromContext(ginCtx), s.sendBuffer)
	conn := newClientConn(rawConn, member)
	s.lobby.Subscribe(member)

	go conn.writePump()
	go func() {
		defer s.lobby.Unsubscribe(member)
		conn.readLoop(func([]byte) {}) // the room list is push-only
	}()
}

// HandleChat attaches the caller to the room named by the room_id query
// value. Clients must have passed the join gate first.
func (s *WsServer) HandleChat(ginCtx *gin.Context) {
	roomID := ginCtx.Query("room_id")
	if roomID == "" {
		ginCtx.JSON(http.StatusBadRequest, gin.H{"error": "room_id is required"})
		return
	}
	ident := identity.FromContext(ginCtx)

	// Capacity is the gate's job; here the room only has to exist.
	if _, err := s.rooms.GetRoom(ginCtx.Request.Context(), roomID); err != nil {
		if errors.Is(err, room.ErrRoomNotFound) {
			ginCtx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		zap.L().Error("ws.room_lookup", zap.String("room", roomID), zap.Error(err))
		ginCtx.JSON(http.StatusInternalServerError, gin.H{"error": "storage unavailable"})
		return
	}

	rawConn, err := s.upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}

	// ─────────────────── Client joined ────────────────────────
	member := presence.NewMember(ident, s.sendBuffer)
	conn := newClientConn(rawConn, member)
	if err := s.chat.Attach(roomID, member); err != nil {
		zap.L().Warn("ws.attach", zap.String("room", roomID), zap.Error(err))
		_ = rawConn.Close()
		return
	}

	go conn.writePump()
	go s.reader(&ConnContext{RoomID: roomID, Identity: ident, Member: member, Server: s}, conn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 chat -----------------------------------------------------------------
	Register(
		s.router,
		EventChat,
		func(ctx context.Context, cc *ConnContext, req ChatRequest) (ChatAck, error) {
			if s.limiter != nil && !s.limiter.Allow(cc.Identity) {
				return ChatAck{}, ErrRateLimited
			}
			msg, err := s.chat.Send(ctx, cc.RoomID, cc.Identity, req.Chat)
			if err != nil {
				return ChatAck{}, err
			}
			return ChatAck{ID: msg.ID}, nil
		},
	)
}

func (s *WsServer) reader(cc *ConnContext, conn *clientConn) {
	// Presence cleanup runs whatever happened on the socket.
	defer s.chat.Detach(cc.Member)

	conn.readLoop(func(data []byte) {
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			conn.reply(EventError, ErrorBody{Error: "bad_frame"})
			return
		}

		// Not tied to the socket: a send in flight at disconnect still completes.
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			conn.reply(EventError, ErrorBody{Error: clientError(err)})
			return
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		conn.reply(env.Event+"-ack", res)
	})
}

// clientError hides store details from the client; they are already logged.
func clientError(err error) string {
	if errors.Is(err, room.ErrPersistence) {
		return "message_not_saved"
	}
	return err.Error()
}
