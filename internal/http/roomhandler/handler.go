package roomhandler

import (
	"context"
	"errors"
	"net/http"

	"roomchat/internal/http/identity"
	"roomchat/internal/lifecycle"
	"roomchat/internal/ratelimit"
	"roomchat/internal/services/room"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ChatSender is the in-room broadcast channel as seen from HTTP.
type ChatSender interface {
	Send(ctx context.Context, roomID, author, body string) (*room.MessageDTO, error)
	Live(roomID string) int
}

type RoomAnnouncer interface {
	AnnounceCreated(r room.RoomDTO)
}

// Admitter is the join gate. Authorize is the password check alone, for
// routes that touch a room's chat without entering it.
type Admitter interface {
	Admit(ctx context.Context, roomID, password string) (*room.RoomDTO, error)
	Authorize(ctx context.Context, roomID, password string) (*room.RoomDTO, error)
}

type Teardowner interface {
	Teardown(ctx context.Context, roomID string) error
}

type Handler struct {
	svc      room.IRoomService
	gate     Admitter
	chat     ChatSender
	lobby    RoomAnnouncer
	teardown Teardowner
	limiter  *ratelimit.Limiter
}

func New(svc room.IRoomService, gate Admitter, chat ChatSender, lobby RoomAnnouncer, teardown Teardowner, limiter *ratelimit.Limiter) *Handler {
	return &Handler{svc: svc, gate: gate, chat: chat, lobby: lobby, teardown: teardown, limiter: limiter}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.list)
	r.POST("/rooms", h.create)
	r.GET("/rooms/:id", h.join)
	r.GET("/rooms/:id/chats", h.history)
	r.POST("/rooms/:id/chat", h.send)
	r.DELETE("/rooms/:id", h.remove)
}

// @Summary		List rooms
// @Description	Returns every room with its current number of connected members.
// @Tags			Rooms
// @Success		200	{array}		RoomView
// @Failure		500	{object}	ErrorResponse
// @Router			/rooms [get]
func (h *Handler) list(c *gin.Context) {
	rooms, err := h.svc.ListRooms(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]RoomView, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, RoomView{RoomDTO: r, Live: h.chat.Live(r.ID)})
	}
	c.JSON(http.StatusOK, out)
}

// @Summary		Create a room
// @Description	Creates a room owned by the caller and announces it on the room list.
// @Tags			Rooms
// @Param			body	body		CreateRoomBody	true	"Room payload"
// @Success		201		{object}	room.RoomDTO
// @Failure		400		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/rooms [post]
func (h *Handler) create(ginCtx *gin.Context) {
	var body CreateRoomBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}

	created, err := h.svc.CreateRoom(ginCtx.Request.Context(), room.CreateRoomInput{
		Title:    body.Title,
		Max:      body.Max,
		Owner:    identity.FromContext(ginCtx),
		Password: body.Password,
	})
	if err != nil {
		writeError(ginCtx, err)
		return
	}

	h.lobby.AnnounceCreated(*created)
	zap.L().Info("http.room_created", zap.String("room", created.ID), zap.String("owner", created.Owner))
	ginCtx.JSON(http.StatusCreated, created)
}

// @Summary		Enter a room
// @Description	Runs the join gate. On success the client may open /ws/chat?room_id={id}.
// @Tags			Rooms
// @Param			id			path		string	true	"Room ID"
// @Param			password	query		string	false	"Room password"
// @Success		200			{object}	JoinResponse
// @Failure		403			{object}	ErrorResponse
// @Failure		404			{object}	ErrorResponse
// @Failure		409			{object}	ErrorResponse
// @Router			/rooms/{id} [get]
func (h *Handler) join(ginCtx *gin.Context) {
	var q JoinQuery
	if err := ginCtx.ShouldBindQuery(&q); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	roomID := ginCtx.Param("id")

	admitted, err := h.gate.Admit(ginCtx.Request.Context(), roomID, q.Password)
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	chats, err := h.svc.ListMessages(ginCtx.Request.Context(), roomID)
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusOK, JoinResponse{
		Room:  admitted,
		Chats: chats,
		User:  identity.FromContext(ginCtx),
	})
}

// @Summary		Chat history
// @Description	Returns the messages of a room, oldest first.
// @Tags			Rooms
// @Param			id			path		string	true	"Room ID"
// @Param			password	query		string	false	"Room password"
// @Success		200			{array}		room.MessageDTO
// @Failure		403			{object}	ErrorResponse
// @Failure		404			{object}	ErrorResponse
// @Router			/rooms/{id}/chats [get]
func (h *Handler) history(c *gin.Context) {
	var q JoinQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	roomID := c.Param("id")
	if _, err := h.gate.Authorize(c.Request.Context(), roomID, q.Password); err != nil {
		writeError(c, err)
		return
	}
	chats, err := h.svc.ListMessages(c.Request.Context(), roomID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

// @Summary		Send a message
// @Description	Stores a message and relays it to everyone in the room.
// @Tags			Rooms
// @Param			id			path		string		true	"Room ID"
// @Param			password	query		string		false	"Room password"
// @Param			body		body		ChatBody	true	"Message payload"
// @Success		201			{object}	room.MessageDTO
// @Failure		400			{object}	ErrorResponse
// @Failure		403			{object}	ErrorResponse
// @Failure		404			{object}	ErrorResponse
// @Failure		429			{object}	ErrorResponse
// @Failure		500			{object}	ErrorResponse
// @Router			/rooms/{id}/chat [post]
func (h *Handler) send(ginCtx *gin.Context) {
	var body ChatBody
	if err := ginCtx.ShouldBindJSON(&body); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	var q JoinQuery
	if err := ginCtx.ShouldBindQuery(&q); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	roomID := ginCtx.Param("id")
	author := identity.FromContext(ginCtx)

	if h.limiter != nil && !h.limiter.Allow(author) {
		ginCtx.JSON(http.StatusTooManyRequests, &ErrorResponse{Error: "rate_limited"})
		return
	}
	if _, err := h.gate.Authorize(ginCtx.Request.Context(), roomID, q.Password); err != nil {
		writeError(ginCtx, err)
		return
	}

	msg, err := h.chat.Send(ginCtx.Request.Context(), roomID, author, body.Chat)
	if err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.JSON(http.StatusCreated, msg)
}

// @Summary		Delete a room
// @Description	Deletes an empty room and its history; the room list hears about it after the grace delay.
// @Tags			Rooms
// @Param			id			path	string	true	"Room ID"
// @Param			password	query	string	false	"Room password"
// @Success		202
// @Failure		403	{object}	ErrorResponse
// @Failure		404	{object}	ErrorResponse
// @Failure		409	{object}	ErrorResponse
// @Failure		500	{object}	ErrorResponse
// @Router			/rooms/{id} [delete]
func (h *Handler) remove(ginCtx *gin.Context) {
	var q JoinQuery
	if err := ginCtx.ShouldBindQuery(&q); err != nil {
		ginCtx.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
		return
	}
	roomID := ginCtx.Param("id")
	if _, err := h.gate.Authorize(ginCtx.Request.Context(), roomID, q.Password); err != nil {
		writeError(ginCtx, err)
		return
	}
	// Occupied rooms are torn down by their last member leaving.
	if h.chat.Live(roomID) > 0 {
		writeError(ginCtx, room.ErrRoomOccupied)
		return
	}
	if err := h.teardown.Teardown(ginCtx.Request.Context(), roomID); err != nil {
		writeError(ginCtx, err)
		return
	}
	ginCtx.Status(http.StatusAccepted)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, &ErrorResponse{Error: err.Error()})
	case errors.Is(err, room.ErrInvalidPassword):
		c.JSON(http.StatusForbidden, &ErrorResponse{Error: err.Error()})
	case errors.Is(err, room.ErrRoomFull), errors.Is(err, room.ErrRoomOccupied):
		c.JSON(http.StatusConflict, &ErrorResponse{Error: err.Error()})
	case errors.Is(err, room.ErrInvalidRoom):
		c.JSON(http.StatusBadRequest, &ErrorResponse{Error: err.Error()})
	case errors.Is(err, room.ErrPersistence), errors.Is(err, lifecycle.ErrTeardown):
		zap.L().Error("http.store", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, &ErrorResponse{Error: "storage unavailable"})
	default:
		zap.L().Error("http.unexpected", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, &ErrorResponse{Error: "internal error"})
	}
}
