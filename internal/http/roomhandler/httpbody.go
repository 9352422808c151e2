package roomhandler

import "roomchat/internal/services/room"

type CreateRoomBody struct {
	Title    string `json:"title"    binding:"required,max=100"      example:"general"`
	Max      int    `json:"max"      binding:"required,min=2,max=10" example:"10"`
	Password string `json:"password" binding:"omitempty,max=72"      example:""`
} // @name CreateRoomRequest

type ChatBody struct {
	Chat string `json:"chat" binding:"required,max=1000" example:"hello"`
} // @name ChatRequest

type RoomView struct {
	room.RoomDTO
	Live int `json:"live" example:"3"`
} // @name RoomView

type JoinResponse struct {
	Room  *room.RoomDTO     `json:"room"`
	Chats []room.MessageDTO `json:"chats"`
	User  string            `json:"user" example:"#3fa2c1"`
} // @name JoinResponse

type JoinQuery struct {
	Password string `form:"password"`
} // @name JoinQuery

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
