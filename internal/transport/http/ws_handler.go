package http

import (
	"encoding/json"
	"log"
	"net/http"

	"puzzle-party-service/internal/app"
	"puzzle-party-service/internal/domain"
	"github.com/gorilla/websocket"
)

type WSHandler struct {
	service  *app.RoomService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.RoomService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type roomCreatedPayload struct {
	Code string              `json:"code"`
	Room domain.RoomSnapshot `json:"room"`
}

type joinedPayload struct {
	PlayerID string              `json:"playerId"`
	Room     domain.RoomSnapshot `json:"room"`
}

type advancePayload struct {
	Index int `json:"index"`
}

type answerPayload struct {
	Text string `json:"text"`
}

type progressPayload struct {
	CompletedCount int `json:"completedCount"`
	Score          int `json:"score"`
}

type groupProgressPayload struct {
	AnsweredIndices []int `json:"answeredIndices"`
}

type broadcastPayload struct {
	EventType string         `json:"eventType"`
	Payload   map[string]any `json:"payload"`
}

// ServeHostWS opens a room and wires the host connection into the room
// lifecycle controls. The room is created on upgrade and its code is the
// first message the host receives.
func (h *WSHandler) ServeHostWS(w http.ResponseWriter, r *http.Request) {
	gameID := r.URL.Query().Get("gameId")
	if gameID == "" {
		http.Error(w, "missing gameId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	code, err := h.service.CreateRoom(r.Context(), gameID)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	snap, err := h.service.GetRoom(code)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send, closeFeeds, ok := h.attachFeeds(conn, code)
	if !ok {
		return
	}
	defer closeFeeds()

	send <- outboundMessage[any]{Type: "room_created", Payload: roomCreatedPayload{Code: code, Room: snap}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			h.reply(send, h.service.Start(code))
		case "next":
			var payload advancePayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid next payload"}}
				continue
			}
			h.reply(send, h.service.Advance(code, payload.Index))
		case "end":
			h.reply(send, h.service.End(code))
		case "leaderboard":
			snap, err := h.service.GetRoom(code)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "leaderboard", Payload: app.RankPlayers(snap)}
		case "podium":
			snap, err := h.service.GetRoom(code)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "podium", Payload: app.ComputePodium(snap)}
		case "close":
			h.service.Teardown(code)
			return
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}
}

// ServePlayerWS joins a player into an existing room and wires the
// connection into progress, answer and broadcast use cases.
func (h *WSHandler) ServePlayerWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	name := r.URL.Query().Get("name")
	group := r.URL.Query().Get("group")
	if code == "" || name == "" {
		http.Error(w, "missing code or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	playerID, err := h.service.Join(code, name, group)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	snap, err := h.service.GetRoom(code)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	send, closeFeeds, ok := h.attachFeeds(conn, code)
	if !ok {
		return
	}
	defer closeFeeds()

	send <- outboundMessage[any]{Type: "joined", Payload: joinedPayload{PlayerID: playerID, Room: snap}}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), code, playerID, payload.Text)
			if err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		case "progress":
			var payload progressPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid progress payload"}}
				continue
			}
			h.reply(send, h.service.UpdateProgress(code, playerID, payload.CompletedCount, payload.Score))
		case "groupProgress":
			var payload groupProgressPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid groupProgress payload"}}
				continue
			}
			h.reply(send, h.service.UpdateGroupProgress(code, group, payload.AnsweredIndices))
		case "finished":
			h.reply(send, h.service.SetFinished(code, playerID))
		case "broadcast":
			var payload broadcastPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid broadcast payload"}}
				continue
			}
			if _, err := h.service.Broadcast(code, playerID, payload.EventType, payload.Payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}
}

// attachFeeds subscribes the connection to room snapshots, players
// snapshots and the event stream, and starts the writer goroutine that
// owns the connection. The returned closer drains everything down.
func (h *WSHandler) attachFeeds(conn *websocket.Conn, code string) (chan outboundMessage[any], func(), bool) {
	roomCh, cancelRoom, err := h.service.SubscribeRoom(code)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return nil, nil, false
	}
	playersCh, cancelPlayers, err := h.service.SubscribePlayers(code)
	if err != nil {
		cancelRoom()
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return nil, nil, false
	}
	streamCh, cancelStream, err := h.service.SubscribeStream(code)
	if err != nil {
		cancelRoom()
		cancelPlayers()
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return nil, nil, false
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	feedsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(feedsDone)
		for {
			select {
			case snap, ok := <-roomCh:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "room", Payload: snap}:
				case <-closeSignals:
					return
				}
			case players, ok := <-playersCh:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "players", Payload: players}:
				case <-closeSignals:
					return
				}
			case evt, ok := <-streamCh:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "stream", Payload: evt}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	closer := func() {
		cancelRoom()
		cancelPlayers()
		cancelStream()
		close(closeSignals)
		<-feedsDone
		close(send)
		<-writerDone
	}
	return send, closer, true
}

func (h *WSHandler) reply(send chan outboundMessage[any], err error) {
	if err != nil {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		return
	}
	send <- outboundMessage[any]{Type: "ok", Payload: struct{}{}}
}
