package app

import (
	"context"

	"puzzle-party-service/internal/domain"
)

// RoomRepository abstracts how live rooms are stored (in-memory, Redis, etc).
// Insert must be atomic with respect to the code: it reports false when the
// code is already taken so the caller can redraw.
type RoomRepository interface {
	Insert(room *Room) bool
	Get(code string) (*Room, bool)
	Delete(code string)
}

// GameRepository loads game content (from cache/backing store).
type GameRepository interface {
	GetGame(ctx context.Context, gameID string) (domain.Game, error)
}

// RoomService contains the core room use cases.
type RoomService struct {
	rooms RoomRepository
	games GameRepository
	codes *CodeGenerator
}

func NewRoomService(rooms RoomRepository, games GameRepository) *RoomService {
	return &RoomService{rooms: rooms, games: games, codes: NewCodeGenerator()}
}

// CreateRoom opens a room for the given game and returns its code. Code
// generation redraws until it lands on a code no live room holds; the
// collision is never surfaced to the caller.
func (s *RoomService) CreateRoom(ctx context.Context, gameID string) (string, error) {
	game, err := s.games.GetGame(ctx, gameID)
	if err != nil {
		return "", err
	}
	for {
		code := s.codes.Next()
		room := NewRoom(code, gameID, game.PuzzleCount())
		if s.rooms.Insert(room) {
			return code, nil
		}
	}
}

// GetRoom returns the current room snapshot.
func (s *RoomService) GetRoom(code string) (domain.RoomSnapshot, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.RoomSnapshot{}, domain.ErrRoomNotFound
	}
	return room.Snapshot(), nil
}

// Join registers a new player in a room.
func (s *RoomService) Join(code, name, group string) (string, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return "", domain.ErrRoomNotFound
	}
	return room.Join(name, group)
}

// Start, Advance and End are host-only lifecycle controls.

func (s *RoomService) Start(code string) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.Start()
}

func (s *RoomService) Advance(code string, index int) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.Advance(index)
}

func (s *RoomService) End(code string) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.End()
}

// UpdateProgress overwrites a player's own progress fields.
func (s *RoomService) UpdateProgress(code, playerID string, completedCount, score int) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.UpdateProgress(playerID, completedCount, score)
}

// UpdateGroupProgress union-merges answered indices into the group.
func (s *RoomService) UpdateGroupProgress(code, groupID string, answered []int) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.UpdateGroupProgress(groupID, answered)
}

// SetFinished marks a player done.
func (s *RoomService) SetFinished(code, playerID string) error {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.ErrRoomNotFound
	}
	return room.SetFinished(playerID)
}

// SubmitAnswer checks a guess server-side against the room's game.
func (s *RoomService) SubmitAnswer(ctx context.Context, code, playerID, guess string) (domain.AnswerResult, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.AnswerResult{}, domain.ErrRoomNotFound
	}
	game, err := s.games.GetGame(ctx, room.GameID())
	if err != nil {
		return domain.AnswerResult{}, err
	}
	return room.SubmitAnswer(playerID, guess, game)
}

// Broadcast appends a caller-supplied event to the room stream. The core
// stamps player id, resolved name, timestamp and sequence.
func (s *RoomService) Broadcast(code, playerID, eventType string, payload map[string]any) (domain.StreamEvent, error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return domain.StreamEvent{}, domain.ErrRoomNotFound
	}
	return room.Publish(playerID, eventType, payload)
}

// SubscribePlayers returns a level-triggered feed of the players mapping.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *RoomService) SubscribePlayers(code string) (<-chan map[string]domain.Player, func(), error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.SubscribePlayers()
	return ch, cancel, nil
}

// SubscribeRoom returns a feed of full room snapshots.
func (s *RoomService) SubscribeRoom(code string) (<-chan domain.RoomSnapshot, func(), error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.SubscribeRoom()
	return ch, cancel, nil
}

// SubscribeStream returns a feed of events published after subscription.
func (s *RoomService) SubscribeStream(code string) (<-chan domain.StreamEvent, func(), error) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.SubscribeStream()
	return ch, cancel, nil
}

// Teardown removes a room and terminates its subscriptions.
func (s *RoomService) Teardown(code string) {
	room, ok := s.rooms.Get(code)
	if !ok {
		return
	}
	s.rooms.Delete(code)
	room.Close()
}
