package redis

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"puzzle-party-service/internal/app"
	"puzzle-party-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RoomStore is a Redis-aware implementation of app.RoomRepository.
// Notes:
//   - It still keeps a local in-memory map of rooms to reuse the existing
//     in-process subscription fan-out.
//   - Every mutation mirrors the full room document into Redis (one JSON
//     document per room keyed by code) and refreshes its idle TTL, so the
//     key doubles as a liveness marker and rooms with no activity expire.
//   - For true distribution you'd pair this with a pub/sub projector that
//     fans out snapshots across instances.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	rooms  map[string]*app.Room
}

func NewRoomStore(client *redis.Client, ttl time.Duration) *RoomStore {
	return &RoomStore{
		client: client,
		ttl:    ttl,
		rooms:  make(map[string]*app.Room),
	}
}

func (s *RoomStore) Insert(room *app.Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := room.Code()
	if _, ok := s.rooms[code]; ok {
		return false
	}
	room.SetMirror(func(snap domain.RoomSnapshot) {
		s.writeSnapshot(snap)
	})
	s.rooms[code] = room
	s.writeSnapshot(room.Snapshot())
	return true
}

func (s *RoomStore) Get(code string) (*app.Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[code]
	return room, ok
}

func (s *RoomStore) Delete(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[code]; !ok {
		return
	}
	delete(s.rooms, code)
	_ = s.client.Del(context.Background(), s.key(code)).Err()
}

// Len reports the number of live rooms held in-process.
func (s *RoomStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

func (s *RoomStore) writeSnapshot(snap domain.RoomSnapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	// best-effort mirror; the in-memory document stays authoritative
	_ = s.client.Set(context.Background(), s.key(snap.Code), data, s.ttl).Err()
}

func (s *RoomStore) key(code string) string {
	return "room:" + code
}
