package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sort"
	"strconv"
	"time"

	"puzzle-party-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// GameLoader fetches game content from a backing store (e.g., document DB).
type GameLoader interface {
	LoadGame(ctx context.Context, gameID string) (domain.Game, error)
}

// GameRepository caches puzzles in Redis (hash per game) and falls back to
// a loader on cache miss. Puzzles are stored as:
// HSET game:{gameID}:puzzles {index} {json-encoded puzzle}
type GameRepository struct {
	client *redis.Client
	loader GameLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewGameRepository(client *redis.Client, loader GameLoader, ttl time.Duration) *GameRepository {
	return &GameRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *GameRepository) GetGame(ctx context.Context, gameID string) (domain.Game, error) {
	key := r.puzzlesKey(gameID)

	fields, err := r.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return buildGameFromCache(gameID, fields), nil
	}

	result, err, _ := r.sf.Do(gameID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := r.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			return buildGameFromCache(gameID, fields), nil
		}

		game, err := r.loader.LoadGame(ctx, gameID)
		if err != nil {
			return domain.Game{}, err
		}

		ttl := r.ttlWithJitter()
		pipe := r.client.Pipeline()
		for _, p := range game.Puzzles {
			data, err := json.Marshal(p)
			if err != nil {
				continue
			}
			pipe.HSet(ctx, key, strconv.Itoa(p.Index), data)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return game, nil
	})
	if err != nil {
		return domain.Game{}, err
	}
	return result.(domain.Game), nil
}

func (r *GameRepository) puzzlesKey(gameID string) string {
	return "game:" + gameID + ":puzzles"
}

func buildGameFromCache(gameID string, fields map[string]string) domain.Game {
	puzzles := make([]domain.Puzzle, 0, len(fields))
	for field, raw := range fields {
		var p domain.Puzzle
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		if idx, err := strconv.Atoi(field); err == nil {
			p.Index = idx
		}
		puzzles = append(puzzles, p)
	}
	sort.Slice(puzzles, func(i, j int) bool { return puzzles[i].Index < puzzles[j].Index })
	return domain.Game{ID: gameID, Puzzles: puzzles}
}

func (r *GameRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
