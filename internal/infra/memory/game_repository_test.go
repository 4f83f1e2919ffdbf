package memory

import (
	"context"
	"testing"
	"time"

	"puzzle-party-service/internal/domain"
)

func TestGameRepositoryCaches(t *testing.T) {
	loader := &countingLoader{
		GameLoader: NewStaticGameLoader(map[string]domain.Game{
			"space-1": sampleGame(),
		}),
	}
	repo := NewGameRepository(loader, time.Minute)

	if _, err := repo.GetGame(context.Background(), "space-1"); err != nil {
		t.Fatalf("get game: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls)
	}

	if _, err := repo.GetGame(context.Background(), "space-1"); err != nil {
		t.Fatalf("get game 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls)
	}
}

func TestGameRepositoryNormalizesAnswersOnFill(t *testing.T) {
	loader := NewStaticGameLoader(map[string]domain.Game{
		"space-1": {
			ID: "space-1",
			Puzzles: []domain.Puzzle{
				{Index: 0, Answers: []string{"  MOON ", "moon", "", "Luna"}},
			},
		},
	})
	repo := NewGameRepository(loader, time.Minute)

	game, err := repo.GetGame(context.Background(), "space-1")
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	got := game.Puzzles[0].Answers
	want := []string{"moon", "luna"}
	if len(got) != len(want) {
		t.Fatalf("expected answers %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected answers %v, got %v", want, got)
		}
	}

	if _, ok := game.Match("\u200bMOON\u200b", func(int) bool { return false }); !ok {
		t.Fatalf("expected normalized guess to match cached answers")
	}
}

func TestGameRepositoryUnknownGame(t *testing.T) {
	repo := NewGameRepository(NewStaticGameLoader(nil), time.Minute)
	if _, err := repo.GetGame(context.Background(), "nope"); err != domain.ErrGameNotFound {
		t.Fatalf("expected game not found, got %v", err)
	}
}

type countingLoader struct {
	GameLoader
	calls int
}

func (l *countingLoader) LoadGame(ctx context.Context, gameID string) (domain.Game, error) {
	l.calls++
	return l.GameLoader.LoadGame(ctx, gameID)
}

func sampleGame() domain.Game {
	return domain.Game{
		ID: "space-1",
		Puzzles: []domain.Puzzle{
			{Index: 0, Answers: []string{"30"}},
			{Index: 1, Answers: []string{"moon"}},
		},
	}
}
