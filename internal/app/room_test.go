package app_test

import (
	"sync"
	"testing"
	"time"

	"puzzle-party-service/internal/app"
	"puzzle-party-service/internal/domain"
)

func TestLifecycleTransitions(t *testing.T) {
	room := app.NewRoom("1234", "space-1", 7)

	if err := room.Advance(1); err != domain.ErrInvalidTransition {
		t.Fatalf("advance in lobby: expected invalid transition, got %v", err)
	}
	if err := room.End(); err != domain.ErrInvalidTransition {
		t.Fatalf("end in lobby: expected invalid transition, got %v", err)
	}
	if got := room.Snapshot().Status; got != domain.StatusLobby {
		t.Fatalf("rejected transition mutated status to %s", got)
	}

	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	snap := room.Snapshot()
	if snap.Status != domain.StatusPlaying || snap.CurrentQuestion != 0 {
		t.Fatalf("expected playing at question 0, got %s/%d", snap.Status, snap.CurrentQuestion)
	}
	if snap.StartTime.IsZero() {
		t.Fatalf("expected start time set")
	}

	if err := room.Start(); err != domain.ErrInvalidTransition {
		t.Fatalf("double start: expected invalid transition, got %v", err)
	}

	if err := room.Advance(3); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := room.Snapshot().CurrentQuestion; got != 3 {
		t.Fatalf("expected question 3, got %d", got)
	}

	if err := room.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
	if err := room.End(); err != nil {
		t.Fatalf("end should be idempotent once finished, got %v", err)
	}
	if err := room.Start(); err != domain.ErrInvalidTransition {
		t.Fatalf("start after finished: expected invalid transition, got %v", err)
	}
	if got := room.Snapshot().Status; got != domain.StatusFinished {
		t.Fatalf("expected finished, got %s", got)
	}
}

func TestAdvanceResetsQuestionClock(t *testing.T) {
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	current := base
	room := app.NewRoomWithClock("1234", "space-1", 7, func() time.Time { return current })

	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	current = base.Add(45 * time.Second)
	if err := room.Advance(1); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := room.Snapshot().StartTime; !got.Equal(current) {
		t.Fatalf("expected start time reset to %v, got %v", current, got)
	}
}

func TestConcurrentGroupProgressMerges(t *testing.T) {
	room := app.NewRoom("1234", "space-1", 7)

	var wg sync.WaitGroup
	for _, indices := range [][]int{{1, 3}, {2, 3}} {
		wg.Add(1)
		go func(indices []int) {
			defer wg.Done()
			if err := room.UpdateGroupProgress("g1", indices); err != nil {
				t.Errorf("group progress: %v", err)
			}
		}(indices)
	}
	wg.Wait()

	got := room.Snapshot().Groups["g1"].AnsweredQuestions
	want := []int{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected union %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected union %v, got %v", want, got)
		}
	}
}

func TestGroupProgressNeverShrinks(t *testing.T) {
	room := app.NewRoom("1234", "space-1", 7)

	if err := room.UpdateGroupProgress("g1", []int{0, 1, 2}); err != nil {
		t.Fatalf("group progress: %v", err)
	}
	// A late, stale writer with a smaller set must not erase anything.
	if err := room.UpdateGroupProgress("g1", []int{1}); err != nil {
		t.Fatalf("group progress: %v", err)
	}
	if got := room.Snapshot().Groups["g1"].AnsweredQuestions; len(got) != 3 {
		t.Fatalf("expected 3 merged indices, got %v", got)
	}
}

func TestGroupProgressRequiresGroup(t *testing.T) {
	room := app.NewRoom("1234", "space-1", 7)
	if err := room.UpdateGroupProgress("", []int{0}); err != domain.ErrGroupRequired {
		t.Fatalf("expected group required error, got %v", err)
	}
}

func TestStreamOrderingAndResubscribe(t *testing.T) {
	room := app.NewRoom("1234", "space-1", 7)
	playerID, err := room.Join("Alice", "g1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	events, cancel := room.SubscribeStream()

	for i := 0; i < 3; i++ {
		if _, err := room.Publish(playerID, domain.EventAnswerAttempt, map[string]any{"text": "guess"}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	for want := int64(1); want <= 3; want++ {
		evt := <-events
		if evt.Sequence != want {
			t.Fatalf("expected sequence %d, got %d", want, evt.Sequence)
		}
		if evt.Name != "Alice" {
			t.Fatalf("expected denormalized name, got %q", evt.Name)
		}
	}
	cancel()

	// Published while unsubscribed: lost to this subscriber.
	if _, err := room.Publish(playerID, domain.EventAnswerAttempt, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}

	events, cancel = room.SubscribeStream()
	defer cancel()
	if _, err := room.Publish(playerID, domain.EventPlayerFinished, nil); err != nil {
		t.Fatalf("publish: %v", err)
	}
	evt := <-events
	if evt.Sequence != 5 || evt.Type != domain.EventPlayerFinished {
		t.Fatalf("resubscriber should only see post-subscription events, got seq=%d type=%s", evt.Sequence, evt.Type)
	}
}

func TestSubscribeInitialSnapshotNeverStale(t *testing.T) {
	room := app.NewRoom("1234", "space-1", 7)
	playerID, err := room.Join("Alice", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	// Mutations race against subscription; the first delivery must not
	// arrive behind a newer one, so observed scores only ever grow.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for score := 100; score <= 2000; score += 100 {
			if err := room.UpdateProgress(playerID, 1, score); err != nil {
				t.Errorf("progress: %v", err)
				return
			}
		}
	}()

	ch, cancel := room.SubscribePlayers()
	last := -1
	for players := range ch {
		score := players[playerID].Score
		if score < last {
			t.Fatalf("stale delivery: score went %d -> %d", last, score)
		}
		last = score
		if score == 2000 {
			break
		}
	}
	<-done
	cancel()
}

func TestSetFinishedIdempotent(t *testing.T) {
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	current := base
	room := app.NewRoomWithClock("1234", "space-1", 7, func() time.Time { return current })

	playerID, err := room.Join("Alice", "")
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	current = base.Add(time.Minute)
	if err := room.SetFinished(playerID); err != nil {
		t.Fatalf("set finished: %v", err)
	}
	first := room.Snapshot().Players[playerID].FinishedTime

	current = base.Add(2 * time.Minute)
	if err := room.SetFinished(playerID); err != nil {
		t.Fatalf("repeat set finished: %v", err)
	}
	if got := room.Snapshot().Players[playerID].FinishedTime; !got.Equal(first) {
		t.Fatalf("finished time moved on repeat call: %v -> %v", first, got)
	}
}

func TestSubmitAnswerFlow(t *testing.T) {
	game := domain.Game{
		ID: "space-1",
		Puzzles: []domain.Puzzle{
			{Index: 0, Answers: []string{"30"}},
			{Index: 1, Answers: []string{"moon"}},
		},
	}
	room := app.NewRoom("1234", game.ID, game.PuzzleCount())
	playerID, err := room.Join("Alice", "g1")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if _, err := room.SubmitAnswer(playerID, "30", game); err != domain.ErrInvalidTransition {
		t.Fatalf("answer before start: expected invalid transition, got %v", err)
	}
	if err := room.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	events, cancel := room.SubscribeStream()
	defer cancel()

	result, err := room.SubmitAnswer(playerID, "  MOON ", game)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !result.Correct || result.PuzzleIndex != 1 || result.Awarded != 100 {
		t.Fatalf("expected normalized match on puzzle 1 for 100 points, got %+v", result)
	}

	wrong, err := room.SubmitAnswer(playerID, "moon", game)
	if err != nil {
		t.Fatalf("submit repeat: %v", err)
	}
	if wrong.Correct {
		t.Fatalf("already-answered puzzle matched again: %+v", wrong)
	}
	evt := <-events
	if evt.Type != domain.EventAnswerAttempt {
		t.Fatalf("wrong guess should emit answer_attempt, got %s", evt.Type)
	}

	final, err := room.SubmitAnswer(playerID, "30", game)
	if err != nil {
		t.Fatalf("submit final: %v", err)
	}
	if !final.Finished || final.TotalScore != 200 || final.CompletedCount != 2 {
		t.Fatalf("expected finished with 200 points, got %+v", final)
	}
	evt = <-events
	if evt.Type != domain.EventPlayerFinished {
		t.Fatalf("expected player_finished event, got %s", evt.Type)
	}

	snap := room.Snapshot()
	if !snap.Players[playerID].IsFinished {
		t.Fatalf("expected player marked finished")
	}
	if got := snap.Groups["g1"].AnsweredQuestions; len(got) != 2 {
		t.Fatalf("expected group set to carry both indices, got %v", got)
	}
}
