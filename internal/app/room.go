package app

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"puzzle-party-service/internal/domain"
)

// Room is the in-memory authoritative document for one game session.
// Every mutation takes the room mutex, so writes to one room are
// serialized while different rooms proceed in parallel.
type Room struct {
	code      string
	gameID    string
	puzzles   int
	createdAt time.Time
	now       func() time.Time

	mu              sync.Mutex
	status          domain.RoomStatus
	currentQuestion int
	startTime       time.Time
	players         map[string]*playerState
	joined          int
	groups          map[string]map[int]struct{}
	stream          []domain.StreamEvent
	nextSeq         int64

	playerSubs map[chan map[string]domain.Player]struct{}
	roomSubs   map[chan domain.RoomSnapshot]struct{}
	streamSubs map[chan domain.StreamEvent]struct{}

	// mirror, when set, receives every post-mutation snapshot. Used by
	// the redis store to persist the room document.
	mirror func(domain.RoomSnapshot)
}

type playerState struct {
	player   domain.Player
	answered map[int]struct{}
}

// NewRoom is exported for infrastructure layers that need to seed rooms.
func NewRoom(code, gameID string, puzzleCount int) *Room {
	return NewRoomWithClock(code, gameID, puzzleCount, time.Now)
}

// NewRoomWithClock allows deterministic timestamps in tests.
func NewRoomWithClock(code, gameID string, puzzleCount int, now func() time.Time) *Room {
	return &Room{
		code:            code,
		gameID:          gameID,
		puzzles:         puzzleCount,
		createdAt:       now(),
		now:             now,
		status:          domain.StatusLobby,
		currentQuestion: -1,
		players:         make(map[string]*playerState),
		groups:          make(map[string]map[int]struct{}),
		playerSubs:      make(map[chan map[string]domain.Player]struct{}),
		roomSubs:        make(map[chan domain.RoomSnapshot]struct{}),
		streamSubs:      make(map[chan domain.StreamEvent]struct{}),
	}
}

// Code returns the room's code. Codes are immutable after creation.
func (r *Room) Code() string { return r.code }

// GameID returns the game this room plays. Immutable after creation.
func (r *Room) GameID() string { return r.gameID }

// SetMirror installs the snapshot persistence hook. Must be called before
// the room is shared.
func (r *Room) SetMirror(fn func(domain.RoomSnapshot)) { r.mirror = fn }

// Snapshot returns a consistent copy of the room document. No reader ever
// observes a half-applied mutation.
func (r *Room) Snapshot() domain.RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Join adds a player with a fresh session id. Names must be unique within
// the room under case-insensitive, trimmed comparison.
func (r *Room) Join(name, group string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	norm := domain.Normalize(name)
	for _, ps := range r.players {
		if domain.Normalize(ps.player.Name) == norm {
			return "", domain.ErrDuplicateName
		}
	}

	id := "player_" + uuid.NewString()
	r.players[id] = &playerState{
		player: domain.Player{
			ID:         id,
			Name:       name,
			Group:      group,
			LastUpdate: r.now(),
			JoinOrder:  r.joined,
		},
		answered: make(map[int]struct{}),
	}
	r.joined++
	r.broadcastLocked()
	return id, nil
}

// Start moves the room from lobby to playing.
func (r *Room) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != domain.StatusLobby {
		return domain.ErrInvalidTransition
	}
	r.status = domain.StatusPlaying
	r.currentQuestion = 0
	r.startTime = r.now()
	r.broadcastLocked()
	return nil
}

// Advance moves to the given question index and resets the question clock.
func (r *Room) Advance(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != domain.StatusPlaying {
		return domain.ErrInvalidTransition
	}
	r.currentQuestion = index
	r.startTime = r.now()
	r.broadcastLocked()
	return nil
}

// End moves the room to its terminal state. Idempotent once finished.
func (r *Room) End() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == domain.StatusFinished {
		return nil
	}
	if r.status != domain.StatusPlaying {
		return domain.ErrInvalidTransition
	}
	r.status = domain.StatusFinished
	r.broadcastLocked()
	return nil
}

// UpdateProgress overwrites a player's own progress fields. A single
// player is the sole writer of these, so last-write-wins is safe here.
// Scores are awarded 100 per puzzle, so anything off that grid is a
// malformed submission.
func (r *Room) UpdateProgress(playerID string, completedCount, score int) error {
	if completedCount < 0 || score < 0 || score%100 != 0 {
		return domain.ErrInvalidProgress
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.puzzles > 0 && completedCount > r.puzzles {
		return domain.ErrInvalidProgress
	}
	ps, ok := r.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	ps.player.CompletedCount = completedCount
	ps.player.Score = score
	ps.player.LastUpdate = r.now()
	r.broadcastLocked()
	return nil
}

// UpdateGroupProgress merges answered puzzle indices into the group by set
// union. Concurrent teammates submitting overlapping or out-of-order sets
// converge without losing anyone's progress; the set never shrinks.
func (r *Room) UpdateGroupProgress(groupID string, answered []int) error {
	if groupID == "" {
		return domain.ErrGroupRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.groups[groupID]
	if !ok {
		set = make(map[int]struct{})
		r.groups[groupID] = set
	}
	for _, idx := range answered {
		set[idx] = struct{}{}
	}
	r.broadcastLocked()
	return nil
}

// SetFinished marks a player done. Idempotent; the first call stamps
// finishedTime.
func (r *Room) SetFinished(playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.players[playerID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	if ps.player.IsFinished {
		return nil
	}
	ps.player.IsFinished = true
	ps.player.FinishedTime = r.now()
	ps.player.LastUpdate = ps.player.FinishedTime
	r.broadcastLocked()
	return nil
}

// Publish appends an event to the room stream with the next sequence
// number and fans it out. Name and group are resolved at emission time.
func (r *Room) Publish(playerID, eventType string, payload map[string]any) (domain.StreamEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ps, ok := r.players[playerID]
	if !ok {
		return domain.StreamEvent{}, domain.ErrPlayerNotFound
	}
	evt := r.publishLocked(ps, eventType, payload)
	r.broadcastLocked()
	return evt, nil
}

// SubmitAnswer checks a guess against the game server-side. A correct
// guess awards 100 points, extends the player's (and group's) answered
// set, and finishes the player when every puzzle is solved. A wrong guess
// only emits an answer_attempt event.
func (r *Room) SubmitAnswer(playerID, guess string, game domain.Game) (domain.AnswerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != domain.StatusPlaying {
		return domain.AnswerResult{}, domain.ErrInvalidTransition
	}
	ps, ok := r.players[playerID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrPlayerNotFound
	}

	groupSet := r.groups[ps.player.Group]
	index, matched := game.Match(guess, func(i int) bool {
		if _, done := ps.answered[i]; done {
			return true
		}
		if groupSet != nil {
			if _, done := groupSet[i]; done {
				return true
			}
		}
		return false
	})

	if !matched {
		r.publishLocked(ps, domain.EventAnswerAttempt, map[string]any{
			"text":      guess,
			"isCorrect": false,
		})
		r.broadcastLocked()
		return domain.AnswerResult{PuzzleIndex: -1, TotalScore: ps.player.Score, CompletedCount: ps.player.CompletedCount}, nil
	}

	ps.answered[index] = struct{}{}
	if ps.player.Group != "" {
		if groupSet == nil {
			groupSet = make(map[int]struct{})
			r.groups[ps.player.Group] = groupSet
		}
		groupSet[index] = struct{}{}
	}
	ps.player.Score += 100
	ps.player.CompletedCount = len(ps.answered)
	ps.player.LastUpdate = r.now()

	finished := ps.player.CompletedCount >= game.PuzzleCount()
	if finished && !ps.player.IsFinished {
		ps.player.IsFinished = true
		ps.player.FinishedTime = r.now()
		r.publishLocked(ps, domain.EventPlayerFinished, map[string]any{
			"msg": "finished the mission!",
		})
	}

	r.broadcastLocked()
	return domain.AnswerResult{
		Correct:        true,
		PuzzleIndex:    index,
		Awarded:        100,
		TotalScore:     ps.player.Score,
		CompletedCount: ps.player.CompletedCount,
		Finished:       ps.player.IsFinished,
	}, nil
}

// SubscribePlayers delivers the full players mapping on every mutation
// (level-triggered). The caller must invoke cancel to avoid leaks.
func (r *Room) SubscribePlayers() (<-chan map[string]domain.Player, func()) {
	ch := make(chan map[string]domain.Player, 8)

	r.mu.Lock()
	r.playerSubs[ch] = struct{}{}
	// Initial delivery happens under the lock so no concurrent mutation
	// can enqueue a newer snapshot ahead of it. The fresh buffered
	// channel cannot block here.
	ch <- r.playersLocked()
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.playerSubs[ch]; ok {
			delete(r.playerSubs, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeRoom delivers full room snapshots on every mutation.
func (r *Room) SubscribeRoom() (<-chan domain.RoomSnapshot, func()) {
	ch := make(chan domain.RoomSnapshot, 8)

	r.mu.Lock()
	r.roomSubs[ch] = struct{}{}
	ch <- r.snapshotLocked()
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.roomSubs[ch]; ok {
			delete(r.roomSubs, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// SubscribeStream delivers events published after subscription time, in
// sequence order. There is no historical replay; a re-subscriber starts
// from the next publish.
func (r *Room) SubscribeStream() (<-chan domain.StreamEvent, func()) {
	ch := make(chan domain.StreamEvent, 32)

	r.mu.Lock()
	r.streamSubs[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.streamSubs[ch]; ok {
			delete(r.streamSubs, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// Close terminates every subscription. Called on room teardown.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for ch := range r.playerSubs {
		delete(r.playerSubs, ch)
		close(ch)
	}
	for ch := range r.roomSubs {
		delete(r.roomSubs, ch)
		close(ch)
	}
	for ch := range r.streamSubs {
		delete(r.streamSubs, ch)
		close(ch)
	}
}

func (r *Room) publishLocked(ps *playerState, eventType string, payload map[string]any) domain.StreamEvent {
	r.nextSeq++
	evt := domain.StreamEvent{
		Sequence:  r.nextSeq,
		Type:      eventType,
		PlayerID:  ps.player.ID,
		Name:      ps.player.Name,
		Group:     ps.player.Group,
		Payload:   payload,
		Timestamp: r.now(),
	}
	r.stream = append(r.stream, evt)
	for ch := range r.streamSubs {
		select {
		case ch <- evt:
		default:
			// Slow subscriber: drop its oldest pending event so the
			// publisher never blocks. Remaining delivery stays ordered.
			select {
			case <-ch:
			default:
			}
			ch <- evt
		}
	}
	return evt
}

func (r *Room) broadcastLocked() {
	snap := r.snapshotLocked()
	players := snap.Players
	for ch := range r.playerSubs {
		select {
		case ch <- players:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- players
		}
	}
	for ch := range r.roomSubs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	if r.mirror != nil {
		r.mirror(snap)
	}
}

func (r *Room) playersLocked() map[string]domain.Player {
	players := make(map[string]domain.Player, len(r.players))
	for id, ps := range r.players {
		players[id] = ps.player
	}
	return players
}

func (r *Room) snapshotLocked() domain.RoomSnapshot {
	groups := make(map[string]domain.Group, len(r.groups))
	for id, set := range r.groups {
		indices := make([]int, 0, len(set))
		for idx := range set {
			indices = append(indices, idx)
		}
		sort.Ints(indices)
		groups[id] = domain.Group{ID: id, AnsweredQuestions: indices}
	}

	stream := make([]domain.StreamEvent, len(r.stream))
	copy(stream, r.stream)

	return domain.RoomSnapshot{
		Code:            r.code,
		Status:          r.status,
		GameID:          r.gameID,
		CurrentQuestion: r.currentQuestion,
		StartTime:       r.startTime,
		CreatedAt:       r.createdAt,
		Players:         r.playersLocked(),
		Groups:          groups,
		Stream:          stream,
	}
}
