package domain

import (
	"strings"
	"time"
)

// RoomStatus is the lifecycle state of a room. Transitions are one-way:
// lobby -> playing -> finished.
type RoomStatus string

const (
	StatusLobby    RoomStatus = "lobby"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// UnassignedGroup is the pseudo-group that groupless players aggregate
// under at podium time. It is never stored as a literal group.
const UnassignedGroup = "Unassigned"

// Player represents one participant in a room. Players are never removed
// while the room lives; departure is a presence event so final scores
// survive for the leaderboard.
type Player struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Group          string    `json:"group,omitempty"`
	Score          int       `json:"score"`
	CompletedCount int       `json:"completedCount"`
	IsFinished     bool      `json:"isFinished"`
	FinishedTime   time.Time `json:"finishedTime,omitempty"`
	LastUpdate     time.Time `json:"lastUpdate"`
	// JoinOrder is the zero-based position at which the player joined,
	// used as the stable tie-breaker when ranking.
	JoinOrder int `json:"joinOrder"`
}

// Group holds the merged progress shared by a team of players.
// AnsweredQuestions only ever grows (set union across contributors).
type Group struct {
	ID                string `json:"id"`
	AnsweredQuestions []int  `json:"answeredQuestions"`
}

// Event types carried on the room stream.
const (
	EventAnswerAttempt  = "answer_attempt"
	EventPlayerFinished = "player_finished"
)

// StreamEvent is one immutable entry of a room's broadcast stream.
// Sequence is room-local and monotonically increasing.
type StreamEvent struct {
	Sequence  int64          `json:"sequence"`
	Type      string         `json:"type"`
	PlayerID  string         `json:"playerId"`
	Name      string         `json:"name"`
	Group     string         `json:"group,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// RoomSnapshot is an immutable view of a room document. Subscribers always
// receive full snapshots, never diffs, so a reconnecting client converges
// from the next delivery.
type RoomSnapshot struct {
	Code            string            `json:"code"`
	Status          RoomStatus        `json:"status"`
	GameID          string            `json:"gameId"`
	CurrentQuestion int               `json:"currentQuestion"`
	StartTime       time.Time         `json:"startTime,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	Players         map[string]Player `json:"players"`
	Groups          map[string]Group  `json:"groups"`
	Stream          []StreamEvent     `json:"stream,omitempty"`
}

// PlayerStanding is a rank-tagged leaderboard row.
type PlayerStanding struct {
	Rank   int    `json:"rank"`
	Player Player `json:"player"`
}

// GroupStanding aggregates a group's score across its members.
type GroupStanding struct {
	Rank    int    `json:"rank"`
	GroupID string `json:"groupId"`
	Score   int    `json:"score"`
	Members int    `json:"members"`
}

// PodiumSlot is one pedestal. Empty slots are explicit: with fewer than
// three groups the missing pedestals are still emitted, never fabricated
// from a wrapped-around group.
type PodiumSlot struct {
	Rank    int    `json:"rank"`
	GroupID string `json:"groupId,omitempty"`
	Score   int    `json:"score"`
	Members int    `json:"members"`
	Empty   bool   `json:"empty"`
}

// Podium carries both orderings: Display is the on-stage order
// (silver, gold, bronze) and ByRank is indexed rank-1 first.
type Podium struct {
	Display [3]PodiumSlot `json:"display"`
	ByRank  [3]PodiumSlot `json:"byRank"`
}

// AnswerResult summarizes a checked guess for a single player.
type AnswerResult struct {
	Correct        bool `json:"correct"`
	PuzzleIndex    int  `json:"puzzleIndex"`
	Awarded        int  `json:"awarded"`
	TotalScore     int  `json:"totalScore"`
	CompletedCount int  `json:"completedCount"`
	Finished       bool `json:"finished"`
}

// Puzzle is one riddle of a game with its accepted answers.
type Puzzle struct {
	Index   int      `json:"index"`
	Answers []string `json:"answers"`
	Hint    string   `json:"hint,omitempty"`
}

// Game is the puzzle set a room plays through.
type Game struct {
	ID      string   `json:"id"`
	Title   string   `json:"title,omitempty"`
	Puzzles []Puzzle `json:"puzzles"`
}

func (g Game) PuzzleCount() int {
	return len(g.Puzzles)
}

// Match finds the first puzzle not yet marked answered whose accepted
// answers contain the normalized guess. Returns (-1, false) on no match.
func (g Game) Match(guess string, answered func(index int) bool) (int, bool) {
	norm := Normalize(guess)
	if norm == "" {
		return -1, false
	}
	for _, p := range g.Puzzles {
		if answered(p.Index) {
			continue
		}
		for _, a := range p.Answers {
			if norm == Normalize(a) {
				return p.Index, true
			}
		}
	}
	return -1, false
}

// Normalize prepares free-text answers and names for comparison: trimmed,
// lower-cased, zero-width characters stripped.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\u200b', '\u200c', '\u200d', '\u200e', '\u200f', '\ufeff':
			return -1
		}
		return r
	}, s)
	return strings.ToLower(strings.TrimSpace(s))
}
