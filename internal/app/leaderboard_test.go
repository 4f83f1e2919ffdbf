package app_test

import (
	"testing"

	"puzzle-party-service/internal/app"
	"puzzle-party-service/internal/domain"
)

func TestRankPlayersTieKeepsJoinOrder(t *testing.T) {
	snap := domain.RoomSnapshot{
		Players: map[string]domain.Player{
			"a": {ID: "a", Name: "A", Score: 300, JoinOrder: 0},
			"b": {ID: "b", Name: "B", Score: 300, JoinOrder: 1},
			"c": {ID: "c", Name: "C", Score: 100, JoinOrder: 2},
		},
	}

	standings := app.RankPlayers(snap)
	if len(standings) != 3 {
		t.Fatalf("expected 3 standings, got %d", len(standings))
	}
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if standings[i].Player.ID != id {
			t.Fatalf("slot %d: expected %s, got %s", i, id, standings[i].Player.ID)
		}
		if standings[i].Rank != i+1 {
			t.Fatalf("slot %d: expected rank %d, got %d", i, i+1, standings[i].Rank)
		}
	}
}

func TestRankGroupsAggregatesUnassigned(t *testing.T) {
	snap := domain.RoomSnapshot{
		Players: map[string]domain.Player{
			"a": {ID: "a", Group: "g1", Score: 100, JoinOrder: 0},
			"b": {ID: "b", Group: "g1", Score: 200, JoinOrder: 1},
			"c": {ID: "c", Score: 500, JoinOrder: 2},
		},
	}

	standings := app.RankGroups(snap)
	if len(standings) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(standings))
	}
	if standings[0].GroupID != domain.UnassignedGroup || standings[0].Score != 500 {
		t.Fatalf("expected Unassigned leading with 500, got %+v", standings[0])
	}
	if standings[1].GroupID != "g1" || standings[1].Score != 300 || standings[1].Members != 2 {
		t.Fatalf("expected g1 with 300 across 2 members, got %+v", standings[1])
	}
}

func TestComputePodiumWithTwoGroups(t *testing.T) {
	snap := domain.RoomSnapshot{
		Players: map[string]domain.Player{
			"a": {ID: "a", Group: "g1", Score: 400, JoinOrder: 0},
			"b": {ID: "b", Group: "g2", Score: 200, JoinOrder: 1},
		},
	}

	podium := app.ComputePodium(snap)

	gold := podium.ByRank[0]
	if gold.Empty || gold.GroupID != "g1" || gold.Rank != 1 {
		t.Fatalf("expected g1 gold, got %+v", gold)
	}
	silver := podium.ByRank[1]
	if silver.Empty || silver.GroupID != "g2" || silver.Rank != 2 {
		t.Fatalf("expected g2 silver, got %+v", silver)
	}
	bronze := podium.ByRank[2]
	if !bronze.Empty || bronze.Rank != 3 {
		t.Fatalf("expected explicit empty bronze, got %+v", bronze)
	}

	// Display order is silver, gold, bronze with ranks intact.
	if podium.Display[0].Rank != 2 || podium.Display[1].Rank != 1 || podium.Display[2].Rank != 3 {
		t.Fatalf("expected display ranks 2,1,3, got %d,%d,%d",
			podium.Display[0].Rank, podium.Display[1].Rank, podium.Display[2].Rank)
	}
	if podium.Display[1].GroupID != "g1" {
		t.Fatalf("expected gold centered in display, got %+v", podium.Display[1])
	}
}

func TestComputePodiumEmptyRoom(t *testing.T) {
	podium := app.ComputePodium(domain.RoomSnapshot{Players: map[string]domain.Player{}})
	for i, slot := range podium.ByRank {
		if !slot.Empty || slot.Rank != i+1 {
			t.Fatalf("slot %d: expected empty with rank %d, got %+v", i, i+1, slot)
		}
	}
}
