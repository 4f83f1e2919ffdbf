package app

import (
	"sort"

	"puzzle-party-service/internal/domain"
)

// Leaderboard and podium computation. Pure functions over a room snapshot;
// nothing here mutates room state, so a host UI can call them at any time.

// RankPlayers orders players by score descending. Ties keep the original
// join order, never an arbitrary re-sort, so results are deterministic.
func RankPlayers(snap domain.RoomSnapshot) []domain.PlayerStanding {
	players := make([]domain.Player, 0, len(snap.Players))
	for _, p := range snap.Players {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool { return players[i].JoinOrder < players[j].JoinOrder })
	sort.SliceStable(players, func(i, j int) bool { return players[i].Score > players[j].Score })

	standings := make([]domain.PlayerStanding, len(players))
	for i, p := range players {
		standings[i] = domain.PlayerStanding{Rank: i + 1, Player: p}
	}
	return standings
}

// RankGroups aggregates score per group, descending. Players without a
// group aggregate under the Unassigned pseudo-group. Ties keep group id
// order for determinism.
func RankGroups(snap domain.RoomSnapshot) []domain.GroupStanding {
	totals := make(map[string]*domain.GroupStanding)
	order := make([]string, 0)
	for _, p := range snap.Players {
		id := p.Group
		if id == "" {
			id = domain.UnassignedGroup
		}
		gs, ok := totals[id]
		if !ok {
			gs = &domain.GroupStanding{GroupID: id}
			totals[id] = gs
			order = append(order, id)
		}
		gs.Score += p.Score
		gs.Members++
	}

	sort.Strings(order)
	standings := make([]domain.GroupStanding, 0, len(order))
	for _, id := range order {
		standings = append(standings, *totals[id])
	}
	sort.SliceStable(standings, func(i, j int) bool { return standings[i].Score > standings[j].Score })
	for i := range standings {
		standings[i].Rank = i + 1
	}
	return standings
}

// ComputePodium assigns the top three groups to pedestals. ByRank holds
// gold first; Display holds the on-stage order silver, gold, bronze.
// With fewer than three groups the missing slots are explicit empties.
func ComputePodium(snap domain.RoomSnapshot) domain.Podium {
	groups := RankGroups(snap)

	var byRank [3]domain.PodiumSlot
	for i := 0; i < 3; i++ {
		if i < len(groups) {
			g := groups[i]
			byRank[i] = domain.PodiumSlot{Rank: g.Rank, GroupID: g.GroupID, Score: g.Score, Members: g.Members}
		} else {
			byRank[i] = domain.PodiumSlot{Rank: i + 1, Empty: true}
		}
	}

	return domain.Podium{
		Display: [3]domain.PodiumSlot{byRank[1], byRank[0], byRank[2]},
		ByRank:  byRank,
	}
}
