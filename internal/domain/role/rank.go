package role

import (
	"sort"

	"github.com/google/uuid"
)

// nextRank returns the rank for a newly created role. Ranks are allocated at
// the bottom of the hierarchy and never reuse a mid-sequence gap: the density
// invariant guarantees leveledCount+1 is always free.
func nextRank(leveledCount int) Rank {
	return LeveledRank(leveledCount + 1)
}

// planReorder computes the full new rank assignment for a reorder request
// against a snapshot of the conversation's roles.
//
// The selected roles receive ranks lo..lo+k-1 in the order given, where lo is
// the minimum of their current ranks. Unselected roles whose rank falls
// strictly inside the touched window (lo, hi) are pushed down to lo+k.. in
// their current relative order. Roles outside [lo, hi] keep their rank.
//
// The returned map holds only the roles whose rank actually changes, so a
// reorder that matches the current order yields an empty plan.
func planReorder(roles []*Role, orderedIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	if len(orderedIDs) < 2 {
		return nil, ErrReorderTooShort
	}

	byID := make(map[uuid.UUID]*Role, len(roles))
	for _, r := range roles {
		byID[r.ID] = r
	}

	selected := make(map[uuid.UUID]bool, len(orderedIDs))
	lo, hi := 0, 0
	for i, id := range orderedIDs {
		if selected[id] {
			return nil, ErrDuplicateIDs
		}
		r, ok := byID[id]
		if !ok {
			return nil, ErrRoleNotFound
		}
		if r.Rank.IsDefault() {
			return nil, ErrDefaultRoleProtected
		}
		selected[id] = true

		level := r.Rank.Level
		if i == 0 || level < lo {
			lo = level
		}
		if i == 0 || level > hi {
			hi = level
		}
	}

	plan := make(map[uuid.UUID]int)
	assign := func(id uuid.UUID, rank int) {
		if byID[id].Rank.Level != rank {
			plan[id] = rank
		}
	}

	next := lo
	for _, id := range orderedIDs {
		assign(id, next)
		next++
	}

	// Unselected roles caught inside the window keep their relative order
	// and fill the remainder of [lo, hi].
	var others []*Role
	for _, r := range roles {
		if r.Rank.IsDefault() || selected[r.ID] {
			continue
		}
		if r.Rank.Level > lo && r.Rank.Level < hi {
			others = append(others, r)
		}
	}
	sort.Slice(others, func(i, j int) bool {
		return others[i].Rank.Level < others[j].Rank.Level
	})
	for _, r := range others {
		assign(r.ID, next)
		next++
	}

	return plan, nil
}

// planDeleteShift computes the rank changes caused by deleting the role at
// deletedRank: every role below it moves up by one.
func planDeleteShift(roles []*Role, deletedID uuid.UUID, deletedRank int) map[uuid.UUID]int {
	plan := make(map[uuid.UUID]int)
	for _, r := range roles {
		if r.ID == deletedID || r.Rank.IsDefault() {
			continue
		}
		if r.Rank.Level > deletedRank {
			plan[r.ID] = r.Rank.Level - 1
		}
	}
	return plan
}
