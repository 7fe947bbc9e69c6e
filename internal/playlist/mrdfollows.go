package playlist

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// FollowsRule states that each follower must be positioned
// immediately after FollowsID, in the listed order.
type FollowsRule struct {
	FollowsID int64
	Followers []int64
}

// CircularFollowsError reports a follows chain that loops back on
// itself. Path carries the ids walked, ending at the repeat.
type CircularFollowsError struct {
	Path []int64
}

func (e *CircularFollowsError) Error() string {
	return fmt.Sprintf("circular follows chain: %v", e.Path)
}

// ImpossibleFollowsError reports a rule that cannot be satisfied
// without violating rules already applied.
type ImpossibleFollowsError struct {
	FollowerID int64
	FollowsID  int64
}

func (e *ImpossibleFollowsError) Error() string {
	return fmt.Sprintf("message %d cannot be positioned after message %d",
		e.FollowerID, e.FollowsID)
}

// FollowsOrderer permutes a suite-ordered message sequence so that
// every applicable follows rule is satisfied. Rule application is
// best effort: a rule that fails (circular or otherwise) is logged
// and skipped, and a partial ordering is preferred over failing the
// broadcast.
type FollowsOrderer struct {
	ordered []int64
	rules   []FollowsRule

	// rules actually applied so far, follower id -> followed ids.
	// Consulted before any later move so it cannot undo them.
	applied map[int64][]int64

	// chain of messages that travel together: when a message moves,
	// everything chained behind it moves too.
	chain map[int64]int64
}

// NewFollowsOrderer wraps the ordered ids. The slice is reordered in
// place by OrderWithFollows.
func NewFollowsOrderer(ordered []int64, rules []FollowsRule) *FollowsOrderer {
	return &FollowsOrderer{
		ordered: ordered,
		rules:   rules,
		applied: make(map[int64][]int64),
		chain:   make(map[int64]int64),
	}
}

// OrderWithFollows applies the rules in order and returns the
// permuted sequence. Ids referenced by a rule but absent from the
// sequence are skipped silently. The result is always a permutation
// of the input.
func (o *FollowsOrderer) OrderWithFollows(playlist string) []int64 {
	for _, rule := range o.rules {
		followsIndex := indexOf(o.ordered, rule.FollowsID)
		if followsIndex == -1 {
			continue
		}

		for _, followerID := range rule.Followers {
			followerIndex := indexOf(o.ordered, followerID)
			if followerIndex == -1 {
				continue
			}

			if err := o.applyRule(rule.FollowsID, followsIndex, followerID, followerIndex); err != nil {
				log.Error().Err(err).Str("playlist", playlist).
					Int64("follows", rule.FollowsID).
					Int64("follower", followerID).
					Msg("failed to apply mrd follows rule, continuing with partial order")
			}
			// Record the pairing even when the move failed so later
			// validation stays consistent with what was attempted.
			o.applied[followerID] = append(o.applied[followerID], rule.FollowsID)
		}
	}
	return o.ordered
}

func (o *FollowsOrderer) applyRule(followsID int64, followsIndex int, followerID int64, followerIndex int) error {
	switch {
	case followerIndex == followsIndex+1:
		// already at the correct location
		o.chain[followsID] = followerID
		return nil
	case followerIndex > followsIndex:
		// The follower is after the followed but not adjacent. Move
		// it (and its chained followers) up if that does not violate
		// an earlier rule, otherwise leave it where it is.
		newIndex := followsIndex + 1
		ok, err := o.validateNewPosition(followerID, newIndex)
		if err != nil {
			return err
		}
		if ok {
			return o.relocate(followsID, followerID, followerIndex, newIndex, true)
		}
		return nil
	default:
		// The follower currently precedes the followed; it has to
		// cross over or the rule is unsatisfiable.
		newIndex := followsIndex
		ok, err := o.validateNewPosition(followerID, newIndex)
		if err != nil {
			return err
		}
		if !ok {
			return &ImpossibleFollowsError{FollowerID: followerID, FollowsID: followsID}
		}
		return o.relocate(followsID, followerID, followerIndex, newIndex, false)
	}
}

// validateNewPosition checks that moving followerID to the desired
// index keeps every previously applied rule satisfied, including for
// every message chained behind the follower.
func (o *FollowsOrderer) validateNewPosition(followerID int64, desiredIndex int) (bool, error) {
	for _, followsID := range o.applied[followerID] {
		followedIndex := indexOf(o.ordered, followsID)
		if desiredIndex < followedIndex {
			return false, nil
		}
	}

	if _, chained := o.chain[followerID]; !chained {
		return true, nil
	}

	start := followerID
	path := []int64{start}
	current := followerID
	for {
		next, chained := o.chain[current]
		if !chained {
			return true, nil
		}
		path = append(path, next)
		if next == start {
			return false, &CircularFollowsError{Path: path}
		}
		desiredIndex++
		ok, err := o.validateNewPosition(next, desiredIndex)
		if err != nil || !ok {
			return ok, err
		}
		current = next
	}
}

// relocate moves the follower to newIndex and drags its chained
// followers along. On a forward move the insertion index advances per
// chained item; on a backward move it does not, because removing the
// follower from in front of the followed already shifts everything
// left by one.
func (o *FollowsOrderer) relocate(followsID, followerID int64, followerIndex, newIndex int, incrementIndex bool) error {
	o.ordered = removeAt(o.ordered, followerIndex)
	o.ordered = insertAt(o.ordered, newIndex, followerID)

	o.chain[followsID] = followerID

	start := followerID
	path := []int64{start}
	current := followerID
	for {
		next, chained := o.chain[current]
		if !chained {
			return nil
		}
		if incrementIndex {
			newIndex++
		}
		path = append(path, next)
		if next == start {
			return &CircularFollowsError{Path: path}
		}
		chainedIndex := indexOf(o.ordered, next)
		o.ordered = removeAt(o.ordered, chainedIndex)
		o.ordered = insertAt(o.ordered, newIndex, next)
		current = next
	}
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func removeAt(ids []int64, i int) []int64 {
	return append(ids[:i], ids[i+1:]...)
}

func insertAt(ids []int64, i int, id int64) []int64 {
	ids = append(ids, 0)
	copy(ids[i+1:], ids[i:])
	ids[i] = id
	return ids
}
