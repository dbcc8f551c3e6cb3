// Package engagement holds the optimistic view state of one document's
// like and bookmark counters.
package engagement

import (
	"context"
	"fmt"
	"sync"

	"expertene/internal/models"
)

// Kind selects the toggled relation.
type Kind string

const (
	KindLike     Kind = "like"
	KindBookmark Kind = "bookmark"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindLike, KindBookmark:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown engagement kind %q", s)
}

// State is what a viewer sees: the counters plus their own flags.
type State struct {
	Counts     models.EngagementCounts `json:"counts"`
	Liked      bool                    `json:"liked"`
	Bookmarked bool                    `json:"bookmarked"`
}

// Remote performs the authoritative mutation. active is the state the
// viewer is moving to.
type Remote func(ctx context.Context, active bool) error

// Counter applies toggles optimistically and rolls them back when the
// remote mutation fails. Safe for concurrent use.
type Counter struct {
	mu    sync.Mutex
	state State
}

// NewCounter seeds a counter from fetched counts and viewer flags.
func NewCounter(counts models.EngagementCounts, viewer models.ViewerState) *Counter {
	return &Counter{state: State{
		Counts:     counts,
		Liked:      viewer.Liked,
		Bookmarked: viewer.Bookmarked,
	}}
}

// State returns a snapshot.
func (c *Counter) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (s *State) slot(kind Kind) (flag *bool, count *int) {
	if kind == KindBookmark {
		return &s.Bookmarked, &s.Counts.Bookmarks
	}
	return &s.Liked, &s.Counts.Likes
}

// Toggle flips kind immediately, then calls remote. If remote fails the
// flag and count of kind are restored to their pre-toggle values and the
// error is returned alongside the restored state.
func (c *Counter) Toggle(ctx context.Context, kind Kind, remote Remote) (State, error) {
	c.mu.Lock()
	flag, count := c.state.slot(kind)
	prevFlag, prevCount := *flag, *count
	*flag = !prevFlag
	if *flag {
		*count++
	} else if *count > 0 {
		*count--
	}
	active := *flag
	c.mu.Unlock()

	if err := remote(ctx, active); err != nil {
		c.mu.Lock()
		flag, count = c.state.slot(kind)
		*flag, *count = prevFlag, prevCount
		restored := c.state
		c.mu.Unlock()
		return restored, err
	}
	return c.State(), nil
}

// Reconcile replaces the counters with an authoritative re-fetch.
func (c *Counter) Reconcile(counts models.EngagementCounts) State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Counts = counts
	return c.state
}
