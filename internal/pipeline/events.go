package pipeline

import (
	"sort"
	"time"
)

// EventIndex groups event timestamps by user and keeps them sorted, so
// counting a session window is two binary searches instead of a scan over
// every event in the project.
type EventIndex struct {
	byUser map[int64][]time.Time
}

func NewEventIndex(events []Event) *EventIndex {
	ix := &EventIndex{byUser: make(map[int64][]time.Time)}
	for _, ev := range events {
		ix.byUser[ev.UserID] = append(ix.byUser[ev.UserID], ev.CreatedAt)
	}
	for _, ts := range ix.byUser {
		sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
	}
	return ix
}

// CountInWindow counts the user's events with from <= t <= to. Both
// boundaries are inclusive.
func (ix *EventIndex) CountInWindow(userID int64, from, to time.Time) int {
	ts := ix.byUser[userID]
	lo := sort.Search(len(ts), func(i int) bool { return !ts[i].Before(from) })
	hi := sort.Search(len(ts), func(i int) bool { return ts[i].After(to) })
	if hi < lo {
		return 0
	}
	return hi - lo
}

// CountForSession counts the session owner's events inside the session
// window [CreatedAt, UpdatedAt].
func (ix *EventIndex) CountForSession(s Session) int {
	return ix.CountInWindow(s.UserID, s.CreatedAt, s.UpdatedAt)
}
