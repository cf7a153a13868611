package rooms

import "sync"

// Stash is the community-independent holding area for rooms evicted from
// their index when a community disconnects. If the community reconnects with
// the same channels and owners still present the rooms are restored without
// user-visible loss; entries that are not reclaimed on the next reconnect
// check for their community are discarded.
type Stash struct {
	mu      sync.Mutex
	entries []stashedRoom
}

type stashedRoom struct {
	community string
	room      *Room
}

// NewStash returns an empty stash.
func NewStash() *Stash {
	return &Stash{}
}

// Put stores rooms evicted from a community's index.
func (s *Stash) Put(community string, rooms []*Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, room := range rooms {
		if room == nil {
			continue
		}
		s.entries = append(s.entries, stashedRoom{community: community, room: room})
	}
}

// Take removes every entry stashed for the community and returns the rooms,
// in stash order. Entries the caller then fails to reconcile are gone for
// good; the next index for the community starts fresh.
func (s *Stash) Take(community string) []*Room {
	s.mu.Lock()
	defer s.mu.Unlock()

	var taken []*Room
	kept := s.entries[:0]
	for _, entry := range s.entries {
		if entry.community == community {
			taken = append(taken, entry.room)
		} else {
			kept = append(kept, entry)
		}
	}
	s.entries = kept
	return taken
}

// Len returns the number of stashed rooms across all communities.
func (s *Stash) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
