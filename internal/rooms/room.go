// Package rooms holds the in-memory state of managed temporary voice rooms:
// the Room entity, the per-community Index, the Registry of indices, and the
// Stash used across community disconnects.
package rooms

// Room is one managed temporary voice room. The channel handle is the stable
// platform-side reference and the entity's identity within an Index.
type Room struct {
	ChannelID string
	OwnerID   string

	// TimeoutMinutes is fixed at creation, between 1 and 180 for
	// user-created rooms and 0 for exile rooms.
	TimeoutMinutes int

	// IdleMinutes counts consecutive sweeps that observed the room empty.
	// The eviction sweep is the only incrementer; occupancy-change handlers
	// are the only resetters.
	IdleMinutes int

	// Exile marks rooms spawned to hold kicked or banned users. They are
	// reclaimed as soon as they are observed empty, ignoring IdleMinutes.
	Exile bool
}
