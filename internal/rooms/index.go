package rooms

import "sort"

// Index is the per-community collection of Room entities with channel and
// owner lookups. Every room reachable from the channel map is also reachable
// from its owner's list and vice versa. An Index is not safe for concurrent
// use; the Registry serializes access per community.
type Index struct {
	byChannel map[string]*Room
	byOwner   map[string][]*Room
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{
		byChannel: make(map[string]*Room),
		byOwner:   make(map[string][]*Room),
	}
}

// Add registers a room under both lookups. Re-adding a tracked channel
// replaces the previous entity.
func (ix *Index) Add(room *Room) {
	if room == nil || room.ChannelID == "" {
		return
	}
	if existing, ok := ix.byChannel[room.ChannelID]; ok {
		ix.removeOwned(existing)
	}
	ix.byChannel[room.ChannelID] = room
	ix.byOwner[room.OwnerID] = append(ix.byOwner[room.OwnerID], room)
}

// Remove drops a room by channel handle and returns it, or nil when the
// channel is not tracked.
func (ix *Index) Remove(channelID string) *Room {
	room, ok := ix.byChannel[channelID]
	if !ok {
		return nil
	}
	delete(ix.byChannel, channelID)
	ix.removeOwned(room)
	return room
}

func (ix *Index) removeOwned(room *Room) {
	owned := ix.byOwner[room.OwnerID]
	for i, candidate := range owned {
		if candidate == room {
			owned = append(owned[:i], owned[i+1:]...)
			break
		}
	}
	if len(owned) == 0 {
		delete(ix.byOwner, room.OwnerID)
	} else {
		ix.byOwner[room.OwnerID] = owned
	}
}

// ByChannel returns the room tracked for a channel handle, or nil.
func (ix *Index) ByChannel(channelID string) *Room {
	return ix.byChannel[channelID]
}

// Owned returns the rooms owned by a member in insertion order.
func (ix *Index) Owned(ownerID string) []*Room {
	owned := ix.byOwner[ownerID]
	out := make([]*Room, len(owned))
	copy(out, owned)
	return out
}

// OwnedCount returns the number of non-exile rooms owned by a member. Exile
// rooms never count against the per-user limit.
func (ix *Index) OwnedCount(ownerID string) int {
	count := 0
	for _, room := range ix.byOwner[ownerID] {
		if !room.Exile {
			count++
		}
	}
	return count
}

// Rooms returns every tracked room ordered by channel handle.
func (ix *Index) Rooms() []*Room {
	out := make([]*Room, 0, len(ix.byChannel))
	for _, room := range ix.byChannel {
		out = append(out, room)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

// Len returns the number of tracked rooms.
func (ix *Index) Len() int {
	return len(ix.byChannel)
}
