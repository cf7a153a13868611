package engine

import (
	"context"
	"errors"
	"time"

	"github.com/example/tempvoice/internal/platform"
	"github.com/example/tempvoice/internal/rooms"
)

// Sweep runs one eviction pass over every tracked community. Empty regular
// rooms age by one idle minute and are deleted once idle reaches the
// timeout; a timeout of zero never evicts. Empty exile rooms are deleted on
// sight. Rooms whose channel no longer resolves are dropped from the index.
func (e *Engine) Sweep(ctx context.Context) {
	for _, community := range e.registry.Communities() {
		e.sweepCommunity(ctx, community)
	}
}

func (e *Engine) sweepCommunity(ctx context.Context, community string) {
	logger := e.logger.With("community", community)

	var channels []string
	e.registry.With(community, func(ix *rooms.Index) {
		for _, room := range ix.Rooms() {
			channels = append(channels, room.ChannelID)
		}
	})

	// Occupancy is platform I/O; gather it without holding the community
	// lock.
	occupancy := make(map[string]int, len(channels))
	vanished := make(map[string]bool)
	for _, channel := range channels {
		connected, err := e.gw.ConnectedUsers(ctx, channel)
		if err != nil {
			if errors.Is(err, platform.ErrNotFound) {
				vanished[channel] = true
				continue
			}
			logger.WarnContext(ctx, "failed to inspect room occupancy", "channel", channel, "error", err)
			continue
		}
		occupancy[channel] = len(connected)
	}

	var expired []string
	e.registry.With(community, func(ix *rooms.Index) {
		for channel := range vanished {
			if ix.Remove(channel) != nil {
				logger.InfoContext(ctx, "dropped vanished room", "channel", channel)
			}
		}
		for _, room := range ix.Rooms() {
			count, ok := occupancy[room.ChannelID]
			if !ok || count > 0 {
				continue
			}
			if room.Exile {
				expired = append(expired, room.ChannelID)
				continue
			}
			if room.TimeoutMinutes == 0 {
				continue
			}
			room.IdleMinutes++
			if room.IdleMinutes >= room.TimeoutMinutes {
				expired = append(expired, room.ChannelID)
			}
		}
	})

	for _, channel := range expired {
		logger.InfoContext(ctx, "evicting idle room", "channel", channel)
		e.deleteRoom(ctx, community, channel)
	}
}

// RunSweeper sweeps on a fixed interval until the context is cancelled.
func (e *Engine) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Sweep(ctx)
		}
	}
}
