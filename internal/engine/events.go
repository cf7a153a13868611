package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/tempvoice/internal/logging"
	"github.com/example/tempvoice/internal/platform"
	"github.com/example/tempvoice/internal/rooms"
	"github.com/example/tempvoice/internal/snapshot"
)

// HandleReady runs the startup reconciliation: track every current
// community, re-attach persisted rooms, and sweep the holding categories for
// strays. Community-joined events are suppressed until this completes.
func (e *Engine) HandleReady(ctx context.Context) {
	logger := e.logger.With("event", "ready")
	ctx = logging.ContextWithLogger(ctx, logger)

	communities, err := e.gw.Communities(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to list communities", "error", err, "error_kind", ErrorKind(err))
		communities = nil
	}
	for _, community := range communities {
		e.registry.Track(community)
	}
	logger.InfoContext(ctx, "tracking communities", "count", len(communities))

	e.restoreSnapshot(ctx)

	for _, community := range communities {
		e.reconcileCategory(ctx, community)
	}

	e.startup.Store(false)
}

// HandleCommunityJoined tracks a newly joined (or re-available) community
// and re-attaches any stashed rooms. Events arriving before the ready
// reconciliation are dropped; the reconciliation covers those communities.
func (e *Engine) HandleCommunityJoined(ctx context.Context, community string) {
	logger := e.logger.With("event", "community_joined", "community", community)
	ctx = logging.ContextWithLogger(ctx, logger)

	if e.startup.Load() {
		logger.DebugContext(ctx, "suppressed during startup")
		return
	}
	if e.registry.Tracked(community) {
		return
	}
	e.registry.Track(community)
	e.restoreStash(ctx, community)
	e.reconcileCategory(ctx, community)
}

// HandleCommunityLeft stops tracking a community. Its rooms move to the
// stash in case the community comes back within the process lifetime.
func (e *Engine) HandleCommunityLeft(ctx context.Context, community string) {
	logger := e.logger.With("event", "community_left", "community", community)

	stashed := e.registry.Drop(community)
	if len(stashed) > 0 {
		e.stash.Put(community, stashed)
	}
	logger.InfoContext(ctx, "community dropped", "stashed_rooms", len(stashed))
}

// HandleCommunityUnavailable handles a temporary outage the same way as
// leaving: stash and wait for the availability event to re-attach.
func (e *Engine) HandleCommunityUnavailable(ctx context.Context, community string) {
	e.HandleCommunityLeft(ctx, community)
}

// HandleChannelDeleted drops the index entry for an externally deleted
// channel.
func (e *Engine) HandleChannelDeleted(ctx context.Context, community, channel string) {
	e.registry.With(community, func(ix *rooms.Index) {
		if ix.Remove(channel) != nil {
			e.logger.InfoContext(ctx, "externally deleted room dropped", "community", community, "channel", channel)
		}
	})
}

// HandleVoiceJoin resets the idle counter of the joined room.
func (e *Engine) HandleVoiceJoin(ctx context.Context, community, channel string) {
	e.registry.With(community, func(ix *rooms.Index) {
		if room := ix.ByChannel(channel); room != nil {
			room.IdleMinutes = 0
		}
	})
}

// HandleVoiceMove treats a move as a leave from the old channel and a join
// into the new one.
func (e *Engine) HandleVoiceMove(ctx context.Context, community, from, to string) {
	e.HandleVoiceLeave(ctx, community, from)
	e.HandleVoiceJoin(ctx, community, to)
}

// HandleVoiceLeave reclaims an exile room the moment it empties. Regular
// rooms are left to the sweep.
func (e *Engine) HandleVoiceLeave(ctx context.Context, community, channel string) {
	exile := false
	e.registry.With(community, func(ix *rooms.Index) {
		room := ix.ByChannel(channel)
		exile = room != nil && room.Exile
	})
	if !exile {
		return
	}

	connected, err := e.gw.ConnectedUsers(ctx, channel)
	if err != nil {
		e.logger.WarnContext(ctx, "failed to inspect exile room occupancy", "channel", channel, "error", err)
		return
	}
	if len(connected) == 0 {
		e.deleteRoom(ctx, community, channel)
	}
}

// restoreSnapshot re-attaches persisted rooms to their communities. Records
// whose channel no longer resolves, whose owner left the roster, or whose
// community is not tracked, are dropped.
func (e *Engine) restoreSnapshot(ctx context.Context) {
	if e.store == nil {
		return
	}
	logger := e.loggerFrom(ctx)

	records, err := e.store.Load(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "failed to load snapshot", "error", err, "error_kind", ErrorKind(err))
		return
	}

	rosters := make(map[string]map[string]platform.Member)
	restored, dropped := 0, 0
	for _, record := range records {
		info, err := e.gw.ChannelInfo(ctx, record.ChannelID)
		if err != nil {
			if !errors.Is(err, platform.ErrNotFound) {
				logger.WarnContext(ctx, "failed to resolve persisted channel", "channel", record.ChannelID, "error", err)
			}
			dropped++
			continue
		}
		roster, ok := rosters[info.Community]
		if !ok {
			roster = e.rosterByID(ctx, info.Community)
			rosters[info.Community] = roster
		}
		if !e.ownerResolves(roster, record.OwnerID) {
			logger.InfoContext(ctx, "dropping room of departed owner", "channel", record.ChannelID, "owner", record.OwnerID)
			dropped++
			continue
		}
		attached := e.registry.With(info.Community, func(ix *rooms.Index) {
			ix.Add(&rooms.Room{
				ChannelID:      record.ChannelID,
				OwnerID:        record.OwnerID,
				TimeoutMinutes: record.TimeoutMinutes,
				IdleMinutes:    record.IdleMinutes,
			})
		})
		if !attached {
			dropped++
			continue
		}
		restored++
	}
	logger.InfoContext(ctx, "snapshot restored", "restored", restored, "dropped", dropped)
}

// restoreStash re-attaches rooms stashed while the community was away.
// Rooms whose channel vanished or whose owner left the roster in the
// meantime are discarded.
func (e *Engine) restoreStash(ctx context.Context, community string) {
	logger := e.loggerFrom(ctx)

	stashed := e.stash.Take(community)
	if len(stashed) == 0 {
		return
	}

	roster := e.rosterByID(ctx, community)
	restored := 0
	for _, room := range stashed {
		if _, err := e.gw.ChannelInfo(ctx, room.ChannelID); err != nil {
			continue
		}
		if !e.ownerResolves(roster, room.OwnerID) {
			logger.InfoContext(ctx, "discarding stashed room of departed owner", "channel", room.ChannelID, "owner", room.OwnerID)
			continue
		}
		room := room
		if e.registry.With(community, func(ix *rooms.Index) { ix.Add(room) }) {
			restored++
		}
	}
	logger.InfoContext(ctx, "stash restored", "restored", restored, "discarded", len(stashed)-restored)
}

// ownerResolves reports whether a room owner is still resolvable: either a
// current roster member or the service's own identity, which owns adopted
// and exile rooms.
func (e *Engine) ownerResolves(roster map[string]platform.Member, owner string) bool {
	if owner == e.gw.BotUser().ID {
		return true
	}
	_, ok := roster[owner]
	return ok
}

// reconcileCategory inspects the holding category: unknown voice channels
// are adopted as service-owned rooms with the default timeout, and non-voice
// strays are removed with a single community notice.
func (e *Engine) reconcileCategory(ctx context.Context, community string) {
	logger := e.loggerFrom(ctx)

	category, err := e.gw.CategoryByName(ctx, community, categoryName)
	if err != nil {
		logger.WarnContext(ctx, "failed to look up holding category", "community", community, "error", err)
		return
	}
	if category == "" {
		return
	}

	channels, err := e.gw.CategoryChannels(ctx, community, category)
	if err != nil {
		logger.WarnContext(ctx, "failed to list category channels", "community", community, "error", err)
		return
	}

	adopted, removed := 0, 0
	for _, channel := range channels {
		if !channel.Voice {
			if err := e.gw.DeleteChannel(ctx, channel.ID); err != nil {
				logger.WarnContext(ctx, "failed to remove stray channel", "channel", channel.ID, "error", err)
				continue
			}
			removed++
			continue
		}

		known := false
		e.registry.With(community, func(ix *rooms.Index) {
			known = ix.ByChannel(channel.ID) != nil
		})
		if known {
			continue
		}
		e.registry.With(community, func(ix *rooms.Index) {
			ix.Add(&rooms.Room{
				ChannelID:      channel.ID,
				OwnerID:        e.gw.BotUser().ID,
				TimeoutMinutes: adoptedTimeoutMinutes,
			})
		})
		adopted++
	}

	if removed > 0 {
		e.notifyCommunity(ctx, community, fmt.Sprintf(
			"The category `%s` is reserved for temporary voice channels; %d other channel(s) were removed.",
			categoryName, removed))
	}
	if adopted > 0 || removed > 0 {
		logger.InfoContext(ctx, "category reconciled", "community", community, "adopted", adopted, "removed", removed)
	}
}

// SaveSnapshot flattens every tracked room into the store. Exile rooms are
// skipped; they never outlive a restart.
func (e *Engine) SaveSnapshot(ctx context.Context) error {
	if e.store == nil {
		return nil
	}

	var records []snapshot.Record
	for _, community := range e.registry.Communities() {
		e.registry.With(community, func(ix *rooms.Index) {
			for _, room := range ix.Rooms() {
				if room.Exile {
					continue
				}
				records = append(records, snapshot.Record{
					ChannelID:      room.ChannelID,
					OwnerID:        room.OwnerID,
					TimeoutMinutes: room.TimeoutMinutes,
					IdleMinutes:    room.IdleMinutes,
				})
			}
		})
	}

	if err := e.store.Save(ctx, records); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	e.logger.InfoContext(ctx, "snapshot saved", "rooms", len(records))
	return nil
}

func (e *Engine) notifyCommunity(ctx context.Context, community, text string) {
	if err := e.gw.SendCommunityMessage(ctx, community, text); err != nil {
		e.loggerFrom(ctx).WarnContext(ctx, "failed to send community notice", "community", community, "error", err)
	}
}
