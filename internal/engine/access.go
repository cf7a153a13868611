package engine

import (
	"context"

	"github.com/example/tempvoice/internal/platform"
)

// applyAccess grants the owner's management rights and, for private rooms,
// allows the invited members while denying everyone else. A nil allow list
// means the room stays public.
func (e *Engine) applyAccess(ctx context.Context, community, channel, owner string, allowed []platform.Member) {
	logger := e.loggerFrom(ctx)

	if err := e.gw.GrantOwner(ctx, channel, owner); err != nil {
		logger.WarnContext(ctx, "failed to grant owner rights", "channel", channel, "user", owner, "error", err)
	}
	if allowed == nil {
		return
	}

	for _, member := range allowed {
		if err := e.gw.SetUserConnectOverride(ctx, channel, member.ID, platform.OverrideAllow); err != nil {
			logger.WarnContext(ctx, "failed to allow member", "channel", channel, "user", member.ID, "error", err)
		}
	}
	if err := e.gw.SetEveryoneConnectOverride(ctx, community, channel, platform.OverrideDeny); err != nil {
		logger.WarnContext(ctx, "failed to deny everyone", "channel", channel, "error", err)
	}
}

// denyConnect places a per-user connect deny on the channel, keeping banned
// members out even after the relocation.
func (e *Engine) denyConnect(ctx context.Context, channel string, members []platform.Member) {
	logger := e.loggerFrom(ctx)
	for _, member := range members {
		if err := e.gw.SetUserConnectOverride(ctx, channel, member.ID, platform.OverrideDeny); err != nil {
			logger.WarnContext(ctx, "failed to deny member", "channel", channel, "user", member.ID, "error", err)
		}
	}
}

// clearConnectOverride removes any per-user connect override, returning the
// member to whatever the channel-wide rule says.
func (e *Engine) clearConnectOverride(ctx context.Context, channel string, members []platform.Member) {
	logger := e.loggerFrom(ctx)
	for _, member := range members {
		if err := e.gw.SetUserConnectOverride(ctx, channel, member.ID, platform.OverrideNone); err != nil {
			logger.WarnContext(ctx, "failed to clear member override", "channel", channel, "user", member.ID, "error", err)
		}
	}
}
