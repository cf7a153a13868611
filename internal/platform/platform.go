// Package platform declares the capabilities the room engine consumes from
// the chat platform. The transport that implements Gateway (message delivery,
// voice primitives, permission overrides, roster queries) lives outside this
// module; the engine only ever talks to these interfaces.
package platform

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when a channel, member, or community no longer
	// exists on the platform side.
	ErrNotFound = errors.New("platform: not found")
	// ErrPermission is returned when the service identity lacks the
	// capability for an operation.
	ErrPermission = errors.New("platform: missing permission")
)

// Member is a community roster entry.
type Member struct {
	ID   string
	Name string
}

// Channel describes a platform-side channel.
type Channel struct {
	ID        string
	Community string
	Name      string
	Voice     bool
	Category  string
}

// Override is the state of a connect permission override.
type Override int

const (
	// OverrideNone means no explicit override is present.
	OverrideNone Override = iota
	// OverrideAllow explicitly grants the connect capability.
	OverrideAllow
	// OverrideDeny explicitly revokes the connect capability.
	OverrideDeny
)

// Gateway is the full capability surface the engine consumes. Calls are
// blocking I/O; implementations convert transport failures into errors that
// callers handle at the call site.
type Gateway interface {
	// BotUser returns the service's own platform identity.
	BotUser() Member

	// Communities lists the communities the service is currently a member of.
	Communities(ctx context.Context) ([]string, error)
	// Members lists the roster of a community.
	Members(ctx context.Context, community string) ([]Member, error)
	// ResolveMember resolves a user reference (mention or fuzzy name) against
	// a community roster. An empty result means the reference did not match.
	ResolveMember(ctx context.Context, community, ref string) ([]Member, error)
	// VoiceChannelOf returns the voice channel a member currently occupies,
	// or "" when the member is not connected.
	VoiceChannelOf(ctx context.Context, community, user string) (string, error)

	// CreateVoiceChannel creates a voice channel in the community.
	CreateVoiceChannel(ctx context.Context, community, name string) (Channel, error)
	// DeleteChannel deletes a channel of any kind.
	DeleteChannel(ctx context.Context, channel string) error
	// ChannelInfo describes an existing channel; ErrNotFound when deleted.
	ChannelInfo(ctx context.Context, channel string) (Channel, error)
	// SetUserLimit applies an occupancy limit to a voice channel; 0 clears it.
	SetUserLimit(ctx context.Context, channel string, limit int) error
	// Categorize moves a channel under a category.
	Categorize(ctx context.Context, channel, category string) error
	// ConnectedUsers lists the members connected to a voice channel.
	ConnectedUsers(ctx context.Context, channel string) ([]string, error)
	// MoveUser relocates a connected member into another voice channel.
	MoveUser(ctx context.Context, community, user, channel string) error

	// CategoryByName finds a category by name, "" when absent.
	CategoryByName(ctx context.Context, community, name string) (string, error)
	// CreateCategory creates a category and returns its handle.
	CreateCategory(ctx context.Context, community, name string) (string, error)
	// CategoryChannels lists the channels grouped under a category.
	CategoryChannels(ctx context.Context, community, category string) ([]Channel, error)

	// GrantOwner gives a member the full capability set on a channel.
	GrantOwner(ctx context.Context, channel, user string) error
	// SetUserConnectOverride sets or clears the per-user connect override.
	SetUserConnectOverride(ctx context.Context, channel, user string, o Override) error
	// SetEveryoneConnectOverride sets or clears the connect override on the
	// community's default role.
	SetEveryoneConnectOverride(ctx context.Context, community, channel string, o Override) error

	// SendChannelMessage posts a notice to a text channel. Fire and forget;
	// callers log failures and move on.
	SendChannelMessage(ctx context.Context, channel, text string) error
	// SendDirectMessage posts a notice to a member's private channel.
	SendDirectMessage(ctx context.Context, user, text string) error
	// SendCommunityMessage posts a notice to the community's default channel.
	SendCommunityMessage(ctx context.Context, community, text string) error
}
