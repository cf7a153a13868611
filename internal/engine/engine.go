// Package engine implements the temporary-room lifecycle: command dispatch,
// room creation, kick/ban exile handling, access control, the eviction sweep,
// and the persistence and stash paths that survive restarts and community
// flaps.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/example/tempvoice/internal/logging"
	"github.com/example/tempvoice/internal/parsing"
	"github.com/example/tempvoice/internal/platform"
	"github.com/example/tempvoice/internal/rooms"
	"github.com/example/tempvoice/internal/snapshot"
)

const (
	// ownerRoomLimit caps the non-exile rooms one member may own per
	// community.
	ownerRoomLimit = 3
	// defaultTimeoutMinutes applies when the create command carries no -t.
	defaultTimeoutMinutes = 5
	// adoptedTimeoutMinutes applies to unknown channels found in the holding
	// category at startup.
	adoptedTimeoutMinutes = 5
	maxTimeoutMinutes     = 180
	maxUserLimit          = 99
	// categoryName is the holding category grouping all managed rooms.
	categoryName = "Temporary Channel"
	// sweepInterval is the fixed eviction sweep period.
	sweepInterval = time.Minute
)

// SnapshotStore persists the flattened room records across restarts.
type SnapshotStore interface {
	Save(ctx context.Context, records []snapshot.Record) error
	Load(ctx context.Context) ([]snapshot.Record, error)
}

// CommandContext carries the platform context of an inbound command.
type CommandContext struct {
	Community string
	// Channel is the text channel the command arrived in; inline replies go
	// there.
	Channel string
	Author  platform.Member
	Text    string
}

// Engine owns the per-community room indices and applies every lifecycle
// transition. One Engine serves all communities.
type Engine struct {
	gw       platform.Gateway
	registry *rooms.Registry
	stash    *rooms.Stash
	store    SnapshotStore
	logger   *slog.Logger

	// startup suppresses community-joined handling until the ready
	// reconciliation has run.
	startup atomic.Bool
}

// New constructs an engine. The snapshot store may be nil, in which case
// nothing persists across restarts.
func New(gw platform.Gateway, store SnapshotStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		gw:       gw,
		registry: rooms.NewRegistry(),
		stash:    rooms.NewStash(),
		store:    store,
		logger:   logger,
	}
	e.startup.Store(true)
	return e
}

func (e *Engine) loggerFrom(ctx context.Context) *slog.Logger {
	if logger := logging.FromContext(ctx); logger != nil {
		return logger
	}
	return e.logger
}

// HandleCommand parses inbound command text and dispatches it. Unknown
// command names are ignored.
func (e *Engine) HandleCommand(ctx context.Context, cc CommandContext) {
	cmd := parsing.Parse(cc.Text)
	logger := e.logger.With(
		"command_id", uuid.NewString(),
		"community", cc.Community,
		"author", cc.Author.ID,
		"command", strings.ToLower(cmd.Name),
	)
	ctx = logging.ContextWithLogger(ctx, logger)

	switch strings.ToLower(cmd.Name) {
	case "create", "c", "new":
		e.handleCreate(ctx, cc, cmd)
	case "clear", "cc":
		e.handleClear(ctx, cc, cmd)
	case "kick", "k":
		e.handleKick(ctx, cc, cmd)
	case "ban", "b", "deny", "remove":
		e.handleBan(ctx, cc, cmd)
	case "unban", "ub", "allow", "add":
		e.handleUnban(ctx, cc, cmd)
	case "help":
		e.handleHelp(ctx, cc)
	default:
		logger.DebugContext(ctx, "ignoring unknown command")
	}
}

func (e *Engine) handleCreate(ctx context.Context, cc CommandContext, cmd parsing.Command) {
	logger := e.loggerFrom(ctx)

	requesterChannel, vErr := e.checkCreatePrerequisites(ctx, cc)
	if vErr.HasErrors() {
		e.sendErrors(ctx, cc, vErr)
		return
	}

	req, vErr := e.buildCreateRequest(ctx, cc, cmd, requesterChannel)
	if vErr.HasErrors() {
		e.sendErrors(ctx, cc, vErr)
		return
	}

	if req.name == "" {
		req.name = e.autoName(ctx, cc.Community, cc.Author)
	}

	room, err := e.spawnRoom(ctx, roomSpec{
		community: cc.Community,
		owner:     cc.Author,
		name:      req.name,
		allowed:   req.allowed,
		move:      req.move,
		mover:     cc.Author,
		limit:     req.limit,
		timeout:   req.timeout,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to create room", "error", err, "error_kind", ErrorKind(err))
		e.notifyChannel(ctx, cc.Channel, fmt.Sprintf("Sorry %s, I couldn't create your channel right now.", mention(cc.Author)))
		return
	}
	logger.InfoContext(ctx, "room created", "channel", room.ChannelID, "timeout_minutes", room.TimeoutMinutes)
}

// checkCreatePrerequisites verifies the requester occupies a voice channel
// and is below the per-user room limit. Returns the requester's current
// channel when both hold.
func (e *Engine) checkCreatePrerequisites(ctx context.Context, cc CommandContext) (string, *ValidationError) {
	logger := e.loggerFrom(ctx)
	vErr := &ValidationError{}

	requesterChannel, err := e.gw.VoiceChannelOf(ctx, cc.Community, cc.Author.ID)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve requester's voice channel", "error", err)
	}
	if requesterChannel == "" {
		vErr.add("Please join a voice channel before using a channel command.")
		return "", vErr
	}

	count := 0
	e.registry.With(cc.Community, func(ix *rooms.Index) {
		count = ix.OwnedCount(cc.Author.ID)
	})
	if count >= ownerRoomLimit {
		vErr.add(fmt.Sprintf(
			"You reached the personal channel limit of %d. Use `cc` to delete all of your empty temporary channels; with the option `-f` you can force the deletion of the non-empty ones too.",
			ownerRoomLimit))
	}
	return requesterChannel, vErr
}

// autoName picks "<requester> #k" with the smallest k in [1,ownerRoomLimit]
// not used by one of the requester's existing rooms, falling back to the bare
// requester name when all are taken.
func (e *Engine) autoName(ctx context.Context, community string, owner platform.Member) string {
	logger := e.loggerFrom(ctx)

	var ownedChannels []string
	e.registry.With(community, func(ix *rooms.Index) {
		for _, room := range ix.Owned(owner.ID) {
			ownedChannels = append(ownedChannels, room.ChannelID)
		}
	})

	taken := make(map[string]bool, len(ownedChannels))
	for _, channel := range ownedChannels {
		info, err := e.gw.ChannelInfo(ctx, channel)
		if err != nil {
			logger.WarnContext(ctx, "failed to inspect owned channel", "channel", channel, "error", err)
			continue
		}
		taken[info.Name] = true
	}

	for k := 1; k <= ownerRoomLimit; k++ {
		candidate := fmt.Sprintf("%s #%d", owner.Name, k)
		if !taken[candidate] {
			return candidate
		}
	}
	return owner.Name
}

// roomSpec drives spawnRoom for both user-created and exile rooms.
type roomSpec struct {
	community string
	owner     platform.Member
	name      string
	allowed   []platform.Member
	move      []platform.Member
	// mover anchors the co-location filter for the move list and receives
	// the per-user "couldn't be moved" notices.
	mover   platform.Member
	limit   int
	timeout int
	exile   bool
}

// spawnRoom creates the platform channel, registers the entity, applies
// access control, and relocates the move list. Category and limit failures
// degrade; only channel creation itself is fatal to the operation.
func (e *Engine) spawnRoom(ctx context.Context, spec roomSpec) (*rooms.Room, error) {
	logger := e.loggerFrom(ctx)

	channel, err := e.gw.CreateVoiceChannel(ctx, spec.community, spec.name)
	if err != nil {
		return nil, fmt.Errorf("create voice channel: %w", err)
	}
	logger.InfoContext(ctx, "created channel", "channel", channel.ID, "name", spec.name)

	if category := e.ensureCategory(ctx, spec.community); category != "" {
		if err := e.gw.Categorize(ctx, channel.ID, category); err != nil {
			logger.WarnContext(ctx, "failed to categorize channel", "channel", channel.ID, "error", err)
		}
	}

	if err := e.gw.SetUserLimit(ctx, channel.ID, spec.limit); err != nil {
		logger.WarnContext(ctx, "failed to set user limit", "channel", channel.ID, "error", err)
	}

	room := &rooms.Room{
		ChannelID:      channel.ID,
		OwnerID:        spec.owner.ID,
		TimeoutMinutes: spec.timeout,
		Exile:          spec.exile,
	}
	if !e.registry.With(spec.community, func(ix *rooms.Index) { ix.Add(room) }) {
		// Community vanished mid-operation; don't leave the channel behind.
		if err := e.gw.DeleteChannel(ctx, channel.ID); err != nil {
			logger.WarnContext(ctx, "failed to delete orphaned channel", "channel", channel.ID, "error", err)
		}
		return nil, fmt.Errorf("community %s is not tracked", spec.community)
	}

	e.applyAccess(ctx, spec.community, channel.ID, spec.owner.ID, spec.allowed)
	e.moveMembers(ctx, spec.community, spec.mover, spec.move, channel.ID)
	return room, nil
}

// moveMembers relocates the listed members into the target channel. Only
// members co-located with the mover are relocated; the mover is privately
// told about everyone else.
func (e *Engine) moveMembers(ctx context.Context, community string, mover platform.Member, members []platform.Member, target string) {
	if len(members) == 0 {
		return
	}
	logger := e.loggerFrom(ctx)

	anchor, err := e.gw.VoiceChannelOf(ctx, community, mover.ID)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve mover's voice channel", "error", err)
		return
	}

	var moved []string
	for _, member := range members {
		current := anchor
		if member.ID != mover.ID {
			current, err = e.gw.VoiceChannelOf(ctx, community, member.ID)
			if err != nil {
				logger.WarnContext(ctx, "failed to resolve member's voice channel", "user", member.ID, "error", err)
				continue
			}
		}
		if current == "" || current != anchor {
			e.notifyUser(ctx, mover.ID, fmt.Sprintf("The user %s wasn't in the same channel as you and therefore couldn't be moved.", mention(member)))
			continue
		}
		if err := e.gw.MoveUser(ctx, community, member.ID, target); err != nil {
			logger.WarnContext(ctx, "failed to move member", "user", member.ID, "error", err)
			continue
		}
		moved = append(moved, member.Name)
	}
	if len(moved) > 0 {
		logger.InfoContext(ctx, "moved members", "members", strings.Join(moved, ", "))
	}
}

// ensureCategory finds or lazily creates the holding category. Returns ""
// when the category is unavailable; rooms then stay uncategorized.
func (e *Engine) ensureCategory(ctx context.Context, community string) string {
	logger := e.loggerFrom(ctx)

	category, err := e.gw.CategoryByName(ctx, community, categoryName)
	if err != nil {
		logger.WarnContext(ctx, "failed to look up holding category", "error", err)
		return ""
	}
	if category != "" {
		return category
	}

	category, err = e.gw.CreateCategory(ctx, community, categoryName)
	if err != nil {
		logger.InfoContext(ctx, "could not create holding category", "error", err, "error_kind", ErrorKind(err))
		return ""
	}
	return category
}

func (e *Engine) handleClear(ctx context.Context, cc CommandContext, cmd parsing.Command) {
	logger := e.loggerFrom(ctx)

	var ownedChannels []string
	e.registry.With(cc.Community, func(ix *rooms.Index) {
		for _, room := range ix.Owned(cc.Author.ID) {
			if !room.Exile {
				ownedChannels = append(ownedChannels, room.ChannelID)
			}
		}
	})
	if len(ownedChannels) == 0 {
		logger.InfoContext(ctx, "clear with no owned rooms")
		e.notifyChannel(ctx, cc.Channel, fmt.Sprintf("%s, you have no temporary channels at the moment!", mention(cc.Author)))
		return
	}

	_, force := lastByKind(cmd.Options)[optionForce]

	skipped := false
	for _, channel := range ownedChannels {
		connected, err := e.gw.ConnectedUsers(ctx, channel)
		if err != nil {
			logger.WarnContext(ctx, "failed to inspect channel occupancy", "channel", channel, "error", err)
			continue
		}
		if len(connected) > 0 && !force {
			skipped = true
			continue
		}
		e.deleteRoom(ctx, cc.Community, channel)
	}

	if skipped {
		e.notifyChannel(ctx, cc.Channel, "Some of your channels aren't empty. Use `cc -f` to force the deletion anyway.")
	}
}

func (e *Engine) handleKick(ctx context.Context, cc CommandContext, cmd parsing.Command) {
	origin, ok := e.ownedCurrentRoom(ctx, cc)
	if !ok {
		return
	}

	targets := e.moderationTargets(ctx, cc, cmd, origin, "You tried to kick yourself from your own temporary channel.")
	if len(targets) == 0 {
		return
	}

	e.exileMembers(ctx, cc, targets, "you got kicked")
}

func (e *Engine) handleBan(ctx context.Context, cc CommandContext, cmd parsing.Command) {
	logger := e.loggerFrom(ctx)

	origin, ok := e.ownedCurrentRoom(ctx, cc)
	if !ok {
		return
	}

	targets := e.moderationTargets(ctx, cc, cmd, origin, "You tried to ban yourself from your own temporary channel.")
	if len(targets) == 0 {
		return
	}

	e.denyConnect(ctx, origin, targets)
	e.exileMembers(ctx, cc, targets, "you got banned")

	name := origin
	if info, err := e.gw.ChannelInfo(ctx, origin); err == nil {
		name = info.Name
	} else {
		logger.WarnContext(ctx, "failed to inspect origin channel", "channel", origin, "error", err)
	}
	e.notifyChannel(ctx, cc.Channel, fmt.Sprintf("The mentioned user(s) got banned from your temporary channel `%s`!", name))
}

func (e *Engine) handleUnban(ctx context.Context, cc CommandContext, cmd parsing.Command) {
	logger := e.loggerFrom(ctx)

	origin, ok := e.ownedCurrentRoom(ctx, cc)
	if !ok {
		return
	}

	targets := e.resolveRefs(ctx, cc.Community, cmd.Args, nil)
	targets = withoutMember(targets, cc.Author.ID)
	if len(targets) == 0 {
		return
	}

	e.clearConnectOverride(ctx, origin, targets)

	name := origin
	if info, err := e.gw.ChannelInfo(ctx, origin); err == nil {
		name = info.Name
	} else {
		logger.WarnContext(ctx, "failed to inspect origin channel", "channel", origin, "error", err)
	}
	e.notifyChannel(ctx, cc.Channel, fmt.Sprintf("The mentioned user(s) may now join your temporary channel `%s`!", name))
}

func (e *Engine) handleHelp(ctx context.Context, cc CommandContext) {
	e.notifyChannel(ctx, cc.Channel, strings.Join([]string{
		"Temporary voice rooms:",
		"`c [-n name] [-l limit] [-t minutes] [-p @user ...|all] [-m @user ...|all]` creates a room",
		"`cc [-f]` clears your empty rooms (`-f` forces the non-empty ones too)",
		"`kick @user ...` relocates users out of your room",
		"`ban @user ...` additionally denies them reconnecting",
		"`unban @user ...` lifts the deny again",
	}, "\n"))
}

// ownedCurrentRoom returns the managed room the requester currently occupies
// when they own it. Otherwise the requester is told privately why the
// command did nothing.
func (e *Engine) ownedCurrentRoom(ctx context.Context, cc CommandContext) (string, bool) {
	logger := e.loggerFrom(ctx)

	current, err := e.gw.VoiceChannelOf(ctx, cc.Community, cc.Author.ID)
	if err != nil {
		logger.WarnContext(ctx, "failed to resolve requester's voice channel", "error", err)
	}

	owned := false
	if current != "" {
		e.registry.With(cc.Community, func(ix *rooms.Index) {
			room := ix.ByChannel(current)
			owned = room != nil && room.OwnerID == cc.Author.ID
		})
	}
	if !owned {
		e.notifyUser(ctx, cc.Author.ID, "You can only use this command if you are in a temporary channel that you own.")
		return "", false
	}
	return current, true
}

// moderationTargets resolves the command's user references, filters out the
// requester (with a private notice) and anyone not co-located in the origin
// room.
func (e *Engine) moderationTargets(ctx context.Context, cc CommandContext, cmd parsing.Command, origin, selfNotice string) []platform.Member {
	logger := e.loggerFrom(ctx)

	targets := e.resolveRefs(ctx, cc.Community, cmd.Args, nil)

	if containsMember(targets, cc.Author.ID) {
		targets = withoutMember(targets, cc.Author.ID)
		e.notifyUser(ctx, cc.Author.ID, selfNotice)
	}

	var present []platform.Member
	for _, target := range targets {
		channel, err := e.gw.VoiceChannelOf(ctx, cc.Community, target.ID)
		if err != nil {
			logger.WarnContext(ctx, "failed to resolve target's voice channel", "user", target.ID, "error", err)
			continue
		}
		if channel == origin {
			present = append(present, target)
		}
	}
	return present
}

// exileMembers spawns a fresh exile room owned by the service identity and
// relocates the targets into it. The sweep reclaims it once empty.
func (e *Engine) exileMembers(ctx context.Context, cc CommandContext, targets []platform.Member, name string) {
	logger := e.loggerFrom(ctx)

	_, err := e.spawnRoom(ctx, roomSpec{
		community: cc.Community,
		owner:     e.gw.BotUser(),
		name:      name,
		move:      targets,
		mover:     cc.Author,
		exile:     true,
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to create exile room", "error", err, "error_kind", ErrorKind(err))
	}
}

// deleteRoom removes the platform channel and the index entry.
func (e *Engine) deleteRoom(ctx context.Context, community, channel string) {
	logger := e.loggerFrom(ctx)
	if err := e.gw.DeleteChannel(ctx, channel); err != nil {
		logger.WarnContext(ctx, "failed to delete channel", "channel", channel, "error", err)
	}
	e.registry.With(community, func(ix *rooms.Index) {
		ix.Remove(channel)
	})
}

// sendErrors surfaces validation problems: a single message inline, several
// as an inline pointer plus a numbered private follow-up quoting the command.
func (e *Engine) sendErrors(ctx context.Context, cc CommandContext, vErr *ValidationError) {
	if !vErr.HasErrors() {
		return
	}
	if len(vErr.Messages) == 1 {
		e.notifyChannel(ctx, cc.Channel, fmt.Sprintf("Hey %s: %s", mention(cc.Author), vErr.Messages[0]))
		return
	}

	e.notifyChannel(ctx, cc.Channel, fmt.Sprintf("Hey %s, there was something wrong with your channel command. Check your private messages for the details.", mention(cc.Author)))

	var b strings.Builder
	fmt.Fprintf(&b, "There were some problems with your channel command: %q\n", cc.Text)
	for i, message := range vErr.Messages {
		fmt.Fprintf(&b, "\t%d. %s\n", i+1, message)
	}
	e.notifyUser(ctx, cc.Author.ID, b.String())
}

// notifyChannel posts a fire-and-forget notice to a text channel.
func (e *Engine) notifyChannel(ctx context.Context, channel, text string) {
	if channel == "" {
		return
	}
	if err := e.gw.SendChannelMessage(ctx, channel, text); err != nil {
		e.loggerFrom(ctx).WarnContext(ctx, "failed to send channel notice", "channel", channel, "error", err)
	}
}

// notifyUser posts a fire-and-forget notice to a member's private channel.
func (e *Engine) notifyUser(ctx context.Context, user, text string) {
	if err := e.gw.SendDirectMessage(ctx, user, text); err != nil {
		e.loggerFrom(ctx).WarnContext(ctx, "failed to send direct notice", "user", user, "error", err)
	}
}

func mention(member platform.Member) string {
	if member.Name != "" {
		return "@" + member.Name
	}
	return "@" + member.ID
}

func containsMember(members []platform.Member, id string) bool {
	for _, member := range members {
		if member.ID == id {
			return true
		}
	}
	return false
}

func withoutMember(members []platform.Member, id string) []platform.Member {
	out := members[:0]
	for _, member := range members {
		if member.ID != id {
			out = append(out, member)
		}
	}
	return out
}
