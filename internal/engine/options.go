package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/tempvoice/internal/parsing"
	"github.com/example/tempvoice/internal/platform"
)

// optionKind is the closed set of option short names the engine understands.
// Unknown options are ignored; when the same kind appears more than once the
// last occurrence wins.
type optionKind int

const (
	optionUnknown optionKind = iota
	optionName
	optionLimit
	optionTimeout
	optionPrivate
	optionMove
	optionForce
)

func kindOf(name string) optionKind {
	switch name {
	case "n":
		return optionName
	case "l":
		return optionLimit
	case "t":
		return optionTimeout
	case "p":
		return optionPrivate
	case "m":
		return optionMove
	case "f":
		return optionForce
	}
	return optionUnknown
}

// lastByKind reduces the ordered option list to one option per kind.
func lastByKind(options []parsing.Option) map[optionKind]parsing.Option {
	out := make(map[optionKind]parsing.Option)
	for _, option := range options {
		if kind := kindOf(option.Name); kind != optionUnknown {
			out[kind] = option
		}
	}
	return out
}

// createRequest is a fully validated room creation request.
type createRequest struct {
	name    string
	limit   int
	timeout int
	// allowed is the access list; nil means the room stays open to the
	// community default.
	allowed []platform.Member
	// move is the set of members to relocate into the new room.
	move []platform.Member
}

// buildCreateRequest validates the create command's options against the
// requester's current situation. Every problem is collected; the request is
// only usable when the returned ValidationError has no messages.
func (e *Engine) buildCreateRequest(ctx context.Context, cc CommandContext, cmd parsing.Command, requesterChannel string) (createRequest, *ValidationError) {
	vErr := &ValidationError{}
	req := createRequest{timeout: defaultTimeoutMinutes}
	byKind := lastByKind(cmd.Options)

	if option, ok := byKind[optionName]; ok {
		if option.HasParams() {
			req.name = strings.Join(option.Params, " ")
		} else {
			vErr.add("The name option `-n` has to be used with a parameter to set the channel name: `c -n channel_title`")
		}
	}

	if option, ok := byKind[optionLimit]; ok {
		limit, err := parseBoundedInt(option, 1, maxUserLimit)
		if err != nil {
			vErr.add(fmt.Sprintf("The user-limit option `-l` has to be used with a limit between 1 and %d: `c -l 5`", maxUserLimit))
		} else {
			req.limit = limit
		}
	}

	if option, ok := byKind[optionTimeout]; ok {
		timeout, err := parseBoundedInt(option, 1, maxTimeoutMinutes)
		if err != nil {
			vErr.add(fmt.Sprintf("The timeout option `-t` has to be used with a timeout between 1 and %d: `c -t 5`", maxTimeoutMinutes))
		} else {
			req.timeout = timeout
		}
	}

	if option, ok := byKind[optionPrivate]; ok {
		req.allowed = e.parsePrivateOption(ctx, cc, option, requesterChannel, vErr)
	}

	if option, ok := byKind[optionMove]; ok {
		req.move = e.parseMoveOption(ctx, cc, option, requesterChannel, req.allowed, vErr)
	}

	return req, vErr
}

func parseBoundedInt(option parsing.Option, min, max int) (int, error) {
	if !option.HasParams() {
		return 0, fmt.Errorf("missing parameter")
	}
	value, err := strconv.Atoi(option.Params[0])
	if err != nil {
		return 0, err
	}
	if value < min || value > max {
		return 0, fmt.Errorf("value %d out of range [%d,%d]", value, min, max)
	}
	return value, nil
}

// parsePrivateOption resolves the allow list. A nil result means the room is
// not private: an empty or fully unrecognized list falls back to public.
func (e *Engine) parsePrivateOption(ctx context.Context, cc CommandContext, option parsing.Option, requesterChannel string, vErr *ValidationError) []platform.Member {
	if !option.HasParams() {
		vErr.add("You need to specify the users who may join your private channel when using the private option: `c -p @user1 @user2`")
		return nil
	}

	if option.Params[0] == "all" {
		if len(option.Params) > 1 {
			vErr.add("The private option `-p` with `all` already allows everyone in your current channel, so it can't be combined with further parameters.")
			return nil
		}
		allowed := e.coLocatedMembers(ctx, cc, requesterChannel, false)
		if len(allowed) == 0 {
			return nil
		}
		return allowed
	}

	allowed := e.resolveRefs(ctx, cc.Community, option.Params, vErr)
	if len(allowed) == 0 {
		return nil
	}
	return allowed
}

// parseMoveOption resolves the move-on-create list. No parameters moves the
// requester only; `all` moves every currently-allowed user plus the
// requester; explicit references move exactly those users.
func (e *Engine) parseMoveOption(ctx context.Context, cc CommandContext, option parsing.Option, requesterChannel string, allowed []platform.Member, vErr *ValidationError) []platform.Member {
	if !option.HasParams() {
		return []platform.Member{cc.Author}
	}

	if option.Params[0] == "all" {
		if allowed != nil {
			return appendMember(allowed, cc.Author)
		}
		return e.coLocatedMembers(ctx, cc, requesterChannel, true)
	}

	return e.resolveRefs(ctx, cc.Community, option.Params, vErr)
}

// coLocatedMembers returns the members connected to the requester's current
// channel, optionally including the requester.
func (e *Engine) coLocatedMembers(ctx context.Context, cc CommandContext, channel string, includeRequester bool) []platform.Member {
	logger := e.loggerFrom(ctx)

	connected, err := e.gw.ConnectedUsers(ctx, channel)
	if err != nil {
		logger.WarnContext(ctx, "failed to list connected users", "channel", channel, "error", err)
		return nil
	}
	roster := e.rosterByID(ctx, cc.Community)

	var out []platform.Member
	for _, id := range connected {
		if id == cc.Author.ID && !includeRequester {
			continue
		}
		if member, ok := roster[id]; ok {
			out = append(out, member)
		}
	}
	return out
}

// resolveRefs resolves user references against the community roster. All
// misses are reported in a single validation message.
func (e *Engine) resolveRefs(ctx context.Context, community string, refs []string, vErr *ValidationError) []platform.Member {
	logger := e.loggerFrom(ctx)

	var resolved []platform.Member
	var notFound []string
	for _, ref := range refs {
		members, err := e.gw.ResolveMember(ctx, community, ref)
		if err != nil {
			logger.WarnContext(ctx, "failed to resolve member reference", "ref", ref, "error", err)
			notFound = append(notFound, ref)
			continue
		}
		if len(members) == 0 {
			notFound = append(notFound, ref)
			continue
		}
		for _, member := range members {
			resolved = appendMember(resolved, member)
		}
	}

	if len(notFound) > 0 && vErr != nil {
		vErr.add("The following usernames were not found: " + strings.Join(notFound, ", "))
	}
	return resolved
}

func (e *Engine) rosterByID(ctx context.Context, community string) map[string]platform.Member {
	members, err := e.gw.Members(ctx, community)
	if err != nil {
		e.loggerFrom(ctx).WarnContext(ctx, "failed to list community members", "community", community, "error", err)
		return nil
	}
	roster := make(map[string]platform.Member, len(members))
	for _, member := range members {
		roster[member.ID] = member
	}
	return roster
}

func appendMember(members []platform.Member, member platform.Member) []platform.Member {
	for _, existing := range members {
		if existing.ID == member.ID {
			return members
		}
	}
	return append(members, member)
}
