// Package sim is an in-memory implementation of platform.Gateway. It backs
// the engine's tests and the binary's local simulation mode; there is no
// network involved, state lives in maps guarded by one mutex.
package sim

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/example/tempvoice/internal/platform"
)

// Platform simulates a chat platform: communities, rosters, voice and text
// channels, categories, connect overrides, and message delivery.
type Platform struct {
	mu          sync.Mutex
	bot         platform.Member
	communities map[string]*community
	channels    map[string]*channel

	channelMsgs   map[string][]string
	directMsgs    map[string][]string
	communityMsgs map[string][]string

	// Injectable capability failures.
	CreateCategoryErr error
	DeleteChannelErr  error
	MoveUserErr       error
}

type community struct {
	members    map[string]platform.Member
	categories map[string]string // category handle -> name
}

type channel struct {
	info          platform.Channel
	limit         int
	connected     []string
	owners        map[string]bool
	userOverrides map[string]platform.Override
	everyone      platform.Override
}

// New returns an empty platform whose service identity is the given member.
func New(bot platform.Member) *Platform {
	return &Platform{
		bot:           bot,
		communities:   make(map[string]*community),
		channels:      make(map[string]*channel),
		channelMsgs:   make(map[string][]string),
		directMsgs:    make(map[string][]string),
		communityMsgs: make(map[string][]string),
	}
}

// --- seeding and inspection helpers (not part of platform.Gateway) ---

// AddCommunity registers a community; the bot is always on its roster.
func (p *Platform) AddCommunity(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.communities[id]; !ok {
		p.communities[id] = &community{
			members:    map[string]platform.Member{p.bot.ID: p.bot},
			categories: make(map[string]string),
		}
	}
}

// RemoveCommunity drops a community and its channels, simulating the service
// losing membership.
func (p *Platform) RemoveCommunity(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.communities, id)
}

// AddMember puts a member on a community roster.
func (p *Platform) AddMember(communityID string, member platform.Member) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.communities[communityID]; ok {
		c.members[member.ID] = member
	}
}

// RemoveMember drops a member from a community roster and disconnects them.
func (p *Platform) RemoveMember(communityID, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.communities[communityID]; ok {
		delete(c.members, userID)
	}
	for _, ch := range p.channels {
		if ch.info.Community == communityID {
			ch.disconnect(userID)
		}
	}
}

// SeedVoiceChannel creates a voice channel with a fixed handle, bypassing the
// gateway surface. Useful for pre-existing channels in reconciliation tests.
func (p *Platform) SeedVoiceChannel(communityID, channelID, name, categoryID string) {
	p.seedChannel(platform.Channel{
		ID: channelID, Community: communityID, Name: name, Voice: true, Category: categoryID,
	})
}

// SeedTextChannel creates a text channel with a fixed handle.
func (p *Platform) SeedTextChannel(communityID, channelID, name, categoryID string) {
	p.seedChannel(platform.Channel{
		ID: channelID, Community: communityID, Name: name, Category: categoryID,
	})
}

func (p *Platform) seedChannel(info platform.Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[info.ID] = &channel{
		info:          info,
		owners:        make(map[string]bool),
		userOverrides: make(map[string]platform.Override),
	}
}

// SeedCategory registers a category with a fixed handle.
func (p *Platform) SeedCategory(communityID, categoryID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.communities[communityID]; ok {
		c.categories[categoryID] = name
	}
}

// Connect places a member into a voice channel without going through
// MoveUser, simulating a voluntary join.
func (p *Platform) Connect(userID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok || !ch.info.Voice {
		return
	}
	for _, other := range p.channels {
		other.disconnect(userID)
	}
	ch.connected = append(ch.connected, userID)
}

// Disconnect removes a member from whatever voice channel they occupy.
func (p *Platform) Disconnect(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.channels {
		ch.disconnect(userID)
	}
}

// ChannelsIn lists the community's live channels sorted by name.
func (p *Platform) ChannelsIn(communityID string) []platform.Channel {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []platform.Channel
	for _, ch := range p.channels {
		if ch.info.Community == communityID {
			out = append(out, ch.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ChannelNamed returns the first live channel with the given name.
func (p *Platform) ChannelNamed(communityID, name string) (platform.Channel, bool) {
	for _, ch := range p.ChannelsIn(communityID) {
		if ch.Name == name {
			return ch, true
		}
	}
	return platform.Channel{}, false
}

// Exists reports whether a channel handle is still live.
func (p *Platform) Exists(channelID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.channels[channelID]
	return ok
}

// Limit returns the occupancy limit applied to a channel.
func (p *Platform) Limit(channelID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.channels[channelID]; ok {
		return ch.limit
	}
	return 0
}

// UserOverride returns the connect override applied to a user on a channel.
func (p *Platform) UserOverride(channelID, userID string) platform.Override {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.channels[channelID]; ok {
		return ch.userOverrides[userID]
	}
	return platform.OverrideNone
}

// EveryoneOverride returns the default-role connect override on a channel.
func (p *Platform) EveryoneOverride(channelID string) platform.Override {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.channels[channelID]; ok {
		return ch.everyone
	}
	return platform.OverrideNone
}

// IsOwner reports whether a user holds the full capability set on a channel.
func (p *Platform) IsOwner(channelID, userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ch, ok := p.channels[channelID]; ok {
		return ch.owners[userID]
	}
	return false
}

// DirectMessages returns the notices sent to a member's private channel.
func (p *Platform) DirectMessages(userID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.directMsgs[userID]...)
}

// ChannelMessages returns the notices posted to a text channel.
func (p *Platform) ChannelMessages(channelID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.channelMsgs[channelID]...)
}

// CommunityMessages returns the notices posted to a community's default
// channel.
func (p *Platform) CommunityMessages(communityID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.communityMsgs[communityID]...)
}

func (ch *channel) disconnect(userID string) {
	for i, connected := range ch.connected {
		if connected == userID {
			ch.connected = append(ch.connected[:i], ch.connected[i+1:]...)
			return
		}
	}
}

// --- platform.Gateway implementation ---

// BotUser returns the service identity.
func (p *Platform) BotUser() platform.Member {
	return p.bot
}

// Communities lists the simulated communities.
func (p *Platform) Communities(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.communities))
	for id := range p.communities {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Members lists a community roster.
func (p *Platform) Members(ctx context.Context, communityID string) ([]platform.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.communities[communityID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	out := make([]platform.Member, 0, len(c.members))
	for _, m := range c.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ResolveMember matches a mention ("<@id>") or a case-insensitive name.
func (p *Platform) ResolveMember(ctx context.Context, communityID, ref string) ([]platform.Member, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.communities[communityID]
	if !ok {
		return nil, platform.ErrNotFound
	}

	if strings.HasPrefix(ref, "<@") && strings.HasSuffix(ref, ">") {
		id := strings.TrimSuffix(strings.TrimPrefix(ref, "<@"), ">")
		if m, ok := c.members[id]; ok {
			return []platform.Member{m}, nil
		}
		return nil, nil
	}
	if m, ok := c.members[ref]; ok {
		return []platform.Member{m}, nil
	}

	var out []platform.Member
	for _, m := range c.members {
		if strings.EqualFold(m.Name, ref) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// VoiceChannelOf returns the voice channel a member occupies, "" when none.
func (p *Platform) VoiceChannelOf(ctx context.Context, communityID, userID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, ch := range p.channels {
		if ch.info.Community != communityID || !ch.info.Voice {
			continue
		}
		for _, connected := range ch.connected {
			if connected == userID {
				return id, nil
			}
		}
	}
	return "", nil
}

// CreateVoiceChannel creates a voice channel with a generated handle.
func (p *Platform) CreateVoiceChannel(ctx context.Context, communityID, name string) (platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.communities[communityID]; !ok {
		return platform.Channel{}, platform.ErrNotFound
	}
	info := platform.Channel{
		ID:        uuid.NewString(),
		Community: communityID,
		Name:      name,
		Voice:     true,
	}
	p.channels[info.ID] = &channel{
		info:          info,
		owners:        make(map[string]bool),
		userOverrides: make(map[string]platform.Override),
	}
	return info, nil
}

// DeleteChannel removes a channel and disconnects its occupants.
func (p *Platform) DeleteChannel(ctx context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DeleteChannelErr != nil {
		return p.DeleteChannelErr
	}
	if _, ok := p.channels[channelID]; !ok {
		return platform.ErrNotFound
	}
	delete(p.channels, channelID)
	return nil
}

// ChannelInfo describes a live channel.
func (p *Platform) ChannelInfo(ctx context.Context, channelID string) (platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return platform.Channel{}, platform.ErrNotFound
	}
	return ch.info, nil
}

// SetUserLimit applies an occupancy limit.
func (p *Platform) SetUserLimit(ctx context.Context, channelID string, limit int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.limit = limit
	return nil
}

// Categorize moves a channel under a category.
func (p *Platform) Categorize(ctx context.Context, channelID, categoryID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.info.Category = categoryID
	return nil
}

// ConnectedUsers lists the members connected to a voice channel.
func (p *Platform) ConnectedUsers(ctx context.Context, channelID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return append([]string(nil), ch.connected...), nil
}

// MoveUser relocates a connected member into another voice channel.
func (p *Platform) MoveUser(ctx context.Context, communityID, userID, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.MoveUserErr != nil {
		return p.MoveUserErr
	}
	ch, ok := p.channels[channelID]
	if !ok || !ch.info.Voice {
		return platform.ErrNotFound
	}
	for _, other := range p.channels {
		other.disconnect(userID)
	}
	ch.connected = append(ch.connected, userID)
	return nil
}

// CategoryByName finds a category handle by name, "" when absent.
func (p *Platform) CategoryByName(ctx context.Context, communityID, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.communities[communityID]
	if !ok {
		return "", platform.ErrNotFound
	}
	for id, categoryName := range c.categories {
		if categoryName == name {
			return id, nil
		}
	}
	return "", nil
}

// CreateCategory creates a category.
func (p *Platform) CreateCategory(ctx context.Context, communityID, name string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateCategoryErr != nil {
		return "", p.CreateCategoryErr
	}
	c, ok := p.communities[communityID]
	if !ok {
		return "", platform.ErrNotFound
	}
	id := uuid.NewString()
	c.categories[id] = name
	return id, nil
}

// CategoryChannels lists the channels grouped under a category, sorted by
// name.
func (p *Platform) CategoryChannels(ctx context.Context, communityID, categoryID string) ([]platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []platform.Channel
	for _, ch := range p.channels {
		if ch.info.Community == communityID && ch.info.Category == categoryID {
			out = append(out, ch.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// GrantOwner gives a member the full capability set on a channel.
func (p *Platform) GrantOwner(ctx context.Context, channelID, userID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	ch.owners[userID] = true
	return nil
}

// SetUserConnectOverride sets or clears a per-user connect override.
func (p *Platform) SetUserConnectOverride(ctx context.Context, channelID, userID string, o platform.Override) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok {
		return platform.ErrNotFound
	}
	if o == platform.OverrideNone {
		delete(ch.userOverrides, userID)
	} else {
		ch.userOverrides[userID] = o
	}
	return nil
}

// SetEveryoneConnectOverride sets or clears the default-role connect override.
func (p *Platform) SetEveryoneConnectOverride(ctx context.Context, communityID, channelID string, o platform.Override) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.channels[channelID]
	if !ok || ch.info.Community != communityID {
		return platform.ErrNotFound
	}
	ch.everyone = o
	return nil
}

// SendChannelMessage records a notice posted to a text channel.
func (p *Platform) SendChannelMessage(ctx context.Context, channelID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channelMsgs[channelID] = append(p.channelMsgs[channelID], text)
	return nil
}

// SendDirectMessage records a notice sent to a member's private channel.
func (p *Platform) SendDirectMessage(ctx context.Context, userID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.directMsgs[userID] = append(p.directMsgs[userID], text)
	return nil
}

// SendCommunityMessage records a notice posted to the community default
// channel.
func (p *Platform) SendCommunityMessage(ctx context.Context, communityID, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.communityMsgs[communityID] = append(p.communityMsgs[communityID], text)
	return nil
}
