package satellite

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// ErrGuildUnknown is returned when a guild has never produced a presence
// event and has not been refreshed. Callers surface this to the user rather
// than defaulting to an empty guild.
var ErrGuildUnknown = errors.New("guild not tracked by registry")

// Presence is the lightweight per-user snapshot kept for each channel member.
type Presence struct {
	UserID    string
	ChannelID string
	// State is the last voice-state snapshot seen for the user.
	State *discordgo.VoiceState
}

// guildState tracks one guild's voice occupancy. channels maps channelID to
// the set of users currently in it; bots maps a connected satellite's ID to
// the channel it occupies.
type guildState struct {
	channels map[string]map[string]Presence
	bots     map[string]string
}

func newGuildState() *guildState {
	return &guildState{
		channels: make(map[string]map[string]Presence),
		bots:     make(map[string]string),
	}
}

// GuildFetcher enumerates a guild's current voice states through the
// transport layer. Used by the full-resync refresh path.
type GuildFetcher interface {
	GuildVoiceStates(guildID string) ([]*discordgo.VoiceState, error)
}

// Snapshot is an immutable copy of one guild's occupancy, safe to hand to
// the resolver without holding the registry lock.
type Snapshot struct {
	GuildID  string
	Channels map[string]map[string]Presence
	Bots     map[string]string
}

// UserChannel returns the channel the user currently occupies, or "" when
// the user is not connected to voice in this guild.
func (s Snapshot) UserChannel(userID string) string {
	for channelID, members := range s.Channels {
		if _, ok := members[userID]; ok {
			return channelID
		}
	}
	return ""
}

// Registry owns the per-guild voice occupancy state. Presence updates take
// the write lock; resolver reads take the read lock and never mutate.
type Registry struct {
	mu     sync.RWMutex
	guilds map[string]*guildState
	botIDs map[string]struct{}
}

// NewRegistry creates a registry tracking the given satellite bot IDs.
func NewRegistry() *Registry {
	return &Registry{
		guilds: make(map[string]*guildState),
		botIDs: make(map[string]struct{}),
	}
}

// TrackBot marks an ID as a satellite so its movements maintain the
// per-guild connected-bot set.
func (r *Registry) TrackBot(botID string) {
	r.mu.Lock()
	r.botIDs[botID] = struct{}{}
	r.mu.Unlock()
}

// ApplyPresenceUpdate folds one voice-state transition into the guild map.
// prev may be nil for a user's first event. The whole transition happens
// under a single write lock so resolver reads never observe a user in two
// channels at once.
func (r *Registry) ApplyPresenceUpdate(prev, next *discordgo.VoiceState) {
	if next == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	guild, ok := r.guilds[next.GuildID]
	if !ok {
		guild = newGuildState()
		r.guilds[next.GuildID] = guild
	}

	if prev != nil && prev.ChannelID != "" && prev.ChannelID != next.ChannelID {
		if members, ok := guild.channels[prev.ChannelID]; ok {
			delete(members, next.UserID)
			if len(members) == 0 {
				delete(guild.channels, prev.ChannelID)
			}
		}
	}

	if next.ChannelID != "" {
		members, ok := guild.channels[next.ChannelID]
		if !ok {
			members = make(map[string]Presence)
			guild.channels[next.ChannelID] = members
		}
		members[next.UserID] = Presence{
			UserID:    next.UserID,
			ChannelID: next.ChannelID,
			State:     next,
		}
	}

	if _, isBot := r.botIDs[next.UserID]; isBot {
		if next.ChannelID != "" {
			guild.bots[next.UserID] = next.ChannelID
		} else {
			delete(guild.bots, next.UserID)
		}
		logrus.WithFields(logrus.Fields{
			"guild_id":   next.GuildID,
			"bot_id":     next.UserID,
			"channel_id": next.ChannelID,
		}).Debug("Satellite voice presence changed")
	}
}

// RefreshGuild rebuilds a guild's occupancy from scratch through the
// transport layer and swaps it in atomically. Used when the incremental
// presence stream may have drifted.
func (r *Registry) RefreshGuild(guildID string, fetcher GuildFetcher) error {
	states, err := fetcher.GuildVoiceStates(guildID)
	if err != nil {
		return fmt.Errorf("refreshing guild %s: %w", guildID, err)
	}

	fresh := newGuildState()
	for _, vs := range states {
		if vs == nil || vs.ChannelID == "" {
			continue
		}
		members, ok := fresh.channels[vs.ChannelID]
		if !ok {
			members = make(map[string]Presence)
			fresh.channels[vs.ChannelID] = members
		}
		members[vs.UserID] = Presence{
			UserID:    vs.UserID,
			ChannelID: vs.ChannelID,
			State:     vs,
		}
	}

	r.mu.Lock()
	for _, vs := range states {
		if vs == nil || vs.ChannelID == "" {
			continue
		}
		if _, isBot := r.botIDs[vs.UserID]; isBot {
			fresh.bots[vs.UserID] = vs.ChannelID
		}
	}
	r.guilds[guildID] = fresh
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"guild_id": guildID,
		"channels": len(fresh.channels),
	}).Info("Guild voice state refreshed")
	return nil
}

// SnapshotGuild copies one guild's occupancy for lock-free resolution.
func (r *Registry) SnapshotGuild(guildID string) (Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	guild, ok := r.guilds[guildID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrGuildUnknown, guildID)
	}

	snap := Snapshot{
		GuildID:  guildID,
		Channels: make(map[string]map[string]Presence, len(guild.channels)),
		Bots:     make(map[string]string, len(guild.bots)),
	}
	for channelID, members := range guild.channels {
		copied := make(map[string]Presence, len(members))
		for userID, presence := range members {
			copied[userID] = presence
		}
		snap.Channels[channelID] = copied
	}
	for botID, channelID := range guild.bots {
		snap.Bots[botID] = channelID
	}
	return snap, nil
}
