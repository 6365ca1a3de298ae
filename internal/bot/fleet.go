package bot

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"github.com/Dissssy/NeonCircle-sub001/internal/satellite"
)

// Fleet owns the satellite pool for one process group: it connects the
// satellites, feeds the registry and acts on resolver decisions when a user
// summons the bot. The priority-0 satellite is the primary and is the only
// one listening for guild text commands.
type Fleet struct {
	satellites []*Satellite
	pool       *satellite.Pool
	registry   *satellite.Registry
	resolver   *satellite.Resolver
	log        *logrus.Entry
}

// NewFleet creates an empty fleet over the shared registry and pool.
func NewFleet(registry *satellite.Registry, pool *satellite.Pool) *Fleet {
	return &Fleet{
		pool:     pool,
		registry: registry,
		resolver: satellite.NewResolver(registry, pool),
		log:      logrus.WithField("component", "fleet"),
	}
}

// Add appends a satellite to the fleet. Call before Connect.
func (f *Fleet) Add(sat *Satellite) {
	f.satellites = append(f.satellites, sat)
}

// Connect opens every satellite session and registers each one in the pool.
// The primary additionally gets the text-command handler.
func (f *Fleet) Connect() error {
	if len(f.satellites) == 0 {
		return errors.New("fleet has no satellites")
	}

	for _, sat := range f.satellites {
		if err := sat.Connect(); err != nil {
			return fmt.Errorf("connecting satellite %d: %w", sat.Priority(), err)
		}
		f.pool.Register(satellite.Satellite{
			Priority: sat.Priority(),
			BotID:    sat.BotID(),
			Handle:   sat,
		})
	}

	f.primary().discord.AddHandler(f.messageCreate)
	f.log.WithField("satellites", len(f.satellites)).Info("Fleet connected")
	return nil
}

// Disconnect tears every satellite down.
func (f *Fleet) Disconnect() {
	for _, sat := range f.satellites {
		if err := sat.Disconnect(); err != nil {
			f.log.WithError(err).Warn("Failed to disconnect satellite")
		}
	}
}

// Resolve computes the assignment decision for a user, falling back to one
// full guild resync when the incremental presence stream never saw the guild.
func (f *Fleet) Resolve(guildID, userID string) (satellite.Decision, error) {
	decision, err := f.resolver.Resolve(guildID, userID)
	if errors.Is(err, satellite.ErrGuildUnknown) && len(f.satellites) > 0 {
		if refreshErr := f.registry.RefreshGuild(guildID, f.primary()); refreshErr != nil {
			return satellite.Decision{}, refreshErr
		}
		decision, err = f.resolver.Resolve(guildID, userID)
	}
	return decision, err
}

// Status summarizes the fleet for the control surface.
func (f *Fleet) Status() []map[string]interface{} {
	status := make([]map[string]interface{}, 0, len(f.satellites))
	for _, sat := range f.satellites {
		guildID, channelID := sat.CurrentChannel()
		status = append(status, map[string]interface{}{
			"botId":     sat.BotID(),
			"priority":  sat.Priority(),
			"inVoice":   channelID != "",
			"guildId":   guildID,
			"channelId": channelID,
		})
	}
	return status
}

func (f *Fleet) primary() *Satellite {
	return f.satellites[0]
}

func (f *Fleet) byBotID(botID string) *Satellite {
	for _, sat := range f.satellites {
		if sat.BotID() == botID {
			return sat
		}
	}
	return nil
}

func (f *Fleet) messageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}

	switch m.Content {
	case "!summon":
		f.summon(s, m)
	case "!dismiss":
		for _, sat := range f.satellites {
			if guildID, _ := sat.CurrentChannel(); guildID == m.GuildID {
				sat.LeaveChannel()
			}
		}
		f.reply(s, m.ChannelID, "Dismissed.")
	case "!refresh":
		if err := f.registry.RefreshGuild(m.GuildID, f.primary()); err != nil {
			f.log.WithError(err).Warn("Guild refresh failed")
			f.reply(s, m.ChannelID, "Could not refresh voice state.")
			return
		}
		f.reply(s, m.ChannelID, "Voice state refreshed.")
	}
}

// summon acts on the resolver's decision: the decision itself is a pure
// value, the side effects all happen here.
func (f *Fleet) summon(s *discordgo.Session, m *discordgo.MessageCreate) {
	decision, err := f.Resolve(m.GuildID, m.Author.ID)
	if err != nil {
		f.log.WithError(err).WithField("guild_id", m.GuildID).Error("Assignment resolution failed")
		f.reply(s, m.ChannelID, "Error: could not resolve voice state for this guild.")
		return
	}

	f.log.WithFields(logrus.Fields{
		"guild_id": m.GuildID,
		"user_id":  m.Author.ID,
		"decision": decision.Kind.String(),
	}).Info("Assignment decision")

	switch decision.Kind {
	case satellite.UserNotConnected:
		f.reply(s, m.ChannelID, "You need to be in a voice channel!")
	case satellite.SatelliteAlreadyWithUser:
		f.reply(s, m.ChannelID, "Already with you!")
	case satellite.SatelliteShouldJoin:
		sat := f.byBotID(decision.Satellite.BotID)
		if sat == nil {
			f.reply(s, m.ChannelID, "That satellite is not managed by this process.")
			return
		}
		if err := sat.JoinChannel(m.GuildID, decision.ChannelID); err != nil {
			f.log.WithError(err).Error("Failed to join voice channel")
			f.reply(s, m.ChannelID, "Could not join your channel.")
			return
		}
		f.reply(s, m.ChannelID, "Joined your channel!")
	case satellite.InviteSatellite:
		f.reply(s, m.ChannelID, "Invite another satellite: "+decision.InviteURL)
	case satellite.NoSatelliteAvailable:
		f.reply(s, m.ChannelID, "No satellite is available right now.")
	}
}

func (f *Fleet) reply(s *discordgo.Session, channelID, msg string) {
	if _, err := s.ChannelMessageSend(channelID, msg); err != nil {
		f.log.WithError(err).Debug("Failed to send message")
	}
}
