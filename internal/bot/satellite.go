package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
	"layeh.com/gopus"

	"github.com/Dissssy/NeonCircle-sub001/internal/audio"
	"github.com/Dissssy/NeonCircle-sub001/internal/config"
	"github.com/Dissssy/NeonCircle-sub001/internal/satellite"
)

// Satellite is one bot process of the fleet: a Discord session that can
// join voice channels, decode incoming opus and feed the speaker router.
// It implements satellite.Handle for the resolver and satellite.GuildFetcher
// for registry refreshes.
type Satellite struct {
	discord  *discordgo.Session
	priority int
	registry *satellite.Registry
	router   *audio.Router
	log      *logrus.Entry

	mu        sync.Mutex
	voiceConn *discordgo.VoiceConnection
}

// New creates a satellite for the given bot token. Priority 0 is the
// primary; it additionally handles guild text commands.
func New(token string, priority int, registry *satellite.Registry, router *audio.Router) (*Satellite, error) {
	discord, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("creating Discord session: %w", err)
	}

	sat := &Satellite{
		discord:  discord,
		priority: priority,
		registry: registry,
		router:   router,
		log:      logrus.WithField("satellite_priority", priority),
	}

	discord.AddHandler(sat.ready)
	discord.AddHandler(sat.voiceStateUpdate)

	discord.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	return sat, nil
}

// Connect opens the gateway session and registers the bot's identity with
// the registry.
func (s *Satellite) Connect() error {
	if err := s.discord.Open(); err != nil {
		return fmt.Errorf("opening Discord session: %w", err)
	}
	s.registry.TrackBot(s.BotID())
	return nil
}

// Disconnect leaves voice and closes the gateway session.
func (s *Satellite) Disconnect() error {
	s.LeaveChannel()
	return s.discord.Close()
}

// BotID implements satellite.Handle.
func (s *Satellite) BotID() string {
	if s.discord.State != nil && s.discord.State.User != nil {
		return s.discord.State.User.ID
	}
	return ""
}

// Priority returns the satellite's pool priority.
func (s *Satellite) Priority() int { return s.priority }

// ChannelVisible implements satellite.Handle: it probes whether this
// satellite's session can observe the channel, preferring gateway state and
// falling back to a REST fetch.
func (s *Satellite) ChannelVisible(guildID, channelID string) error {
	if _, err := s.discord.State.Channel(channelID); err == nil {
		return nil
	}
	if _, err := s.discord.Channel(channelID); err != nil {
		return fmt.Errorf("channel %s not visible: %w", channelID, err)
	}
	return nil
}

// GuildVoiceStates implements satellite.GuildFetcher for full resyncs.
func (s *Satellite) GuildVoiceStates(guildID string) ([]*discordgo.VoiceState, error) {
	guild, err := s.discord.State.Guild(guildID)
	if err != nil {
		guild, err = s.discord.Guild(guildID)
		if err != nil {
			return nil, fmt.Errorf("fetching guild %s: %w", guildID, err)
		}
	}
	return guild.VoiceStates, nil
}

// JoinChannel joins a voice channel and starts the receive loop. A previous
// voice connection is torn down first.
func (s *Satellite) JoinChannel(guildID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voiceConn != nil {
		if err := s.voiceConn.Disconnect(); err != nil {
			s.log.WithError(err).Debug("Error disconnecting from previous channel")
		}
	}

	vc, err := s.discord.ChannelVoiceJoin(guildID, channelID, false, false)
	if err != nil {
		return fmt.Errorf("joining voice channel: %w", err)
	}
	s.voiceConn = vc

	// Speaking updates carry the SSRC -> user mapping the router needs.
	vc.AddHandler(func(_ *discordgo.VoiceConnection, su *discordgo.VoiceSpeakingUpdate) {
		// #nosec G115 - Discord SSRCs are 32-bit unsigned on the wire
		s.router.MapSession(uint32(su.SSRC), su.UserID)
	})

	go s.receiveVoice(vc)

	s.log.WithFields(logrus.Fields{
		"guild_id":   guildID,
		"channel_id": channelID,
	}).Info("Satellite joined voice channel")
	return nil
}

// LeaveChannel leaves the current voice channel, if any.
func (s *Satellite) LeaveChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voiceConn != nil {
		if err := s.voiceConn.Disconnect(); err != nil {
			s.log.WithError(err).Debug("Error disconnecting from voice channel")
		}
		s.voiceConn = nil
		s.log.Info("Satellite left voice channel")
	}
}

// CurrentChannel returns the guild and channel of the live voice
// connection, or empty strings when not in voice.
func (s *Satellite) CurrentChannel() (guildID, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.voiceConn == nil {
		return "", ""
	}
	return s.voiceConn.GuildID, s.voiceConn.ChannelID
}

// receiveVoice decodes incoming opus packets and hands PCM frames to the
// router. Opus decoders are stateful, so each SSRC gets its own.
func (s *Satellite) receiveVoice(vc *discordgo.VoiceConnection) {
	decoders := make(map[uint32]*gopus.Decoder)

	s.log.Info("Started processing voice receive")
	for packet := range vc.OpusRecv {
		// Silence keepalives carry no speech.
		if len(packet.Opus) <= 3 {
			continue
		}

		decoder, ok := decoders[packet.SSRC]
		if !ok {
			var err error
			decoder, err = gopus.NewDecoder(config.SampleRate, config.Channels)
			if err != nil {
				s.log.WithError(err).Error("Error creating opus decoder")
				continue
			}
			decoders[packet.SSRC] = decoder
		}

		pcm, err := decoder.Decode(packet.Opus, config.FrameSize, false)
		if err != nil {
			s.log.WithError(err).Debug("Error decoding opus")
			continue
		}

		s.router.Route(packet.SSRC, pcm, time.Now())
	}
	s.log.Info("Voice receive channel closed")
}

// Event handlers

func (s *Satellite) ready(session *discordgo.Session, _ *discordgo.Ready) {
	s.log.WithFields(logrus.Fields{
		"username": session.State.User.Username,
		"bot_id":   session.State.User.ID,
	}).Info("Satellite is ready")
}

func (s *Satellite) voiceStateUpdate(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu == nil || vsu.VoiceState == nil {
		return
	}
	s.registry.ApplyPresenceUpdate(vsu.BeforeUpdate, vsu.VoiceState)
}
