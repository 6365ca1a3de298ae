package satellite

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// DecisionKind enumerates the possible assignment outcomes. These are normal
// return values rendered to the user, not errors.
type DecisionKind int

const (
	// UserNotConnected: the requesting user is not in any voice channel.
	UserNotConnected DecisionKind = iota
	// NoSatelliteAvailable: every satellite is spoken for or unusable.
	NoSatelliteAvailable
	// InviteSatellite: a satellite exists but cannot see the channel; the
	// user should be handed an OAuth invite for it.
	InviteSatellite
	// SatelliteShouldJoin: a free satellite can see the channel and should
	// be told to join it.
	SatelliteShouldJoin
	// SatelliteAlreadyWithUser: a satellite already shares the user's channel.
	SatelliteAlreadyWithUser
)

func (k DecisionKind) String() string {
	switch k {
	case UserNotConnected:
		return "user_not_connected"
	case NoSatelliteAvailable:
		return "no_satellite_available"
	case InviteSatellite:
		return "invite_satellite"
	case SatelliteShouldJoin:
		return "satellite_should_join"
	case SatelliteAlreadyWithUser:
		return "satellite_already_with_user"
	default:
		return "unknown"
	}
}

// Decision is the resolver's verdict for one (guild, user) request.
type Decision struct {
	Kind DecisionKind

	// ChannelID is the user's channel; set for the join/already-present kinds.
	ChannelID string

	// Satellite is the chosen pool member; set for join/already-present.
	Satellite *Satellite

	// InviteURL is set only for InviteSatellite.
	InviteURL string
}

// InviteURL builds the OAuth authorization link that adds a satellite bot to
// a guild with voice connect/speak permissions.
func InviteURL(botID string) string {
	return fmt.Sprintf("https://discord.com/api/oauth2/authorize?client_id=%s&permissions=3145728&scope=bot", botID)
}

// Resolver computes which satellite, if any, should serve a user's voice
// channel. Resolve is pure over a registry snapshot; acting on the decision
// is the caller's job.
type Resolver struct {
	registry *Registry
	pool     *Pool
}

// NewResolver creates a resolver over the given registry and pool.
func NewResolver(registry *Registry, pool *Pool) *Resolver {
	return &Resolver{registry: registry, pool: pool}
}

// Resolve decides the assignment for the requesting user. Candidate classes
// are ranked already-present > should-join > invite > none; within a class
// the lowest-priority satellite wins because the pool is scanned in priority
// order and the first candidate found is kept.
func (r *Resolver) Resolve(guildID, userID string) (Decision, error) {
	snap, err := r.registry.SnapshotGuild(guildID)
	if err != nil {
		return Decision{}, err
	}
	return r.resolve(snap, userID), nil
}

func (r *Resolver) resolve(snap Snapshot, userID string) Decision {
	target := snap.UserChannel(userID)
	if target == "" {
		return Decision{Kind: UserNotConnected}
	}

	members := r.pool.Members()

	// First pass: a satellite already sharing the user's channel wins
	// outright, unless the registry believes it is connected somewhere
	// else in this guild (a stale membership entry).
	for i := range members {
		sat := &members[i]
		if _, present := snap.Channels[target][sat.BotID]; !present {
			continue
		}
		if connectedTo, connected := snap.Bots[sat.BotID]; connected && connectedTo != target {
			continue
		}
		return Decision{Kind: SatelliteAlreadyWithUser, ChannelID: target, Satellite: sat}
	}

	// Second pass: no short-circuiting. The first satellite whose
	// visibility probe fails is the invite fallback; the first free
	// satellite that can see the channel is the join fallback. A later
	// placeable satellite must not be missed because an earlier probe
	// errored, hence the full scan.
	var joinCandidate, inviteCandidate *Satellite
	for i := range members {
		sat := &members[i]
		if err := sat.Handle.ChannelVisible(snap.GuildID, target); err != nil {
			if inviteCandidate == nil {
				inviteCandidate = sat
			}
			logrus.WithError(err).WithFields(logrus.Fields{
				"bot_id":     sat.BotID,
				"channel_id": target,
			}).Debug("Satellite cannot see channel")
			continue
		}
		if _, connected := snap.Bots[sat.BotID]; !connected && joinCandidate == nil {
			joinCandidate = sat
		}
	}

	switch {
	case joinCandidate != nil:
		return Decision{Kind: SatelliteShouldJoin, ChannelID: target, Satellite: joinCandidate}
	case inviteCandidate != nil:
		return Decision{
			Kind:      InviteSatellite,
			ChannelID: target,
			Satellite: inviteCandidate,
			InviteURL: InviteURL(inviteCandidate.BotID),
		}
	default:
		return Decision{Kind: NoSatelliteAvailable}
	}
}
