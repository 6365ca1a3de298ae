package satellite

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Handle is the slice of a satellite's transport session the resolver needs:
// its identity and the ability to probe whether a channel is visible to it.
type Handle interface {
	// BotID returns the satellite's Discord application/user ID.
	BotID() string

	// ChannelVisible reports whether the satellite's own session can
	// observe the given channel. A non-nil error means the probe failed,
	// which the resolver treats as "this satellite needs an invite".
	ChannelVisible(guildID, channelID string) error
}

// Satellite is one registered member of the bot pool.
type Satellite struct {
	// Priority orders the pool; lower values are preferred in every
	// assignment tie-break.
	Priority int
	BotID    string
	Handle   Handle
}

// Pool is the process-lifetime, priority-ordered set of satellites. It is
// mutated only through Register; every reader works on a snapshot copy.
type Pool struct {
	mu      sync.RWMutex
	members []Satellite
}

// NewPool creates an empty satellite pool.
func NewPool() *Pool {
	return &Pool{}
}

// Register inserts a satellite keeping the pool sorted by ascending
// priority. Registration order breaks ties between equal priorities.
func (p *Pool) Register(s Satellite) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx := len(p.members)
	for i, member := range p.members {
		if s.Priority < member.Priority {
			idx = i
			break
		}
	}
	p.members = append(p.members, Satellite{})
	copy(p.members[idx+1:], p.members[idx:])
	p.members[idx] = s

	logrus.WithFields(logrus.Fields{
		"bot_id":    s.BotID,
		"priority":  s.Priority,
		"pool_size": len(p.members),
	}).Info("Satellite registered")
}

// Members returns a snapshot of the pool in priority order.
func (p *Pool) Members() []Satellite {
	p.mu.RLock()
	defer p.mu.RUnlock()

	members := make([]Satellite, len(p.members))
	copy(members, p.members)
	return members
}

// BotIDs returns the IDs of every registered satellite.
func (p *Pool) BotIDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	ids := make([]string, 0, len(p.members))
	for _, member := range p.members {
		ids = append(ids, member.BotID)
	}
	return ids
}
