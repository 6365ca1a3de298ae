package sequencer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dissssy/NeonCircle-sub001/internal/command"
)

// Outcome is one completed per-speaker job: the optional spoken feedback and
// the resolution future for the command, if any. Outcomes arrive on the
// results channel in completion order, which is not utterance order when
// several jobs are mid-flight.
type Outcome struct {
	SpeakerID string
	JobID     string

	// Feedback is synthesized speech to play immediately; may be nil.
	Feedback []byte

	// Resolve finishes the command; nil when the utterance yielded nothing.
	Resolve command.Resolution
}

// Request is one command handed to the external playback subsystem. The
// receiver acknowledges on Ack; the sequencer imposes its own wait bound and
// treats a timeout as "no confirmation", not as command failure.
type Request struct {
	Command command.Parsed
	Ack     chan error
}

// Player receives synthesized feedback for immediate playback.
type Player interface {
	EnqueueFeedback(ctx context.Context, pcm []byte) error
}

// MetaHandler executes meta commands (consent changes) in-process; they
// never reach the external command channel.
type MetaHandler func(parsed command.Parsed)

// Sequencer serializes completed job results into one ordered stream of
// side effects. It is the single consumer of the results channel: feedback
// is enqueued as results arrive, commands are resolved and dispatched
// strictly one at a time.
type Sequencer struct {
	results    <-chan Outcome
	commands   chan<- Request
	player     Player
	meta       MetaHandler
	ackTimeout time.Duration
	log        *logrus.Entry
}

// New creates a sequencer reading completed jobs from results and
// dispatching commands on commands. meta may be nil.
func New(results <-chan Outcome, commands chan<- Request, player Player, meta MetaHandler, ackTimeout time.Duration) *Sequencer {
	return &Sequencer{
		results:    results,
		commands:   commands,
		player:     player,
		meta:       meta,
		ackTimeout: ackTimeout,
		log:        logrus.WithField("component", "sequencer"),
	}
}

// Run consumes outcomes until ctx is done. Execution order is FIFO by job
// completion, a deliberate trade-off: an utterance that transcribes faster
// executes before an earlier one still in flight.
func (s *Sequencer) Run(ctx context.Context) {
	s.log.Info("Execution sequencer started")
	defer s.log.Info("Execution sequencer stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case outcome := <-s.results:
			s.execute(ctx, outcome)
		}
	}
}

func (s *Sequencer) execute(ctx context.Context, outcome Outcome) {
	log := s.log.WithFields(logrus.Fields{
		"speaker": outcome.SpeakerID,
		"job_id":  outcome.JobID,
	})

	if len(outcome.Feedback) > 0 {
		if err := s.player.EnqueueFeedback(ctx, outcome.Feedback); err != nil {
			log.WithError(err).Warn("Failed to enqueue spoken feedback")
		}
	}

	if outcome.Resolve == nil {
		return
	}

	parsed, err := outcome.Resolve(ctx)
	if err != nil {
		log.WithError(err).Warn("Command resolution failed, dropping")
		return
	}
	switch parsed.Kind {
	case command.KindNone:
		return
	case command.KindMeta:
		if s.meta != nil {
			s.meta(parsed)
		}
		return
	}

	req := Request{Command: parsed, Ack: make(chan error, 1)}
	select {
	case s.commands <- req:
	case <-ctx.Done():
		return
	}

	select {
	case err := <-req.Ack:
		if err != nil {
			log.WithError(err).Warn("Command channel reported an error")
		} else {
			log.Debug("Command acknowledged")
		}
	case <-time.After(s.ackTimeout):
		// Not a failure: the command may still execute, we just stop waiting.
		log.Debug("No command confirmation within timeout")
	case <-ctx.Done():
	}
}
