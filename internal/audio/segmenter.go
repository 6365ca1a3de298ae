package audio

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Dissssy/NeonCircle-sub001/internal/command"
	"github.com/Dissssy/NeonCircle-sub001/internal/config"
	"github.com/Dissssy/NeonCircle-sub001/internal/feedback"
	"github.com/Dissssy/NeonCircle-sub001/internal/sequencer"
	"github.com/Dissssy/NeonCircle-sub001/pkg/transcriber"
)

// SegmenterConfig holds the per-speaker segmentation parameters.
type SegmenterConfig struct {
	// EndpointWindow is the inactivity timeout ending an utterance.
	EndpointWindow time.Duration

	// JitterAllowance is the largest inter-packet gap not worth padding.
	JitterAllowance time.Duration

	// GapOffset is subtracted from a padded gap before conversion to
	// samples, compensating for the frame already in flight.
	GapOffset time.Duration

	// MinUtteranceSamples is the smallest flushed buffer worth transcribing.
	MinUtteranceSamples int
}

// Segmenter owns one speaker's utterance buffer and endpoint timer. Packets
// arrive in order on the router's path; the endpoint timer fires on its own
// goroutine; completed jobs run independently and emit to the sequencer in
// whatever order they finish.
//
// States: Idle (no buffer) -> Accumulating (timer armed) -> flush -> Idle.
type Segmenter struct {
	userID string
	cfg    SegmenterConfig
	trans  transcriber.Transcriber
	interp *command.Interpreter
	synth  feedback.Synthesizer
	out    chan<- sequencer.Outcome
	log    *logrus.Entry

	ctx    context.Context
	cancel context.CancelFunc
	jobs   sync.WaitGroup

	mu           sync.Mutex
	buf          []int16
	lastPacket   time.Time
	accumulating bool
	endpoint     *EndpointTimer
}

// NewSegmenter creates an idle segmenter for one speaker.
func NewSegmenter(userID string, cfg SegmenterConfig, trans transcriber.Transcriber,
	interp *command.Interpreter, synth feedback.Synthesizer, out chan<- sequencer.Outcome) *Segmenter {

	ctx, cancel := context.WithCancel(context.Background())
	s := &Segmenter{
		userID: userID,
		cfg:    cfg,
		trans:  trans,
		interp: interp,
		synth:  synth,
		out:    out,
		ctx:    ctx,
		cancel: cancel,
		log:    logrus.WithField("speaker", userID),
	}
	s.endpoint = NewEndpointTimer(cfg.EndpointWindow, s.flush)
	return s
}

// Ingest appends one decoded frame, padding any audible gap since the
// previous packet with silence so the buffer stays aligned to wall-clock
// speech, then re-arms the endpoint timer.
func (s *Segmenter) Ingest(samples []int16, capturedAt time.Time) {
	s.mu.Lock()
	if !s.accumulating {
		s.buf = nil
		s.accumulating = true
	} else {
		gap := capturedAt.Sub(s.lastPacket)
		if pad := GapSamples(gap, s.cfg.JitterAllowance, s.cfg.GapOffset); pad > 0 {
			s.buf = append(s.buf, Silence(pad)...)
		}
	}
	s.buf = append(s.buf, samples...)
	s.lastPacket = capturedAt
	s.mu.Unlock()

	s.endpoint.Restart()
}

// flush swaps the buffer out, returns the segmenter to Idle and, when the
// utterance is long enough, starts an independent transcription job.
func (s *Segmenter) flush() {
	s.mu.Lock()
	buf := s.buf
	s.buf = nil
	s.accumulating = false
	s.mu.Unlock()

	if len(buf) <= s.cfg.MinUtteranceSamples {
		if len(buf) > 0 {
			s.log.WithField("samples", len(buf)).Debug("Utterance below minimum duration, discarded")
		}
		return
	}

	s.jobs.Add(1)
	go s.runJob(buf)
}

// runJob is one in-flight transcribe -> interpret -> synthesize unit.
// Several may run concurrently for the same speaker if they spoke again
// before the previous job finished; the jobs are independent.
func (s *Segmenter) runJob(samples []int16) {
	defer s.jobs.Done()

	jobID := uuid.New().String()
	log := s.log.WithField("job_id", jobID)

	log.WithFields(logrus.Fields{
		"samples":      len(samples),
		"duration_sec": float64(len(samples)) / float64(config.SampleRate*config.Channels),
	}).Info("Transcribing utterance")

	text, err := s.trans.Transcribe(s.ctx, pcmBytes(samples))
	if err != nil {
		// The speaker simply gets no response for this utterance.
		log.WithError(err).Warn("Transcription failed, utterance dropped")
		return
	}

	resolve, confirmation := s.interp.Interpret(text, s.userID)
	if resolve == nil && confirmation == "" {
		log.Debug("Utterance not addressed to the bot")
		return
	}

	var speech []byte
	if confirmation != "" {
		speech, err = s.synth.Synthesize(s.ctx, confirmation)
		if err != nil {
			log.WithError(err).Warn("Feedback synthesis failed")
			speech = nil
		}
	}

	select {
	case s.out <- sequencer.Outcome{
		SpeakerID: s.userID,
		JobID:     jobID,
		Feedback:  speech,
		Resolve:   resolve,
	}:
	case <-s.ctx.Done():
	}
}

// Stop cancels the endpoint timer, flushes whatever accumulated, then joins
// in-flight jobs. Jobs get until ctx expires to finish; afterwards they are
// abandoned via the segmenter's own context.
func (s *Segmenter) Stop(ctx context.Context) {
	s.endpoint.Stop()
	s.flush()

	done := make(chan struct{})
	go func() {
		s.jobs.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
	}
	s.cancel()
}

// pcmBytes reinterprets interleaved samples as little-endian bytes for the
// transcription wire format.
func pcmBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		// #nosec G115 - reinterpreting the bits, not converting the value
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}
