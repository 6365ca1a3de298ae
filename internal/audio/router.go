package audio

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Dissssy/NeonCircle-sub001/internal/consent"
)

// SegmenterFactory creates the per-speaker segmenter the first time a
// consenting user speaks.
type SegmenterFactory func(userID string) *Segmenter

// Router demultiplexes decoded voice frames to per-speaker segmenters. The
// session map (SSRC -> user) is written by speaking-state events and read
// once per frame, so it sits behind its own RWMutex separate from the
// segmenter table.
type Router struct {
	consent *consent.Store
	create  SegmenterFactory
	log     *logrus.Entry

	sessMu   sync.RWMutex
	sessions map[uint32]string

	segMu      sync.Mutex
	segmenters map[string]*Segmenter
	stopped    bool
}

// NewRouter creates a router gating all buffering on the consent store.
func NewRouter(store *consent.Store, create SegmenterFactory) *Router {
	return &Router{
		consent:    store,
		create:     create,
		sessions:   make(map[uint32]string),
		segmenters: make(map[string]*Segmenter),
		log:        logrus.WithField("component", "router"),
	}
}

// MapSession records the SSRC carried by a speaking-state event. The mapping
// is volatile and may be overwritten at any time; routing never blocks on it.
func (r *Router) MapSession(ssrc uint32, userID string) {
	r.sessMu.Lock()
	prev, existed := r.sessions[ssrc]
	r.sessions[ssrc] = userID
	r.sessMu.Unlock()

	if !existed || prev != userID {
		r.log.WithFields(logrus.Fields{
			"ssrc":    ssrc,
			"user_id": userID,
		}).Debug("Speaking session mapped")
	}
}

// Route delivers one decoded frame to the owning speaker's segmenter,
// creating it lazily. Frames with no session mapping are dropped. Frames
// from non-consenting users are dropped before any per-speaker state exists:
// no segmenter is created and no byte is buffered.
func (r *Router) Route(ssrc uint32, samples []int16, capturedAt time.Time) {
	r.sessMu.RLock()
	userID, ok := r.sessions[ssrc]
	r.sessMu.RUnlock()
	if !ok {
		r.log.WithField("ssrc", ssrc).Debug("Frame for unmapped session dropped")
		return
	}

	if !r.consent.Allowed(userID) {
		return
	}

	seg := r.segmenter(userID)
	if seg == nil {
		return
	}
	seg.Ingest(samples, capturedAt)
}

func (r *Router) segmenter(userID string) *Segmenter {
	r.segMu.Lock()
	defer r.segMu.Unlock()

	if r.stopped {
		return nil
	}
	if seg, exists := r.segmenters[userID]; exists {
		return seg
	}

	seg := r.create(userID)
	r.segmenters[userID] = seg
	r.log.WithField("user_id", userID).Info("Created speaker segmenter")
	return seg
}

// Segmenters returns the number of live segmenters.
func (r *Router) Segmenters() int {
	r.segMu.Lock()
	defer r.segMu.Unlock()
	return len(r.segmenters)
}

// Stop refuses new frames, stops every live segmenter and joins them. Each
// segmenter flushes what it holds (sub-threshold buffers are discarded, not
// an error) and its in-flight jobs finish or are abandoned under ctx.
func (r *Router) Stop(ctx context.Context) {
	r.segMu.Lock()
	if r.stopped {
		r.segMu.Unlock()
		return
	}
	r.stopped = true
	live := make([]*Segmenter, 0, len(r.segmenters))
	for _, seg := range r.segmenters {
		live = append(live, seg)
	}
	r.segMu.Unlock()

	var wg sync.WaitGroup
	for _, seg := range live {
		wg.Add(1)
		go func(seg *Segmenter) {
			defer wg.Done()
			seg.Stop(ctx)
		}(seg)
	}
	wg.Wait()

	r.log.WithField("segmenters", len(live)).Info("Speaker router stopped")
}
