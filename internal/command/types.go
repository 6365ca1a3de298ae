package command

import (
	"context"
	"time"
)

// Kind discriminates a parsed utterance.
type Kind int

const (
	// KindNone: the utterance produced no command.
	KindNone Kind = iota
	// KindMeta: a policy command about the bot itself (consent etc.).
	KindMeta
	// KindDomain: a playback command for the audio mainloop.
	KindDomain
)

// MetaKind enumerates the meta commands.
type MetaKind int

const (
	// MetaNoConsent withdraws the speaker's listening consent.
	MetaNoConsent MetaKind = iota
)

// Verb enumerates the supported playback actions. The set is closed; adding
// a verb means adding a table entry, not registering a handler at runtime.
type Verb int

const (
	VerbPlay Verb = iota
	VerbPause
	VerbResume
	VerbSkip
	VerbStop
	VerbLeave
	VerbVolume
)

func (v Verb) String() string {
	switch v {
	case VerbPlay:
		return "play"
	case VerbPause:
		return "pause"
	case VerbResume:
		return "resume"
	case VerbSkip:
		return "skip"
	case VerbStop:
		return "stop"
	case VerbLeave:
		return "leave"
	case VerbVolume:
		return "volume"
	default:
		return "unknown"
	}
}

// MediaTrack is a playable item resolved from a spoken search query.
type MediaTrack struct {
	Title    string
	URL      string
	Duration time.Duration
}

// DomainCommand is one concrete playback instruction.
type DomainCommand struct {
	Verb  Verb
	Query string
	// Track is populated by the resolution future for VerbPlay.
	Track  *MediaTrack
	Volume int
}

// Parsed is the final result of interpreting one utterance.
type Parsed struct {
	Kind      Kind
	SpeakerID string
	Meta      MetaKind
	Domain    *DomainCommand
}

// Resolution finishes the asynchronous part of interpretation (media search
// and similar) and yields the final command. It runs inside the utterance's
// job, not on the interpreter's caller.
type Resolution func(ctx context.Context) (Parsed, error)

// MediaResolver turns a spoken search query into a playable track. The
// implementation lives with the playback subsystem.
type MediaResolver interface {
	ResolveQuery(ctx context.Context, query string) (*MediaTrack, error)
}

func none(speakerID string) Parsed {
	return Parsed{Kind: KindNone, SpeakerID: speakerID}
}

func immediate(p Parsed) Resolution {
	return func(context.Context) (Parsed, error) { return p, nil }
}
