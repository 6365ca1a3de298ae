package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// verbEntry maps a synonym set to a builder producing the command's
// resolution future and its spoken confirmation.
type verbEntry struct {
	verb     Verb
	synonyms map[string]struct{}
	build    func(i *Interpreter, speakerID string, args []string) (Resolution, string)
}

// Interpreter turns transcript text into structured commands. Utterances
// without the wake phrase are silently ignored so casual conversation never
// triggers the bot.
type Interpreter struct {
	wakePhrase      string
	aliases         []string
	noConsentPhrase string
	media           MediaResolver
	verbs           []verbEntry
	log             *logrus.Entry
}

// NewInterpreter builds an interpreter around a wake phrase, its aliases and
// the fixed no-consent phrase. All three are normalized once up front.
func NewInterpreter(wakePhrase string, aliases []string, noConsentPhrase string, media MediaResolver) *Interpreter {
	i := &Interpreter{
		wakePhrase:      Normalize(wakePhrase),
		noConsentPhrase: Normalize(noConsentPhrase),
		media:           media,
		log:             logrus.WithField("component", "interpreter"),
	}
	for _, alias := range aliases {
		if normalized := Normalize(alias); normalized != "" {
			i.aliases = append(i.aliases, normalized)
		}
	}
	i.verbs = verbTable()
	return i
}

// Normalize lower-cases the text, strips everything that is not a letter,
// digit or space, and collapses whitespace runs.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == '\n':
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Interpret parses one transcript. It returns the resolution future plus a
// confirmation phrase to speak back. A nil resolution with an empty phrase
// means the utterance was not addressed to the bot at all.
func (i *Interpreter) Interpret(transcript, speakerID string) (Resolution, string) {
	text := Normalize(transcript)
	if text == "" {
		return nil, ""
	}

	// The no-consent phrase works even when aliases are misconfigured.
	if i.noConsentPhrase != "" && strings.Contains(text, i.noConsentPhrase) {
		i.log.WithField("speaker", speakerID).Info("No-consent phrase detected")
		return immediate(Parsed{Kind: KindMeta, SpeakerID: speakerID, Meta: MetaNoConsent}),
			"okay i will stop listening to you"
	}

	// Alias phrases collapse to the canonical wake phrase before matching.
	for _, alias := range i.aliases {
		text = strings.ReplaceAll(text, alias, i.wakePhrase)
	}

	idx := strings.Index(text, i.wakePhrase)
	if idx < 0 {
		return nil, ""
	}

	rest := strings.Fields(text[idx+len(i.wakePhrase):])
	if len(rest) == 0 {
		return immediate(none(speakerID)), "i did not catch a command"
	}

	verb, args := rest[0], rest[1:]
	for _, entry := range i.verbs {
		if _, ok := entry.synonyms[verb]; ok {
			return entry.build(i, speakerID, args)
		}
	}

	i.log.WithFields(logrus.Fields{
		"speaker": speakerID,
		"verb":    verb,
	}).Debug("Unrecognized verb")
	return immediate(none(speakerID)), "i do not know that command"
}

func verbTable() []verbEntry {
	return []verbEntry{
		{
			verb:     VerbPlay,
			synonyms: set("play", "add", "queue", "played"),
			build: func(i *Interpreter, speakerID string, args []string) (Resolution, string) {
				query := strings.Join(args, " ")
				if query == "" {
					return immediate(none(speakerID)), "what should i play"
				}
				resolve := func(ctx context.Context) (Parsed, error) {
					track, err := i.media.ResolveQuery(ctx, query)
					if err != nil {
						return none(speakerID), fmt.Errorf("resolving %q: %w", query, err)
					}
					return Parsed{
						Kind:      KindDomain,
						SpeakerID: speakerID,
						Domain:    &DomainCommand{Verb: VerbPlay, Query: query, Track: track},
					}, nil
				}
				return resolve, fmt.Sprintf("adding %s to the queue", query)
			},
		},
		{
			verb:     VerbPause,
			synonyms: set("pause", "paused"),
			build:    simpleVerb(VerbPause, "pausing playback"),
		},
		{
			verb:     VerbResume,
			synonyms: set("resume", "unpause", "continue"),
			build:    simpleVerb(VerbResume, "resuming playback"),
		},
		{
			verb:     VerbSkip,
			synonyms: set("skip", "next"),
			build:    simpleVerb(VerbSkip, "skipping"),
		},
		{
			verb:     VerbStop,
			synonyms: set("stop", "stopped"),
			build:    simpleVerb(VerbStop, "stopping playback"),
		},
		{
			verb:     VerbLeave,
			synonyms: set("leave", "disconnect", "goodbye"),
			build:    simpleVerb(VerbLeave, "leaving the channel"),
		},
		{
			verb:     VerbVolume,
			synonyms: set("volume", "loudness"),
			build: func(i *Interpreter, speakerID string, args []string) (Resolution, string) {
				level, err := ParseNumber(args)
				if err != nil {
					i.log.WithError(err).Debug("Volume argument did not parse")
					return immediate(none(speakerID)), "please give me a valid number"
				}
				parsed := Parsed{
					Kind:      KindDomain,
					SpeakerID: speakerID,
					Domain:    &DomainCommand{Verb: VerbVolume, Volume: level},
				}
				return immediate(parsed), fmt.Sprintf("setting volume to %d percent", level)
			},
		},
	}
}

func simpleVerb(verb Verb, confirmation string) func(*Interpreter, string, []string) (Resolution, string) {
	return func(_ *Interpreter, speakerID string, _ []string) (Resolution, string) {
		parsed := Parsed{
			Kind:      KindDomain,
			SpeakerID: speakerID,
			Domain:    &DomainCommand{Verb: verb},
		}
		return immediate(parsed), confirmation
	}
}

func set(words ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(words))
	for _, w := range words {
		s[w] = struct{}{}
	}
	return s
}
