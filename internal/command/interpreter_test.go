package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMedia struct {
	err error
}

func (f fakeMedia) ResolveQuery(_ context.Context, query string) (*MediaTrack, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &MediaTrack{Title: query, URL: "media://" + query}, nil
}

func newTestInterpreter() *Interpreter {
	return NewInterpreter("circle", []string{"neon ring", "the circle"}, "i do not consent", fakeMedia{})
}

func resolveNow(t *testing.T, resolve Resolution) Parsed {
	t.Helper()
	require.NotNil(t, resolve)
	parsed, err := resolve(context.Background())
	require.NoError(t, err)
	return parsed
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Circle PLAY", "circle play"},
		{"strips_punctuation", "circle, play!", "circle play"},
		{"collapses_whitespace", "circle   play \t music", "circle play music"},
		{"keeps_digits", "volume 23", "volume 23"},
		{"empty", "   ...   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestInterpretIgnoresOrdinaryConversation(t *testing.T) {
	interp := newTestInterpreter()

	resolve, feedbackText := interp.Interpret("so I was thinking about lunch", "user-1")

	assert.Nil(t, resolve, "no wake phrase must yield no command")
	assert.Empty(t, feedbackText, "no wake phrase must produce no feedback at all")
}

func TestInterpretSimpleVerbs(t *testing.T) {
	tests := []struct {
		transcript string
		verb       Verb
	}{
		{"circle pause", VerbPause},
		{"hey circle unpause", VerbResume},
		{"Circle, skip this one.", VerbSkip},
		{"circle stop", VerbStop},
		{"circle disconnect", VerbLeave},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			interp := newTestInterpreter()
			resolve, feedbackText := interp.Interpret(tt.transcript, "user-1")

			parsed := resolveNow(t, resolve)
			assert.Equal(t, KindDomain, parsed.Kind)
			assert.Equal(t, tt.verb, parsed.Domain.Verb)
			assert.NotEmpty(t, feedbackText)
		})
	}
}

func TestInterpretAliasCollapsesToWakePhrase(t *testing.T) {
	interp := newTestInterpreter()

	resolve, _ := interp.Interpret("okay neon ring pause", "user-1")

	parsed := resolveNow(t, resolve)
	assert.Equal(t, VerbPause, parsed.Domain.Verb)
}

func TestInterpretPlayResolvesMedia(t *testing.T) {
	interp := newTestInterpreter()

	resolve, feedbackText := interp.Interpret("circle play never gonna give you up", "user-1")
	assert.Equal(t, "adding never gonna give you up to the queue", feedbackText)

	parsed := resolveNow(t, resolve)
	assert.Equal(t, KindDomain, parsed.Kind)
	assert.Equal(t, VerbPlay, parsed.Domain.Verb)
	require.NotNil(t, parsed.Domain.Track)
	assert.Equal(t, "never gonna give you up", parsed.Domain.Track.Title)
}

func TestInterpretPlayMediaFailureYieldsNone(t *testing.T) {
	interp := NewInterpreter("circle", nil, "i do not consent", fakeMedia{err: errors.New("no results")})

	resolve, _ := interp.Interpret("circle play something obscure", "user-1")

	require.NotNil(t, resolve)
	parsed, err := resolve(context.Background())
	assert.Error(t, err)
	assert.Equal(t, KindNone, parsed.Kind)
}

func TestInterpretPlayWithoutQuery(t *testing.T) {
	interp := newTestInterpreter()

	resolve, feedbackText := interp.Interpret("circle play", "user-1")

	assert.Equal(t, "what should i play", feedbackText)
	parsed := resolveNow(t, resolve)
	assert.Equal(t, KindNone, parsed.Kind)
}

func TestInterpretVolume(t *testing.T) {
	tests := []struct {
		transcript string
		expected   int
	}{
		{"circle volume 40", 40},
		{"circle volume twenty three", 23},
		{"circle volume one hundred", 100},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			interp := newTestInterpreter()
			resolve, _ := interp.Interpret(tt.transcript, "user-1")

			parsed := resolveNow(t, resolve)
			assert.Equal(t, VerbVolume, parsed.Domain.Verb)
			assert.Equal(t, tt.expected, parsed.Domain.Volume)
		})
	}
}

func TestInterpretVolumeBadNumber(t *testing.T) {
	interp := newTestInterpreter()

	resolve, feedbackText := interp.Interpret("circle volume banana", "user-1")

	assert.Equal(t, "please give me a valid number", feedbackText)
	parsed := resolveNow(t, resolve)
	assert.Equal(t, KindNone, parsed.Kind)
}

func TestInterpretUnknownVerbStillAcknowledges(t *testing.T) {
	interp := newTestInterpreter()

	resolve, feedbackText := interp.Interpret("circle defenestrate", "user-1")

	assert.NotEmpty(t, feedbackText, "wake phrase was heard, speaker gets an acknowledgment")
	parsed := resolveNow(t, resolve)
	assert.Equal(t, KindNone, parsed.Kind)
}

func TestInterpretWakePhraseAlone(t *testing.T) {
	interp := newTestInterpreter()

	resolve, feedbackText := interp.Interpret("circle", "user-1")

	assert.NotEmpty(t, feedbackText)
	parsed := resolveNow(t, resolve)
	assert.Equal(t, KindNone, parsed.Kind)
}

func TestInterpretNoConsentPhrase(t *testing.T) {
	interp := newTestInterpreter()

	// Works even without the wake phrase.
	resolve, feedbackText := interp.Interpret("I do not consent!", "user-1")

	assert.NotEmpty(t, feedbackText)
	parsed := resolveNow(t, resolve)
	assert.Equal(t, KindMeta, parsed.Kind)
	assert.Equal(t, MetaNoConsent, parsed.Meta)
	assert.Equal(t, "user-1", parsed.SpeakerID)
}
