package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Audio configuration (these are fixed by Discord)
	SampleRate = 48000
	Channels   = 2
	FrameSize  = 960 // 20ms @ 48kHz

	// Default values (can and usually should be overridden by environment variables)
	defaultEndpointWindowMs   = 750
	defaultJitterAllowanceMs  = 30
	defaultMinUtteranceSamp   = 1 << 16 // interleaved samples; ~680ms of stereo audio
	defaultAckTimeoutSec      = 10
	defaultResultQueueDepth   = 64
	defaultTranscriberBaseURL = "http://localhost:8099"
)

// Config holds the runtime configuration for the voice core. It is built
// once at startup and passed explicitly to every component; nothing reads
// the environment after Load returns.
type Config struct {
	// EndpointWindow is the inactivity duration after which a speaker's
	// utterance is considered finished.
	EndpointWindow time.Duration

	// JitterAllowance is the largest inter-packet gap treated as normal
	// transport jitter rather than a pause worth padding.
	JitterAllowance time.Duration

	// MinUtteranceSamples is the smallest buffer (in interleaved int16
	// samples) worth sending to the transcriber.
	MinUtteranceSamples int

	// AckTimeout bounds the wait for a command-channel acknowledgment.
	AckTimeout time.Duration

	// ResultQueueDepth sizes the completed-job channel feeding the sequencer.
	ResultQueueDepth int

	TranscriberBaseURL string
	TranscriberToken   string

	WakePhrase      string
	WakeAliases     []string
	NoConsentPhrase string
}

// Load builds a Config from environment variables, falling back to defaults.
func Load() Config {
	cfg := Config{
		EndpointWindow:      time.Duration(envInt("VOICE_ENDPOINT_WINDOW_MS", defaultEndpointWindowMs)) * time.Millisecond,
		JitterAllowance:     time.Duration(envInt("VOICE_JITTER_ALLOWANCE_MS", defaultJitterAllowanceMs)) * time.Millisecond,
		MinUtteranceSamples: envInt("VOICE_MIN_UTTERANCE_SAMPLES", defaultMinUtteranceSamp),
		AckTimeout:          time.Duration(envInt("COMMAND_ACK_TIMEOUT_SEC", defaultAckTimeoutSec)) * time.Second,
		ResultQueueDepth:    envInt("RESULT_QUEUE_DEPTH", defaultResultQueueDepth),
		TranscriberBaseURL:  envString("TRANSCRIBER_URL", defaultTranscriberBaseURL),
		TranscriberToken:    os.Getenv("TRANSCRIBER_TOKEN"),
		WakePhrase:          envString("WAKE_PHRASE", "circle"),
		NoConsentPhrase:     envString("NO_CONSENT_PHRASE", "i do not consent"),
	}
	if aliases := os.Getenv("WAKE_ALIASES"); aliases != "" {
		for _, alias := range strings.Split(aliases, ",") {
			if alias = strings.TrimSpace(alias); alias != "" {
				cfg.WakeAliases = append(cfg.WakeAliases, alias)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"endpoint_window_ms":    cfg.EndpointWindow.Milliseconds(),
		"jitter_allowance_ms":   cfg.JitterAllowance.Milliseconds(),
		"min_utterance_samples": cfg.MinUtteranceSamples,
		"ack_timeout_sec":       int(cfg.AckTimeout.Seconds()),
		"transcriber_url":       cfg.TranscriberBaseURL,
		"wake_phrase":           cfg.WakePhrase,
	}).Info("Voice core configuration loaded")

	return cfg
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
		logrus.WithField("key", key).Warn("Ignoring non-positive or malformed value")
	}
	return fallback
}

func envString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
