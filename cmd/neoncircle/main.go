package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/Dissssy/NeonCircle-sub001/internal/audio"
	"github.com/Dissssy/NeonCircle-sub001/internal/bot"
	"github.com/Dissssy/NeonCircle-sub001/internal/command"
	"github.com/Dissssy/NeonCircle-sub001/internal/config"
	"github.com/Dissssy/NeonCircle-sub001/internal/consent"
	"github.com/Dissssy/NeonCircle-sub001/internal/control"
	"github.com/Dissssy/NeonCircle-sub001/internal/feedback"
	"github.com/Dissssy/NeonCircle-sub001/internal/satellite"
	"github.com/Dissssy/NeonCircle-sub001/internal/sequencer"
	"github.com/Dissssy/NeonCircle-sub001/pkg/transcriber"
)

var (
	Tokens          string
	TranscriberType string
)

func init() {
	flag.StringVar(&Tokens, "tokens", "", "Comma-separated Discord bot tokens, primary first")
	flag.StringVar(&TranscriberType, "transcriber", "http", "Transcriber type: http or mock")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("Error loading .env file, using environment variables")
	}
	if Tokens == "" {
		Tokens = os.Getenv("DISCORD_SATELLITE_TOKENS")
	}
	if envTranscriber := os.Getenv("TRANSCRIBER_TYPE"); envTranscriber != "" {
		TranscriberType = envTranscriber
	}
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}

	tokens := splitTokens(Tokens)
	if len(tokens) == 0 {
		logrus.Fatal("At least one bot token is required. Use -tokens or DISCORD_SATELLITE_TOKENS")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer cancel()

	cfg := config.Load()

	// Consent is loaded once, synchronously, before any routing begins. The
	// persistent guild/user configuration store is an external collaborator;
	// here the initial flags come from the environment.
	consentStore := consent.NewStore()
	if err := consentStore.Load(ctx, envConsentLoader()); err != nil {
		logrus.WithError(err).Fatal("Failed to load consent flags")
	}

	var trans transcriber.Transcriber
	switch strings.ToLower(TranscriberType) {
	case "mock":
		trans = &transcriber.MockTranscriber{}
		logrus.Info("Using mock transcriber")
	default:
		trans = transcriber.NewClient(cfg.TranscriberBaseURL, cfg.TranscriberToken)
		logrus.WithField("url", cfg.TranscriberBaseURL).Info("Using HTTP transcriber")
	}
	defer func() {
		if err := trans.Close(); err != nil {
			logrus.WithError(err).Warn("Failed to close transcriber")
		}
	}()

	interp := command.NewInterpreter(cfg.WakePhrase, cfg.WakeAliases, cfg.NoConsentPhrase, literalResolver{})
	synth := feedback.Null{}

	results := make(chan sequencer.Outcome, cfg.ResultQueueDepth)
	commands := make(chan sequencer.Request, cfg.ResultQueueDepth)

	router := audio.NewRouter(consentStore, func(userID string) *audio.Segmenter {
		return audio.NewSegmenter(userID, audio.SegmenterConfig{
			EndpointWindow:      cfg.EndpointWindow,
			JitterAllowance:     cfg.JitterAllowance,
			GapOffset:           cfg.JitterAllowance,
			MinUtteranceSamples: cfg.MinUtteranceSamples,
		}, trans, interp, synth, results)
	})

	seq := sequencer.New(results, commands, logPlayer{}, func(parsed command.Parsed) {
		if parsed.Meta == command.MetaNoConsent {
			consentStore.Revoke(parsed.SpeakerID)
		}
	}, cfg.AckTimeout)
	go seq.Run(ctx)

	// Placeholder for the playback mainloop: acknowledge every command so
	// the sequencer's pacing is observable without the external subsystem.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case req := <-commands:
				logrus.WithField("verb", req.Command.Domain.Verb.String()).Info("Command dispatched")
				req.Ack <- nil
			}
		}
	}()

	registry := satellite.NewRegistry()
	pool := satellite.NewPool()
	fleet := bot.NewFleet(registry, pool)
	for priority, token := range tokens {
		sat, err := bot.New(token, priority, registry, router)
		if err != nil {
			logrus.WithError(err).Fatal("Error creating satellite")
		}
		fleet.Add(sat)
	}

	if err := fleet.Connect(); err != nil {
		logrus.WithError(err).Fatal("Error connecting fleet")
	}
	defer fleet.Disconnect()
	logrus.Info("Connected to Discord")

	go control.NewServer(fleet, consentStore, os.Stdin, os.Stdout).Start()

	logrus.Info("Fleet is running. Press CTRL-C to exit.")
	<-ctx.Done()

	logrus.Info("Shutting down gracefully...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	router.Stop(stopCtx)
}

func splitTokens(raw string) []string {
	var tokens []string
	for _, token := range strings.Split(raw, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// envConsentLoader reads the initial consent flags from CONSENT_ALLOWED_USERS
// (comma-separated user IDs) in place of the external configuration store.
func envConsentLoader() consent.Loader {
	return func(context.Context) (map[string]bool, error) {
		users := make(map[string]bool)
		for _, userID := range strings.Split(os.Getenv("CONSENT_ALLOWED_USERS"), ",") {
			if userID = strings.TrimSpace(userID); userID != "" {
				users[userID] = true
			}
		}
		return users, nil
	}
}

// literalResolver stands in for the playback subsystem's media search: the
// spoken query becomes the track title verbatim.
type literalResolver struct{}

func (literalResolver) ResolveQuery(_ context.Context, query string) (*command.MediaTrack, error) {
	return &command.MediaTrack{Title: query, URL: "search:" + query}, nil
}

// logPlayer stands in for the playback queue on the feedback path.
type logPlayer struct{}

func (logPlayer) EnqueueFeedback(_ context.Context, pcm []byte) error {
	logrus.WithField("pcm_bytes", len(pcm)).Info("Feedback queued for playback")
	return nil
}
