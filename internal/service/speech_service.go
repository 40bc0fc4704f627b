package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"
)

// Speech service errors.
var (
	ErrSpeechDisabled = errors.New("speech synthesis is disabled")
	ErrNothingToSpeak = errors.New("card side has no text")
)

// Card sides a flip card can be spoken from.
const (
	SideFront = "front"
	SideBack  = "back"
)

// Synthesizer turns a speech request into audio.
type Synthesizer func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)

// SpeechService pronounces flip-card text through Google Text-to-Speech.
type SpeechService struct {
	sessions   *SessionService
	synthesize Synthesizer
	close      func() error
	log        zerolog.Logger
}

// NewSpeechService connects to Google Text-to-Speech when enabled. Credentials
// come from the usual Application Default Credentials lookup.
func NewSpeechService(ctx context.Context, enabled bool, sessions *SessionService, log zerolog.Logger) (*SpeechService, error) {
	s := &SpeechService{
		sessions: sessions,
		log:      log.With().Str("component", "speech_service").Logger(),
	}
	if !enabled {
		return s, nil
	}

	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create text-to-speech client: %w", err)
	}
	s.close = client.Close
	s.synthesize = func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return client.SynthesizeSpeech(ctx, req)
	}
	s.log.Info().Msg("Text-to-speech enabled")
	return s, nil
}

// NewSpeechServiceWith uses the given synthesizer, used by tests.
func NewSpeechServiceWith(sessions *SessionService, synth Synthesizer, log zerolog.Logger) *SpeechService {
	return &SpeechService{sessions: sessions, synthesize: synth, log: log}
}

// Enabled reports whether speech can be synthesized.
func (s *SpeechService) Enabled() bool {
	return s.synthesize != nil
}

// Speak returns MP3 audio of one side of the session's current flip card.
func (s *SpeechService) Speak(ctx context.Context, claims *Claims, sessionID uuid.UUID, side string) ([]byte, error) {
	if !s.Enabled() {
		return nil, ErrSpeechDisabled
	}
	snap, err := s.sessions.Snapshot(claims, sessionID)
	if err != nil {
		return nil, err
	}

	q := snap.Question
	text, lang := q.FrontText, q.FrontLanguageCode
	if side == SideBack {
		text, lang = q.BackText, q.BackLanguageCode
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNothingToSpeak
	}
	if lang == "" {
		lang = "en-US"
	}

	resp, err := s.synthesize(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: lang,
			SsmlGender:   texttospeechpb.SsmlVoiceGender_NEUTRAL,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	return resp.AudioContent, nil
}

// Close releases the text-to-speech client.
func (s *SpeechService) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}
