package speech

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/auth/credentials"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"google.golang.org/api/option"

	"github.com/seajon16/sassbot/internal/speech"
)

type CloudTTSConfig struct {
	CredentialsJSON string
	DefaultLanguage string
}

// CloudTTSSynthesizer renders text to MP3 assets through the Google
// Cloud Text-to-Speech API.
type CloudTTSSynthesizer struct {
	credentialsJSON string
	defaultLanguage string

	mu        sync.Mutex
	languages []string
}

func NewCloudTTSSynthesizer(cfg CloudTTSConfig) speech.Synthesizer {
	return &CloudTTSSynthesizer{
		credentialsJSON: cfg.CredentialsJSON,
		defaultLanguage: cfg.DefaultLanguage,
	}
}

func (s *CloudTTSSynthesizer) Synthesize(ctx context.Context, text, language string) (string, error) {
	if language == "" {
		language = s.defaultLanguage
	}
	known, err := s.Languages(ctx)
	if err != nil {
		return "", err
	}
	if !containsFold(known, language) {
		return "", fmt.Errorf("%w: %s", speech.ErrUnknownLanguage, language)
	}

	client, err := s.newClient(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()

	resp, err := client.SynthesizeSpeech(ctx, &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: language,
			SsmlGender:   texttospeechpb.SsmlVoiceGender_NEUTRAL,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	})
	if err != nil {
		return "", fmt.Errorf("synthesize speech: %w", err)
	}

	f, err := os.CreateTemp("", "sassbot-say-*.mp3")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(resp.GetAudioContent()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

// Languages lists the language codes the API can speak. The list is
// fetched once and cached for the process lifetime.
func (s *CloudTTSSynthesizer) Languages(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.languages != nil {
		return s.languages, nil
	}

	client, err := s.newClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	resp, err := client.ListVoices(ctx, &texttospeechpb.ListVoicesRequest{})
	if err != nil {
		return nil, fmt.Errorf("list voices: %w", err)
	}

	seen := make(map[string]struct{})
	var languages []string
	for _, voice := range resp.GetVoices() {
		for _, code := range voice.GetLanguageCodes() {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			languages = append(languages, code)
		}
	}
	sort.Strings(languages)
	s.languages = languages
	return languages, nil
}

func (s *CloudTTSSynthesizer) newClient(ctx context.Context) (*texttospeech.Client, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(s.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	return texttospeech.NewClient(ctx, option.WithAuthCredentials(creds))
}

func containsFold(list []string, want string) bool {
	for _, s := range list {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}
