// Package google implements streaming and one-shot transcription on Google
// Cloud Speech-to-Text.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	grpcx "github.com/kbukum/dictation/grpc"
	"github.com/kbukum/dictation/logger"
	"github.com/kbukum/dictation/provider"
	"github.com/kbukum/dictation/transcription"
)

// ProviderName is the registered name for the Google provider.
const ProviderName = "google"

// Config holds Google Speech client settings.
type Config struct {
	// CredentialsFile is a service account key. Empty uses application
	// default credentials.
	CredentialsFile string `mapstructure:"credentials_file"`
	// Endpoint overrides the API endpoint, e.g. a regional one.
	Endpoint string `mapstructure:"endpoint"`
	// Model selects a recognition model such as "medical_dictation".
	Model string `mapstructure:"model"`
}

// recognizeStream is the part of the gRPC stream the provider drives.
type recognizeStream interface {
	Send(*speechpb.StreamingRecognizeRequest) error
	Recv() (*speechpb.StreamingRecognizeResponse, error)
	CloseSend() error
}

type backend interface {
	open(ctx context.Context) (recognizeStream, error)
	recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	close() error
}

type clientBackend struct{ client *speech.Client }

func (b clientBackend) open(ctx context.Context) (recognizeStream, error) {
	return b.client.StreamingRecognize(ctx)
}

func (b clientBackend) recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return b.client.Recognize(ctx, req)
}

func (b clientBackend) close() error { return b.client.Close() }

// Provider implements transcription.StreamingProvider and
// transcription.Provider.
type Provider struct {
	backend backend
	cfg     Config
	stream  transcription.StreamConfig
}

var (
	_ transcription.StreamingProvider = (*Provider)(nil)
	_ transcription.Provider          = (*Provider)(nil)
)

// NewProvider dials the Speech API. gcfg tunes the underlying gRPC
// connection; log receives stream interceptor output when enabled.
func NewProvider(ctx context.Context, cfg Config, gcfg grpcx.Config, log *logger.Logger) (*Provider, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}
	for _, d := range grpcx.DialOptions(gcfg, log.WithComponent("speech")) {
		opts = append(opts, option.WithGRPCDialOption(d))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google: create speech client: %w", err)
	}
	return &Provider{backend: clientBackend{client: client}, cfg: cfg, stream: transcription.DefaultStreamConfig()}, nil
}

// StreamingFactory returns a factory for the streaming registry.
func StreamingFactory(ctx context.Context, gcfg grpcx.Config, log *logger.Logger) provider.Factory[transcription.StreamingProvider] {
	return func(m map[string]any) (transcription.StreamingProvider, error) {
		var cfg Config
		if err := provider.DecodeSettings(m, &cfg); err != nil {
			return nil, fmt.Errorf("google: %w", err)
		}
		return NewProvider(ctx, cfg, gcfg, log)
	}
}

// Factory returns a factory for the one-shot registry.
func Factory(ctx context.Context, gcfg grpcx.Config, log *logger.Logger) provider.Factory[transcription.Provider] {
	return func(m map[string]any) (transcription.Provider, error) {
		var cfg Config
		if err := provider.DecodeSettings(m, &cfg); err != nil {
			return nil, fmt.Errorf("google: %w", err)
		}
		return NewProvider(ctx, cfg, gcfg, log)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether a configured credentials file is readable.
func (p *Provider) IsAvailable(_ context.Context) bool {
	if p.cfg.CredentialsFile == "" {
		return p.backend != nil
	}
	_, err := os.Stat(p.cfg.CredentialsFile)
	return err == nil
}

// Close releases the underlying connection.
func (p *Provider) Close() error { return p.backend.close() }

// StartStream opens a StreamingRecognize call and sends the configuration
// message.
func (p *Provider) StartStream(ctx context.Context, cfg transcription.StreamConfig) (transcription.Stream, error) {
	rs, err := p.backend.open(ctx)
	if err != nil {
		return nil, err
	}
	err = rs.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         p.recognitionConfig(cfg),
				InterimResults: cfg.InterimEnabled(),
			},
		},
	})
	if err != nil {
		_ = rs.CloseSend()
		return nil, transcription.Normalize(err)
	}
	return &stream{rs: rs}, nil
}

// Transcribe runs a synchronous Recognize call on the file at req.AudioPath.
// An unspecified encoding lets the service read the container header.
func (p *Provider) Transcribe(ctx context.Context, req transcription.TranscriptionRequest) (*transcription.TranscriptionResponse, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	cfg := p.stream
	cfg.Encoding = req.Encoding
	cfg.SampleRateHz = req.SampleRateHz
	if req.Language != "" {
		cfg.Language = req.Language
	}

	resp, err := p.backend.recognize(ctx, &speechpb.RecognizeRequest{
		Config: p.recognitionConfig(cfg),
		Audio:  &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}},
	})
	if err != nil {
		return nil, grpcx.FromGRPC(transcription.Normalize(err), "speech recognition service")
	}

	out := &transcription.TranscriptionResponse{Language: cfg.Language}
	var text []byte
	for _, r := range resp.GetResults() {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if len(text) > 0 {
			text = append(text, ' ')
		}
		text = append(text, alts[0].GetTranscript()...)
	}
	out.Text = string(text)
	if d := resp.GetTotalBilledTime(); d != nil {
		out.Duration = d.AsDuration().Seconds()
	}
	return out, nil
}

func (p *Provider) recognitionConfig(cfg transcription.StreamConfig) *speechpb.RecognitionConfig {
	rc := &speechpb.RecognitionConfig{
		Encoding:                   encoding(cfg.Encoding),
		SampleRateHertz:            int32(cfg.SampleRateHz),
		LanguageCode:               cfg.Language,
		EnableAutomaticPunctuation: cfg.PunctuationEnabled(),
		Model:                      p.cfg.Model,
	}
	if cfg.MaxSpeakers > 1 {
		rc.DiarizationConfig = &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          int32(cfg.MinSpeakers),
			MaxSpeakerCount:          int32(cfg.MaxSpeakers),
		}
	}
	return rc
}

func encoding(e transcription.Encoding) speechpb.RecognitionConfig_AudioEncoding {
	if e == transcription.EncodingLinear16 {
		return speechpb.RecognitionConfig_LINEAR16
	}
	return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
}

type stream struct {
	rs recognizeStream
}

func (s *stream) Send(audio []byte) error {
	err := s.rs.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{AudioContent: audio},
	})
	return transcription.Normalize(err)
}

func (s *stream) CloseSend() error { return s.rs.CloseSend() }

// Recv returns the first result of the next response that has one.
func (s *stream) Recv() (transcription.Result, error) {
	for {
		resp, err := s.rs.Recv()
		if errors.Is(err, io.EOF) {
			return transcription.Result{}, io.EOF
		}
		if err != nil {
			return transcription.Result{}, transcription.Normalize(err)
		}
		if e := resp.GetError(); e != nil && e.GetCode() != 0 {
			return transcription.Result{}, transcription.Normalize(status.ErrorProto(e))
		}
		results := resp.GetResults()
		if len(results) == 0 {
			continue
		}

		first := results[0]
		res := transcription.Result{IsFinal: first.GetIsFinal()}
		for _, alt := range first.GetAlternatives() {
			res.Alternatives = append(res.Alternatives, transcription.Alternative{
				Transcript: alt.GetTranscript(),
				Confidence: alt.GetConfidence(),
			})
		}
		return res, nil
	}
}
