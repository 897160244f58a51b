// Package awstranscribe implements transcription.StreamingProvider on Amazon
// Transcribe streaming.
package awstranscribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"

	"github.com/kbukum/dictation/provider"
	"github.com/kbukum/dictation/transcription"
)

// ProviderName is the registered name for the AWS provider.
const ProviderName = "aws"

// Config holds AWS Transcribe settings.
type Config struct {
	Region string `mapstructure:"region"`
	// AccessKey and SecretKey are static credentials. Empty uses the default chain.
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	// Endpoint overrides the service endpoint.
	Endpoint string `mapstructure:"endpoint"`
}

// eventStream is the part of the SDK event stream the provider drives.
type eventStream interface {
	Send(ctx context.Context, event types.AudioStream) error
	Events() <-chan types.TranscriptResultStream
	Close() error
	Err() error
}

// opener starts a transcription and returns its event stream and a func
// that ends the audio side.
type opener func(ctx context.Context, in *transcribestreaming.StartStreamTranscriptionInput) (eventStream, func() error, error)

// Provider streams audio to Amazon Transcribe.
type Provider struct {
	open opener
}

// NewProvider loads AWS configuration and creates a client.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("awstranscribe: load aws config: %w", err)
	}

	client := transcribestreaming.NewFromConfig(awsCfg, func(o *transcribestreaming.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Provider{open: func(ctx context.Context, in *transcribestreaming.StartStreamTranscriptionInput) (eventStream, func() error, error) {
		out, err := client.StartStreamTranscription(ctx, in)
		if err != nil {
			return nil, nil, err
		}
		es := out.GetStream()
		return es, es.Writer.Close, nil
	}}, nil
}

// Factory returns a provider.Factory reading region, access_key, secret_key
// and endpoint from the config map.
func Factory(ctx context.Context) provider.Factory[transcription.StreamingProvider] {
	return func(m map[string]any) (transcription.StreamingProvider, error) {
		var cfg Config
		if err := provider.DecodeSettings(m, &cfg); err != nil {
			return nil, fmt.Errorf("awstranscribe: %w", err)
		}
		return NewProvider(ctx, cfg)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether a client is configured. Amazon Transcribe has
// no cheap health probe.
func (p *Provider) IsAvailable(_ context.Context) bool { return p.open != nil }

// StartStream opens a PCM transcription stream. Speaker bounds are not
// supported by the service and are ignored.
func (p *Provider) StartStream(ctx context.Context, cfg transcription.StreamConfig) (transcription.Stream, error) {
	if cfg.Encoding != transcription.EncodingLinear16 && cfg.Encoding != transcription.EncodingUnspecified {
		return nil, fmt.Errorf("awstranscribe: unsupported encoding %q", cfg.Encoding)
	}
	in := &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(cfg.Language),
		MediaSampleRateHertz: aws.Int32(int32(cfg.SampleRateHz)),
		MediaEncoding:        types.MediaEncodingPcm,
	}
	es, closeAudio, err := p.open(ctx, in)
	if err != nil {
		return nil, normalize(err)
	}

	s := &stream{ctx: ctx, es: es, closeAudio: closeAudio, interim: cfg.InterimEnabled()}
	s.stop = context.AfterFunc(ctx, func() { _ = es.Close() })
	return s, nil
}

type stream struct {
	ctx        context.Context
	es         eventStream
	closeAudio func() error
	interim    bool
	stop       func() bool

	closeOnce sync.Once
	closeErr  error
	pending   []transcription.Result
}

func (s *stream) Send(audio []byte) error {
	err := s.es.Send(s.ctx, &types.AudioStreamMemberAudioEvent{
		Value: types.AudioEvent{AudioChunk: audio},
	})
	return normalize(err)
}

func (s *stream) CloseSend() error {
	s.closeOnce.Do(func() { s.closeErr = s.closeAudio() })
	return s.closeErr
}

// Recv flattens transcript events into single results. A partial result is
// dropped when interim results are off.
func (s *stream) Recv() (transcription.Result, error) {
	for len(s.pending) == 0 {
		select {
		case ev, ok := <-s.es.Events():
			if !ok {
				return transcription.Result{}, s.finish()
			}
			te, isTranscript := ev.(*types.TranscriptResultStreamMemberTranscriptEvent)
			if !isTranscript || te.Value.Transcript == nil {
				continue
			}
			for _, r := range te.Value.Transcript.Results {
				if r.IsPartial && !s.interim {
					continue
				}
				s.pending = append(s.pending, toResult(r))
			}
		case <-s.ctx.Done():
			return transcription.Result{}, transcription.Normalize(s.ctx.Err())
		}
	}
	res := s.pending[0]
	s.pending = s.pending[1:]
	return res, nil
}

func (s *stream) finish() error {
	s.stop()
	err := s.es.Err()
	_ = s.es.Close()
	if err != nil {
		return normalize(err)
	}
	if s.ctx.Err() != nil {
		return transcription.Normalize(s.ctx.Err())
	}
	return io.EOF
}

func toResult(r types.Result) transcription.Result {
	res := transcription.Result{IsFinal: !r.IsPartial}
	for _, alt := range r.Alternatives {
		res.Alternatives = append(res.Alternatives, transcription.Alternative{Transcript: aws.ToString(alt.Transcript)})
	}
	return res
}

// serviceError carries the AWS error code so transcription.Kind can report it.
type serviceError struct {
	code string
	err  error
}

func (e *serviceError) Error() string { return e.err.Error() }
func (e *serviceError) Unwrap() error { return e.err }
func (e *serviceError) Kind() string  { return e.code }

func normalize(err error) error {
	if err == nil {
		return nil
	}
	err = transcription.Normalize(err)
	var coded interface{ ErrorCode() string }
	if errors.As(err, &coded) && coded.ErrorCode() != "" {
		return &serviceError{code: coded.ErrorCode(), err: err}
	}
	return err
}
