package transcription

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"context deadline", fmt.Errorf("recv: %w", context.DeadlineExceeded), ErrDeadlineExceeded},
		{"context canceled", context.Canceled, ErrCanceled},
		{"grpc deadline", status.Error(codes.DeadlineExceeded, "stream timed out"), ErrDeadlineExceeded},
		{"grpc canceled", status.Error(codes.Canceled, "client left"), ErrCanceled},
		{"already normalized", ErrCanceled, ErrCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("Normalize(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}

	other := status.Error(codes.Unavailable, "backend down")
	if got := Normalize(other); got != other {
		t.Errorf("unrelated errors must pass through, got %v", got)
	}
	if Normalize(nil) != nil {
		t.Error("Normalize(nil) must be nil")
	}
}

type kindError struct{}

func (kindError) Error() string { return "bad event" }
func (kindError) Kind() string  { return "BadRequestException" }

func TestKind(t *testing.T) {
	if got := Kind(status.Error(codes.Unavailable, "down")); got != "Unavailable" {
		t.Errorf("Kind = %q, want Unavailable", got)
	}
	if got := Kind(fmt.Errorf("wrap: %w", kindError{})); got != "BadRequestException" {
		t.Errorf("Kind = %q, want BadRequestException", got)
	}
	if got := Kind(errors.New("plain")); got != "BackendError" {
		t.Errorf("Kind = %q, want BackendError", got)
	}
}

func TestDefaultStreamConfig(t *testing.T) {
	cfg := DefaultStreamConfig()
	if cfg.SampleRateHz != 16000 || cfg.Encoding != EncodingLinear16 || cfg.Language != "en-US" {
		t.Errorf("unexpected audio format %+v", cfg)
	}
	if !cfg.InterimEnabled() || !cfg.PunctuationEnabled() || cfg.MinSpeakers != 1 || cfg.MaxSpeakers != 2 {
		t.Errorf("unexpected recognition options %+v", cfg)
	}
}

func TestStreamConfigApplyDefaults(t *testing.T) {
	off := false
	tests := []struct {
		name                 string
		cfg                  StreamConfig
		punctuation, interim bool
	}{
		{"unset flags default on", StreamConfig{}, true, true},
		{"explicit false kept", StreamConfig{Punctuation: &off, InterimResults: &off}, false, false},
		{"only interim off", StreamConfig{}.WithInterimResults(false), true, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			cfg.ApplyDefaults()
			if cfg.PunctuationEnabled() != tc.punctuation || cfg.InterimEnabled() != tc.interim {
				t.Errorf("punctuation=%v interim=%v, want %v %v",
					cfg.PunctuationEnabled(), cfg.InterimEnabled(), tc.punctuation, tc.interim)
			}
			if cfg.SampleRateHz != 16000 || cfg.MinSpeakers != 1 || cfg.MaxSpeakers != 2 {
				t.Errorf("audio defaults not applied: %+v", cfg)
			}
		})
	}
}
