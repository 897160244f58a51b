// Package whisper implements one-shot transcription against a
// faster-whisper HTTP sidecar.
package whisper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/kbukum/dictation/errors"
	"github.com/kbukum/dictation/provider"
	"github.com/kbukum/dictation/transcription"
)

// ProviderName is the registered name for the Whisper provider.
const ProviderName = "whisper"

// Config points at the sidecar and picks its model.
type Config struct {
	URL      string `mapstructure:"url"`
	Model    string `mapstructure:"model"`
	Language string `mapstructure:"language"`
	// Device and ComputeType are passed through, e.g. "cuda" and "float16".
	Device      string        `mapstructure:"device"`
	ComputeType string        `mapstructure:"compute_type"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (c *Config) applyDefaults() {
	if c.URL == "" {
		c.URL = "http://localhost:8387"
	}
	c.URL = strings.TrimRight(c.URL, "/")
	if c.Model == "" {
		c.Model = "base"
	}
	if c.Timeout == 0 {
		c.Timeout = 120 * time.Second
	}
}

// Provider implements transcription.Provider.
type Provider struct {
	cfg    Config
	client *http.Client
}

var _ transcription.Provider = (*Provider)(nil)

// NewProvider creates a provider. It does not contact the sidecar.
func NewProvider(cfg Config) *Provider {
	cfg.applyDefaults()
	return &Provider{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Factory decodes url, model, language, device, compute_type and timeout.
func Factory() provider.Factory[transcription.Provider] {
	return func(m map[string]any) (transcription.Provider, error) {
		var cfg Config
		if err := provider.DecodeSettings(m, &cfg); err != nil {
			return nil, fmt.Errorf("whisper: %w", err)
		}
		return NewProvider(cfg), nil
	}
}

func (p *Provider) Name() string { return ProviderName }

// IsAvailable probes the sidecar's /health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close() //nolint:errcheck
	return resp.StatusCode == http.StatusOK
}

// Transcribe uploads the file at req.AudioPath as multipart form data. The
// body is streamed from disk, so large recordings are never held in memory.
// A 4xx from the sidecar means it rejected the audio and is not retryable.
func (p *Provider) Transcribe(ctx context.Context, req transcription.TranscriptionRequest) (*transcription.TranscriptionResponse, error) {
	f, err := os.Open(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: open audio: %w", err)
	}
	defer f.Close() //nolint:errcheck

	fields := map[string]string{
		"model":        p.cfg.Model,
		"language":     firstNonEmpty(req.Language, p.cfg.Language),
		"device":       p.cfg.Device,
		"compute_type": p.cfg.ComputeType,
	}
	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(form, f, filepath.Base(req.AudioPath), fields))
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL+"/transcribe", pr)
	if err != nil {
		pr.Close() //nolint:errcheck
		return nil, fmt.Errorf("whisper: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := p.client.Do(httpReq)
	pr.Close() //nolint:errcheck
	if err != nil {
		return nil, apperrors.TranscriptionFailed(ProviderName, transcription.Normalize(err))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		appErr := apperrors.TranscriptionFailed(ProviderName,
			fmt.Errorf("sidecar returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))))
		appErr.Retryable = resp.StatusCode >= http.StatusInternalServerError
		return nil, appErr
	}

	var out sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.TranscriptionFailed(ProviderName, fmt.Errorf("decode response: %w", err))
	}
	return out.toResponse(), nil
}

func writeForm(form *multipart.Writer, audio io.Reader, filename string, fields map[string]string) error {
	part, err := form.CreateFormFile("audio", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return err
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := form.WriteField(k, v); err != nil {
			return err
		}
	}
	return form.Close()
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

type sidecarResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

func (r *sidecarResponse) toResponse() *transcription.TranscriptionResponse {
	out := &transcription.TranscriptionResponse{Text: r.Text, Language: r.Language}
	for _, s := range r.Segments {
		out.Segments = append(out.Segments, transcription.Segment{Start: s.Start, End: s.End, Text: s.Text})
		out.Duration = s.End
	}
	return out
}
