package transcription

// Encoding names the audio encoding sent to a backend.
type Encoding string

const (
	// EncodingLinear16 is 16-bit signed little-endian PCM.
	EncodingLinear16 Encoding = "LINEAR16"
	// EncodingUnspecified lets the backend sniff a container header (WAV, FLAC).
	EncodingUnspecified Encoding = ""
)

// TranscriptionRequest holds parameters for a one-shot transcription call.
type TranscriptionRequest struct {
	// AudioPath is the path to the audio file to transcribe.
	AudioPath string `json:"audio_path"`
	// Language is the BCP-47 language tag (e.g. "en-US").
	Language string `json:"language,omitempty"`
	// Encoding of the file. Unspecified for untranscoded uploads.
	Encoding Encoding `json:"encoding,omitempty"`
	// SampleRateHz is set when the file is known to be canonical PCM.
	SampleRateHz int `json:"sample_rate_hz,omitempty"`
}

// TranscriptionResponse holds the result of a transcription call.
type TranscriptionResponse struct {
	// Text is the full transcription text.
	Text string `json:"text"`
	// Segments contains time-aligned transcript segments, when the backend reports them.
	Segments []Segment `json:"segments,omitempty"`
	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration,omitempty"`
	// Language is the detected or specified language.
	Language string `json:"language,omitempty"`
}

// Segment represents a time-aligned portion of a transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// StreamConfig is the first message of a streaming session. Punctuation
// and InterimResults are pointers so that an unset key keeps them on.
type StreamConfig struct {
	Language       string   `mapstructure:"language"`
	SampleRateHz   int      `mapstructure:"sample_rate_hz"`
	Encoding       Encoding `mapstructure:"encoding"`
	Punctuation    *bool    `mapstructure:"punctuation"`
	MinSpeakers    int      `mapstructure:"min_speakers"`
	MaxSpeakers    int      `mapstructure:"max_speakers"`
	InterimResults *bool    `mapstructure:"interim_results"`
}

// DefaultStreamConfig returns the dictation defaults: 16 kHz LINEAR16
// en-US, punctuation on, one or two speakers, interim results on.
func DefaultStreamConfig() StreamConfig {
	var c StreamConfig
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields with the dictation defaults. Explicit
// false flags are kept.
func (c *StreamConfig) ApplyDefaults() {
	if c.Language == "" {
		c.Language = "en-US"
	}
	if c.SampleRateHz == 0 {
		c.SampleRateHz = 16000
	}
	if c.Encoding == "" {
		c.Encoding = EncodingLinear16
	}
	if c.Punctuation == nil {
		c.Punctuation = boolPtr(true)
	}
	if c.MinSpeakers == 0 {
		c.MinSpeakers = 1
	}
	if c.MaxSpeakers == 0 {
		c.MaxSpeakers = 2
	}
	if c.InterimResults == nil {
		c.InterimResults = boolPtr(true)
	}
}

// PunctuationEnabled reports whether automatic punctuation is requested.
// Unset means on.
func (c StreamConfig) PunctuationEnabled() bool {
	return c.Punctuation == nil || *c.Punctuation
}

// InterimEnabled reports whether interim results are requested. Unset
// means on.
func (c StreamConfig) InterimEnabled() bool {
	return c.InterimResults == nil || *c.InterimResults
}

// WithInterimResults returns a copy of c with interim results set to on.
func (c StreamConfig) WithInterimResults(on bool) StreamConfig {
	c.InterimResults = boolPtr(on)
	return c
}

func boolPtr(v bool) *bool { return &v }

// Alternative is one recognition hypothesis.
type Alternative struct {
	Transcript string
	Confidence float32
}

// Result is one streaming recognition result. Alternatives are ordered by
// likelihood and may be empty.
type Result struct {
	Alternatives []Alternative
	IsFinal      bool
}
