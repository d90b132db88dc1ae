package transcriber

import (
	"context"
	"errors"

	"call-compliance-go/internal/types"
)

// ErrUnavailable marks collaborator outages (timeouts, 5xx). The pipeline
// retries these with bounded attempts; anything else is permanent.
var ErrUnavailable = errors.New("transcription service unavailable")

// Result is a completed transcription.
type Result struct {
	Text       string          `json:"text"`
	Language   string          `json:"language"`
	Confidence float64         `json:"confidence"`
	Segments   []types.Segment `json:"segments"`
	Model      string          `json:"model,omitempty"`
}

// Transcriber converts a recording into text with per-segment timestamps.
type Transcriber interface {
	Transcribe(ctx context.Context, audioRef string) (Result, error)
}

// Stub returns a fixed Norwegian sales-call transcript. Deterministic, for
// tests and deployments without a transcription backend.
type Stub struct {
	Result Result
	Err    error
}

func (s Stub) Transcribe(context.Context, string) (Result, error) {
	if s.Err != nil {
		return Result{}, s.Err
	}
	if s.Result.Text != "" {
		return s.Result, nil
	}
	return Result{
		Text: "Agent: Hei, velkommen til kundeservice. Bindingstiden er 12 måneder " +
			"og abonnementet koster 399 kr i måneden. Opprettelse koster 99 kroner, " +
			"totalt 4887 kroner. Har du noen spørsmål om vilkår og betingelser?\n" +
			"Kunde: Nei takk, det hørtes greit ut.",
		Language:   "no",
		Confidence: 0.9,
		Segments: []types.Segment{
			{Start: 0.0, End: 6.5, Text: "Hei, velkommen til kundeservice."},
			{Start: 6.5, End: 18.0, Text: "Bindingstiden er 12 måneder og abonnementet koster 399 kr i måneden."},
			{Start: 18.0, End: 26.0, Text: "Opprettelse koster 99 kroner, totalt 4887 kroner."},
			{Start: 26.0, End: 30.0, Text: "Har du noen spørsmål om vilkår og betingelser?"},
			{Start: 30.0, End: 33.0, Text: "Nei takk, det hørtes greit ut."},
		},
		Model: "stub",
	}, nil
}
