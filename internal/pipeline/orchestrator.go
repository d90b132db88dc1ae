package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"call-compliance-go/internal/diarizer"
	"call-compliance-go/internal/logger"
	"call-compliance-go/internal/redact"
	"call-compliance-go/internal/transcriber"
	"call-compliance-go/internal/types"
)

// Stage names and the progress percentage reached when a stage begins.
// Progress is monotonically non-decreasing within a run and hits 100 only
// on completion; a failed run freezes at the last value written.
const (
	StepValidation    = "audio_validation"
	StepTranscription = "transcription"
	StepDiarization   = "diarization"
	StepAnalysis      = "analysis"
	StepGDPR          = "gdpr_processing"
)

var stageProgress = map[string]int{
	StepValidation:    10,
	StepTranscription: 30,
	StepDiarization:   60,
	StepAnalysis:      80,
	StepGDPR:          90,
}

// runPipeline drives the full stage sequence for one call. Each stage is
// submitted to the worker pool and awaited before the next begins; any
// fatal error marks the call and task failed before propagating. Artifacts
// persisted by earlier stages are never rolled back.
func (s *Service) runPipeline(ctx context.Context, callID, taskID string) error {
	log := logger.WithCall(logger.Component("pipeline"), callID, taskID)

	call, err := s.store.GetCall(ctx, callID)
	if err != nil {
		return s.failRun(ctx, log, callID, taskID, err)
	}

	result := map[string]any{}

	// Stage 1: validation. Bad format, oversize or overlong audio is
	// fatal with no retry.
	var meta struct {
		duration   float64
		sampleRate int
		channels   int
	}
	err = s.stage(ctx, log, QueueAudio, callID, taskID, StepValidation, func(ctx context.Context) error {
		if call.FileSizeBytes > s.cfg.MaxAudioBytes {
			return &ValidationError{Reason: fmt.Sprintf("file too large: %d bytes", call.FileSizeBytes)}
		}
		probed, err := s.prober.Probe(call.FilePath)
		if err != nil {
			return &ValidationError{Reason: err.Error()}
		}
		if probed.DurationSeconds > s.cfg.MaxAudioSeconds {
			return &ValidationError{Reason: fmt.Sprintf("audio too long: %.0f seconds", probed.DurationSeconds)}
		}
		meta.duration = probed.DurationSeconds
		meta.sampleRate = probed.SampleRate
		meta.channels = probed.Channels
		return s.store.SetCallAudioMetadata(ctx, callID, probed.DurationSeconds, probed.SampleRate, probed.Channels)
	})
	if err != nil {
		return s.failRun(ctx, log, callID, taskID, err)
	}

	// Stage 2: transcription, retried on collaborator outages.
	var tr transcriber.Result
	err = s.stage(ctx, log, QueueAudio, callID, taskID, StepTranscription, func(ctx context.Context) error {
		start := time.Now()
		if err := s.withRetry(ctx, func() error {
			var err error
			tr, err = s.transcriber.Transcribe(ctx, call.FilePath)
			return err
		}); err != nil {
			return err
		}
		transcript := types.CallTranscript{
			CallID:            callID,
			RawText:           tr.Text,
			Language:          tr.Language,
			Confidence:        tr.Confidence,
			Segments:          tr.Segments,
			Model:             tr.Model,
			ProcessingSeconds: time.Since(start).Seconds(),
			CreatedAt:         time.Now().UTC(),
		}
		if err := s.store.InsertTranscript(ctx, transcript); err != nil {
			return err
		}
		result["transcript"] = map[string]any{
			"language":       tr.Language,
			"segments_count": len(tr.Segments),
		}
		return nil
	})
	if err != nil {
		return s.failRun(ctx, log, callID, taskID, err)
	}

	// Stage 3: diarization, same retry policy.
	var speakers []types.Speaker
	err = s.stage(ctx, log, QueueAudio, callID, taskID, StepDiarization, func(ctx context.Context) error {
		var raw map[string][]types.Segment
		if err := s.withRetry(ctx, func() error {
			var err error
			raw, err = s.diarizer.Diarize(ctx, call.FilePath)
			return err
		}); err != nil {
			return err
		}
		speakers = diarizer.Speakers(callID, raw)
		if err := s.store.ReplaceSpeakers(ctx, callID, speakers); err != nil {
			return err
		}
		result["diarization"] = map[string]any{"speakers_count": len(speakers)}
		return nil
	})
	if err != nil {
		return s.failRun(ctx, log, callID, taskID, err)
	}

	// Stage 4: compliance analysis over the original, unredacted text.
	err = s.stage(ctx, log, QueueAnalysis, callID, taskID, StepAnalysis, func(ctx context.Context) error {
		analysis := s.engine.Analyze(tr.Text, diarizer.Interleaved(speakers))
		analysis.CallID = callID
		if err := s.store.InsertAnalysis(ctx, analysis); err != nil {
			return err
		}
		result["analysis"] = map[string]any{
			"overall_result":   analysis.OverallResult,
			"confidence_score": analysis.ConfidenceScore,
			"violations_count": len(analysis.Violations),
		}
		return nil
	})
	if err != nil {
		return s.failRun(ctx, log, callID, taskID, err)
	}

	// Stage 5: GDPR redaction. Runs after analysis so violation detection
	// saw the original wording.
	err = s.stage(ctx, log, QueuePrivacy, callID, taskID, StepGDPR, func(ctx context.Context) error {
		redacted, redactedSegments := redact.Transcript(s.detector, tr.Text, tr.Segments)
		if err := s.store.SetRedactedText(ctx, callID, redacted.RedactedText, redactedSegments); err != nil {
			return err
		}
		result["gdpr"] = map[string]any{
			"redactions_applied": redacted.RedactionsCount,
			"redaction_types":    redacted.RedactionTypes,
		}
		return nil
	})
	if err != nil {
		return s.failRun(ctx, log, callID, taskID, err)
	}

	// Completion.
	now := time.Now().UTC()
	if err := s.store.MarkCallCompleted(ctx, callID, now); err != nil {
		return s.failRun(ctx, log, callID, taskID, err)
	}
	if err := s.store.CompleteTask(ctx, taskID, result, now); err != nil {
		return s.failRun(ctx, log, callID, taskID, err)
	}
	log.Info("pipeline completed")
	return nil
}

// stage records progress, then hands the work to the named queue and waits.
func (s *Service) stage(ctx context.Context, log *logrus.Entry, queue, callID, taskID, step string, fn func(ctx context.Context) error) error {
	if err := s.store.UpdateTaskProgress(ctx, taskID, step, stageProgress[step]); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{"step": step, "progress": stageProgress[step]}).Info("stage started")
	if err := s.runner.Submit(ctx, queue, callID, step, fn); err != nil {
		return &StageError{Stage: step, Err: err}
	}
	return nil
}

// withRetry retries transient collaborator failures with a fixed delay and
// bounded attempts; anything else fails immediately.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.RetryDelay), s.cfg.RetryAttempts-1)
	op := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if retryable(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

// failRun performs the mandatory failure bookkeeping: call marked failed,
// task marked failed with the error message and completion timestamp. No
// error leaves the orchestrator without this.
func (s *Service) failRun(ctx context.Context, log *logrus.Entry, callID, taskID string, cause error) error {
	log.WithError(cause).Error("pipeline failed")
	if err := s.store.SetCallStatus(ctx, callID, types.CallFailed); err != nil {
		log.WithError(err).Error("failed to mark call failed")
	}
	if err := s.store.FailTask(ctx, taskID, cause.Error(), time.Now().UTC()); err != nil {
		log.WithError(err).Error("failed to mark task failed")
	}
	return cause
}
