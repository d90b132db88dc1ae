package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-compliance-go/internal/audio"
	"call-compliance-go/internal/config"
	"call-compliance-go/internal/diarizer"
	"call-compliance-go/internal/store"
	"call-compliance-go/internal/transcriber"
	"call-compliance-go/internal/types"
)

func testConfig() config.Config {
	return config.Config{
		WorkerCount:     2,
		QueueSize:       8,
		RetryAttempts:   3,
		RetryDelay:      time.Millisecond,
		MaxAudioBytes:   100 << 20,
		MaxAudioSeconds: 3600,
	}
}

func newTestService(t *testing.T, cfg config.Config, tr transcriber.Transcriber, di diarizer.Diarizer) *Service {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc := NewService(cfg, st, audio.StubProber{}, tr, di)
	svc.Start(context.Background())
	t.Cleanup(svc.Stop)
	return svc
}

func waitForTask(t *testing.T, svc *Service, taskID string, status string) types.ProcessingTask {
	t.Helper()
	var task types.ProcessingTask
	require.Eventually(t, func() bool {
		var err error
		task, err = svc.GetTaskStatus(context.Background(), taskID)
		return err == nil && task.Status == status
	}, 5*time.Second, 10*time.Millisecond, "task never reached status %s", status)
	return task
}

func TestRegisterCall(t *testing.T) {
	svc := newTestService(t, testConfig(), transcriber.Stub{}, diarizer.Stub{})
	ctx := context.Background()

	call, err := svc.RegisterCall(ctx, "sale.wav", "/calls/sale.wav", 2048)
	require.NoError(t, err)
	assert.NotEmpty(t, call.ID)
	assert.Equal(t, types.CallUploaded, call.Status)

	stored, err := svc.store.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, "sale.wav", stored.Filename)
}

func TestRegisterCall_UnsupportedExtension(t *testing.T) {
	svc := newTestService(t, testConfig(), transcriber.Stub{}, diarizer.Stub{})

	_, err := svc.RegisterCall(context.Background(), "notes.txt", "/calls/notes.txt", 10)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestStartPipeline_UnknownCall(t *testing.T) {
	svc := newTestService(t, testConfig(), transcriber.Stub{}, diarizer.Stub{})

	_, err := svc.StartPipeline(context.Background(), "no-such-call")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPipeline_HappyPath(t *testing.T) {
	svc := newTestService(t, testConfig(), transcriber.Stub{}, diarizer.Stub{})
	ctx := context.Background()

	call, err := svc.RegisterCall(ctx, "sale.wav", "/calls/sale.wav", 2048)
	require.NoError(t, err)

	taskID, err := svc.StartPipeline(ctx, call.ID)
	require.NoError(t, err)

	task := waitForTask(t, svc, taskID, types.TaskCompleted)
	assert.Equal(t, 100, task.ProgressPercentage)
	assert.Equal(t, "completed", task.CurrentStep)
	assert.Empty(t, task.ErrorMessage)
	assert.Contains(t, task.Result, "transcript")
	assert.Contains(t, task.Result, "diarization")
	assert.Contains(t, task.Result, "analysis")
	assert.Contains(t, task.Result, "gdpr")

	stored, err := svc.store.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CallCompleted, stored.Status)
	require.NotNil(t, stored.ProcessedAt)
	assert.Greater(t, stored.DurationSeconds, 0.0)

	// The stub transcript is fully compliant.
	analysis, err := svc.GetAnalysis(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, "good", analysis.OverallResult)
	assert.Empty(t, analysis.Violations)

	transcript, err := svc.store.GetTranscript(ctx, call.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, transcript.RawText)
	assert.NotEmpty(t, transcript.RedactedText)

	speakers, err := svc.store.GetSpeakers(ctx, call.ID)
	require.NoError(t, err)
	require.Len(t, speakers, 2)
	assert.Equal(t, "Agent", speakers[0].Label)
}

func TestPipeline_DiarizationFailureFreezesProgress(t *testing.T) {
	svc := newTestService(t, testConfig(), transcriber.Stub{},
		diarizer.Stub{Err: errors.New("model crashed")})
	ctx := context.Background()

	call, err := svc.RegisterCall(ctx, "sale.wav", "/calls/sale.wav", 2048)
	require.NoError(t, err)

	taskID, err := svc.StartPipeline(ctx, call.ID)
	require.NoError(t, err)

	task := waitForTask(t, svc, taskID, types.TaskFailed)
	assert.Equal(t, 60, task.ProgressPercentage)
	assert.Equal(t, StepDiarization, task.CurrentStep)
	assert.Contains(t, task.ErrorMessage, "model crashed")
	require.NotNil(t, task.CompletedAt)

	stored, err := svc.store.GetCall(ctx, call.ID)
	require.NoError(t, err)
	assert.Equal(t, types.CallFailed, stored.Status)

	// Later stages never ran.
	_, err = svc.GetAnalysis(ctx, call.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	transcript, err := svc.store.GetTranscript(ctx, call.ID)
	require.NoError(t, err)
	assert.Empty(t, transcript.RedactedText)
}

func TestPipeline_OversizeFileFailsValidation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxAudioBytes = 1024
	svc := newTestService(t, cfg, transcriber.Stub{}, diarizer.Stub{})
	ctx := context.Background()

	call, err := svc.RegisterCall(ctx, "sale.wav", "/calls/sale.wav", 4096)
	require.NoError(t, err)

	taskID, err := svc.StartPipeline(ctx, call.ID)
	require.NoError(t, err)

	task := waitForTask(t, svc, taskID, types.TaskFailed)
	assert.Equal(t, 10, task.ProgressPercentage)
	assert.Equal(t, StepValidation, task.CurrentStep)
	assert.Contains(t, task.ErrorMessage, "file too large")
}

type flakyTranscriber struct {
	failures int
	calls    int
}

func (f *flakyTranscriber) Transcribe(ctx context.Context, audioRef string) (transcriber.Result, error) {
	f.calls++
	if f.calls <= f.failures {
		return transcriber.Result{}, transcriber.ErrUnavailable
	}
	return transcriber.Stub{}.Transcribe(ctx, audioRef)
}

func TestPipeline_RetriesTransientTranscriberOutage(t *testing.T) {
	flaky := &flakyTranscriber{failures: 2}
	svc := newTestService(t, testConfig(), flaky, diarizer.Stub{})
	ctx := context.Background()

	call, err := svc.RegisterCall(ctx, "sale.wav", "/calls/sale.wav", 2048)
	require.NoError(t, err)

	taskID, err := svc.StartPipeline(ctx, call.ID)
	require.NoError(t, err)

	waitForTask(t, svc, taskID, types.TaskCompleted)
	assert.Equal(t, 3, flaky.calls)
}

func TestPipeline_ExhaustedRetriesFail(t *testing.T) {
	flaky := &flakyTranscriber{failures: 10}
	svc := newTestService(t, testConfig(), flaky, diarizer.Stub{})
	ctx := context.Background()

	call, err := svc.RegisterCall(ctx, "sale.wav", "/calls/sale.wav", 2048)
	require.NoError(t, err)

	taskID, err := svc.StartPipeline(ctx, call.ID)
	require.NoError(t, err)

	task := waitForTask(t, svc, taskID, types.TaskFailed)
	assert.Equal(t, 30, task.ProgressPercentage)
	assert.Equal(t, 3, flaky.calls)
	assert.Contains(t, task.ErrorMessage, "unavailable")
}

func TestReprocess_CreatesFreshRun(t *testing.T) {
	svc := newTestService(t, testConfig(), transcriber.Stub{}, diarizer.Stub{})
	ctx := context.Background()

	call, err := svc.RegisterCall(ctx, "sale.wav", "/calls/sale.wav", 2048)
	require.NoError(t, err)

	first, err := svc.StartPipeline(ctx, call.ID)
	require.NoError(t, err)
	waitForTask(t, svc, first, types.TaskCompleted)

	second, err := svc.Reprocess(ctx, call.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	waitForTask(t, svc, second, types.TaskCompleted)

	// Both audit records survive.
	firstTask, err := svc.GetTaskStatus(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, firstTask.Status)
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(transcriber.ErrUnavailable))
	assert.True(t, retryable(diarizer.ErrUnavailable))
	assert.False(t, retryable(errors.New("disk full")))
	assert.False(t, retryable(&ValidationError{Reason: "too long"}))
}

func TestStageError_Unwrap(t *testing.T) {
	inner := &ValidationError{Reason: "bad header"}
	err := &StageError{Stage: StepValidation, Err: inner}

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Contains(t, err.Error(), StepValidation)
}

func TestExportViolations_EndToEnd(t *testing.T) {
	svc := newTestService(t, testConfig(), transcriber.Stub{}, diarizer.Stub{})
	ctx := context.Background()

	call, err := svc.RegisterCall(ctx, "sale.wav", "/calls/sale.wav", 2048)
	require.NoError(t, err)
	taskID, err := svc.StartPipeline(ctx, call.ID)
	require.NoError(t, err)
	waitForTask(t, svc, taskID, types.TaskCompleted)

	payload, contentType, err := svc.ExportViolations(ctx, "json")
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)
	assert.NotNil(t, payload)

	_, _, err = svc.ExportViolations(ctx, "pdf")
	assert.Error(t, err)
}
