package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"call-compliance-go/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestCall(id string) types.Call {
	return types.Call{
		ID:            id,
		Filename:      "call.wav",
		FilePath:      "/calls/call.wav",
		FileSizeBytes: 2048,
		Status:        types.CallUploaded,
		CreatedAt:     time.Now().UTC(),
	}
}

func TestCallRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCall(ctx, newTestCall("c1")))

	got, err := s.GetCall(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, "call.wav", got.Filename)
	assert.Equal(t, int64(2048), got.FileSizeBytes)
	assert.Equal(t, types.CallUploaded, got.Status)
	assert.Nil(t, got.ProcessedAt)
}

func TestGetCall_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetCall(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetCallStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCall(ctx, newTestCall("c1")))
	require.NoError(t, s.SetCallStatus(ctx, "c1", types.CallProcessing))

	got, err := s.GetCall(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, types.CallProcessing, got.Status)

	assert.ErrorIs(t, s.SetCallStatus(ctx, "missing", types.CallProcessing), ErrNotFound)
}

func TestSetCallAudioMetadataAndComplete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCall(ctx, newTestCall("c1")))
	require.NoError(t, s.SetCallAudioMetadata(ctx, "c1", 120.5, 16000, 1))
	require.NoError(t, s.MarkCallCompleted(ctx, "c1", time.Now().UTC()))

	got, err := s.GetCall(ctx, "c1")
	require.NoError(t, err)
	assert.InDelta(t, 120.5, got.DurationSeconds, 1e-9)
	assert.Equal(t, 16000, got.SampleRate)
	assert.Equal(t, 1, got.Channels)
	assert.Equal(t, types.CallCompleted, got.Status)
	require.NotNil(t, got.ProcessedAt)
}

func TestTranscriptRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	transcript := types.CallTranscript{
		CallID:     "c1",
		RawText:    "Hei, dette er en test.",
		Language:   "no",
		Confidence: 0.92,
		Segments: []types.Segment{
			{Start: 0, End: 2.5, Text: "Hei,"},
			{Start: 2.5, End: 5, Text: "dette er en test."},
		},
		Model:     "whisper-large",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertTranscript(ctx, transcript))

	got, err := s.GetTranscript(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, transcript.RawText, got.RawText)
	assert.Equal(t, "no", got.Language)
	assert.Equal(t, transcript.Segments, got.Segments)
	assert.Empty(t, got.RedactedText)
}

func TestGetTranscript_ReturnsNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := types.CallTranscript{CallID: "c1", RawText: "first", CreatedAt: time.Now().UTC()}
	second := types.CallTranscript{CallID: "c1", RawText: "second", CreatedAt: time.Now().UTC()}
	require.NoError(t, s.InsertTranscript(ctx, first))
	require.NoError(t, s.InsertTranscript(ctx, second))

	got, err := s.GetTranscript(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "second", got.RawText)
}

func TestSetRedactedText(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	transcript := types.CallTranscript{
		CallID:    "c1",
		RawText:   "Ring 91234567.",
		Segments:  []types.Segment{{Start: 0, End: 3, Text: "Ring 91234567."}},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, s.InsertTranscript(ctx, transcript))

	redactedSegments := []types.Segment{{Start: 0, End: 3, Text: "Ring [TELEFON]."}}
	require.NoError(t, s.SetRedactedText(ctx, "c1", "Ring [TELEFON].", redactedSegments))

	got, err := s.GetTranscript(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Ring [TELEFON].", got.RedactedText)
	assert.Equal(t, redactedSegments, got.Segments)

	assert.ErrorIs(t, s.SetRedactedText(ctx, "missing", "x", nil), ErrNotFound)
}

func TestReplaceSpeakers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	speakers := []types.Speaker{
		{CallID: "c1", SpeakerID: "SPEAKER_00", Label: "Agent", Segments: []types.Segment{{Start: 0, End: 5}}, TotalSpeakingTime: 5},
		{CallID: "c1", SpeakerID: "SPEAKER_01", Label: "Customer", Segments: []types.Segment{{Start: 5, End: 9}}, TotalSpeakingTime: 4},
	}
	require.NoError(t, s.ReplaceSpeakers(ctx, "c1", speakers))

	// A second run fully replaces the first set.
	replacement := []types.Speaker{
		{CallID: "c1", SpeakerID: "SPEAKER_00", Label: "Agent", Segments: []types.Segment{{Start: 0, End: 9}}, TotalSpeakingTime: 9},
	}
	require.NoError(t, s.ReplaceSpeakers(ctx, "c1", replacement))

	got, err := s.GetSpeakers(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SPEAKER_00", got[0].SpeakerID)
	assert.InDelta(t, 9.0, got[0].TotalSpeakingTime, 1e-9)
	assert.Equal(t, []types.Segment{{Start: 0, End: 9}}, got[0].Segments)
}

func TestAnalysisRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	analysis := types.CallAnalysis{
		CallID:          "c1",
		OverallResult:   "bad",
		ConfidenceScore: 0.8,
		Violations: []types.Violation{
			{Type: "bindingstid_missing", Severity: types.SeverityHigh, Description: "no binding period", Rule: "must disclose"},
		},
		PrisMention: true,
		Summary:     "Regelbrudd funnet",
		KeyPoints:   []string{"1 alvorlige regelbrudd funnet"},
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.InsertAnalysis(ctx, analysis))

	got, err := s.GetAnalysis(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "bad", got.OverallResult)
	assert.InDelta(t, 0.8, got.ConfidenceScore, 1e-9)
	require.Len(t, got.Violations, 1)
	assert.Equal(t, "bindingstid_missing", got.Violations[0].Type)
	assert.True(t, got.PrisMention)
	assert.False(t, got.BindingstidMention)
	assert.Equal(t, analysis.KeyPoints, got.KeyPoints)

	_, err = s.GetAnalysis(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListAnalyses_NewestPerCall(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateCall(ctx, newTestCall("c1")))

	older := types.CallAnalysis{CallID: "c1", OverallResult: "bad", ConfidenceScore: 0.7, CreatedAt: time.Now().UTC()}
	newer := types.CallAnalysis{CallID: "c1", OverallResult: "good", ConfidenceScore: 1.0, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.InsertAnalysis(ctx, older))
	require.NoError(t, s.InsertAnalysis(ctx, newer))

	analyses, calls, err := s.ListAnalyses(ctx)
	require.NoError(t, err)
	require.Len(t, analyses, 1)
	assert.Equal(t, "good", analyses[0].OverallResult)
	assert.Equal(t, "call.wav", calls["c1"].Filename)
}

func TestTaskLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	task := types.ProcessingTask{
		TaskID:    "t1",
		CallID:    "c1",
		TaskType:  "full_processing",
		Status:    types.TaskPending,
		StartedAt: &now,
		CreatedAt: now,
	}
	require.NoError(t, s.InsertTask(ctx, task))

	require.NoError(t, s.UpdateTaskProgress(ctx, "t1", "transcription", 30))
	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskRunning, got.Status)
	assert.Equal(t, "transcription", got.CurrentStep)
	assert.Equal(t, 30, got.ProgressPercentage)
	assert.Nil(t, got.CompletedAt)

	require.NoError(t, s.CompleteTask(ctx, "t1", map[string]any{"violations_count": 0}, time.Now().UTC()))
	got, err = s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskCompleted, got.Status)
	assert.Equal(t, 100, got.ProgressPercentage)
	assert.Equal(t, "completed", got.CurrentStep)
	require.NotNil(t, got.CompletedAt)
	assert.Contains(t, got.Result, "violations_count")
}

func TestFailTask_FreezesProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.InsertTask(ctx, types.ProcessingTask{
		TaskID: "t1", CallID: "c1", TaskType: "full_processing",
		Status: types.TaskPending, CreatedAt: now,
	}))
	require.NoError(t, s.UpdateTaskProgress(ctx, "t1", "diarization", 60))
	require.NoError(t, s.FailTask(ctx, "t1", "diarization service unavailable", time.Now().UTC()))

	got, err := s.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, types.TaskFailed, got.Status)
	assert.Equal(t, 60, got.ProgressPercentage)
	assert.Equal(t, "diarization", got.CurrentStep)
	assert.Equal(t, "diarization service unavailable", got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)
}

func TestGetTask_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetTask(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
