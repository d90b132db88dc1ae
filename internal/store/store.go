package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"call-compliance-go/internal/types"
)

// ErrNotFound is returned when a referenced record does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps SQLite access for calls, transcripts, speakers, analyses and
// processing tasks. It is the single source of truth; the orchestrator
// commits once per stage.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS calls (
			id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			file_path TEXT NOT NULL,
			file_size_bytes INTEGER NOT NULL,
			duration_seconds REAL,
			sample_rate INTEGER,
			channels INTEGER,
			status TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			processed_at TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS call_transcripts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL,
			raw_text TEXT NOT NULL,
			redacted_text TEXT,
			language TEXT,
			confidence REAL,
			segments_json TEXT,
			model TEXT,
			processing_seconds REAL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcripts_call ON call_transcripts(call_id);`,
		`CREATE TABLE IF NOT EXISTS speakers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL,
			speaker_id TEXT NOT NULL,
			label TEXT,
			segments_json TEXT NOT NULL,
			total_speaking_time REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_speakers_call ON speakers(call_id);`,
		`CREATE TABLE IF NOT EXISTS call_analyses (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			call_id TEXT NOT NULL,
			overall_result TEXT NOT NULL,
			confidence_score REAL NOT NULL,
			violations_json TEXT,
			bindingstid_mentioned INTEGER NOT NULL,
			bindingstid_details_json TEXT,
			pris_mentioned INTEGER NOT NULL,
			pris_details_json TEXT,
			press_mentioned INTEGER NOT NULL,
			press_details_json TEXT,
			summary TEXT,
			key_points_json TEXT,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_call ON call_analyses(call_id);`,
		`CREATE TABLE IF NOT EXISTS processing_tasks (
			task_id TEXT PRIMARY KEY,
			call_id TEXT NOT NULL,
			task_type TEXT NOT NULL,
			status TEXT NOT NULL,
			current_step TEXT,
			progress_percentage INTEGER NOT NULL DEFAULT 0,
			result_json TEXT,
			error_message TEXT,
			started_at TIMESTAMP,
			completed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_call ON processing_tasks(call_id);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// ---- calls ----

func (s *Store) CreateCall(ctx context.Context, c types.Call) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls(id, filename, file_path, file_size_bytes, status, created_at)
		 VALUES(?, ?, ?, ?, ?, ?)`,
		c.ID, c.Filename, c.FilePath, c.FileSizeBytes, c.Status, c.CreatedAt)
	return err
}

func (s *Store) GetCall(ctx context.Context, callID string) (types.Call, error) {
	var c types.Call
	var duration sql.NullFloat64
	var sampleRate, channels sql.NullInt64
	var processedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, file_path, file_size_bytes, duration_seconds,
		        sample_rate, channels, status, created_at, processed_at
		 FROM calls WHERE id = ?`, callID).
		Scan(&c.ID, &c.Filename, &c.FilePath, &c.FileSizeBytes, &duration,
			&sampleRate, &channels, &c.Status, &c.CreatedAt, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Call{}, ErrNotFound
	}
	if err != nil {
		return types.Call{}, err
	}
	c.DurationSeconds = duration.Float64
	c.SampleRate = int(sampleRate.Int64)
	c.Channels = int(channels.Int64)
	if processedAt.Valid {
		t := processedAt.Time
		c.ProcessedAt = &t
	}
	return c, nil
}

func (s *Store) SetCallStatus(ctx context.Context, callID, status string) error {
	return s.execOne(ctx, `UPDATE calls SET status = ? WHERE id = ?`, status, callID)
}

func (s *Store) SetCallAudioMetadata(ctx context.Context, callID string, duration float64, sampleRate, channels int) error {
	return s.execOne(ctx,
		`UPDATE calls SET duration_seconds = ?, sample_rate = ?, channels = ? WHERE id = ?`,
		duration, sampleRate, channels, callID)
}

func (s *Store) MarkCallCompleted(ctx context.Context, callID string, at time.Time) error {
	return s.execOne(ctx,
		`UPDATE calls SET status = ?, processed_at = ? WHERE id = ?`,
		types.CallCompleted, at, callID)
}

// ---- transcripts ----

func (s *Store) InsertTranscript(ctx context.Context, t types.CallTranscript) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO call_transcripts(call_id, raw_text, language, confidence,
		        segments_json, model, processing_seconds, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		t.CallID, t.RawText, t.Language, t.Confidence,
		string(segments), t.Model, t.ProcessingSeconds, t.CreatedAt)
	return err
}

// GetTranscript returns the newest transcript for a call.
func (s *Store) GetTranscript(ctx context.Context, callID string) (types.CallTranscript, error) {
	var t types.CallTranscript
	var redacted, language, model, segments sql.NullString
	var confidence, processing sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT call_id, raw_text, redacted_text, language, confidence,
		        segments_json, model, processing_seconds, created_at
		 FROM call_transcripts WHERE call_id = ? ORDER BY id DESC LIMIT 1`, callID).
		Scan(&t.CallID, &t.RawText, &redacted, &language, &confidence,
			&segments, &model, &processing, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CallTranscript{}, ErrNotFound
	}
	if err != nil {
		return types.CallTranscript{}, err
	}
	t.RedactedText = redacted.String
	t.Language = language.String
	t.Model = model.String
	t.Confidence = confidence.Float64
	t.ProcessingSeconds = processing.Float64
	if segments.Valid && segments.String != "" {
		if err := json.Unmarshal([]byte(segments.String), &t.Segments); err != nil {
			return types.CallTranscript{}, fmt.Errorf("decode segments: %w", err)
		}
	}
	return t, nil
}

func (s *Store) SetRedactedText(ctx context.Context, callID, redacted string, segments []types.Segment) error {
	segJSON, err := json.Marshal(segments)
	if err != nil {
		return err
	}
	return s.execOne(ctx,
		`UPDATE call_transcripts SET redacted_text = ?, segments_json = ?
		 WHERE id = (SELECT id FROM call_transcripts WHERE call_id = ? ORDER BY id DESC LIMIT 1)`,
		redacted, string(segJSON), callID)
}

// ---- speakers ----

// ReplaceSpeakers swaps the speaker set for a call in one pass; diarization
// of a reprocess run overwrites the previous run's speakers.
func (s *Store) ReplaceSpeakers(ctx context.Context, callID string, speakers []types.Speaker) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM speakers WHERE call_id = ?`, callID); err != nil {
		return err
	}
	for _, sp := range speakers {
		segments, err := json.Marshal(sp.Segments)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO speakers(call_id, speaker_id, label, segments_json, total_speaking_time)
			 VALUES(?, ?, ?, ?, ?)`,
			callID, sp.SpeakerID, sp.Label, string(segments), sp.TotalSpeakingTime); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetSpeakers(ctx context.Context, callID string) ([]types.Speaker, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT call_id, speaker_id, label, segments_json, total_speaking_time
		 FROM speakers WHERE call_id = ? ORDER BY speaker_id`, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Speaker
	for rows.Next() {
		var sp types.Speaker
		var label sql.NullString
		var segments string
		if err := rows.Scan(&sp.CallID, &sp.SpeakerID, &label, &segments, &sp.TotalSpeakingTime); err != nil {
			return nil, err
		}
		sp.Label = label.String
		if err := json.Unmarshal([]byte(segments), &sp.Segments); err != nil {
			return nil, fmt.Errorf("decode segments: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// ---- analyses ----

func (s *Store) InsertAnalysis(ctx context.Context, a types.CallAnalysis) error {
	violations, err := json.Marshal(a.Violations)
	if err != nil {
		return err
	}
	keyPoints, err := json.Marshal(a.KeyPoints)
	if err != nil {
		return err
	}
	bindingstid, _ := json.Marshal(a.BindingstidDetails)
	pris, _ := json.Marshal(a.PrisDetails)
	press, _ := json.Marshal(a.PressDetails)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO call_analyses(call_id, overall_result, confidence_score,
		        violations_json, bindingstid_mentioned, bindingstid_details_json,
		        pris_mentioned, pris_details_json, press_mentioned, press_details_json,
		        summary, key_points_json, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.CallID, a.OverallResult, a.ConfidenceScore,
		string(violations), a.BindingstidMention, string(bindingstid),
		a.PrisMention, string(pris), a.PressMention, string(press),
		a.Summary, string(keyPoints), a.CreatedAt)
	return err
}

// GetAnalysis returns the newest analysis for a call.
func (s *Store) GetAnalysis(ctx context.Context, callID string) (types.CallAnalysis, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT call_id, overall_result, confidence_score, violations_json,
		        bindingstid_mentioned, bindingstid_details_json,
		        pris_mentioned, pris_details_json,
		        press_mentioned, press_details_json,
		        summary, key_points_json, created_at
		 FROM call_analyses WHERE call_id = ? ORDER BY id DESC LIMIT 1`, callID)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.CallAnalysis{}, ErrNotFound
	}
	return a, err
}

// ListAnalyses returns the newest analysis per call, newest first, joined
// with the call's filename. Used by violation export.
func (s *Store) ListAnalyses(ctx context.Context) ([]types.CallAnalysis, map[string]types.Call, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.call_id, a.overall_result, a.confidence_score, a.violations_json,
		        a.bindingstid_mentioned, a.bindingstid_details_json,
		        a.pris_mentioned, a.pris_details_json,
		        a.press_mentioned, a.press_details_json,
		        a.summary, a.key_points_json, a.created_at
		 FROM call_analyses a
		 WHERE a.id = (SELECT MAX(id) FROM call_analyses WHERE call_id = a.call_id)
		 ORDER BY a.id DESC`)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var analyses []types.CallAnalysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, nil, err
		}
		analyses = append(analyses, a)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	calls := make(map[string]types.Call, len(analyses))
	for _, a := range analyses {
		if _, ok := calls[a.CallID]; ok {
			continue
		}
		c, err := s.GetCall(ctx, a.CallID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, nil, err
		}
		calls[a.CallID] = c
	}
	return analyses, calls, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (types.CallAnalysis, error) {
	var a types.CallAnalysis
	var violations, bindingstid, pris, press, summary, keyPoints sql.NullString
	err := row.Scan(&a.CallID, &a.OverallResult, &a.ConfidenceScore, &violations,
		&a.BindingstidMention, &bindingstid,
		&a.PrisMention, &pris,
		&a.PressMention, &press,
		&summary, &keyPoints, &a.CreatedAt)
	if err != nil {
		return types.CallAnalysis{}, err
	}
	a.Summary = summary.String
	if violations.Valid && violations.String != "" {
		if err := json.Unmarshal([]byte(violations.String), &a.Violations); err != nil {
			return types.CallAnalysis{}, fmt.Errorf("decode violations: %w", err)
		}
	}
	if keyPoints.Valid && keyPoints.String != "" {
		if err := json.Unmarshal([]byte(keyPoints.String), &a.KeyPoints); err != nil {
			return types.CallAnalysis{}, fmt.Errorf("decode key points: %w", err)
		}
	}
	if bindingstid.Valid && bindingstid.String != "" {
		_ = json.Unmarshal([]byte(bindingstid.String), &a.BindingstidDetails)
	}
	if pris.Valid && pris.String != "" {
		_ = json.Unmarshal([]byte(pris.String), &a.PrisDetails)
	}
	if press.Valid && press.String != "" {
		_ = json.Unmarshal([]byte(press.String), &a.PressDetails)
	}
	return a, nil
}

// ---- tasks ----

func (s *Store) InsertTask(ctx context.Context, t types.ProcessingTask) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processing_tasks(task_id, call_id, task_type, status,
		        current_step, progress_percentage, started_at, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TaskID, t.CallID, t.TaskType, t.Status,
		t.CurrentStep, t.ProgressPercentage, t.StartedAt, t.CreatedAt)
	return err
}

func (s *Store) UpdateTaskProgress(ctx context.Context, taskID, step string, progress int) error {
	return s.execOne(ctx,
		`UPDATE processing_tasks SET status = ?, current_step = ?, progress_percentage = ? WHERE task_id = ?`,
		types.TaskRunning, step, progress, taskID)
}

func (s *Store) CompleteTask(ctx context.Context, taskID string, result map[string]any, at time.Time) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.execOne(ctx,
		`UPDATE processing_tasks SET status = ?, current_step = ?, progress_percentage = 100,
		        result_json = ?, completed_at = ? WHERE task_id = ?`,
		types.TaskCompleted, "completed", string(payload), at, taskID)
}

// FailTask freezes progress at the last completed stage and records the
// error message.
func (s *Store) FailTask(ctx context.Context, taskID, errMsg string, at time.Time) error {
	return s.execOne(ctx,
		`UPDATE processing_tasks SET status = ?, error_message = ?, completed_at = ? WHERE task_id = ?`,
		types.TaskFailed, errMsg, at, taskID)
}

func (s *Store) GetTask(ctx context.Context, taskID string) (types.ProcessingTask, error) {
	var t types.ProcessingTask
	var step, result, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT task_id, call_id, task_type, status, current_step, progress_percentage,
		        result_json, error_message, started_at, completed_at, created_at
		 FROM processing_tasks WHERE task_id = ?`, taskID).
		Scan(&t.TaskID, &t.CallID, &t.TaskType, &t.Status, &step, &t.ProgressPercentage,
			&result, &errMsg, &startedAt, &completedAt, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ProcessingTask{}, ErrNotFound
	}
	if err != nil {
		return types.ProcessingTask{}, err
	}
	t.CurrentStep = step.String
	t.ErrorMessage = errMsg.String
	if result.Valid && result.String != "" {
		_ = json.Unmarshal([]byte(result.String), &t.Result)
	}
	if startedAt.Valid {
		v := startedAt.Time
		t.StartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	return t, nil
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
