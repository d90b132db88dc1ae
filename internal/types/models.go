package types

import "time"

// Call statuses.
const (
	CallUploaded   = "uploaded"
	CallProcessing = "processing"
	CallCompleted  = "completed"
	CallFailed     = "failed"
)

// Task statuses.
const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// Violation severities.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

type Call struct {
	ID              string     `json:"id"`
	Filename        string     `json:"filename"`
	FilePath        string     `json:"file_path"`
	FileSizeBytes   int64      `json:"file_size_bytes"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	SampleRate      int        `json:"sample_rate,omitempty"`
	Channels        int        `json:"channels,omitempty"`
	Status          string     `json:"status"`
	CreatedAt       time.Time  `json:"created_at"`
	ProcessedAt     *time.Time `json:"processed_at,omitempty"`
}

// Segment is a timestamped slice of the recording. Start/End are seconds
// from the beginning, half-open.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text,omitempty"`
}

func (s Segment) Duration() float64 { return s.End - s.Start }

type CallTranscript struct {
	CallID            string    `json:"call_id"`
	RawText           string    `json:"raw_text"`
	RedactedText      string    `json:"redacted_text,omitempty"`
	Language          string    `json:"language,omitempty"`
	Confidence        float64   `json:"confidence,omitempty"`
	Segments          []Segment `json:"segments,omitempty"`
	Model             string    `json:"model,omitempty"`
	ProcessingSeconds float64   `json:"processing_seconds,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type Speaker struct {
	CallID            string    `json:"call_id"`
	SpeakerID         string    `json:"speaker_id"` // e.g. SPEAKER_00
	Label             string    `json:"label,omitempty"`
	Segments          []Segment `json:"segments"`
	TotalSpeakingTime float64   `json:"total_speaking_time"`
}

type Violation struct {
	Type              string   `json:"type"`
	Severity          string   `json:"severity"`
	Description       string   `json:"description"`
	Rule              string   `json:"rule"`
	MissingComponents []string `json:"missing_components,omitempty"`
	Timestamp         *float64 `json:"timestamp,omitempty"`
}

// RuleResult is the outcome of one compliance check.
type RuleResult struct {
	Mentioned  bool           `json:"mentioned"`
	Violations []Violation    `json:"violations"`
	Details    map[string]any `json:"details"`
}

// CallAnalysis is immutable after creation; a reprocess inserts a new row.
type CallAnalysis struct {
	CallID             string         `json:"call_id"`
	OverallResult      string         `json:"overall_result"` // good | bad
	ConfidenceScore    float64        `json:"confidence_score"`
	Violations         []Violation    `json:"violations"`
	BindingstidMention bool           `json:"bindingstid_mentioned"`
	BindingstidDetails map[string]any `json:"bindingstid_details,omitempty"`
	PrisMention        bool           `json:"pris_mentioned"`
	PrisDetails        map[string]any `json:"pris_details,omitempty"`
	PressMention       bool           `json:"press_mentioned"`
	PressDetails       map[string]any `json:"press_details,omitempty"`
	Summary            string         `json:"summary"`
	KeyPoints          []string       `json:"key_points"`
	CreatedAt          time.Time      `json:"created_at"`
}

// ProcessingTask is the audit trail for one pipeline run. Mutated only by
// the orchestrator, never deleted.
type ProcessingTask struct {
	TaskID             string         `json:"task_id"`
	CallID             string         `json:"call_id"`
	TaskType           string         `json:"task_type"`
	Status             string         `json:"status"`
	CurrentStep        string         `json:"current_step,omitempty"`
	ProgressPercentage int            `json:"progress_percentage"`
	Result             map[string]any `json:"result,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}
