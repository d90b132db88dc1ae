package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"call-compliance-go/internal/audio"
	"call-compliance-go/internal/config"
	"call-compliance-go/internal/diarizer"
	"call-compliance-go/internal/export"
	"call-compliance-go/internal/logger"
	"call-compliance-go/internal/pii"
	"call-compliance-go/internal/rules"
	"call-compliance-go/internal/store"
	"call-compliance-go/internal/transcriber"
	"call-compliance-go/internal/types"
)

const taskTypeFullProcessing = "full_processing"

// Service is the pipeline facade consumed by the HTTP layer and the inbox
// watcher.
type Service struct {
	cfg         config.Config
	store       *store.Store
	prober      audio.Prober
	transcriber transcriber.Transcriber
	diarizer    diarizer.Diarizer
	engine      *rules.Engine
	detector    *pii.Detector
	runner      *Runner
	log         *logrus.Entry
}

func NewService(cfg config.Config, st *store.Store, prober audio.Prober, tr transcriber.Transcriber, di diarizer.Diarizer) *Service {
	return &Service{
		cfg:         cfg,
		store:       st,
		prober:      prober,
		transcriber: tr,
		diarizer:    di,
		engine:      rules.NewEngine(),
		detector:    pii.NewDetector(),
		runner:      NewRunner(cfg.QueueSize),
		log:         logger.Component("pipeline.service"),
	}
}

// Start launches the worker pool. ctx bounds the lifetime of all workers.
func (s *Service) Start(ctx context.Context) {
	s.runner.Start(ctx, s.cfg.WorkerCount)
}

func (s *Service) Stop() {
	s.runner.Stop()
}

// RegisterCall records an uploaded recording. The extension must be
// ingestible; permanent audio validation happens in the first stage.
func (s *Service) RegisterCall(ctx context.Context, filename, path string, sizeBytes int64) (types.Call, error) {
	if !audio.SupportedExtension(filename) {
		return types.Call{}, &ValidationError{Reason: "unsupported file extension: " + filepath.Ext(filename)}
	}
	call := types.Call{
		ID:            uuid.New().String(),
		Filename:      filename,
		FilePath:      path,
		FileSizeBytes: sizeBytes,
		Status:        types.CallUploaded,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateCall(ctx, call); err != nil {
		return types.Call{}, err
	}
	s.log.WithFields(logrus.Fields{"call_id": call.ID, "filename": filename}).Info("call registered")
	return call, nil
}

// StartPipeline creates a task record and begins a fresh pipeline run for
// the call. Returns the task ID immediately; the run proceeds on the
// worker pool.
func (s *Service) StartPipeline(ctx context.Context, callID string) (string, error) {
	if _, err := s.store.GetCall(ctx, callID); err != nil {
		return "", err
	}
	if err := s.store.SetCallStatus(ctx, callID, types.CallProcessing); err != nil {
		return "", err
	}

	now := time.Now().UTC()
	task := types.ProcessingTask{
		TaskID:    uuid.New().String(),
		CallID:    callID,
		TaskType:  taskTypeFullProcessing,
		Status:    types.TaskPending,
		StartedAt: &now,
		CreatedAt: now,
	}
	if err := s.store.InsertTask(ctx, task); err != nil {
		return "", err
	}

	go func() {
		// The run owns its own context; an HTTP request ending must not
		// cancel a pipeline already underway.
		_ = s.runPipeline(context.Background(), callID, task.TaskID)
	}()
	return task.TaskID, nil
}

// GetTaskStatus returns the task audit record.
func (s *Service) GetTaskStatus(ctx context.Context, taskID string) (types.ProcessingTask, error) {
	return s.store.GetTask(ctx, taskID)
}

// GetAnalysis returns the newest analysis for the call.
func (s *Service) GetAnalysis(ctx context.Context, callID string) (types.CallAnalysis, error) {
	return s.store.GetAnalysis(ctx, callID)
}

// Reprocess resets the call and starts a brand-new run. Prior task,
// transcript and analysis rows are retained; nothing resumes.
func (s *Service) Reprocess(ctx context.Context, callID string) (string, error) {
	if _, err := s.store.GetCall(ctx, callID); err != nil {
		return "", err
	}
	s.log.WithField("call_id", callID).Info("reprocessing call")
	return s.StartPipeline(ctx, callID)
}

// ExportViolations flattens every stored violation into rows and encodes
// them in the requested format (xlsx, csv or json).
func (s *Service) ExportViolations(ctx context.Context, format string) ([]byte, string, error) {
	analyses, calls, err := s.store.ListAnalyses(ctx)
	if err != nil {
		return nil, "", err
	}
	return export.Violations(export.Rows(analyses, calls), format)
}
