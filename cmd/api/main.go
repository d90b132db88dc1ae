package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"call-compliance-go/internal/audio"
	"call-compliance-go/internal/config"
	"call-compliance-go/internal/diarizer"
	"call-compliance-go/internal/logger"
	"call-compliance-go/internal/pipeline"
	"call-compliance-go/internal/store"
	"call-compliance-go/internal/transcriber"
	"call-compliance-go/internal/watch"
)

var validate = validator.New()

type registerCallRequest struct {
	Filename      string `json:"filename" validate:"required"`
	FilePath      string `json:"file_path" validate:"required"`
	FileSizeBytes int64  `json:"file_size_bytes" validate:"gte=0"`
}

func main() {
	cfg := config.Load()

	log := logger.New()
	log.WithField("service", "call-compliance-go").Info("starting service")

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer st.Close()

	var tr transcriber.Transcriber
	var di diarizer.Diarizer
	if cfg.UseStubs || cfg.TranscribeURL == "" {
		log.Info("using stub transcriber")
		tr = transcriber.Stub{}
	} else {
		tr = transcriber.NewClient(cfg.TranscribeURL)
	}
	if cfg.UseStubs || cfg.DiarizeURL == "" {
		log.Info("using stub diarizer")
		di = diarizer.Stub{}
	} else {
		di = diarizer.NewClient(cfg.DiarizeURL)
	}

	var prober audio.Prober = audio.WAVProber{}
	if cfg.UseStubs {
		prober = audio.StubProber{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := pipeline.NewService(cfg, st, prober, tr, di)
	svc.Start(ctx)
	defer svc.Stop()

	if cfg.EnableWatcher {
		go func() {
			if err := watch.New(cfg.CallsDir, svc).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("watcher terminated")
			}
		}()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("POST /calls", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "register")

		var req registerCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON body", http.StatusBadRequest)
			return
		}
		if err := validate.Struct(req); err != nil {
			reqLog.WithError(err).Warn("invalid register request")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		call, err := svc.RegisterCall(r.Context(), req.Filename, req.FilePath, req.FileSizeBytes)
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusCreated, call)
	})

	mux.HandleFunc("POST /calls/{id}/process", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "process")
		taskID, err := svc.StartPipeline(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
	})

	mux.HandleFunc("POST /calls/{id}/reprocess", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "reprocess")
		taskID, err := svc.Reprocess(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID})
	})

	mux.HandleFunc("GET /tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "task_status")
		task, err := svc.GetTaskStatus(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	})

	mux.HandleFunc("GET /calls/{id}/analysis", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "analysis")
		analysis, err := svc.GetAnalysis(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, reqLog, err)
			return
		}
		writeJSON(w, http.StatusOK, analysis)
	})

	mux.HandleFunc("GET /export/violations", func(w http.ResponseWriter, r *http.Request) {
		reqLog := logger.New().WithRequest(r).WithField("handler", "export")
		payload, contentType, err := svc.ExportViolations(r.Context(), r.URL.Query().Get("format"))
		if err != nil {
			reqLog.WithError(err).Warn("export failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Write(payload)
	})

	addr := ":" + cfg.HTTPPort
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.WithError(err).Fatal("server terminated")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, log interface{ Warn(...any) }, err error) {
	var vErr *pipeline.ValidationError
	switch {
	case errors.Is(err, pipeline.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.As(err, &vErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Warn("internal error: " + err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
