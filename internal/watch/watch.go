package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"call-compliance-go/internal/audio"
	"call-compliance-go/internal/logger"
	"call-compliance-go/internal/pipeline"
)

// Watcher registers recordings dropped into the calls directory and starts
// a pipeline run for each.
type Watcher struct {
	dir     string
	service *pipeline.Service
	log     *logrus.Entry
}

func New(dir string, service *pipeline.Service) *Watcher {
	return &Watcher{
		dir:     dir,
		service: service,
		log:     logger.Component("watch").WithField("dir", dir),
	}
}

// Run blocks until ctx is done, starting a pipeline for every new
// supported audio file. The file is given a short settle delay so a
// half-written upload is not probed mid-copy.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return err
	}
	w.log.Info("watching inbox")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}
			w.handleCreate(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("watch error")
		}
	}
}

func (w *Watcher) handleCreate(ctx context.Context, path string) {
	name := filepath.Base(path)
	if !audio.SupportedExtension(name) {
		return
	}
	time.Sleep(500 * time.Millisecond) // settle

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}

	call, err := w.service.RegisterCall(ctx, name, path, info.Size())
	if err != nil {
		w.log.WithError(err).WithField("file", name).Warn("register failed")
		return
	}
	taskID, err := w.service.StartPipeline(ctx, call.ID)
	if err != nil {
		w.log.WithError(err).WithField("call_id", call.ID).Warn("start pipeline failed")
		return
	}
	w.log.WithFields(logrus.Fields{"call_id": call.ID, "task_id": taskID}).Info("pipeline started for inbox file")
}
