package fswatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"ci-runner-service/internal/core/services"
)

// Loader registers workflow definitions from a directory of YAML files and
// optionally keeps them in sync as files are added or edited. Files that fail
// to parse are logged and skipped so one bad definition does not take the
// directory down.
type Loader struct {
	dir string
	svc *services.WorkflowService
}

func NewLoader(dir string, svc *services.WorkflowService) *Loader {
	return &Loader{dir: dir, svc: svc}
}

// LoadAll applies every *.yml / *.yaml file in the directory.
func (l *Loader) LoadAll(ctx context.Context) error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.WithField("dir", l.dir).Warn("workflow directory does not exist, skipping load")
			return nil
		}
		return fmt.Errorf("read workflow directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !isWorkflowFile(entry.Name()) {
			continue
		}
		l.apply(ctx, filepath.Join(l.dir, entry.Name()))
	}
	return nil
}

// Watch applies workflow files as they are created or written until the
// context is cancelled. Blocks; run it in its own goroutine.
func (l *Loader) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create workflow watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(l.dir); err != nil {
		return fmt.Errorf("watch workflow directory: %w", err)
	}
	log.WithField("dir", l.dir).Info("watching workflow directory")

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isWorkflowFile(filepath.Base(event.Name)) {
				continue
			}
			l.apply(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("workflow watcher error")
		}
	}
}

func (l *Loader) apply(ctx context.Context, path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("file", path).Warn("read workflow file failed")
		return
	}

	wf, err := l.svc.Apply(ctx, raw)
	if err != nil {
		log.WithError(err).WithField("file", path).Warn("apply workflow file failed")
		return
	}

	log.WithFields(log.Fields{
		"file":     path,
		"workflow": wf.Name,
	}).Info("workflow applied from file")
}

func isWorkflowFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}
