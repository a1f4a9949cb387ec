package storage

import (
	"context"
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/nikmy/txprop/pkg/errors"
	"github.com/nikmy/txprop/pkg/logger"
	"github.com/nikmy/txprop/pkg/tools/await"
)

func NewFileStorage[T Indexed](
	fileName string,
	interval time.Duration,
	model Snapshotter[T],
	log logger.Logger,
) *FileStorage[T] {
	return &FileStorage[T]{
		fileName: fileName,
		model:    model,
		interval: interval,
		log:      log.With("file_storage"),
	}
}

// FileStorage keeps a JSON snapshot of a model on disk: it is loaded
// once on Run and rewritten every interval and on shutdown.
type FileStorage[T Indexed] struct {
	fileName string
	model    Snapshotter[T]
	interval time.Duration
	log      logger.Logger
}

// Run saves the model every interval and once more when ctx is done.
// It never loads: Restore replaces the whole model, so Load belongs
// before anything starts writing to it.
func (s *FileStorage[T]) Run(ctx context.Context) error {
	ticker := await.Tick(s.interval)
	defer ticker.Stop()

	for ticker.Await(ctx) {
		err := s.Save()
		if err != nil {
			s.log.Warn(err)
		}
	}

	return s.Save()
}

func (s *FileStorage[T]) Save() error {
	data := s.model.Snapshot()
	s.log.Debugf("saving %d records to %s", len(data), s.fileName)

	bytes, err := json.Marshal(data)
	if err != nil {
		return errors.WrapFail(err, "marshal snapshot")
	}

	tmp := s.fileName + ".tmp"
	err = os.WriteFile(tmp, bytes, fs.FileMode(0o644))
	if err != nil {
		return errors.WrapFailf(err, "write %s", tmp)
	}

	return errors.WrapFailf(os.Rename(tmp, s.fileName), "replace %s", filepath.Base(s.fileName))
}

// Load restores the model from the snapshot, a missing file is not an error.
func (s *FileStorage[T]) Load() error {
	s.log.Debugf("reading data from %s", s.fileName)

	bytes, err := os.ReadFile(s.fileName)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return errors.WrapFailf(err, "read %s", s.fileName)
	}

	var data map[string]T
	err = json.Unmarshal(bytes, &data)
	if err != nil {
		return errors.WrapFail(err, "unmarshal snapshot")
	}

	s.model.Restore(data)
	return nil
}
