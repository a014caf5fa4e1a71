// Package history lists, deletes and exports saved workouts.
package history

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/nadahalli/thumper/internal/tcx"
	"github.com/nadahalli/thumper/internal/workout"
)

type Store interface {
	ListWorkouts(ctx context.Context) ([]workout.Workout, error)
	WorkoutWithSamples(ctx context.Context, id int64) (workout.WithSamples, error)
	AllWithSamples(ctx context.Context) ([]workout.WithSamples, error)
	DeleteWorkout(ctx context.Context, id int64) error
}

var ErrNothingToExport = errors.New("no workouts to export")

type Service struct {
	store     Store
	exportDir string
	logger    *log.Logger
}

// NewService writes exports into exportDir unless a call names its own path.
func NewService(store Store, exportDir string, logger *log.Logger) *Service {
	if store == nil {
		panic("history: store cannot be nil")
	}
	if logger == nil {
		panic("history: logger cannot be nil")
	}
	return &Service{store: store, exportDir: exportDir, logger: logger}
}

func (s *Service) List(ctx context.Context) ([]workout.Workout, error) {
	return s.store.ListWorkouts(ctx)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteWorkout(ctx, id); err != nil {
		return fmt.Errorf("delete workout %d: %w", id, err)
	}
	s.logger.Printf("History: deleted workout %d", id)
	return nil
}

// ExportOne writes a single workout under its start-time file name and
// returns the path written.
func (s *Service) ExportOne(ctx context.Context, id int64) (string, error) {
	ws, err := s.store.WorkoutWithSamples(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load workout %d: %w", id, err)
	}
	path := filepath.Join(s.exportDir, tcx.FileName(ws.Workout))
	if err := s.write(path, []workout.WithSamples{ws}); err != nil {
		return "", err
	}
	return path, nil
}

// ExportAll writes every workout, newest first, into one file.
func (s *Service) ExportAll(ctx context.Context) (string, error) {
	all, err := s.store.AllWithSamples(ctx)
	if err != nil {
		return "", fmt.Errorf("load workouts: %w", err)
	}
	if len(all) == 0 {
		return "", ErrNothingToExport
	}
	path := filepath.Join(s.exportDir, tcx.AllFileName)
	if err := s.write(path, all); err != nil {
		return "", err
	}
	return path, nil
}

// ExportIDs writes the given workouts, in argument order, to path.
func (s *Service) ExportIDs(ctx context.Context, ids []int64, path string) error {
	if len(ids) == 0 {
		return ErrNothingToExport
	}
	list := make([]workout.WithSamples, 0, len(ids))
	for _, id := range ids {
		ws, err := s.store.WorkoutWithSamples(ctx, id)
		if err != nil {
			return fmt.Errorf("load workout %d: %w", id, err)
		}
		list = append(list, ws)
	}
	return s.write(path, list)
}

func (s *Service) write(path string, list []workout.WithSamples) error {
	doc, err := tcx.Build(list)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Printf("History: exported %d workout(s) to %s", len(list), path)
	return nil
}
