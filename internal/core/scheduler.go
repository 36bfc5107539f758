package core

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CreateRotation validates and stores a rotation
func (s *Service) CreateRotation(r *Rotation) (*Rotation, error) {
	if err := ValidateRotation(r); err != nil {
		return nil, err
	}
	return s.store.CreateRotation(r)
}

// GetRotationByID retrieves a rotation by ID
func (s *Service) GetRotationByID(id int64) (*Rotation, error) {
	return s.store.GetRotationByID(id)
}

// RunRotation executes one scheduler run for a rotation. Runs for the same
// rotation serialize on a per-rotation lock, and the cursor write carries
// the version read at planning time, so a concurrent run from another
// replica fails with ErrVersionConflict instead of double-assigning.
//
// Returns nil when the run was an idempotent no-op.
func (s *Service) RunRotation(rotationID int64, now time.Time) (*RotationPlan, error) {
	lock := s.rotationLocks.get(rotationID)
	lock.Lock()
	defer lock.Unlock()

	rot, err := s.store.GetRotationByID(rotationID)
	if err != nil {
		return nil, err
	}
	plan, err := PlanRotation(rot, now)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, nil
	}
	if err := s.store.ApplyRotationPlan(plan, rot.Version); err != nil {
		return nil, fmt.Errorf("failed to apply rotation plan: %w", err)
	}
	return plan, nil
}

// RunActiveRotations runs every active rotation once and returns how many
// produced assignments. Individual failures are logged and skipped so one
// bad rotation cannot stall the rest.
func (s *Service) RunActiveRotations(now time.Time) (int, error) {
	rotations, err := s.store.ListActiveRotations()
	if err != nil {
		return 0, err
	}
	ran := 0
	for _, rot := range rotations {
		plan, err := s.RunRotation(rot.ID, now)
		if err != nil {
			log.Printf("rotation %d failed: %v", rot.ID, err)
			continue
		}
		if plan != nil {
			ran++
		}
	}
	return ran, nil
}

// StartRotationWorker runs active rotations on a fixed interval until the
// context is cancelled.
func (s *Service) StartRotationWorker(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log.Println("[RotationWorker] starting...")
	for {
		select {
		case <-ctx.Done():
			log.Println("[RotationWorker] shutdown signal received, stopping...")
			return
		case <-ticker.C:
			if ran, err := s.RunActiveRotations(time.Now()); err != nil {
				log.Printf("[RotationWorker] error running rotations: %v", err)
			} else if ran > 0 {
				log.Printf("[RotationWorker] %d rotation(s) assigned", ran)
			}
		}
	}
}
