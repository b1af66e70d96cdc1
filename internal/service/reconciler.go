package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-demo/meeting/internal/model"
)

// ErrPartialConvergence is returned when the insert batch failed after
// deletions were already applied: the room now holds fewer participants
// than desired. The caller decides on compensating action; the
// reconciler never retries on its own.
var ErrPartialConvergence = errors.New("participant set partially converged")

// ParticipantStore is the store surface membership reconciliation needs:
// filtered fetch plus batch mutations. A tx-bound repository satisfies
// it, which is how callers make a reconciliation atomic.
type ParticipantStore interface {
	ListByRoomID(ctx context.Context, roomID int64) ([]*model.RoomParticipant, error)
	BatchDelete(ctx context.Context, ids []int64) error
	BatchInsert(ctx context.Context, participants []*model.RoomParticipant) error
}

// ReconcileResult reports the writes a reconciliation performed
type ReconcileResult struct {
	Removed int
	Added   int
}

// Reconciler converges a room's stored participant set to a desired
// user id set with minimal writes: rows whose user is not desired are
// deleted by surrogate id, desired users with no row are inserted, and
// nothing else is touched. Reconciling an already-converged room is a
// no-op.
type Reconciler struct {
	store ParticipantStore
}

func NewReconciler(store ParticipantStore) *Reconciler {
	return &Reconciler{store: store}
}

// Reconcile makes the participant rows of roomID equal desiredUserIDs
// as a set. The desired list is de-duplicated upfront, first occurrence
// wins. An unknown roomID simply finds zero current rows and inserts
// the whole desired set.
//
// Deletions run before insertions. If the deletion batch fails, the
// insertion batch is not attempted. If the insertion batch fails after
// deletions were applied, the error wraps ErrPartialConvergence.
func (r *Reconciler) Reconcile(ctx context.Context, roomID int64, desiredUserIDs []string) (*ReconcileResult, error) {
	desired := make(map[string]struct{}, len(desiredUserIDs))
	ordered := make([]string, 0, len(desiredUserIDs))
	for _, id := range desiredUserIDs {
		if _, ok := desired[id]; ok {
			continue
		}
		desired[id] = struct{}{}
		ordered = append(ordered, id)
	}

	current, err := r.store.ListByRoomID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to read current participants: %w", err)
	}

	currentUsers := make(map[string]struct{}, len(current))
	var toDelete []int64
	for _, p := range current {
		currentUsers[p.UserID] = struct{}{}
		if _, ok := desired[p.UserID]; !ok {
			toDelete = append(toDelete, p.ID)
		}
	}

	var toInsert []*model.RoomParticipant
	for _, id := range ordered {
		if _, ok := currentUsers[id]; !ok {
			toInsert = append(toInsert, &model.RoomParticipant{
				RoomID: roomID,
				UserID: id,
			})
		}
	}

	if err := r.store.BatchDelete(ctx, toDelete); err != nil {
		return nil, fmt.Errorf("failed to delete participants: %w", err)
	}

	if err := r.store.BatchInsert(ctx, toInsert); err != nil {
		if len(toDelete) > 0 {
			// 刪除已生效、新增失敗：會議剩下的與會者比預期少
			return nil, fmt.Errorf("failed to insert participants after %d deletions: %w: %w",
				len(toDelete), ErrPartialConvergence, err)
		}
		return nil, fmt.Errorf("failed to insert participants: %w", err)
	}

	return &ReconcileResult{
		Removed: len(toDelete),
		Added:   len(toInsert),
	}, nil
}
