package repository

import (
	"context"
	"fmt"

	"github.com/go-demo/meeting/internal/model"
	"github.com/jmoiron/sqlx"
)

// ParticipantRepository provides the filtered-fetch, batch-insert and
// batch-delete primitives membership reconciliation runs on. It binds
// to either a *sqlx.DB or, via WithTx, a *sqlx.Tx, so a reconciliation
// can run inside a single transaction.
type ParticipantRepository struct {
	db sqlx.ExtContext
}

func NewParticipantRepository(db *sqlx.DB) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

// WithTx returns a copy bound to the given transaction
func (r *ParticipantRepository) WithTx(tx *sqlx.Tx) *ParticipantRepository {
	return &ParticipantRepository{db: tx}
}

// ListByRoomID lists all participant rows for a room. An unknown room
// id yields an empty list, not an error.
func (r *ParticipantRepository) ListByRoomID(ctx context.Context, roomID int64) ([]*model.RoomParticipant, error) {
	query := `SELECT * FROM room_participants WHERE room_id = $1 ORDER BY id`

	var participants []*model.RoomParticipant
	if err := sqlx.SelectContext(ctx, r.db, &participants, query, roomID); err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}

	return participants, nil
}

// ListByUserID lists all participant rows for a user across rooms
func (r *ParticipantRepository) ListByUserID(ctx context.Context, userID string) ([]*model.RoomParticipant, error) {
	query := `SELECT * FROM room_participants WHERE user_id = $1 ORDER BY id`

	var participants []*model.RoomParticipant
	if err := sqlx.SelectContext(ctx, r.db, &participants, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list participants by user: %w", err)
	}

	return participants, nil
}

// BatchInsert inserts participant rows in one statement. An empty batch
// is a no-op.
func (r *ParticipantRepository) BatchInsert(ctx context.Context, participants []*model.RoomParticipant) error {
	if len(participants) == 0 {
		return nil
	}

	query := `INSERT INTO room_participants (room_id, user_id) VALUES (:room_id, :user_id)`

	if _, err := sqlx.NamedExecContext(ctx, r.db, query, participants); err != nil {
		return fmt.Errorf("failed to insert participants: %w", err)
	}

	return nil
}

// BatchDelete deletes participant rows by surrogate id. An empty batch
// is a no-op.
func (r *ParticipantRepository) BatchDelete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`DELETE FROM room_participants WHERE id IN (?)`, ids)
	if err != nil {
		return fmt.Errorf("failed to build delete query: %w", err)
	}
	query = r.db.Rebind(query)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to delete participants: %w", err)
	}

	return nil
}

// CountByRoomID counts participant rows for a room
func (r *ParticipantRepository) CountByRoomID(ctx context.Context, roomID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM room_participants WHERE room_id = $1`

	if err := sqlx.GetContext(ctx, r.db, &count, query, roomID); err != nil {
		return 0, fmt.Errorf("failed to count participants: %w", err)
	}

	return count, nil
}
