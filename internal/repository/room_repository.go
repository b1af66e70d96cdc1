package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-demo/meeting/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

type RoomRepository struct {
	db *sqlx.DB
}

func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

// Create creates a new room
func (r *RoomRepository) Create(ctx context.Context, room *model.Room) error {
	query := `
		INSERT INTO rooms (code, admin, start_time, end_time)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowxContext(ctx, query,
		room.Code,
		room.Admin,
		room.StartTime,
		room.EndTime,
	).Scan(&room.ID, &room.CreatedAt, &room.UpdatedAt)
}

// GetByID retrieves a room by id
func (r *RoomRepository) GetByID(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	query := `SELECT * FROM rooms WHERE id = $1`

	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("failed to get room by id: %w", err)
	}

	return &room, nil
}

// GetByIDs retrieves rooms matching the given id list
func (r *RoomRepository) GetByIDs(ctx context.Context, ids []int64) ([]*model.Room, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM rooms WHERE id IN (?) ORDER BY start_time`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build room query: %w", err)
	}
	query = r.db.Rebind(query)

	var rooms []*model.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get rooms by ids: %w", err)
	}

	return rooms, nil
}

// CodeActive reports whether any room still active at the given instant
// holds the code. Expired rooms do not count; their codes are reusable.
func (r *RoomRepository) CodeActive(ctx context.Context, code string, now time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM rooms WHERE code = $1 AND end_time > $2)`

	if err := r.db.GetContext(ctx, &exists, query, code, now); err != nil {
		return false, fmt.Errorf("failed to check room code: %w", err)
	}

	return exists, nil
}

// Update updates the mutable room fields
func (r *RoomRepository) Update(ctx context.Context, room *model.Room) error {
	query := `
		UPDATE rooms
		SET start_time = $2, end_time = $3, admin = $4, is_canceled = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query,
		room.ID,
		room.StartTime,
		room.EndTime,
		room.Admin,
		room.IsCanceled,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRoomNotFound
	}

	return nil
}

// UpdateTx is Update executed on a caller-supplied transaction, so the
// room row and its participant reconciliation commit atomically.
func (r *RoomRepository) UpdateTx(ctx context.Context, tx *sqlx.Tx, room *model.Room) error {
	query := `
		UPDATE rooms
		SET start_time = $2, end_time = $3, admin = $4, is_canceled = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := tx.ExecContext(ctx, query,
		room.ID,
		room.StartTime,
		room.EndTime,
		room.Admin,
		room.IsCanceled,
	)
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRoomNotFound
	}

	return nil
}

// UpdateEgress stores the room's current egress id ("" when no
// recording is running)
func (r *RoomRepository) UpdateEgress(ctx context.Context, id int64, egressID string) error {
	query := `UPDATE rooms SET cur_egress_id = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, egressID)
	if err != nil {
		return fmt.Errorf("failed to update egress id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRoomNotFound
	}

	return nil
}

// FinishRecording clears the room's egress id and appends the uploaded
// recording files
func (r *RoomRepository) FinishRecording(ctx context.Context, id int64, files []string) error {
	query := `
		UPDATE rooms
		SET cur_egress_id = '', record_videos = record_videos || $2, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, pq.Array(files))
	if err != nil {
		return fmt.Errorf("failed to finish recording: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRoomNotFound
	}

	return nil
}

// Delete removes a room row. The public delete endpoint is disabled;
// this exists for the create flow's compensating cleanup only.
func (r *RoomRepository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM rooms WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrRoomNotFound
	}

	return nil
}
