package model

import (
	"time"

	"github.com/lib/pq"
)

// RoomCodeLength is the fixed width of a room code
const RoomCodeLength = 9

type Room struct {
	ID           int64          `db:"id" json:"id"`
	Code         string         `db:"code" json:"code"`
	Admin        string         `db:"admin" json:"admin"`
	StartTime    time.Time      `db:"start_time" json:"start_time"`
	EndTime      time.Time      `db:"end_time" json:"end_time"`
	IsCanceled   bool           `db:"is_canceled" json:"is_canceled"`
	CurEgressID  string         `db:"cur_egress_id" json:"cur_egress_id,omitempty"`
	RecordVideos pq.StringArray `db:"record_videos" json:"record_videos,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the room has not yet ended at the given time.
// Room codes are only unique among active rooms; expired rooms may have
// their code reused.
func (r *Room) IsActive(at time.Time) bool {
	return r.EndTime.After(at)
}

// IsAdministeredBy checks if the user is the room admin
func (r *Room) IsAdministeredBy(userID string) bool {
	return r.Admin == userID
}

// IsRecording checks if the room has a running egress
func (r *Room) IsRecording() bool {
	return r.CurEgressID != ""
}

// RoomWithParticipants includes the participant user id list
type RoomWithParticipants struct {
	Room
	UserIDs []string `json:"users_ids"`
}
