package model

// RoomParticipant is a row in the room_participants association table.
// The surrogate id is the deletion handle used by membership
// reconciliation; (room_id, user_id) carries no composite unique key.
type RoomParticipant struct {
	ID     int64  `db:"id" json:"id"`
	RoomID int64  `db:"room_id" json:"room_id"`
	UserID string `db:"user_id" json:"user_id"`
}
