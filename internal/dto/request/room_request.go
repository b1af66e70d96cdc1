package request

// CreateRoomRequest represents a room booking request. Times are Unix
// epoch seconds.
type CreateRoomRequest struct {
	StartTime int64    `json:"start_time" binding:"required"`
	EndTime   int64    `json:"end_time" binding:"required,gtfield=StartTime"`
	UsersIDs  []string `json:"users_ids" binding:"required,min=2"`
}

// UpdateRoomRequest represents a room update request. Absent fields are
// left unchanged; an absent users_ids keeps the participant set as is.
type UpdateRoomRequest struct {
	StartTime  *int64   `json:"start_time,omitempty"`
	EndTime    *int64   `json:"end_time,omitempty"`
	Admin      *string  `json:"admin,omitempty" binding:"omitempty,min=3,max=50"`
	IsCanceled *bool    `json:"is_canceled,omitempty"`
	UsersIDs   []string `json:"users_ids,omitempty" binding:"omitempty,min=2"`
}
