package response

import (
	"github.com/go-demo/meeting/internal/model"
)

// RoomResponse represents a room response. Times are Unix epoch
// seconds, matching the booking request format.
type RoomResponse struct {
	ID           int64    `json:"id"`
	Code         string   `json:"code"`
	Admin        string   `json:"admin"`
	StartTime    int64    `json:"start_time"`
	EndTime      int64    `json:"end_time"`
	IsCanceled   bool     `json:"is_canceled"`
	UsersIDs     []string `json:"users_ids"`
	RecordVideos []string `json:"record_videos,omitempty"`
}

// NewRoomResponse creates a room response from model
func NewRoomResponse(room *model.RoomWithParticipants) *RoomResponse {
	return &RoomResponse{
		ID:           room.ID,
		Code:         room.Code,
		Admin:        room.Admin,
		StartTime:    room.StartTime.Unix(),
		EndTime:      room.EndTime.Unix(),
		IsCanceled:   room.IsCanceled,
		UsersIDs:     room.UserIDs,
		RecordVideos: []string(room.RecordVideos),
	}
}

// RoomListResponse represents the caller's room list
type RoomListResponse struct {
	Rooms []*RoomResponse `json:"rooms"`
	Total int             `json:"total"`
}

// NewRoomListResponse creates a room list response
func NewRoomListResponse(rooms []*model.RoomWithParticipants) *RoomListResponse {
	roomResponses := make([]*RoomResponse, len(rooms))
	for i, room := range rooms {
		roomResponses[i] = NewRoomResponse(room)
	}

	return &RoomListResponse{
		Rooms: roomResponses,
		Total: len(roomResponses),
	}
}

// RoomTokenResponse carries an RTC join token
type RoomTokenResponse struct {
	Token string `json:"token"`
}

// RecordingResponse carries the egress id of a started recording
type RecordingResponse struct {
	EgressID string `json:"egress_id"`
}

// StopRecordingResponse lists the files a stopped recording uploaded
type StopRecordingResponse struct {
	Files []string `json:"files"`
}
