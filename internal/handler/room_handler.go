package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-demo/meeting/internal/dto/request"
	"github.com/go-demo/meeting/internal/dto/response"
	"github.com/go-demo/meeting/internal/middleware"
	"github.com/go-demo/meeting/internal/pkg/utils"
	"github.com/go-demo/meeting/internal/service"
)

type RoomHandler struct {
	roomService *service.RoomService
}

func NewRoomHandler(roomService *service.RoomService) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
	}
}

// CreateRoom godoc
// @Summary 預約會議
// @Description 建立新會議並分配會議代碼
// @Tags 會議
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body request.CreateRoomRequest true "會議資料"
// @Success 201 {object} response.Response{data=response.RoomResponse}
// @Failure 400 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/rooms [post]
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req request.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "請求格式錯誤")
		return
	}

	// Validate input
	v := utils.NewValidator()
	v.ValidateTimeRange("end_time", req.StartTime, req.EndTime)
	for _, id := range req.UsersIDs {
		if !v.ValidateUserID("users_ids", id) {
			break
		}
	}

	if v.HasErrors() {
		response.ValidationError(c, v.Errors())
		return
	}

	room, err := h.roomService.Create(c.Request.Context(), &service.CreateRoomInput{
		AdminID:   middleware.GetUserID(c),
		StartTime: time.Unix(req.StartTime, 0),
		EndTime:   time.Unix(req.EndTime, 0),
		UserIDs:   req.UsersIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, response.NewRoomResponse(room))
}

// ListRooms godoc
// @Summary 查詢我的會議
// @Description 列出當前用戶參與的所有會議
// @Tags 會議
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=response.RoomListResponse}
// @Failure 401 {object} response.Response
// @Router /api/v1/rooms [get]
func (h *RoomHandler) ListRooms(c *gin.Context) {
	rooms, err := h.roomService.ListByUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomListResponse(rooms))
}

// UpdateRoom godoc
// @Summary 更新會議
// @Description 更新會議資料並調整與會者名單，僅管理員可操作
// @Tags 會議
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "會議 ID"
// @Param request body request.UpdateRoomRequest true "更新資料"
// @Success 200 {object} response.Response{data=response.RoomResponse}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/rooms/{id} [put]
func (h *RoomHandler) UpdateRoom(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "無效的會議 ID")
		return
	}

	var req request.UpdateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "請求格式錯誤")
		return
	}

	if req.StartTime != nil && req.EndTime != nil {
		v := utils.NewValidator()
		if !v.ValidateTimeRange("end_time", *req.StartTime, *req.EndTime) {
			response.ValidationError(c, v.Errors())
			return
		}
	}

	input := &service.UpdateRoomInput{
		RoomID:      roomID,
		RequesterID: middleware.GetUserID(c),
		Admin:       req.Admin,
		IsCanceled:  req.IsCanceled,
		UserIDs:     req.UsersIDs,
	}
	if req.StartTime != nil {
		start := time.Unix(*req.StartTime, 0)
		input.StartTime = &start
	}
	if req.EndTime != nil {
		end := time.Unix(*req.EndTime, 0)
		input.EndTime = &end
	}

	room, err := h.roomService.Update(c.Request.Context(), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, response.NewRoomResponse(room))
}

// DeleteRoom godoc
// @Summary 刪除會議
// @Description 會議刪除功能已停用，一律回傳 410
// @Tags 會議
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "會議 ID"
// @Failure 410 {object} response.Response
// @Router /api/v1/rooms/{id} [delete]
func (h *RoomHandler) DeleteRoom(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "無效的會議 ID")
		return
	}

	if err := h.roomService.Delete(c.Request.Context(), middleware.GetUserID(c), roomID); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// GetRoomToken godoc
// @Summary 取得會議 Token
// @Description 以會議代碼換取 RTC 加入 Token，僅與會者可取得
// @Tags 會議
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param code path string true "會議代碼"
// @Success 200 {object} response.Response{data=response.RoomTokenResponse}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/rooms/token/{code} [get]
func (h *RoomHandler) GetRoomToken(c *gin.Context) {
	code := c.Param("code")
	if !utils.ValidateRoomCode(code) {
		response.BadRequest(c, "無效的會議代碼")
		return
	}

	token, err := h.roomService.GetRoomToken(c.Request.Context(), middleware.GetUserID(c), code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &response.RoomTokenResponse{Token: token})
}

// StartRecording godoc
// @Summary 開始錄製
// @Description 開始會議錄製，僅管理員可操作
// @Tags 會議
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "會議 ID"
// @Success 200 {object} response.Response{data=response.RecordingResponse}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/rooms/{id}/record [post]
func (h *RoomHandler) StartRecording(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "無效的會議 ID")
		return
	}

	egressID, err := h.roomService.StartRecording(c.Request.Context(), middleware.GetUserID(c), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &response.RecordingResponse{EgressID: egressID})
}

// StopRecording godoc
// @Summary 停止錄製
// @Description 停止會議錄製並回傳錄影檔案清單，僅管理員可操作
// @Tags 會議
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "會議 ID"
// @Success 200 {object} response.Response{data=response.StopRecordingResponse}
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /api/v1/rooms/{id}/record/stop [post]
func (h *RoomHandler) StopRecording(c *gin.Context) {
	roomID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "無效的會議 ID")
		return
	}

	files, err := h.roomService.StopRecording(c.Request.Context(), middleware.GetUserID(c), roomID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, &response.StopRecordingResponse{Files: files})
}
