package service

import (
	"context"
	"strconv"
	"time"

	"github.com/go-demo/meeting/internal/model"
	"github.com/go-demo/meeting/internal/pkg/cache"
	apperrors "github.com/go-demo/meeting/internal/pkg/errors"
	"github.com/go-demo/meeting/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// updateLockTTL bounds how long a crashed instance can hold a room lock
const updateLockTTL = 10 * time.Second

// RTCProvider issues room join tokens and drives recording egress.
type RTCProvider interface {
	RoomJoinToken(identity, roomName string) (string, error)
	StartRoomRecording(ctx context.Context, roomName string) (string, error)
	StopRecording(ctx context.Context, egressID string) ([]string, error)
}

// RoomLocker serializes room updates across service instances.
type RoomLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RoomService struct {
	db              *sqlx.DB
	roomRepo        *repository.RoomRepository
	userRepo        *repository.UserRepository
	participantRepo *repository.ParticipantRepository
	codeGen         *CodeGenerator
	rtc             RTCProvider
	locker          RoomLocker
	logger          *zap.Logger
}

func NewRoomService(
	db *sqlx.DB,
	roomRepo *repository.RoomRepository,
	userRepo *repository.UserRepository,
	participantRepo *repository.ParticipantRepository,
	codeGen *CodeGenerator,
	rtc RTCProvider,
	locker RoomLocker,
	logger *zap.Logger,
) *RoomService {
	return &RoomService{
		db:              db,
		roomRepo:        roomRepo,
		userRepo:        userRepo,
		participantRepo: participantRepo,
		codeGen:         codeGen,
		rtc:             rtc,
		locker:          locker,
		logger:          logger,
	}
}

// CreateRoomInput represents room creation input
type CreateRoomInput struct {
	AdminID   string
	StartTime time.Time
	EndTime   time.Time
	UserIDs   []string
}

// Create books a new room: it validates the attendee list, assigns a
// free room code and inserts the room with its participants.
func (s *RoomService) Create(ctx context.Context, input *CreateRoomInput) (*model.RoomWithParticipants, error) {
	userIDs := dedupeUserIDs(input.UserIDs)
	if len(userIDs) < 2 {
		return nil, apperrors.ErrNotEnoughAttendees
	}

	// Every attendee must be a registered user
	missing, err := s.findMissingUsers(ctx, userIDs)
	if err != nil {
		s.logger.Error("Failed to look up attendees", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	if len(missing) > 0 {
		return nil, apperrors.ErrAttendeeNotExists.WithDetails(map[string][]string{
			"missing": missing,
		})
	}

	code, err := s.codeGen.Generate(ctx)
	if err != nil {
		s.logger.Error("Failed to generate room code", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	room := &model.Room{
		Code:      code,
		Admin:     input.AdminID,
		StartTime: input.StartTime,
		EndTime:   input.EndTime,
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		s.logger.Error("Failed to create room", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	participants := make([]*model.RoomParticipant, 0, len(userIDs))
	for _, userID := range userIDs {
		participants = append(participants, &model.RoomParticipant{
			RoomID: room.ID,
			UserID: userID,
		})
	}

	if err := s.participantRepo.BatchInsert(ctx, participants); err != nil {
		s.logger.Error("Failed to insert participants", zap.Error(err))
		// 補償：避免留下沒有與會者的會議
		if delErr := s.roomRepo.Delete(ctx, room.ID); delErr != nil {
			s.logger.Error("Failed to clean up room after participant insert failure",
				zap.Int64("room_id", room.ID),
				zap.Error(delErr),
			)
		}
		return nil, apperrors.ErrInternal
	}

	s.logger.Info("Room created",
		zap.Int64("room_id", room.ID),
		zap.String("code", room.Code),
		zap.String("admin", room.Admin),
		zap.Int("participants", len(participants)),
	)

	return &model.RoomWithParticipants{Room: *room, UserIDs: userIDs}, nil
}

// ListByUser returns every room the user participates in, each with its
// full participant id list.
func (s *RoomService) ListByUser(ctx context.Context, userID string) ([]*model.RoomWithParticipants, error) {
	memberships, err := s.participantRepo.ListByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list memberships", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	roomIDs := make([]int64, 0, len(memberships))
	for _, m := range memberships {
		roomIDs = append(roomIDs, m.RoomID)
	}

	rooms, err := s.roomRepo.GetByIDs(ctx, roomIDs)
	if err != nil {
		s.logger.Error("Failed to get rooms", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	result := make([]*model.RoomWithParticipants, 0, len(rooms))
	for _, room := range rooms {
		participants, err := s.participantRepo.ListByRoomID(ctx, room.ID)
		if err != nil {
			s.logger.Error("Failed to list participants",
				zap.Int64("room_id", room.ID),
				zap.Error(err),
			)
			return nil, apperrors.ErrInternal
		}

		userIDs := make([]string, 0, len(participants))
		for _, p := range participants {
			userIDs = append(userIDs, p.UserID)
		}

		result = append(result, &model.RoomWithParticipants{Room: *room, UserIDs: userIDs})
	}

	return result, nil
}

// UpdateRoomInput represents room update input. Nil fields are left
// unchanged; a nil UserIDs skips participant reconciliation entirely.
type UpdateRoomInput struct {
	RoomID      int64
	RequesterID string
	StartTime   *time.Time
	EndTime     *time.Time
	Admin       *string
	IsCanceled  *bool
	UserIDs     []string
}

// Update applies the requested field changes and reconciles the
// participant set. Only the room admin may update a room. The room row
// and the participant changes commit in one transaction, guarded by a
// per-room lock so concurrent updates do not interleave.
func (s *RoomService) Update(ctx context.Context, input *UpdateRoomInput) (*model.RoomWithParticipants, error) {
	room, err := s.roomRepo.GetByID(ctx, input.RoomID)
	if err != nil {
		if err == repository.ErrRoomNotFound {
			return nil, apperrors.ErrRoomNotFound
		}
		s.logger.Error("Failed to get room", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	if !room.IsAdministeredBy(input.RequesterID) {
		return nil, apperrors.ErrPermissionDenied
	}

	var desiredUserIDs []string
	if input.UserIDs != nil {
		desiredUserIDs = dedupeUserIDs(input.UserIDs)
		if len(desiredUserIDs) < 2 {
			return nil, apperrors.ErrNotEnoughAttendees
		}

		missing, err := s.findMissingUsers(ctx, desiredUserIDs)
		if err != nil {
			s.logger.Error("Failed to look up attendees", zap.Error(err))
			return nil, apperrors.ErrInternal
		}
		if len(missing) > 0 {
			return nil, apperrors.ErrAttendeeNotExists.WithDetails(map[string][]string{
				"missing": missing,
			})
		}
	}

	if input.Admin != nil {
		exists, err := s.userRepo.ExistsByID(ctx, *input.Admin)
		if err != nil {
			s.logger.Error("Failed to check new admin", zap.Error(err))
			return nil, apperrors.ErrInternal
		}
		if !exists {
			return nil, apperrors.ErrUserNotFound
		}
	}

	lockKey := cache.RoomLockKey(input.RoomID)
	acquired, err := s.locker.Acquire(ctx, lockKey, updateLockTTL)
	if err != nil {
		s.logger.Error("Failed to acquire room lock", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	if !acquired {
		return nil, apperrors.ErrRoomBusy
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			s.logger.Warn("Failed to release room lock", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	if input.StartTime != nil {
		room.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		room.EndTime = *input.EndTime
	}
	if input.Admin != nil {
		room.Admin = *input.Admin
	}
	if input.IsCanceled != nil {
		room.IsCanceled = *input.IsCanceled
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.Error("Failed to begin transaction", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	defer tx.Rollback()

	if input.UserIDs != nil {
		reconciler := NewReconciler(s.participantRepo.WithTx(tx))
		result, err := reconciler.Reconcile(ctx, room.ID, desiredUserIDs)
		if err != nil {
			s.logger.Error("Failed to reconcile participants",
				zap.Int64("room_id", room.ID),
				zap.Error(err),
			)
			return nil, apperrors.ErrInternal
		}
		s.logger.Info("Participants reconciled",
			zap.Int64("room_id", room.ID),
			zap.Int("removed", result.Removed),
			zap.Int("added", result.Added),
		)
	}

	if err := s.roomRepo.UpdateTx(ctx, tx, room); err != nil {
		if err == repository.ErrRoomNotFound {
			return nil, apperrors.ErrRoomNotFound
		}
		s.logger.Error("Failed to update room", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit room update", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	participants, err := s.participantRepo.ListByRoomID(ctx, room.ID)
	if err != nil {
		s.logger.Error("Failed to list participants", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	userIDs := make([]string, 0, len(participants))
	for _, p := range participants {
		userIDs = append(userIDs, p.UserID)
	}

	return &model.RoomWithParticipants{Room: *room, UserIDs: userIDs}, nil
}

// GetRoomToken issues an RTC join token for the room holding the given
// code. The caller must be a participant and the room must not be
// canceled.
func (s *RoomService) GetRoomToken(ctx context.Context, userID, code string) (string, error) {
	memberships, err := s.participantRepo.ListByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("Failed to list memberships", zap.Error(err))
		return "", apperrors.ErrInternal
	}

	roomIDs := make([]int64, 0, len(memberships))
	for _, m := range memberships {
		roomIDs = append(roomIDs, m.RoomID)
	}

	rooms, err := s.roomRepo.GetByIDs(ctx, roomIDs)
	if err != nil {
		s.logger.Error("Failed to get rooms", zap.Error(err))
		return "", apperrors.ErrInternal
	}

	var room *model.Room
	for _, candidate := range rooms {
		if candidate.Code == code {
			room = candidate
			break
		}
	}
	if room == nil {
		return "", apperrors.ErrRoomNotFound
	}
	if room.IsCanceled {
		return "", apperrors.ErrRoomCanceled
	}

	token, err := s.rtc.RoomJoinToken(userID, strconv.FormatInt(room.ID, 10))
	if err != nil {
		s.logger.Error("Failed to issue room token",
			zap.Int64("room_id", room.ID),
			zap.Error(err),
		)
		return "", apperrors.ErrTokenIssuance
	}

	return token, nil
}

// StartRecording starts a recording egress for the room. Admin only.
func (s *RoomService) StartRecording(ctx context.Context, userID string, roomID int64) (string, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		if err == repository.ErrRoomNotFound {
			return "", apperrors.ErrRoomNotFound
		}
		s.logger.Error("Failed to get room", zap.Error(err))
		return "", apperrors.ErrInternal
	}

	if !room.IsAdministeredBy(userID) {
		return "", apperrors.ErrPermissionDenied
	}
	if room.IsCanceled {
		return "", apperrors.ErrRoomCanceled
	}
	if room.IsRecording() {
		return "", apperrors.ErrConflict
	}

	egressID, err := s.rtc.StartRoomRecording(ctx, strconv.FormatInt(room.ID, 10))
	if err != nil {
		s.logger.Error("Failed to start recording",
			zap.Int64("room_id", room.ID),
			zap.Error(err),
		)
		return "", apperrors.ErrEgressFailed
	}

	if err := s.roomRepo.UpdateEgress(ctx, room.ID, egressID); err != nil {
		s.logger.Error("Failed to store egress id",
			zap.Int64("room_id", room.ID),
			zap.String("egress_id", egressID),
			zap.Error(err),
		)
		return "", apperrors.ErrInternal
	}

	return egressID, nil
}

// StopRecording stops the room's running egress and records the
// uploaded files. Admin only.
func (s *RoomService) StopRecording(ctx context.Context, userID string, roomID int64) ([]string, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		if err == repository.ErrRoomNotFound {
			return nil, apperrors.ErrRoomNotFound
		}
		s.logger.Error("Failed to get room", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	if !room.IsAdministeredBy(userID) {
		return nil, apperrors.ErrPermissionDenied
	}
	if !room.IsRecording() {
		return nil, apperrors.ErrNotRecording
	}

	files, err := s.rtc.StopRecording(ctx, room.CurEgressID)
	if err != nil {
		s.logger.Error("Failed to stop recording",
			zap.Int64("room_id", room.ID),
			zap.String("egress_id", room.CurEgressID),
			zap.Error(err),
		)
		return nil, apperrors.ErrEgressFailed
	}

	if err := s.roomRepo.FinishRecording(ctx, room.ID, files); err != nil {
		s.logger.Error("Failed to record uploaded files",
			zap.Int64("room_id", room.ID),
			zap.Error(err),
		)
		return nil, apperrors.ErrInternal
	}

	return files, nil
}

// Delete is intentionally disabled. Rooms expire on their own once
// end_time passes, and history stays queryable.
func (s *RoomService) Delete(ctx context.Context, userID string, roomID int64) error {
	return apperrors.ErrRoomDeleteDisabled
}

// findMissingUsers returns the ids in userIDs with no matching user row
func (s *RoomService) findMissingUsers(ctx context.Context, userIDs []string) ([]string, error) {
	users, err := s.userRepo.GetByIDs(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	found := make(map[string]struct{}, len(users))
	for _, u := range users {
		found[u.ID] = struct{}{}
	}

	var missing []string
	for _, id := range userIDs {
		if _, ok := found[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// dedupeUserIDs drops repeated ids, keeping first occurrence order
func dedupeUserIDs(userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	out := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
