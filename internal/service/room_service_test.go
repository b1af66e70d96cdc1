package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/go-demo/meeting/internal/pkg/errors"
	"github.com/go-demo/meeting/internal/repository"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// fakeRTC stubs out the LiveKit deployment.
type fakeRTC struct {
	tokenCalls  []string // roomName per RoomJoinToken call
	startCalls  int
	stopCalls   int
	failStart   bool
	stoppedWith string
}

func (f *fakeRTC) RoomJoinToken(identity, roomName string) (string, error) {
	f.tokenCalls = append(f.tokenCalls, roomName)
	return "rtc-token-" + identity + "-" + roomName, nil
}

func (f *fakeRTC) StartRoomRecording(_ context.Context, roomName string) (string, error) {
	f.startCalls++
	if f.failStart {
		return "", errors.New("egress unavailable")
	}
	return "EG_" + roomName, nil
}

func (f *fakeRTC) StopRecording(_ context.Context, egressID string) ([]string, error) {
	f.stopCalls++
	f.stoppedWith = egressID
	return []string{"room/recording.mp4"}, nil
}

// memoryLocker is an in-process RoomLocker for tests.
type memoryLocker struct {
	held map[string]bool
}

func newMemoryLocker() *memoryLocker {
	return &memoryLocker{held: make(map[string]bool)}
}

func (l *memoryLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memoryLocker) Release(_ context.Context, key string) error {
	delete(l.held, key)
	return nil
}

func setupRoomService(t *testing.T) (*RoomService, *fakeRTC, *memoryLocker, *sqlx.DB, string) {
	t.Helper()

	db, prefix := repository.SetupIsolatedTestDB(t)

	roomRepo := repository.NewRoomRepository(db)
	userRepo := repository.NewUserRepository(db)
	participantRepo := repository.NewParticipantRepository(db)

	rtc := &fakeRTC{}
	locker := newMemoryLocker()

	svc := NewRoomService(
		db,
		roomRepo,
		userRepo,
		participantRepo,
		NewCodeGenerator(roomRepo),
		rtc,
		locker,
		zap.NewNop(),
	)

	return svc, rtc, locker, db, prefix
}

func createTestUsers(t *testing.T, db *sqlx.DB, prefix string, names ...string) []string {
	t.Helper()

	ids := make([]string, 0, len(names))
	for _, name := range names {
		user := repository.CreateIsolatedTestUser(t, db, prefix, name)
		ids = append(ids, user.ID)
	}
	return ids
}

func TestRoomService_Create(t *testing.T) {
	svc, _, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice", "bob")
	ctx := context.Background()

	room, err := svc.Create(ctx, &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   ids,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if room.ID == 0 {
		t.Error("Expected room id to be assigned")
	}
	if len(room.Code) != 9 {
		t.Errorf("Expected 9-digit room code, got %q", room.Code)
	}
	if room.Admin != ids[0] {
		t.Errorf("Expected admin %q, got %q", ids[0], room.Admin)
	}
	if len(room.UserIDs) != 2 {
		t.Errorf("Expected 2 participants, got %v", room.UserIDs)
	}
}

func TestRoomService_Create_NotEnoughAttendees(t *testing.T) {
	svc, _, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice")

	// 重複的 id 合併後仍只有一位與會者
	_, err := svc.Create(context.Background(), &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   []string{ids[0], ids[0]},
	})
	if !errors.Is(err, apperrors.ErrNotEnoughAttendees) {
		t.Fatalf("Expected ErrNotEnoughAttendees, got %v", err)
	}
}

func TestRoomService_Create_UnknownAttendee(t *testing.T) {
	svc, _, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice")

	_, err := svc.Create(context.Background(), &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   []string{ids[0], prefix + "_ghost"},
	})
	if !errors.Is(err, apperrors.ErrAttendeeNotExists) {
		t.Fatalf("Expected ErrAttendeeNotExists, got %v", err)
	}
}

func TestRoomService_ListByUser(t *testing.T) {
	svc, _, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice", "bob", "carol")
	ctx := context.Background()

	if _, err := svc.Create(ctx, &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   []string{ids[0], ids[1]},
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, &CreateRoomInput{
		AdminID:   ids[1],
		StartTime: time.Now().Add(3 * time.Hour),
		EndTime:   time.Now().Add(4 * time.Hour),
		UserIDs:   []string{ids[1], ids[2]},
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	rooms, err := svc.ListByUser(ctx, ids[1])
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(rooms) != 2 {
		t.Fatalf("Expected bob in 2 rooms, got %d", len(rooms))
	}

	rooms, err = svc.ListByUser(ctx, ids[2])
	if err != nil {
		t.Fatalf("ListByUser failed: %v", err)
	}
	if len(rooms) != 1 {
		t.Fatalf("Expected carol in 1 room, got %d", len(rooms))
	}
	if len(rooms[0].UserIDs) != 2 {
		t.Errorf("Expected participant list of 2, got %v", rooms[0].UserIDs)
	}
}

func TestRoomService_Update_PermissionDenied(t *testing.T) {
	svc, _, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice", "bob")
	ctx := context.Background()

	room, err := svc.Create(ctx, &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   ids,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	canceled := true
	_, err = svc.Update(ctx, &UpdateRoomInput{
		RoomID:      room.ID,
		RequesterID: ids[1],
		IsCanceled:  &canceled,
	})
	if !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}
}

func TestRoomService_Update_FieldsAndParticipants(t *testing.T) {
	svc, _, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice", "bob", "carol")
	ctx := context.Background()

	room, err := svc.Create(ctx, &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   []string{ids[0], ids[1]},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	newEnd := time.Now().Add(5 * time.Hour)
	canceled := true
	updated, err := svc.Update(ctx, &UpdateRoomInput{
		RoomID:      room.ID,
		RequesterID: ids[0],
		EndTime:     &newEnd,
		IsCanceled:  &canceled,
		UserIDs:     []string{ids[0], ids[2]},
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if !updated.IsCanceled {
		t.Error("Expected room to be canceled")
	}
	if len(updated.UserIDs) != 2 {
		t.Fatalf("Expected 2 participants after reconcile, got %v", updated.UserIDs)
	}
	for _, id := range updated.UserIDs {
		if id == ids[1] {
			t.Errorf("Expected %q to be removed, participants: %v", ids[1], updated.UserIDs)
		}
	}
}

func TestRoomService_Update_RoomBusy(t *testing.T) {
	svc, _, locker, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice", "bob")
	ctx := context.Background()

	room, err := svc.Create(ctx, &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   ids,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// 模擬另一個更新持有鎖
	locker.held[fmt.Sprintf("room:lock:%d", room.ID)] = true

	canceled := true
	_, err = svc.Update(ctx, &UpdateRoomInput{
		RoomID:      room.ID,
		RequesterID: ids[0],
		IsCanceled:  &canceled,
	})
	if !errors.Is(err, apperrors.ErrRoomBusy) {
		t.Fatalf("Expected ErrRoomBusy, got %v", err)
	}
}

func TestRoomService_GetRoomToken(t *testing.T) {
	svc, rtc, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice", "bob")
	ctx := context.Background()

	room, err := svc.Create(ctx, &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   ids,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	token, err := svc.GetRoomToken(ctx, ids[1], room.Code)
	if err != nil {
		t.Fatalf("GetRoomToken failed: %v", err)
	}
	if token == "" {
		t.Error("Expected non-empty token")
	}

	// Token is issued for the room id, not the code
	wantRoom := fmt.Sprintf("%d", room.ID)
	if len(rtc.tokenCalls) != 1 || rtc.tokenCalls[0] != wantRoom {
		t.Errorf("Expected token issued for room %q, got calls %v", wantRoom, rtc.tokenCalls)
	}
}

func TestRoomService_GetRoomToken_NotParticipant(t *testing.T) {
	svc, _, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice", "bob", "mallory")
	ctx := context.Background()

	room, err := svc.Create(ctx, &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   []string{ids[0], ids[1]},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err = svc.GetRoomToken(ctx, ids[2], room.Code)
	if !errors.Is(err, apperrors.ErrRoomNotFound) {
		t.Fatalf("Expected ErrRoomNotFound for non-participant, got %v", err)
	}
}

func TestRoomService_GetRoomToken_Canceled(t *testing.T) {
	svc, _, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice", "bob")
	ctx := context.Background()

	room, err := svc.Create(ctx, &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   ids,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	canceled := true
	if _, err := svc.Update(ctx, &UpdateRoomInput{
		RoomID:      room.ID,
		RequesterID: ids[0],
		IsCanceled:  &canceled,
	}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	_, err = svc.GetRoomToken(ctx, ids[1], room.Code)
	if !errors.Is(err, apperrors.ErrRoomCanceled) {
		t.Fatalf("Expected ErrRoomCanceled, got %v", err)
	}
}

func TestRoomService_Recording(t *testing.T) {
	svc, rtc, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	ids := createTestUsers(t, db, prefix, "alice", "bob")
	ctx := context.Background()

	room, err := svc.Create(ctx, &CreateRoomInput{
		AdminID:   ids[0],
		StartTime: time.Now().Add(time.Hour),
		EndTime:   time.Now().Add(2 * time.Hour),
		UserIDs:   ids,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Non-admins cannot record
	if _, err := svc.StartRecording(ctx, ids[1], room.ID); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("Expected ErrPermissionDenied, got %v", err)
	}

	// Stop without a running egress
	if _, err := svc.StopRecording(ctx, ids[0], room.ID); !errors.Is(err, apperrors.ErrNotRecording) {
		t.Fatalf("Expected ErrNotRecording, got %v", err)
	}

	egressID, err := svc.StartRecording(ctx, ids[0], room.ID)
	if err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if egressID == "" {
		t.Fatal("Expected non-empty egress id")
	}

	// Starting twice is a conflict
	if _, err := svc.StartRecording(ctx, ids[0], room.ID); !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("Expected ErrConflict on second start, got %v", err)
	}

	files, err := svc.StopRecording(ctx, ids[0], room.ID)
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("Expected 1 uploaded file, got %v", files)
	}
	if rtc.stoppedWith != egressID {
		t.Errorf("Expected stop for egress %q, got %q", egressID, rtc.stoppedWith)
	}

	stored, err := repository.NewRoomRepository(db).GetByID(ctx, room.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.IsRecording() {
		t.Error("Expected egress id to be cleared after stop")
	}
	if len(stored.RecordVideos) != 1 {
		t.Errorf("Expected 1 recorded video, got %v", stored.RecordVideos)
	}
}

func TestRoomService_DeleteDisabled(t *testing.T) {
	svc, _, _, db, prefix := setupRoomService(t)
	defer db.Close()
	defer repository.CleanupTestDataByPrefix(t, db, prefix)

	err := svc.Delete(context.Background(), "anyone", 1)
	if !errors.Is(err, apperrors.ErrRoomDeleteDisabled) {
		t.Fatalf("Expected ErrRoomDeleteDisabled, got %v", err)
	}
}
