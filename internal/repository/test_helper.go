package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-demo/meeting/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// 全域計數器確保唯一性
var testCounter int64

// GenerateUniquePrefix 生成唯一的測試前綴
// 使用 UUID 確保並行測試不會衝突
func GenerateUniquePrefix() string {
	count := atomic.AddInt64(&testCounter, 1)
	return uuid.New().String()[:8] + "_" + time.Now().Format("150405") + "_" + string(rune(count%26+'a'))
}

// SetupIsolatedTestDB 建立隔離的測試資料庫連線
// 每個測試使用唯一前綴，避免並行測試衝突
func SetupIsolatedTestDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()

	dsn := "host=localhost port=5432 user=postgres password=postgres dbname=meeting_test sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Skipf("Skipping test, could not connect to test database: %v", err)
	}

	// 生成此測試的唯一前綴
	prefix := GenerateUniquePrefix()

	return db, prefix
}

// CleanupTestDataByPrefix 清理特定前綴的測試資料
// 只清理本測試建立的資料，不影響其他測試
func CleanupTestDataByPrefix(t *testing.T, db *sqlx.DB, prefix string) {
	t.Helper()

	ctx := context.Background()

	// 按照外鍵依賴順序刪除
	_, _ = db.ExecContext(ctx, "DELETE FROM room_participants WHERE user_id IN (SELECT id FROM users WHERE id LIKE $1)", prefix+"%")
	_, _ = db.ExecContext(ctx, "DELETE FROM room_participants WHERE room_id IN (SELECT id FROM rooms WHERE admin LIKE $1)", prefix+"%")
	_, _ = db.ExecContext(ctx, "DELETE FROM rooms WHERE admin IN (SELECT id FROM users WHERE id LIKE $1)", prefix+"%")
	_, _ = db.ExecContext(ctx, "DELETE FROM users WHERE id LIKE $1", prefix+"%")
}

// CreateIsolatedTestUser 建立隔離的測試用戶
func CreateIsolatedTestUser(t *testing.T, db *sqlx.DB, prefix, name string) *model.User {
	t.Helper()

	userRepo := NewUserRepository(db)
	user := &model.User{
		ID:           prefix + "_" + name,
		PasswordHash: "hashedpassword",
	}

	if err := userRepo.Create(context.Background(), user); err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	return user
}

// CreateIsolatedTestRoom 建立隔離的測試會議
func CreateIsolatedTestRoom(t *testing.T, db *sqlx.DB, admin string, start, end time.Time) *model.Room {
	t.Helper()

	roomRepo := NewRoomRepository(db)
	room := &model.Room{
		Code:      "000000000",
		Admin:     admin,
		StartTime: start,
		EndTime:   end,
	}

	if err := roomRepo.Create(context.Background(), room); err != nil {
		t.Fatalf("Failed to create test room: %v", err)
	}

	return room
}
