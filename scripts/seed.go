package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-demo/meeting/internal/config"
	"github.com/go-demo/meeting/internal/model"
	"github.com/go-demo/meeting/internal/pkg/database"
	"github.com/go-demo/meeting/internal/pkg/utils"
	"github.com/go-demo/meeting/internal/repository"
	"github.com/go-demo/meeting/internal/service"
	"go.uber.org/zap"
)

func main() {
	log.Println("Starting database seed...")

	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	logger := zap.NewNop()
	db, err := database.NewPostgres(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	participantRepo := repository.NewParticipantRepository(db)
	codeGen := service.NewCodeGenerator(roomRepo)

	// Seed users
	log.Println("Creating users...")
	users := []struct {
		id          string
		password    string
		displayName string
	}{
		{"alice", "Password123", "Alice Chen"},
		{"bob", "Password123", "Bob Wang"},
		{"charlie", "Password123", "Charlie Lin"},
		{"diana", "Password123", "Diana Wu"},
		{"evan", "Password123", "Evan Lee"},
	}

	var createdUsers []*model.User
	for _, u := range users {
		hash, _ := utils.HashPassword(u.password)
		user := &model.User{
			ID:           u.id,
			PasswordHash: hash,
			DisplayName:  sql.NullString{String: u.displayName, Valid: true},
		}

		if err := userRepo.Create(ctx, user); err != nil {
			log.Printf("User %s might already exist: %v", u.id, err)
			existing, _ := userRepo.GetByID(ctx, u.id)
			if existing != nil {
				createdUsers = append(createdUsers, existing)
			}
		} else {
			createdUsers = append(createdUsers, user)
			log.Printf("Created user: %s", u.id)
		}
	}

	if len(createdUsers) < 2 {
		log.Println("Not enough users, skipping room creation")
		return
	}

	// Seed rooms
	log.Println("Creating rooms...")
	now := time.Now().Truncate(time.Hour)
	rooms := []struct {
		adminIndex int
		start      time.Time
		end        time.Time
		attendees  []int
	}{
		{0, now.Add(2 * time.Hour), now.Add(3 * time.Hour), []int{0, 1, 2}},
		{1, now.Add(24 * time.Hour), now.Add(25 * time.Hour), []int{1, 3}},
		{2, now.Add(48 * time.Hour), now.Add(50 * time.Hour), []int{2, 0, 4}},
	}

	for _, r := range rooms {
		if r.adminIndex >= len(createdUsers) {
			continue
		}

		code, err := codeGen.Generate(ctx)
		if err != nil {
			log.Printf("Failed to generate room code: %v", err)
			continue
		}

		room := &model.Room{
			Code:      code,
			Admin:     createdUsers[r.adminIndex].ID,
			StartTime: r.start,
			EndTime:   r.end,
		}

		if err := roomRepo.Create(ctx, room); err != nil {
			log.Printf("Failed to create room: %v", err)
			continue
		}
		log.Printf("Created room %s (admin: %s)", room.Code, room.Admin)

		var participants []*model.RoomParticipant
		for _, idx := range r.attendees {
			if idx >= len(createdUsers) {
				continue
			}
			participants = append(participants, &model.RoomParticipant{
				RoomID: room.ID,
				UserID: createdUsers[idx].ID,
			})
		}
		if err := participantRepo.BatchInsert(ctx, participants); err != nil {
			log.Printf("Failed to add participants to room %s: %v", room.Code, err)
		} else {
			log.Printf("Added %d participants to room %s", len(participants), room.Code)
		}
	}

	log.Println("Seed completed successfully!")
	fmt.Println("\n--- Test Accounts ---")
	fmt.Println("All accounts have password: Password123")
	for _, u := range users {
		fmt.Printf("ID: %s, Display name: %s\n", u.id, u.displayName)
	}
}
