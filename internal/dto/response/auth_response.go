package response

import (
	"time"

	"github.com/go-demo/meeting/internal/model"
)

// TokenResponse represents token response
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// UserResponse represents a user response
type UserResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
}

// NewUserResponse creates a user response from model
func NewUserResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:          user.ID,
		DisplayName: user.GetDisplayName(),
		CreatedAt:   user.CreatedAt.Format(time.RFC3339),
	}
}

// AuthResponse represents authentication response
type AuthResponse struct {
	User  *UserResponse  `json:"user"`
	Token *TokenResponse `json:"token"`
}
