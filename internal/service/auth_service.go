package service

import (
	"context"
	"database/sql"

	"github.com/go-demo/meeting/internal/model"
	apperrors "github.com/go-demo/meeting/internal/pkg/errors"
	"github.com/go-demo/meeting/internal/pkg/utils"
	"github.com/go-demo/meeting/internal/repository"
	"go.uber.org/zap"
)

type AuthService struct {
	userRepo   *repository.UserRepository
	jwtManager *utils.JWTManager
	logger     *zap.Logger
}

func NewAuthService(userRepo *repository.UserRepository, jwtManager *utils.JWTManager, logger *zap.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtManager: jwtManager,
		logger:     logger,
	}
}

// RegisterInput represents registration input
type RegisterInput struct {
	UserID      string
	Password    string
	DisplayName string
}

// RegisterResult represents registration result
type RegisterResult struct {
	User      *model.User
	TokenPair *utils.TokenPair
}

// Register registers a new user
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*RegisterResult, error) {
	// Check if the account ID is taken
	exists, err := s.userRepo.ExistsByID(ctx, input.UserID)
	if err != nil {
		s.logger.Error("Failed to check user ID", zap.Error(err))
		return nil, apperrors.ErrInternal
	}
	if exists {
		return nil, apperrors.ErrUserIDExists
	}

	// Hash password
	passwordHash, err := utils.HashPassword(input.Password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	// Create user
	user := &model.User{
		ID:           input.UserID,
		PasswordHash: passwordHash,
		DisplayName:  sql.NullString{String: input.DisplayName, Valid: input.DisplayName != ""},
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if err == repository.ErrUserAlreadyExists {
			return nil, apperrors.ErrUserIDExists
		}
		s.logger.Error("Failed to create user", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	// Generate tokens
	tokenPair, err := s.jwtManager.GenerateTokenPair(user.ID)
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID))

	return &RegisterResult{
		User:      user,
		TokenPair: tokenPair,
	}, nil
}

// LoginInput represents login input
type LoginInput struct {
	UserID   string
	Password string
}

// LoginResult represents login result
type LoginResult struct {
	User      *model.User
	TokenPair *utils.TokenPair
}

// Login authenticates a user
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*LoginResult, error) {
	user, err := s.userRepo.GetByID(ctx, input.UserID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.ErrInvalidPassword
		}
		s.logger.Error("Failed to get user", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	// Check password
	if !utils.CheckPassword(input.Password, user.PasswordHash) {
		return nil, apperrors.ErrInvalidPassword
	}

	// Generate tokens
	tokenPair, err := s.jwtManager.GenerateTokenPair(user.ID)
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	s.logger.Info("User logged in", zap.String("user_id", user.ID))

	return &LoginResult{
		User:      user,
		TokenPair: tokenPair,
	}, nil
}

// RefreshToken refreshes an access token
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*utils.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		if err == utils.ErrExpiredToken {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	tokenPair, err := s.jwtManager.GenerateTokenPair(claims.UserID)
	if err != nil {
		s.logger.Error("Failed to generate token pair", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	return tokenPair, nil
}

// ValidateToken validates an access token and returns user info
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*model.User, error) {
	claims, err := s.jwtManager.ValidateAccessToken(token)
	if err != nil {
		if err == utils.ErrExpiredToken {
			return nil, apperrors.ErrTokenExpired
		}
		return nil, apperrors.ErrInvalidToken
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.ErrUserNotFound
		}
		s.logger.Error("Failed to get user", zap.Error(err))
		return nil, apperrors.ErrInternal
	}

	return user, nil
}

// GetUserByID retrieves a user by ID (for internal use)
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if err == repository.ErrUserNotFound {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// SetDisplayName sets a user's display name
func (s *AuthService) SetDisplayName(ctx context.Context, userID, displayName string) error {
	name := sql.NullString{String: displayName, Valid: displayName != ""}
	if err := s.userRepo.UpdateDisplayName(ctx, userID, name); err != nil {
		if err == repository.ErrUserNotFound {
			return apperrors.ErrUserNotFound
		}
		s.logger.Error("Failed to update display name", zap.Error(err))
		return apperrors.ErrInternal
	}
	return nil
}
