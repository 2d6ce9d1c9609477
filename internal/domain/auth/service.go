package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/convo/convo-api/internal/domain/user"
	"github.com/convo/convo-api/internal/pkg/jwt"
	"github.com/convo/convo-api/internal/pkg/password"
)

const revokedKeyPrefix = "auth:revoked:"

// Service handles authentication business logic
type Service struct {
	users user.Repository
	jwt   *jwt.Service
	redis *redis.Client
}

// NewService creates auth service; redis may be nil, disabling revocation
func NewService(users user.Repository, jwtService *jwt.Service, redisClient *redis.Client) *Service {
	return &Service{users: users, jwt: jwtService, redis: redisClient}
}

// Register creates an account and issues tokens
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	u := &user.User{
		ID:          uuid.New(),
		Username:    strings.ToLower(req.Username),
		Email:       strings.ToLower(req.Email),
		DisplayName: sql.NullString{String: req.Username, Valid: true},
		CreatedAt:   time.Now(),
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash

	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	tokens, err := s.issueTokens(u.ID)
	if err != nil {
		return nil, err
	}

	log.Info().Str("user_id", u.ID.String()).Msg("User registered")
	return &AuthResponse{User: u, Tokens: tokens}, nil
}

// Login verifies credentials and issues tokens
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	u, err := s.users.GetByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		return nil, err
	}
	if u == nil || !password.Verify(req.Password, u.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.UpdateLastLogin(ctx, u.ID); err != nil {
		log.Warn().Err(err).Str("user_id", u.ID.String()).Msg("Failed to record login")
	}

	tokens, err := s.issueTokens(u.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{User: u, Tokens: tokens}, nil
}

// Refresh rotates a refresh token, revoking the old one
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	revoked, err := s.isRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	if err := s.revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		return nil, err
	}
	return s.issueTokens(claims.UserID)
}

// Logout revokes the presented refresh token
func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return ErrInvalidToken
	}
	return s.revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (s *Service) issueTokens(userID uuid.UUID) (*TokenPair, error) {
	access, err := s.jwt.GenerateAccessToken(userID)
	if err != nil {
		return nil, err
	}
	refresh, _, _, err := s.jwt.GenerateRefreshToken(userID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.jwt.GetAccessTTL().Seconds()),
	}, nil
}

func (s *Service) isRevoked(ctx context.Context, jti string) (bool, error) {
	if s.redis == nil {
		return false, nil
	}
	n, err := s.redis.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Service) revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if s.redis == nil || ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err()
}
