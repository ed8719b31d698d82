package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cottage/internal/auth"
	"cottage/internal/database"
	"cottage/internal/domain"
	"cottage/internal/models"

	"github.com/rs/zerolog"
)

type LoginResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// AuthService issues and resolves session tokens. The token is a signed JWT
// whose id must also be present in the session store, so logout revokes it.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionStore
	secret   []byte
	ttl      time.Duration
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewAuthService(users domain.UserRepository, sessions domain.SessionStore, secret string, ttl time.Duration, logger *zerolog.Logger) *AuthService {
	if ttl <= 0 {
		ttl = models.DefaultSessionTTL * time.Second
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		secret:   []byte(secret),
		ttl:      ttl,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.logger.Info().Str("email", email).Msg("login for unknown email")
			return nil, ErrInvalidCredentials
		}
		s.logger.Error().Err(err).Str("email", email).Msg("failed to load user")
		return nil, fmt.Errorf("load user: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		s.logger.Info().Int64("user_id", user.ID).Msg("login with wrong password")
		return nil, ErrInvalidCredentials
	}

	session := auth.NewSession(user, s.now(), s.ttl)
	if err := s.sessions.SaveSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("failed to save session")
		return nil, fmt.Errorf("save session: %w", err)
	}

	token, err := auth.GenerateToken(session, s.secret)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("user logged in")
	return &LoginResult{Token: token, ExpiresAt: session.ExpiresAt, User: user}, nil
}

// Resolve maps a token to the acting identity. Any problem with the token
// yields ErrUnauthenticated; the caller decides whether to fall back to anonymous.
func (s *AuthService) Resolve(ctx context.Context, token string) (models.Actor, error) {
	claims, err := auth.ParseToken(token, s.secret)
	if err != nil {
		return models.Anonymous(), ErrUnauthenticated
	}

	session, err := s.sessions.GetSession(ctx, claims.ID)
	if err != nil {
		return models.Anonymous(), fmt.Errorf("load session: %w", err)
	}
	userID, _ := claims.UserID()
	if session == nil || session.UserID != userID {
		return models.Anonymous(), ErrUnauthenticated
	}

	// role comes from the user row so demotions apply to live sessions
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Anonymous(), ErrUnauthenticated
		}
		return models.Anonymous(), fmt.Errorf("load user: %w", err)
	}

	return models.Actor{UserID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role}, nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	claims, err := auth.ParseToken(token, s.secret)
	if err != nil {
		// nothing to revoke
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, claims.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Me returns the stored user behind an actor.
func (s *AuthService) Me(ctx context.Context, actor models.Actor) (*models.User, error) {
	if err := RequireMember(actor); err != nil {
		return nil, err
	}
	user, err := s.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// AllowSubmission counts an anonymous booking submission for key.
func (s *AuthService) AllowSubmission(ctx context.Context, key string, limit int, window time.Duration) error {
	if limit <= 0 {
		return nil
	}
	ok, err := s.sessions.CheckRateLimit(ctx, "submit:"+key, limit, window)
	if err != nil {
		// a broken counter must not block the public form
		s.logger.Warn().Err(err).Str("key", key).Msg("rate limit check failed")
		return nil
	}
	if !ok {
		return ErrRateLimited
	}
	return nil
}
