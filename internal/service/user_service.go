package service

import (
	"context"
	"fmt"

	"cottage/internal/domain"
	"cottage/internal/models"

	"github.com/rs/zerolog"
)

// UserService is the read-only member directory used to pick issue assignees.
type UserService struct {
	repo   domain.UserRepository
	logger *zerolog.Logger
}

func NewUserService(repo domain.UserRepository, logger *zerolog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		logger: logger,
	}
}

func (s *UserService) List(ctx context.Context, actor models.Actor) ([]*models.User, error) {
	if err := RequireMember(actor); err != nil {
		return nil, err
	}

	users, err := s.repo.GetAllUsers(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list users")
		return nil, fmt.Errorf("list users: %w", err)
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}
