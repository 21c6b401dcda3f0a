package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tasktracker/internal/cache"
	apperrors "tasktracker/internal/errors"
	"tasktracker/internal/model"
	"tasktracker/internal/repository"
)

const (
	userDirectoryCacheKey = "users:all"
	userDirectoryCacheTTL = 5 * time.Minute
)

// UserService handles the user directory and role management.
type UserService interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, newRole model.Role, callerID uuid.UUID, callerRole model.Role) (*model.User, error)
}

type userService struct {
	userRepo repository.UserRepository
	cache    *cache.Client
}

// NewUserService creates a new user service.
func NewUserService(userRepo repository.UserRepository, cache *cache.Client) UserService {
	return &userService{
		userRepo: userRepo,
		cache:    cache,
	}
}

// Get retrieves a user by ID.
func (s *userService) Get(ctx context.Context, id uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// List returns every registered user, served through the cache.
func (s *userService) List(ctx context.Context) ([]model.User, error) {
	if data, _ := s.cache.Get(ctx, userDirectoryCacheKey); data != nil {
		var cached []model.User
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	if payload, err := json.Marshal(users); err == nil {
		_ = s.cache.Set(ctx, userDirectoryCacheKey, payload, userDirectoryCacheTTL)
	}

	return users, nil
}

// UpdateRole sets the target's role after validating the role value and
// the self-demotion guard, then invalidates the directory cache.
func (s *userService) UpdateRole(ctx context.Context, id uuid.UUID, newRole model.Role, callerID uuid.UUID, callerRole model.Role) (*model.User, error) {
	if !newRole.Valid() {
		return nil, apperrors.ErrInvalidRole
	}

	target, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	if !canChangeRole(target, newRole, callerID, callerRole) {
		return nil, apperrors.ErrSelfDemotion
	}

	target.Role = newRole
	if err := s.userRepo.Update(ctx, target); err != nil {
		return nil, fmt.Errorf("update user role: %w", err)
	}

	_ = s.cache.Delete(ctx, userDirectoryCacheKey)

	return target, nil
}
