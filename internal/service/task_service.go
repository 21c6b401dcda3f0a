package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tasktracker/internal/cache"
	apperrors "tasktracker/internal/errors"
	"tasktracker/internal/model"
	"tasktracker/internal/repository"
)

const (
	allTasksCacheKey = "tasks:all"
	taskCacheTTL     = 5 * time.Minute
)

// TaskPatch carries the fields of a partial task update. Nil fields
// are left untouched.
type TaskPatch struct {
	Title       *string
	Description *string
	Status      *model.TaskStatus
}

// TaskService handles task CRUD with ownership enforcement.
type TaskService interface {
	Create(ctx context.Context, title, description string, ownerID uuid.UUID) (*model.Task, error)
	List(ctx context.Context, callerID uuid.UUID, callerRole model.Role) ([]model.Task, error)
	Update(ctx context.Context, id uuid.UUID, patch TaskPatch, callerID uuid.UUID, callerRole model.Role) (*model.Task, error)
	Delete(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole model.Role) (*model.Task, error)
}

type taskService struct {
	taskRepo repository.TaskRepository
	cache    *cache.Client
}

// NewTaskService creates a new task service.
func NewTaskService(taskRepo repository.TaskRepository, cache *cache.Client) TaskService {
	return &taskService{
		taskRepo: taskRepo,
		cache:    cache,
	}
}

func ownerTasksCacheKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("tasks:owner:%s", ownerID)
}

// Create persists a new task owned by the caller, status pending.
func (s *taskService) Create(ctx context.Context, title, description string, ownerID uuid.UUID) (*model.Task, error) {
	if title == "" || description == "" {
		return nil, apperrors.ErrInvalidInput
	}
	// Limits count characters, matching the validator's max tag.
	if utf8.RuneCountInString(title) > model.TaskTitleMaxLen || utf8.RuneCountInString(description) > model.TaskDescriptionMaxLen {
		return nil, apperrors.ErrInvalidInput
	}

	task := &model.Task{
		Title:       title,
		Description: description,
		Status:      model.TaskStatusPending,
		OwnerID:     ownerID,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.invalidateListCaches(ctx, ownerID)

	return task, nil
}

// List returns the caller's tasks, or every task (with owners) when
// the caller is an admin. Results are served through the cache.
func (s *taskService) List(ctx context.Context, callerID uuid.UUID, callerRole model.Role) ([]model.Task, error) {
	key := ownerTasksCacheKey(callerID)
	if callerRole == model.RoleAdmin {
		key = allTasksCacheKey
	}

	if data, _ := s.cache.Get(ctx, key); data != nil {
		var cached []model.Task
		if err := json.Unmarshal(data, &cached); err == nil {
			return cached, nil
		}
	}

	var tasks []model.Task
	var err error
	if callerRole == model.RoleAdmin {
		tasks, err = s.taskRepo.ListAll(ctx)
	} else {
		tasks, err = s.taskRepo.FindByOwner(ctx, callerID)
	}
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	if payload, err := json.Marshal(tasks); err == nil {
		_ = s.cache.Set(ctx, key, payload, taskCacheTTL)
	}

	return tasks, nil
}

// Update applies a partial patch to a task the caller owns or may
// administer. Only provided fields are merged; each is re-validated.
func (s *taskService) Update(ctx context.Context, id uuid.UUID, patch TaskPatch, callerID uuid.UUID, callerRole model.Role) (*model.Task, error) {
	task, err := s.findTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canModifyTask(task, callerID, callerRole) {
		return nil, apperrors.ErrForbidden
	}

	if patch.Title != nil {
		if *patch.Title == "" || utf8.RuneCountInString(*patch.Title) > model.TaskTitleMaxLen {
			return nil, apperrors.ErrInvalidInput
		}
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		if *patch.Description == "" || utf8.RuneCountInString(*patch.Description) > model.TaskDescriptionMaxLen {
			return nil, apperrors.ErrInvalidInput
		}
		task.Description = *patch.Description
	}
	if patch.Status != nil {
		if !patch.Status.Valid() {
			return nil, apperrors.ErrInvalidInput
		}
		task.Status = *patch.Status
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	s.invalidateListCaches(ctx, task.OwnerID)

	return task, nil
}

// Delete removes a task the caller owns or may administer and returns
// the removed record for confirmation.
func (s *taskService) Delete(ctx context.Context, id uuid.UUID, callerID uuid.UUID, callerRole model.Role) (*model.Task, error) {
	task, err := s.findTask(ctx, id)
	if err != nil {
		return nil, err
	}

	if !canModifyTask(task, callerID, callerRole) {
		return nil, apperrors.ErrForbidden
	}

	if err := s.taskRepo.Delete(ctx, task); err != nil {
		return nil, fmt.Errorf("delete task: %w", err)
	}

	s.invalidateListCaches(ctx, task.OwnerID)

	return task, nil
}

func (s *taskService) findTask(ctx context.Context, id uuid.UUID) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTaskNotFound
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	return task, nil
}

func (s *taskService) invalidateListCaches(ctx context.Context, ownerID uuid.UUID) {
	_ = s.cache.Delete(ctx, allTasksCacheKey)
	_ = s.cache.Delete(ctx, ownerTasksCacheKey(ownerID))
}
