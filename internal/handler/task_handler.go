package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"tasktracker/internal/auth"
	apperrors "tasktracker/internal/errors"
	"tasktracker/internal/model"
	"tasktracker/internal/service"
)

// TaskHandler handles task endpoints.
type TaskHandler struct {
	taskService service.TaskService
	userService service.UserService
}

// NewTaskHandler creates a new task handler.
func NewTaskHandler(taskService service.TaskService, userService service.UserService) *TaskHandler {
	return &TaskHandler{
		taskService: taskService,
		userService: userService,
	}
}

// CreateTaskRequest represents a task creation request.
type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required,max=20"`
	Description string `json:"description" validate:"required,max=200"`
}

// UpdateTaskRequest represents a partial task update. Absent fields
// are left untouched.
type UpdateTaskRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=20"`
	Description *string `json:"description" validate:"omitempty,max=200"`
	Status      *string `json:"status" validate:"omitempty,oneof=pending in-progress completed"`
}

// TaskOwner is the owner annotation on admin task listings.
type TaskOwner struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TaskResponse is the task projection returned to clients.
type TaskResponse struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      model.TaskStatus `json:"status"`
	OwnerID     uuid.UUID        `json:"owner_id"`
	Owner       *TaskOwner       `json:"owner,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func taskResponse(t *model.Task) TaskResponse {
	resp := TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		OwnerID:     t.OwnerID,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.Owner != nil {
		resp.Owner = &TaskOwner{Name: t.Owner.Name, Email: t.Owner.Email}
	}
	return resp
}

// Me godoc
// @Summary Greet the authenticated user
// @Tags tasks
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 401 {object} errors.ErrorResponse
// @Router /tasks/me [get]
func (h *TaskHandler) Me(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.ErrUnauthenticated
	}

	user, err := h.userService.Get(c.Request().Context(), caller.UserID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Hello %s, you have accessed a protected route!", user.Name),
	})
}

// Create godoc
// @Summary Create a task
// @Tags tasks
// @Accept json
// @Produce json
// @Param request body CreateTaskRequest true "Task data"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /tasks [post]
func (h *TaskHandler) Create(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.ErrUnauthenticated
	}

	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	task, err := h.taskService.Create(c.Request().Context(), req.Title, req.Description, caller.UserID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "task created successfully",
		"task":    taskResponse(task),
	})
}

// List godoc
// @Summary List tasks (own tasks; all tasks for admins)
// @Tags tasks
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Router /tasks [get]
func (h *TaskHandler) List(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.ErrUnauthenticated
	}

	tasks, err := h.taskService.List(c.Request().Context(), caller.UserID, caller.Role)
	if err != nil {
		return err
	}

	out := make([]TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, taskResponse(&tasks[i]))
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"tasks": out,
	})
}

// Update godoc
// @Summary Update a task (owner or admin)
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task ID"
// @Param request body UpdateTaskRequest true "Fields to update"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [put]
func (h *TaskHandler) Update(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.ErrUnauthenticated
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task ID")
	}

	var req UpdateTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	patch := service.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
	}
	if req.Status != nil {
		status := model.TaskStatus(*req.Status)
		patch.Status = &status
	}

	task, err := h.taskService.Update(c.Request().Context(), id, patch, caller.UserID, caller.Role)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "task updated successfully",
		"task":    taskResponse(task),
	})
}

// Delete godoc
// @Summary Delete a task (owner or admin)
// @Tags tasks
// @Produce json
// @Param id path string true "Task ID"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /tasks/{id} [delete]
func (h *TaskHandler) Delete(c echo.Context) error {
	caller, ok := auth.CallerFromContext(c)
	if !ok {
		return apperrors.ErrUnauthenticated
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid task ID")
	}

	task, err := h.taskService.Delete(c.Request().Context(), id, caller.UserID, caller.Role)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "task deleted successfully",
		"task":    taskResponse(task),
	})
}
