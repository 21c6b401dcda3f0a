package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"tasktracker/internal/model"
)

func TestCanModifyTask(t *testing.T) {
	ownerID := uuid.New()
	strangerID := uuid.New()
	task := &model.Task{ID: uuid.New(), OwnerID: ownerID}

	tests := []struct {
		name       string
		callerID   uuid.UUID
		callerRole model.Role
		want       bool
	}{
		{"owner", ownerID, model.RoleUser, true},
		{"stranger", strangerID, model.RoleUser, false},
		{"admin stranger", strangerID, model.RoleAdmin, true},
		{"admin owner", ownerID, model.RoleAdmin, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canModifyTask(task, tt.callerID, tt.callerRole))
		})
	}
}

func TestCanChangeRole(t *testing.T) {
	selfID := uuid.New()
	otherID := uuid.New()

	tests := []struct {
		name     string
		target   *model.User
		newRole  model.Role
		callerID uuid.UUID
		want     bool
	}{
		{"demote other admin", &model.User{ID: otherID, Role: model.RoleAdmin}, model.RoleUser, selfID, true},
		{"promote other user", &model.User{ID: otherID, Role: model.RoleUser}, model.RoleAdmin, selfID, true},
		{"demote self", &model.User{ID: selfID, Role: model.RoleAdmin}, model.RoleUser, selfID, false},
		{"reassert own admin role", &model.User{ID: selfID, Role: model.RoleAdmin}, model.RoleAdmin, selfID, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, canChangeRole(tt.target, tt.newRole, tt.callerID, model.RoleAdmin))
		})
	}
}
