package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"tasktracker/internal/model"
)

func TestJWTService_GenerateAndValidate(t *testing.T) {
	service := NewJWTService("test-secret")
	userID := uuid.New()

	token, err := service.GenerateToken(userID, model.RoleAdmin)
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateToken(token)
	assert.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, model.RoleAdmin, claims.Role)
	assert.WithinDuration(t, time.Now().Add(TokenExpiry), claims.ExpiresAt.Time, 5*time.Second)
}

func TestJWTService_RejectsExpiredToken(t *testing.T) {
	secret := "test-secret"
	service := NewJWTService(secret)

	claims := &Claims{
		UserID: uuid.New(),
		Role:   model.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	assert.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestJWTService_RejectsTamperedToken(t *testing.T) {
	service := NewJWTService("test-secret")
	other := NewJWTService("other-secret")

	token, err := other.GenerateToken(uuid.New(), model.RoleUser)
	assert.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

// Expired and tampered tokens must be indistinguishable to callers.
func TestJWTService_FailureModesCollapse(t *testing.T) {
	secret := "test-secret"
	service := NewJWTService(secret)

	expiredClaims := &Claims{
		UserID: uuid.New(),
		Role:   model.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expiredClaims).SignedString([]byte(secret))
	assert.NoError(t, err)

	tampered, err := NewJWTService("wrong-secret").GenerateToken(uuid.New(), model.RoleUser)
	assert.NoError(t, err)

	_, errExpired := service.ValidateToken(expired)
	_, errTampered := service.ValidateToken(tampered)
	_, errGarbage := service.ValidateToken("not-a-token")

	assert.Equal(t, errExpired, errTampered)
	assert.Equal(t, errTampered, errGarbage)
}

func TestJWTService_RejectsUnsignedToken(t *testing.T) {
	service := NewJWTService("test-secret")

	claims := &Claims{
		UserID: uuid.New(),
		Role:   model.RoleUser,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	assert.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
