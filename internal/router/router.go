package router

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"tasktracker/internal/auth"
	"tasktracker/internal/config"
	"tasktracker/internal/errors"
	"tasktracker/internal/handler"
	"tasktracker/internal/model"
)

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	jwtService *auth.JWTService,
	authHandler *handler.AuthHandler,
	userHandler *handler.UserHandler,
	taskHandler *handler.TaskHandler,
) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.HTTPErrorHandler = NewHTTPErrorHandler(cfg)

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Session guard: stage 1 of the request gate. The token comes from
	// the HTTP-only cookie; any extraction or verification failure
	// collapses into a single 401.
	session := echojwt.WithConfig(echojwt.Config{
		TokenLookup: "cookie:" + auth.SessionCookieName,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return jwtService.ValidateToken(token)
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return errors.ErrUnauthenticated
		},
	})

	// Public routes
	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)

	// Session-only routes
	authGroup.POST("/logout", authHandler.Logout, session)

	// Admin routes: stage 2 composes after stage 1.
	admin := authGroup.Group("/admin", session, RequireRole(model.RoleAdmin))
	admin.GET("/users", userHandler.ListUsers)
	admin.PUT("/users/:id/role", userHandler.UpdateRole)

	// Task routes
	tasks := api.Group("/tasks", session)
	tasks.GET("/me", taskHandler.Me)
	tasks.POST("", taskHandler.Create)
	tasks.GET("", taskHandler.List)
	tasks.PUT("/:id", taskHandler.Update)
	tasks.DELETE("/:id", taskHandler.Delete)
}

// RequireRole rejects callers whose authenticated role does not match
// exactly. There is no role hierarchy.
func RequireRole(role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := auth.CallerFromContext(c)
			if !ok {
				return errors.ErrUnauthenticated
			}
			if caller.Role != role {
				return errors.ErrForbidden
			}
			return next(c)
		}
	}
}

// NewHTTPErrorHandler converts every handler error into the uniform
// {success:false, message} envelope. Unexpected errors are logged and
// surfaced as a generic 500 outside development.
func NewHTTPErrorHandler(cfg *config.Config) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := "internal server error"

		var echoErr *echo.HTTPError
		if stderrors.As(err, &echoErr) {
			status = echoErr.Code
			message = fmt.Sprintf("%v", echoErr.Message)
		} else {
			httpErr := errors.MapErrorToHTTP(err)
			status = httpErr.StatusCode
			message = httpErr.Message
		}

		if status >= http.StatusInternalServerError {
			c.Logger().Error(err)
			if cfg.IsDevelopment() {
				message = err.Error()
			}
		}

		if err := c.JSON(status, errors.ErrorResponse{Success: false, Message: message}); err != nil {
			c.Logger().Error(err)
		}
	}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
