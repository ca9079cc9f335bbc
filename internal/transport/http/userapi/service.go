package userapi

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"nodeuser-server-go/internal/domain/auth"
	"nodeuser-server-go/internal/domain/user/model"
	"nodeuser-server-go/internal/platform/errors"
	"nodeuser-server-go/internal/platform/logging"
	httptransport "nodeuser-server-go/internal/transport/http"
)

const (
	sessionCookie = "sessionId"
	// Session tokens are fingerprint-bound server side; the cookie itself
	// lives for a year because sessions never expire on their own.
	sessionCookieMaxAge = 365 * 24 * 60 * 60

	ctxUserKey = "userapi.caller"
)

// Service is the HTTP surface of the auth manager.
type Service struct {
	logger  *logging.Logger
	manager *auth.Manager
}

// NewService creates the user API transport service.
func NewService(manager *auth.Manager, logger *logging.Logger) (*Service, error) {
	if manager == nil {
		return nil, errors.New(errors.KindConfig, "userapi.new", "auth manager is required")
	}
	if logger == nil {
		return nil, errors.New(errors.KindConfig, "userapi.new", "logger is required")
	}
	return &Service{
		logger:  logger,
		manager: manager,
	}, nil
}

// Register mounts the user routes on the API group.
func (s *Service) Register(_ context.Context, router *gin.RouterGroup) error {
	users := router.Group("/users")
	users.POST("/register", s.handleRegister)
	users.POST("/login", s.handleLogin)
	users.POST("/reset", s.handleReset)

	secured := users.Group("")
	secured.Use(s.authMiddleware())
	{
		secured.POST("/logout", s.handleLogout)
		secured.GET("/me", s.handleMe)
		secured.GET("", s.handleList)
		secured.POST("", s.handleAdd)
		secured.GET("/:id", s.handleGet)
		secured.PUT("/:id", s.handleUpdate)
		secured.DELETE("/:id", s.handleDelete)
	}

	admin := router.Group("/admin")
	admin.Use(s.authMiddleware())
	admin.GET("/stats", s.handleStats)

	s.logger.Info("user API routes registered")
	return nil
}

// client carries the per-request fingerprint and the cookie token.
type client struct {
	ip      string
	browser string
	token   string
}

func (s *Service) clientOf(c *gin.Context) client {
	token, _ := c.Cookie(sessionCookie)
	return client{
		ip:      c.ClientIP(),
		browser: BrowserFamily(c.Request.UserAgent()),
		token:   token,
	}
}

// authMiddleware re-authenticates the caller from the session cookie and the
// request fingerprint, storing the account on the context.
func (s *Service) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		cl := s.clientOf(c)
		user, err := s.manager.LoginWithToken(c.Request.Context(), cl.token, cl.ip, cl.browser)
		if err != nil {
			httptransport.RespondError(c, http.StatusForbidden, "Not logged in", nil)
			c.Abort()
			return
		}
		c.Set(ctxUserKey, user)
		c.Next()
	}
}

func callerOf(c *gin.Context) model.User {
	if v, ok := c.Get(ctxUserKey); ok {
		if user, ok := v.(model.User); ok {
			return user
		}
	}
	return model.User{}
}

func (s *Service) setSessionCookie(c *gin.Context, token string) {
	c.SetCookie(sessionCookie, token, sessionCookieMaxAge, "/", "", false, true)
}

func (s *Service) clearSessionCookie(c *gin.Context) {
	c.SetCookie(sessionCookie, "", -1, "/", "", false, true)
}

// respondFailure maps a domain error to a status code. Infrastructure errors
// become opaque 500s.
func (s *Service) respondFailure(c *gin.Context, err error) {
	if reason, ok := auth.ReasonOf(err); ok {
		httptransport.RespondError(c, statusOf(reason), string(reason), nil)
		return
	}
	s.logger.Error("user API internal error: %v", err)
	httptransport.RespondError(c, http.StatusInternalServerError, "internal error", nil)
}

func statusOf(reason auth.Reason) int {
	switch reason {
	case auth.ReasonUserExists:
		return http.StatusConflict
	case auth.ReasonUserNotFound:
		return http.StatusNotFound
	case auth.ReasonLoginFail:
		return http.StatusUnauthorized
	case auth.ReasonNotAuthorized:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
}

func (s *Service) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid body", nil)
		return
	}

	user, err := s.manager.Register(c.Request.Context(), req.Username, req.Password, req.Email)
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, user, "registered")
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Service) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid body", nil)
		return
	}

	cl := s.clientOf(c)
	user, err := s.manager.Login(c.Request.Context(), req.Username, req.Password, cl.ip, cl.browser)
	if err != nil {
		s.respondFailure(c, err)
		return
	}

	s.setSessionCookie(c, user.SessionID)
	httptransport.RespondSuccess(c, http.StatusOK, user, "logged in")
}

func (s *Service) handleLogout(c *gin.Context) {
	cl := s.clientOf(c)
	removed, err := s.manager.Logout(c.Request.Context(), cl.token)
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	if !removed {
		httptransport.RespondError(c, http.StatusBadRequest, "Failed to log out", nil)
		return
	}
	s.clearSessionCookie(c)
	httptransport.RespondSuccess(c, http.StatusOK, nil, "logged out")
}

func (s *Service) handleMe(c *gin.Context) {
	httptransport.RespondSuccess(c, http.StatusOK, callerOf(c), "")
}

type resetRequest struct {
	Email string `json:"email" binding:"required,email"`
}

func (s *Service) handleReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid body", nil)
		return
	}

	if err := s.manager.ResetPassword(c.Request.Context(), req.Email); err != nil {
		s.respondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "reset mail sent")
}

func (s *Service) handleList(c *gin.Context) {
	users, err := s.manager.ListUsers(c.Request.Context(), callerOf(c))
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, users, "")
}

type addUserRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Level    string `json:"level"`
}

func (s *Service) handleAdd(c *gin.Context) {
	var req addUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid body", nil)
		return
	}

	user, err := s.manager.AddUser(
		c.Request.Context(),
		callerOf(c),
		req.Username,
		req.Password,
		req.Email,
		model.Level(req.Level),
	)
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, user, "user added")
}

func (s *Service) handleGet(c *gin.Context) {
	user, err := s.manager.GetUser(c.Request.Context(), callerOf(c), c.Param("id"))
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, user, "")
}

type updateUserRequest struct {
	Username *string   `json:"username"`
	Email    *string   `json:"email"`
	Password *string   `json:"password"`
	Level    *string   `json:"level"`
	Friends  *[]string `json:"friends"`
}

func (s *Service) handleUpdate(c *gin.Context) {
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httptransport.RespondError(c, http.StatusBadRequest, "Invalid body", nil)
		return
	}

	update := auth.UserUpdate{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Friends:  req.Friends,
	}
	if req.Level != nil {
		level := model.Level(*req.Level)
		update.Level = &level
	}

	user, err := s.manager.UpdateUser(c.Request.Context(), callerOf(c), c.Param("id"), update)
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, user, "user updated")
}

func (s *Service) handleDelete(c *gin.Context) {
	if err := s.manager.DeleteUser(c.Request.Context(), callerOf(c), c.Param("id")); err != nil {
		s.respondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, nil, "user deleted")
}

func (s *Service) handleStats(c *gin.Context) {
	stats, err := s.manager.Stats(c.Request.Context(), callerOf(c))
	if err != nil {
		s.respondFailure(c, err)
		return
	}
	httptransport.RespondSuccess(c, http.StatusOK, stats, "")
}
