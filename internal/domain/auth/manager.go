package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"nodeuser-server-go/internal/domain/eventbus"
	"nodeuser-server-go/internal/domain/user/model"
	"nodeuser-server-go/internal/domain/user/store"
	"nodeuser-server-go/internal/platform/mail"
)

type (
	// Logger re-exports the logging interface used across the domain.
	Logger = model.Logger
)

// Options encapsulates the dependencies required to construct a Manager.
type Options struct {
	Store    store.Store
	Logger   Logger
	Hasher   PasswordHasher
	Mail     mail.Sender
	Bus      *eventbus.Bus
	ResetURL string
}

// Manager orchestrates registration, credential and token login, logout,
// password reset and the authorization-gated account CRUD. It holds no
// session state of its own; the user store is the single source of truth.
type Manager struct {
	store    store.Store
	logger   Logger
	hasher   PasswordHasher
	mail     mail.Sender
	bus      *eventbus.Bus
	resetURL string
}

// NewManager wires a Manager using the supplied options.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("auth manager requires a store")
	}
	if opts.Logger == nil {
		return nil, errors.New("auth manager requires a logger")
	}
	if opts.Hasher == nil {
		opts.Hasher = NewBcryptHasher(0)
	}
	if opts.Mail == nil {
		opts.Mail = mail.NewLogSender(opts.Logger)
	}
	return &Manager{
		store:    opts.Store,
		logger:   opts.Logger,
		hasher:   opts.Hasher,
		mail:     opts.Mail,
		bus:      opts.Bus,
		resetURL: opts.ResetURL,
	}, nil
}

// Register creates an account with the user level. The returned record is
// sanitized.
func (m *Manager) Register(ctx context.Context, username, password, email string) (model.User, error) {
	m.logger.Debug("registering user %s", username)

	if username == "" || password == "" || email == "" {
		return model.User{}, fmt.Errorf("username, password and email are required")
	}

	user, err := m.insertUser(ctx, username, password, email, model.LevelUser)
	if err != nil {
		return model.User{}, err
	}

	m.bus.Publish(eventbus.TopicUserRegistered, eventbus.Event{
		UserID:   user.ID,
		Username: user.Username,
	})
	m.logger.Info("registered user %s", username)
	return user, nil
}

// Login authenticates by credential and mints a fingerprint-bound session.
// Every credential failure surfaces as the same loginFail reason; the log
// lines are more specific.
func (m *Manager) Login(ctx context.Context, username, password, ip, browser string) (model.User, error) {
	m.logger.Debug("logging in user %s from %s/%s", username, ip, browser)

	user, err := m.store.FindByUsername(ctx, username)
	if errors.Is(err, store.ErrNotFound) {
		m.logger.Debug("login failed for %s: no such user", username)
		return model.User{}, fail(ReasonLoginFail)
	}
	if err != nil {
		m.logger.Error("login lookup failed for %s: %v", username, err)
		return model.User{}, err
	}

	ok, err := m.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		m.logger.Error("password verification errored for %s: %v", username, err)
		return model.User{}, err
	}
	if !ok {
		m.logger.Debug("login failed for %s: password mismatch", username)
		return model.User{}, fail(ReasonLoginFail)
	}

	// Drop stale sessions for this fingerprint. Best effort: the login
	// proceeds even if nothing was removed or the removal failed.
	if err := m.store.RemoveSessionsByFingerprint(ctx, user.ID, ip, browser); err != nil {
		m.logger.Warn("failed to remove stale sessions for %s: %v", username, err)
	}

	token, err := NewSessionToken()
	if err != nil {
		m.logger.Error("session token generation failed: %v", err)
		return model.User{}, err
	}
	if err := m.store.AddSession(ctx, user.ID, model.Session{Token: token, IP: ip, Browser: browser}); err != nil {
		m.logger.Error("failed to persist session for %s: %v", username, err)
		return model.User{}, err
	}

	now := time.Now()
	if err := m.store.SetLastLogin(ctx, user.ID, now); err != nil {
		m.logger.Warn("failed to stamp last login for %s: %v", username, err)
	} else {
		user.LastLoginAt = &now
	}

	user.Sanitize()
	user.SessionID = token

	m.bus.Publish(eventbus.TopicUserLogin, eventbus.Event{
		UserID:   user.ID,
		Username: user.Username,
		IP:       ip,
		Browser:  browser,
	})
	m.logger.Info("logged in user %s", username)
	return user, nil
}

// LoginWithToken re-authenticates an existing session. The token matches only
// together with the exact ip and browser it was issued for; no new token is
// minted.
func (m *Manager) LoginWithToken(ctx context.Context, token, ip, browser string) (model.User, error) {
	if token == "" {
		return model.User{}, fail(ReasonLoginFail)
	}

	user, err := m.store.FindBySession(ctx, token, ip, browser)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, fail(ReasonLoginFail)
	}
	if err != nil {
		m.logger.Error("session lookup failed: %v", err)
		return model.User{}, err
	}

	user.Sanitize()
	user.SessionID = token
	m.logger.Debug("logged in user %s with session", user.Username)
	return user, nil
}

// Logout removes the session matching the token from whichever user owns it
// and reports whether a session was removed.
func (m *Manager) Logout(ctx context.Context, token string) (bool, error) {
	removed, err := m.store.RemoveSessionByToken(ctx, token)
	if err != nil {
		m.logger.Error("logout failed: %v", err)
		return false, err
	}
	if removed {
		m.bus.Publish(eventbus.TopicUserLogout, eventbus.Event{})
		m.logger.Info("logged out session")
	}
	return removed, nil
}

// ResetPassword generates a reset code, stores it on the record and mails it.
// Mail delivery is fire-and-forget: a send failure is logged but the stored
// code stands.
func (m *Manager) ResetPassword(ctx context.Context, email string) error {
	user, err := m.store.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return fail(ReasonUserNotFound)
	}
	if err != nil {
		m.logger.Error("reset lookup failed: %v", err)
		return err
	}

	code, err := NewResetCode()
	if err != nil {
		m.logger.Error("reset code generation failed: %v", err)
		return fail(ReasonResetPassword)
	}
	if err := m.store.SetResetCode(ctx, user.ID, code); err != nil {
		m.logger.Error("failed to store reset code for %s: %v", user.Username, err)
		return fail(ReasonResetPassword)
	}

	msg := mail.Message{
		To:      email,
		Subject: "Password Reset Request",
		Body: "You've requested to reset your password. " +
			"Please click this link to reset it. " + m.resetURL + code,
	}
	if err := m.mail.Send(ctx, msg); err != nil {
		m.logger.Error("failed to send reset mail to %s: %v", email, err)
	}

	m.bus.Publish(eventbus.TopicUserReset, eventbus.Event{
		UserID:   user.ID,
		Username: user.Username,
	})
	m.logger.Info("issued password reset code for %s", user.Username)
	return nil
}

// GetUser returns a single account. Self-or-admin.
func (m *Manager) GetUser(ctx context.Context, caller model.User, id string) (model.User, error) {
	if !Authorize(caller, OpGetUser, id) {
		m.logger.Warn("failed to get user: not authorized")
		return model.User{}, fail(ReasonNotAuthorized)
	}

	user, err := m.store.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, fail(ReasonUserNotFound)
	}
	if err != nil {
		return model.User{}, err
	}
	user.Sanitize()
	return user, nil
}

// ListUsers returns all accounts. Admin only.
func (m *Manager) ListUsers(ctx context.Context, caller model.User) ([]model.User, error) {
	if !Authorize(caller, OpListUsers, "") {
		m.logger.Warn("failed to get users: not authorized")
		return nil, fail(ReasonNotAuthorized)
	}

	users, err := m.store.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].Sanitize()
	}
	return users, nil
}

// AddUser creates an account with an arbitrary level. Admin only.
func (m *Manager) AddUser(ctx context.Context, caller model.User, username, password, email string, level model.Level) (model.User, error) {
	if !Authorize(caller, OpAddUser, "") {
		m.logger.Warn("failed to add user: not authorized")
		return model.User{}, fail(ReasonNotAuthorized)
	}
	if !level.Valid() {
		level = model.LevelUser
	}
	return m.insertUser(ctx, username, password, email, level)
}

// UserUpdate carries the mutable account fields. Nil means leave unchanged.
type UserUpdate struct {
	Username *string
	Email    *string
	Password *string
	Level    *model.Level
	Friends  *[]string
}

// UpdateUser applies the update to the account. Self-or-admin; only admins
// may change the level.
func (m *Manager) UpdateUser(ctx context.Context, caller model.User, id string, update UserUpdate) (model.User, error) {
	if !Authorize(caller, OpUpdateUser, id) {
		m.logger.Warn("failed to update user: not authorized")
		return model.User{}, fail(ReasonNotAuthorized)
	}

	user, err := m.store.FindByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, fail(ReasonUserNotFound)
	}
	if err != nil {
		return model.User{}, err
	}

	if update.Username != nil && *update.Username != "" {
		user.Username = *update.Username
	}
	if update.Email != nil && *update.Email != "" {
		user.Email = *update.Email
	}
	if update.Level != nil {
		if caller.Level != model.LevelAdmin {
			m.logger.Warn("failed to update user level: not authorized")
			return model.User{}, fail(ReasonNotAuthorized)
		}
		if update.Level.Valid() {
			user.Level = *update.Level
		}
	}
	if update.Friends != nil {
		user.Friends = *update.Friends
	}

	user.PasswordHash = ""
	if update.Password != nil && *update.Password != "" {
		hash, err := m.hasher.Hash(*update.Password)
		if err != nil {
			m.logger.Error("failed to hash updated password: %v", err)
			return model.User{}, err
		}
		user.PasswordHash = hash
	}

	if err := m.store.Update(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.User{}, fail(ReasonUserExists)
		}
		if errors.Is(err, store.ErrNotFound) {
			return model.User{}, fail(ReasonUserNotFound)
		}
		m.logger.Error("failed to update user %s: %v", id, err)
		return model.User{}, err
	}

	updated, err := m.store.FindByID(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	updated.Sanitize()
	m.logger.Info("updated user %s", updated.Username)
	return updated, nil
}

// DeleteUser removes the account. Self-or-admin.
func (m *Manager) DeleteUser(ctx context.Context, caller model.User, id string) error {
	if !Authorize(caller, OpDeleteUser, id) {
		m.logger.Warn("failed to delete user: not authorized")
		return fail(ReasonNotAuthorized)
	}

	err := m.store.Delete(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fail(ReasonUserNotFound)
	}
	if err != nil {
		m.logger.Error("failed to delete user %s: %v", id, err)
		return err
	}

	m.bus.Publish(eventbus.TopicUserDeleted, eventbus.Event{UserID: id})
	m.logger.Info("deleted user %s", id)
	return nil
}

// Stats surfaces store statistics. Admin only.
func (m *Manager) Stats(ctx context.Context, caller model.User) (map[string]any, error) {
	if !Authorize(caller, OpStats, "") {
		return nil, fail(ReasonNotAuthorized)
	}
	return m.store.Stats(ctx)
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close(context.Background())
}

func (m *Manager) insertUser(ctx context.Context, username, password, email string, level model.Level) (model.User, error) {
	_, err := m.store.FindByUsername(ctx, username)
	if err == nil {
		m.logger.Debug("failed to register user: username %s already exists", username)
		return model.User{}, fail(ReasonUserExists)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.User{}, err
	}

	hash, err := m.hasher.Hash(password)
	if err != nil {
		m.logger.Error("failed to register user: password hash failed: %v", err)
		return model.User{}, err
	}

	user := model.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Level:        level,
		Friends:      []string{},
		RegisteredAt: time.Now(),
		Sessions:     []model.Session{},
	}
	if err := m.store.Insert(ctx, user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return model.User{}, fail(ReasonUserExists)
		}
		m.logger.Error("failed to register user: store error: %v", err)
		return model.User{}, err
	}

	user.Sanitize()
	return user, nil
}
