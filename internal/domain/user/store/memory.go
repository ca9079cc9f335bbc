package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"nodeuser-server-go/internal/domain/user/model"
)

type memoryStore struct {
	users map[string]model.User
	mutex sync.RWMutex
}

// NewMemory builds an in-memory user store. Used for tests and single-node
// development setups.
func NewMemory(Config) Store {
	return &memoryStore{
		users: make(map[string]model.User),
	}
}

func cloneUser(u model.User) model.User {
	out := u
	out.Sessions = append([]model.Session(nil), u.Sessions...)
	out.Friends = append([]string(nil), u.Friends...)
	return out
}

func (s *memoryStore) Insert(_ context.Context, user model.User) error {
	if user.ID == "" {
		return fmt.Errorf("user id required")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return ErrConflict
	}
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return ErrConflict
		}
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *memoryStore) FindByID(_ context.Context, id string) (model.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *memoryStore) FindByUsername(_ context.Context, username string) (model.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, user := range s.users {
		if user.Username == username {
			return cloneUser(user), nil
		}
	}
	return model.User{}, ErrNotFound
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (model.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			return cloneUser(user), nil
		}
	}
	return model.User{}, ErrNotFound
}

func (s *memoryStore) FindBySession(_ context.Context, token, ip, browser string) (model.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, user := range s.users {
		if user.HasSession(token, ip, browser) {
			return cloneUser(user), nil
		}
	}
	return model.User{}, ErrNotFound
}

func (s *memoryStore) List(_ context.Context) ([]model.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	users := make([]model.User, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, cloneUser(user))
	}
	return users, nil
}

func (s *memoryStore) Update(_ context.Context, user model.User) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	for id, existing := range s.users {
		if id == user.ID {
			continue
		}
		if existing.Username == user.Username || existing.Email == user.Email {
			return ErrConflict
		}
	}

	current.Username = user.Username
	current.Email = user.Email
	current.Level = user.Level
	current.Friends = append([]string(nil), user.Friends...)
	if user.PasswordHash != "" {
		current.PasswordHash = user.PasswordHash
	}
	s.users[user.ID] = current
	return nil
}

func (s *memoryStore) Delete(_ context.Context, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	return nil
}

func (s *memoryStore) AddSession(_ context.Context, userID string, session model.Session) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	if user.HasSession(session.Token, session.IP, session.Browser) {
		return nil
	}
	user.Sessions = append(user.Sessions, session)
	s.users[userID] = user
	return nil
}

func (s *memoryStore) RemoveSessionsByFingerprint(_ context.Context, userID, ip, browser string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return nil
	}
	kept := user.Sessions[:0]
	for _, sess := range user.Sessions {
		if sess.IP == ip && sess.Browser == browser {
			continue
		}
		kept = append(kept, sess)
	}
	user.Sessions = kept
	s.users[userID] = user
	return nil
}

func (s *memoryStore) RemoveSessionByToken(_ context.Context, token string) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for id, user := range s.users {
		for i, sess := range user.Sessions {
			if sess.Token == token {
				user.Sessions = append(user.Sessions[:i], user.Sessions[i+1:]...)
				s.users[id] = user
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *memoryStore) SetResetCode(_ context.Context, userID, code string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.ResetCode = code
	s.users[userID] = user
	return nil
}

func (s *memoryStore) SetLastLogin(_ context.Context, userID string, at time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.LastLoginAt = &at
	s.users[userID] = user
	return nil
}

func (s *memoryStore) Stats(_ context.Context) (map[string]any, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	sessions := 0
	for _, user := range s.users {
		sessions += len(user.Sessions)
	}
	return map[string]any{
		"type":     "memory",
		"users":    len(s.users),
		"sessions": sessions,
	}, nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
