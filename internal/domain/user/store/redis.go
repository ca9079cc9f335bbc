package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"nodeuser-server-go/internal/domain/user/model"
)

type redisStore struct {
	client *redis.Client
	prefix string
}

// redisUser is the persisted document. It carries the secret fields that the
// domain model deliberately hides from JSON marshalling.
type redisUser struct {
	ID           string          `json:"id"`
	Username     string          `json:"username"`
	Email        string          `json:"email"`
	PasswordHash string          `json:"password_hash"`
	Level        string          `json:"level"`
	Friends      []string        `json:"friends"`
	RegisteredAt time.Time       `json:"registered_at"`
	LastLoginAt  *time.Time      `json:"last_login_at,omitempty"`
	ResetCode    string          `json:"reset_code,omitempty"`
	Sessions     []model.Session `json:"sessions"`
}

// NewRedis constructs a redis-backed user store.
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "nodeuser:"
	}
	return &redisStore{
		client: client,
		prefix: prefix,
	}, nil
}

func (s *redisStore) userKey(id string) string      { return s.prefix + "user:" + id }
func (s *redisStore) nameKey(name string) string    { return s.prefix + "username:" + name }
func (s *redisStore) emailKey(email string) string  { return s.prefix + "email:" + email }
func (s *redisStore) tokenKey(token string) string  { return s.prefix + "token:" + token }
func (s *redisStore) idsKey() string                { return s.prefix + "ids" }

func (s *redisStore) Insert(ctx context.Context, user model.User) error {
	if user.ID == "" {
		return fmt.Errorf("user id required")
	}

	for _, key := range []string{s.nameKey(user.Username), s.emailKey(user.Email), s.userKey(user.ID)} {
		n, err := s.client.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrConflict
		}
	}

	doc := toRedisUser(user)
	return s.save(ctx, doc, func(pipe redis.Pipeliner) {
		pipe.SAdd(ctx, s.idsKey(), user.ID)
		pipe.Set(ctx, s.nameKey(user.Username), user.ID, 0)
		pipe.Set(ctx, s.emailKey(user.Email), user.ID, 0)
	})
}

func (s *redisStore) FindByID(ctx context.Context, id string) (model.User, error) {
	doc, err := s.load(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return fromRedisUser(doc), nil
}

func (s *redisStore) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return s.findByIndex(ctx, s.nameKey(username))
}

func (s *redisStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return s.findByIndex(ctx, s.emailKey(email))
}

func (s *redisStore) FindBySession(ctx context.Context, token, ip, browser string) (model.User, error) {
	user, err := s.findByIndex(ctx, s.tokenKey(token))
	if err != nil {
		return model.User{}, err
	}
	// The token index alone is not enough; the fingerprint must match too.
	if !user.HasSession(token, ip, browser) {
		return model.User{}, ErrNotFound
	}
	return user, nil
}

func (s *redisStore) List(ctx context.Context) ([]model.User, error) {
	ids, err := s.client.SMembers(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(ids))
	for _, id := range ids {
		doc, err := s.load(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		users = append(users, fromRedisUser(doc))
	}
	return users, nil
}

func (s *redisStore) Update(ctx context.Context, user model.User) error {
	doc, err := s.load(ctx, user.ID)
	if err != nil {
		return err
	}

	if user.Username != doc.Username {
		if n, err := s.client.Exists(ctx, s.nameKey(user.Username)).Result(); err != nil {
			return err
		} else if n > 0 {
			return ErrConflict
		}
	}
	if user.Email != doc.Email {
		if n, err := s.client.Exists(ctx, s.emailKey(user.Email)).Result(); err != nil {
			return err
		} else if n > 0 {
			return ErrConflict
		}
	}

	oldName, oldEmail := doc.Username, doc.Email
	doc.Username = user.Username
	doc.Email = user.Email
	doc.Level = string(user.Level)
	doc.Friends = append([]string(nil), user.Friends...)
	if user.PasswordHash != "" {
		doc.PasswordHash = user.PasswordHash
	}

	return s.save(ctx, doc, func(pipe redis.Pipeliner) {
		if oldName != doc.Username {
			pipe.Del(ctx, s.nameKey(oldName))
			pipe.Set(ctx, s.nameKey(doc.Username), doc.ID, 0)
		}
		if oldEmail != doc.Email {
			pipe.Del(ctx, s.emailKey(oldEmail))
			pipe.Set(ctx, s.emailKey(doc.Email), doc.ID, 0)
		}
	})
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	doc, err := s.load(ctx, id)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.userKey(id))
	pipe.Del(ctx, s.nameKey(doc.Username))
	pipe.Del(ctx, s.emailKey(doc.Email))
	pipe.SRem(ctx, s.idsKey(), id)
	for _, sess := range doc.Sessions {
		pipe.Del(ctx, s.tokenKey(sess.Token))
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisStore) AddSession(ctx context.Context, userID string, session model.Session) error {
	doc, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	for _, sess := range doc.Sessions {
		if sess == session {
			return nil
		}
	}
	doc.Sessions = append(doc.Sessions, session)

	return s.save(ctx, doc, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, s.tokenKey(session.Token), userID, 0)
	})
}

func (s *redisStore) RemoveSessionsByFingerprint(ctx context.Context, userID, ip, browser string) error {
	doc, err := s.load(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var removed []string
	kept := doc.Sessions[:0]
	for _, sess := range doc.Sessions {
		if sess.IP == ip && sess.Browser == browser {
			removed = append(removed, sess.Token)
			continue
		}
		kept = append(kept, sess)
	}
	if len(removed) == 0 {
		return nil
	}
	doc.Sessions = kept

	return s.save(ctx, doc, func(pipe redis.Pipeliner) {
		for _, token := range removed {
			pipe.Del(ctx, s.tokenKey(token))
		}
	})
}

func (s *redisStore) RemoveSessionByToken(ctx context.Context, token string) (bool, error) {
	id, err := s.client.Get(ctx, s.tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	doc, err := s.load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// dangling index entry
		_ = s.client.Del(ctx, s.tokenKey(token)).Err()
		return false, nil
	}
	if err != nil {
		return false, err
	}

	removed := false
	kept := doc.Sessions[:0]
	for _, sess := range doc.Sessions {
		if sess.Token == token {
			removed = true
			continue
		}
		kept = append(kept, sess)
	}
	doc.Sessions = kept

	err = s.save(ctx, doc, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, s.tokenKey(token))
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (s *redisStore) SetResetCode(ctx context.Context, userID, code string) error {
	doc, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	doc.ResetCode = code
	return s.save(ctx, doc, nil)
}

func (s *redisStore) SetLastLogin(ctx context.Context, userID string, at time.Time) error {
	doc, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	doc.LastLoginAt = &at
	return s.save(ctx, doc, nil)
}

func (s *redisStore) Stats(ctx context.Context) (map[string]any, error) {
	count, err := s.client.SCard(ctx, s.idsKey()).Result()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"type":  "redis",
		"users": count,
	}, nil
}

func (s *redisStore) Close(context.Context) error {
	return s.client.Close()
}

func (s *redisStore) findByIndex(ctx context.Context, indexKey string) (model.User, error) {
	id, err := s.client.Get(ctx, indexKey).Result()
	if errors.Is(err, redis.Nil) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	doc, err := s.load(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	return fromRedisUser(doc), nil
}

func (s *redisStore) load(ctx context.Context, id string) (*redisUser, error) {
	data, err := s.client.Get(ctx, s.userKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var doc redisUser
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *redisStore) save(ctx context.Context, doc *redisUser, extra func(redis.Pipeliner)) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.userKey(doc.ID), data, 0)
	if extra != nil {
		extra(pipe)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func toRedisUser(user model.User) *redisUser {
	return &redisUser{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Level:        string(user.Level),
		Friends:      append([]string(nil), user.Friends...),
		RegisteredAt: user.RegisteredAt,
		LastLoginAt:  user.LastLoginAt,
		ResetCode:    user.ResetCode,
		Sessions:     append([]model.Session(nil), user.Sessions...),
	}
}

func fromRedisUser(doc *redisUser) model.User {
	return model.User{
		ID:           doc.ID,
		Username:     doc.Username,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Level:        model.Level(doc.Level),
		Friends:      doc.Friends,
		RegisteredAt: doc.RegisteredAt,
		LastLoginAt:  doc.LastLoginAt,
		ResetCode:    doc.ResetCode,
		Sessions:     doc.Sessions,
	}
}
