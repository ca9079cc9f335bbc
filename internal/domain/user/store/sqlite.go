package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nodeuser-server-go/internal/domain/user/model"
	"nodeuser-server-go/internal/platform/storage"
)

type sqliteStore struct {
	db *gorm.DB
}

// NewSQLite builds a SQLite-backed user store over an open gorm handle.
func NewSQLite(db *gorm.DB, _ Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Insert(ctx context.Context, user model.User) error {
	record, err := toRecord(user)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&storage.User{}).
			Where("username = ? OR email = ?", user.Username, user.Email).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}
		return tx.Create(record).Error
	})
}

func (s *sqliteStore) FindByID(ctx context.Context, id string) (model.User, error) {
	return s.fetch(ctx, "id = ?", id)
}

func (s *sqliteStore) FindByUsername(ctx context.Context, username string) (model.User, error) {
	return s.fetch(ctx, "username = ?", username)
}

func (s *sqliteStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	return s.fetch(ctx, "email = ?", email)
}

func (s *sqliteStore) FindBySession(ctx context.Context, token, ip, browser string) (model.User, error) {
	var session storage.Session
	err := s.db.WithContext(ctx).
		Where("token = ? AND ip = ? AND browser = ?", token, ip, browser).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return s.fetch(ctx, "id = ?", session.UserID)
}

func (s *sqliteStore) List(ctx context.Context) ([]model.User, error) {
	var records []storage.User
	if err := s.db.WithContext(ctx).Preload("Sessions").Find(&records).Error; err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(records))
	for i := range records {
		user, err := fromRecord(&records[i])
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *sqliteStore) Update(ctx context.Context, user model.User) error {
	friends, err := friendsJSON(user.Friends)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current storage.User
		err := tx.Where("id = ?", user.ID).First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var count int64
		err = tx.Model(&storage.User{}).
			Where("id <> ? AND (username = ? OR email = ?)", user.ID, user.Username, user.Email).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrConflict
		}

		updates := map[string]any{
			"username": user.Username,
			"email":    user.Email,
			"level":    string(user.Level),
			"friends":  friends,
		}
		if user.PasswordHash != "" {
			updates["password_hash"] = user.PasswordHash
		}
		return tx.Model(&storage.User{}).Where("id = ?", user.ID).Updates(updates).Error
	})
}

func (s *sqliteStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Select(clause.Associations).
		Delete(&storage.User{ID: id})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) AddSession(ctx context.Context, userID string, session model.Session) error {
	var count int64
	err := s.db.WithContext(ctx).Model(&storage.User{}).Where("id = ?", userID).Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}

	record := &storage.Session{
		UserID:  userID,
		Token:   session.Token,
		IP:      session.IP,
		Browser: session.Browser,
	}
	// The unique tuple index makes a repeated add a no-op.
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(record).Error
}

func (s *sqliteStore) RemoveSessionsByFingerprint(ctx context.Context, userID, ip, browser string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND ip = ? AND browser = ?", userID, ip, browser).
		Delete(&storage.Session{}).Error
}

func (s *sqliteStore) RemoveSessionByToken(ctx context.Context, token string) (bool, error) {
	result := s.db.WithContext(ctx).
		Where("token = ?", token).
		Delete(&storage.Session{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *sqliteStore) SetResetCode(ctx context.Context, userID, code string) error {
	return s.setColumn(ctx, userID, "reset_code", code)
}

func (s *sqliteStore) SetLastLogin(ctx context.Context, userID string, at time.Time) error {
	return s.setColumn(ctx, userID, "last_login_at", at)
}

func (s *sqliteStore) Stats(ctx context.Context) (map[string]any, error) {
	var users, sessions int64
	if err := s.db.WithContext(ctx).Model(&storage.User{}).Count(&users).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&storage.Session{}).Count(&sessions).Error; err != nil {
		return nil, err
	}
	return map[string]any{
		"type":     "sqlite",
		"users":    users,
		"sessions": sessions,
	}, nil
}

func (s *sqliteStore) Close(context.Context) error {
	return nil
}

func (s *sqliteStore) setColumn(ctx context.Context, userID, column string, value any) error {
	result := s.db.WithContext(ctx).
		Model(&storage.User{}).
		Where("id = ?", userID).
		Update(column, value)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) fetch(ctx context.Context, query string, args ...any) (model.User, error) {
	var record storage.User
	err := s.db.WithContext(ctx).Preload("Sessions").Where(query, args...).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	return fromRecord(&record)
}

func friendsJSON(friends []string) (datatypes.JSON, error) {
	if friends == nil {
		friends = []string{}
	}
	data, err := json.Marshal(friends)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func toRecord(user model.User) (*storage.User, error) {
	friends, err := friendsJSON(user.Friends)
	if err != nil {
		return nil, err
	}
	record := &storage.User{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		Level:        string(user.Level),
		Friends:      friends,
		RegisteredAt: user.RegisteredAt,
		LastLoginAt:  user.LastLoginAt,
		ResetCode:    user.ResetCode,
	}
	for _, sess := range user.Sessions {
		record.Sessions = append(record.Sessions, storage.Session{
			UserID:  user.ID,
			Token:   sess.Token,
			IP:      sess.IP,
			Browser: sess.Browser,
		})
	}
	return record, nil
}

func fromRecord(record *storage.User) (model.User, error) {
	var friends []string
	if len(record.Friends) > 0 {
		if err := json.Unmarshal(record.Friends, &friends); err != nil {
			return model.User{}, err
		}
	}
	user := model.User{
		ID:           record.ID,
		Username:     record.Username,
		Email:        record.Email,
		PasswordHash: record.PasswordHash,
		Level:        model.Level(record.Level),
		Friends:      friends,
		RegisteredAt: record.RegisteredAt,
		LastLoginAt:  record.LastLoginAt,
		ResetCode:    record.ResetCode,
	}
	for _, sess := range record.Sessions {
		user.Sessions = append(user.Sessions, model.Session{
			Token:   sess.Token,
			IP:      sess.IP,
			Browser: sess.Browser,
		})
	}
	return user, nil
}
