package storage

import (
	"time"

	"gorm.io/datatypes"
)

// User is the GORM model backing the sqlite user store.
type User struct {
	ID           string         `gorm:"primaryKey;size:36"`
	Username     string         `gorm:"uniqueIndex;not null"`
	Email        string         `gorm:"uniqueIndex;not null"`
	PasswordHash string         `gorm:"not null"`
	Level        string         `gorm:"not null;default:user"`
	Friends      datatypes.JSON `gorm:"type:json"`
	RegisteredAt time.Time      `gorm:"not null"`
	LastLoginAt  *time.Time
	ResetCode    string
	Sessions     []Session `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

// Session rows have no independent lifecycle: they are created and removed
// only through their owning user record. The unique index over the full
// (user, token, ip, browser) tuple gives the store its set semantics.
type Session struct {
	ID      uint   `gorm:"primaryKey"`
	UserID  string `gorm:"size:36;index;uniqueIndex:idx_session_tuple;not null"`
	Token   string `gorm:"index;uniqueIndex:idx_session_tuple;not null"`
	IP      string `gorm:"uniqueIndex:idx_session_tuple;not null"`
	Browser string `gorm:"uniqueIndex:idx_session_tuple;not null"`
}

// MigrationRecord tracks applied schema migrations.
type MigrationRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Version   string    `gorm:"uniqueIndex;not null"`
	Name      string    `gorm:"not null"`
	AppliedAt time.Time `gorm:"not null"`
}
