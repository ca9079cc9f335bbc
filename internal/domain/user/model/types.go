package model

import "time"

// Level is the coarse authorization tier of an account.
type Level string

const (
	LevelAdmin Level = "admin"
	LevelUser  Level = "user"
)

// Valid reports whether the level is one of the known tiers.
func (l Level) Valid() bool {
	return l == LevelAdmin || l == LevelUser
}

// Session binds an opaque token to the client fingerprint it was issued for.
// A token is only valid together with the exact IP and browser family that
// were observed at login.
type Session struct {
	Token   string `json:"sessionId"`
	IP      string `json:"ip"`
	Browser string `json:"browser"`
}

// User is the account record persisted by the user store.
// PasswordHash and ResetCode never leave the process; Sanitize clears them
// before a record is handed to any external caller.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Level        Level      `json:"level"`
	Friends      []string   `json:"friends"`
	RegisteredAt time.Time  `json:"registeredAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	Sessions     []Session  `json:"-"`
	ResetCode    string     `json:"-"`

	// SessionID carries the token minted or matched for this request.
	// It is transient and never persisted on the record itself.
	SessionID string `json:"sessionId,omitempty"`
}

// Sanitize strips secret material from the record.
func (u *User) Sanitize() {
	u.PasswordHash = ""
	u.ResetCode = ""
}

// HasSession reports whether the exact (token, ip, browser) triple is present.
func (u *User) HasSession(token, ip, browser string) bool {
	for _, s := range u.Sessions {
		if s.Token == token && s.IP == ip && s.Browser == browser {
			return true
		}
	}
	return false
}

// Logger provides the minimal logging contract required by the user domain.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}
