package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User represents a Telegram user known to the service
type User struct {
	ID         int64     `json:"id" db:"id"`
	TelegramID int64     `json:"telegramId,string" db:"telegram_id"`
	Username   string    `json:"username,omitempty" db:"username"`
	FirstName  string    `json:"firstName,omitempty" db:"first_name"`
	LastName   string    `json:"lastName,omitempty" db:"last_name"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// DisplayName returns the name used in group notifications.
func (u *User) DisplayName() string {
	switch {
	case u == nil:
		return "Someone"
	case u.FirstName != "":
		return u.FirstName
	case u.Username != "":
		return u.Username
	default:
		return "Someone"
	}
}

// Author is the public projection of a User attached to sections and items.
type Author struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Username  string `json:"username,omitempty"`
}

// TelegramProfile is the upsert input for a user, keyed by TelegramID.
// Empty names never erase stored values.
type TelegramProfile struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// SessionClaims are the JWT claims of a session token. The subject holds the
// internal user id; telegramId and chatId travel as strings.
type SessionClaims struct {
	TelegramID int64 `json:"telegramId,string"`
	SpaceID    int64 `json:"spaceId"`
	ChatID     int64 `json:"chatId,string"`
	Role       Role  `json:"role"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *SessionClaims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return id, nil
}
