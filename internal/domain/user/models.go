package user

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidEmail = errors.New("valid email is required")
)

// User is owned by the signup flow. Aggregation only reads it.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CreateUserParams struct {
	Email string
}

// Normalize lowercases and trims the email before it is stored.
func (p *CreateUserParams) Normalize() {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
}

func (p CreateUserParams) Validate() error {
	at := strings.IndexByte(p.Email, '@')
	if at <= 0 || at == len(p.Email)-1 {
		return ErrInvalidEmail
	}
	return nil
}
