// Package users manages accounts, password credentials and bearer tokens.
package users

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// User is a registered account
type User struct {
	ID             int64
	Email          string
	Username       string
	FullName       string
	HashedPassword string
	IsActive       bool
	CashBalance    decimal.Decimal
	CreatedAt      time.Time
}

// RegisterInput holds the fields required to create an account
type RegisterInput struct {
	Email    string
	Username string
	FullName string
	Password string
}

var (
	ErrEmailTaken         = errors.New("Email already registered")
	ErrUsernameTaken      = errors.New("Username already taken")
	ErrInvalidCredentials = errors.New("Incorrect email or password")
	ErrInactiveUser       = errors.New("Inactive user account")
	ErrInvalidToken       = errors.New("Could not validate credentials")
	ErrUserNotFound       = errors.New("user not found")
)
