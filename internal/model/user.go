package model

import "time"

// User is the identity record as persisted by the credential store. The
// password hash never leaves the repository/service layer; handlers only
// ever see PublicUser.
type User struct {
	ID                  string
	Username            string
	Email               string
	PasswordHash        string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	IsActive            bool
	LastLogin           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Locked reports whether the account is inside an active lock window.
func (u User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}

// LockRemaining returns how long the active lock still holds, or zero.
func (u User) LockRemaining(now time.Time) time.Duration {
	if !u.Locked(now) {
		return 0
	}
	return u.LockedUntil.Sub(now)
}

// PublicUser is the externally visible projection of a User.
type PublicUser struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Email     string     `json:"email,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Public strips internal-only fields from the record.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
	}
}

// NewUser carries the fields needed to create an identity. Password is
// plaintext here; the store hashes it before persistence and it is never
// stored or logged as-is.
type NewUser struct {
	Username string
	Email    string
	Password string
}

// TokenClaims are the identity claims carried by an issued token.
type TokenClaims struct {
	SubjectID string
	Username  string
	IssuedAt  time.Time
}
