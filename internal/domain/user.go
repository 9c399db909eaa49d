// Package domain contains core business types and interfaces.
//
// This file defines the User and Session types used by authentication.
// These types are separate from the repository rows so that business logic
// does not depend on sql.Null* handling.
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User represents a registered user.
type User struct {
	ID               uuid.UUID
	Email            string
	Name             string
	StripeCustomerID string
	CreatedAt        time.Time
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session represents an authenticated session.
//
// Sessions are stored with a hashed token; the raw bearer token is only ever
// held by the client.
type Session struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string // SHA-256 hash of the bearer token
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired returns true if the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
