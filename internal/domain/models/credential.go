// internal/domain/models/credential.go
package models

import "time"

// Credential is a password login bound to a user id.
type Credential struct {
	ID           string    `bson:"_id" json:"-"` // email_ci
	UserID       string    `bson:"user_id" json:"user_id"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}
