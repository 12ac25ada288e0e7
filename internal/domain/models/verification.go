// internal/domain/models/verification.go
package models

import "time"

// VerificationRequest is a KYC submission awaiting staff review.
type VerificationRequest struct {
	ID         string        `bson:"_id" json:"id"`
	UserID     string        `bson:"user_id" json:"user_id"`
	Email      string        `bson:"email" json:"email"`
	CINumber   string        `bson:"ci_number" json:"ci_number"`
	FrontImage string        `bson:"front_image" json:"front_image"`
	Status     RequestStatus `bson:"status" json:"status"`
	Reason     string        `bson:"reason,omitempty" json:"reason,omitempty"`
	ResolvedBy string        `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time    `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	CreatedAt  time.Time     `bson:"created_at" json:"created_at"`
}
