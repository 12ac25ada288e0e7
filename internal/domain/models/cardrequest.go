// internal/domain/models/cardrequest.go
package models

import "time"

// RequestStatus is shared by card and identity verification requests.
type RequestStatus string

const (
	RequestPending  RequestStatus = "Pendiente"
	RequestApproved RequestStatus = "Aprobada"
	RequestRejected RequestStatus = "Rechazada"
)

// CardRequest asks staff to issue a virtual card to a user.
type CardRequest struct {
	ID         string        `bson:"_id" json:"id"`
	UserID     string        `bson:"user_id" json:"user_id"`
	Email      string        `bson:"email" json:"email"`
	Status     RequestStatus `bson:"status" json:"status"`
	ResolvedBy string        `bson:"resolved_by,omitempty" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time    `bson:"resolved_at,omitempty" json:"resolved_at,omitempty"`
	Reason     string        `bson:"reason,omitempty" json:"reason,omitempty"`
	CardLast4  string        `bson:"card_last4,omitempty" json:"card_last4,omitempty"`
	CreatedAt  time.Time     `bson:"created_at" json:"created_at"`
}
