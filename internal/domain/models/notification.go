// internal/domain/models/notification.go
package models

import "time"

// Audience names a broadcast group.
type Audience string

const (
	AudienceAdmins Audience = "admins"
	AudienceMods   Audience = "mods"
)

// Notification types.
const (
	NoticeDonationReceived  = "donation_received"
	NoticeGoalReached       = "goal_reached"
	NoticeCardRequest       = "card_request"
	NoticeCardApproved      = "card_approved"
	NoticeCardRejected      = "card_rejected"
	NoticeKYCRequest        = "kyc_request"
	NoticeKYCStatus         = "id_verification_status"
	NoticeProjectReported   = "project_reported"
	NoticeCommentReported   = "comment_reported"
	NoticeProjectModerated  = "project_moderated"
	NoticeNewComment        = "new_comment"
	NoticeFundsWithdrawn    = "funds_withdrawn"
	NoticePendingReviewList = "pending_review_digest"
)

// Notification is addressed either to one user or to an audience.
type Notification struct {
	ID           string            `bson:"_id" json:"id"`
	TargetUserID string            `bson:"target_user_id,omitempty" json:"target_user_id,omitempty"`
	Audience     Audience          `bson:"audience,omitempty" json:"audience,omitempty"`
	ActorUserID  string            `bson:"actor_user_id,omitempty" json:"actor_user_id,omitempty"`
	Type         string            `bson:"type" json:"type"`
	Title        string            `bson:"title" json:"title"`
	Body         string            `bson:"body" json:"body"`
	Link         string            `bson:"link,omitempty" json:"link,omitempty"`
	Meta         map[string]string `bson:"meta,omitempty" json:"meta,omitempty"`
	Read         bool              `bson:"read" json:"read"`
	Timestamp    time.Time         `bson:"timestamp" json:"timestamp"`
}
