// internal/domain/models/report.go
package models

import "time"

// ReportTarget is what a report points at.
type ReportTarget string

const (
	TargetProject ReportTarget = "project"
	TargetComment ReportTarget = "comment"
)

// ReportStatus is the moderation outcome of a report.
type ReportStatus string

const (
	ReportPending  ReportStatus = "Pendiente"
	ReportResolved ReportStatus = "Resuelto"
	ReportRejected ReportStatus = "Rechazado"
)

// ModerationAction is what staff did about a report.
type ModerationAction string

const (
	ActionHide   ModerationAction = "hide"
	ActionDelete ModerationAction = "delete"
	ActionReject ModerationAction = "reject"
)

// Report flags a project or comment for moderation.
type Report struct {
	ID          string           `bson:"_id" json:"id"`
	TargetType  ReportTarget     `bson:"target_type" json:"target_type"`
	TargetID    string           `bson:"target_id" json:"target_id"`
	ProjectID   string           `bson:"project_id" json:"project_id"`
	Reason      string           `bson:"reason" json:"reason"`
	ReporterID  string           `bson:"reporter_id" json:"reporter_id"`
	Status      ReportStatus     `bson:"status" json:"status"`
	ActionTaken ModerationAction `bson:"action_taken,omitempty" json:"action_taken,omitempty"`
	ActionBy    string           `bson:"action_by,omitempty" json:"action_by,omitempty"`
	ActionAt    *time.Time       `bson:"action_at,omitempty" json:"action_at,omitempty"`
	Timestamp   time.Time        `bson:"timestamp" json:"timestamp"`
}
