package model

import (
	"time"

	"github.com/google/uuid"
)

type SubmissionStatus string

const (
	StatusDraft       SubmissionStatus = "Draft"
	StatusSitePublish SubmissionStatus = "Site Publish"
	StatusSendToHQ    SubmissionStatus = "Send to HQ Approval"
	StatusHQApproved  SubmissionStatus = "HQ Approved"
	StatusSiteHold    SubmissionStatus = "Site Hold"
)

// Submission is the per-site-per-day workflow record. invGen and abtExport are
// kWh, poa is kWh/m². Status moves only through the transition rules in the
// service layer; previousStatus is a one-level undo slot for Site Hold.
type Submission struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Site           string           `gorm:"index;not null" json:"site"`
	Date           time.Time        `gorm:"index;not null" json:"date"`
	InvGen         float64          `gorm:"not null;default:0" json:"invGen"`
	AbtExport      float64          `gorm:"not null;default:0" json:"abtExport"`
	POA            float64          `gorm:"not null;default:0" json:"poa"`
	Status         SubmissionStatus `gorm:"not null;default:Draft" json:"status"`
	PreviousStatus SubmissionStatus `gorm:"default:null" json:"previousStatus,omitempty"`
	SubmittedBy    *uuid.UUID       `gorm:"type:uuid" json:"submittedBy,omitempty"`
	CreatedAt      time.Time        `json:"createdAt"`
	UpdatedAt      time.Time        `json:"updatedAt"`
}

// StatusCounts is the stats payload: total plus a count per workflow status.
type StatusCounts struct {
	Total            int64 `json:"total"`
	Draft            int64 `json:"Draft"`
	SitePublish      int64 `json:"Site Publish"`
	SendToHQApproval int64 `json:"Send to HQ Approval"`
	HQApproved       int64 `json:"HQ Approved"`
	SiteHold         int64 `json:"Site Hold"`
}
