package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkStatus enum
type WorkStatus string

const (
	WorkSubmitted   WorkStatus = "submitted"
	WorkUnderReview WorkStatus = "under_review"
	WorkApproved    WorkStatus = "approved"
	WorkRejected    WorkStatus = "rejected"
)

// WorkProgressRecord is completion evidence submitted by the current
// assignee. After-images are mandatory. The record is mutated only by a
// reviewer moving its status, and is immutable once approved.
type WorkProgressRecord struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	IssueID      primitive.ObjectID  `bson:"issue" json:"issue"`
	SubmittedBy  primitive.ObjectID  `bson:"submittedBy" json:"submittedBy"`
	Title        string              `bson:"title" json:"title"`
	Description  string              `bson:"description" json:"description"`
	BeforeImages []string            `bson:"beforeImages,omitempty" json:"beforeImages,omitempty"`
	AfterImages  []string            `bson:"afterImages" json:"afterImages"`
	Materials    string              `bson:"materials,omitempty" json:"materials,omitempty"`
	Cost         *float64            `bson:"cost,omitempty" json:"cost,omitempty"`
	Status       WorkStatus          `bson:"status" json:"status"`
	ReviewedBy   *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewNotes  string              `bson:"reviewNotes,omitempty" json:"reviewNotes,omitempty"`
	ReviewedAt   *time.Time          `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	CreatedAt    time.Time           `bson:"createdAt" json:"createdAt"`
}
