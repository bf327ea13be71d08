package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TenderStatus enum
type TenderStatus string

const (
	TenderOpen      TenderStatus = "open"
	TenderAwarded   TenderStatus = "awarded"
	TenderCancelled TenderStatus = "cancelled"
)

// Tender is a department-issued work contract opportunity for an issue.
// Awarding a tender to a contractor hands the issue off to them.
type Tender struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	IssueID       primitive.ObjectID  `bson:"issue" json:"issue"`
	DepartmentID  primitive.ObjectID  `bson:"department" json:"department"`
	CreatedBy     primitive.ObjectID  `bson:"createdBy" json:"createdBy"`
	Title         string              `bson:"title" json:"title"`
	Description   string              `bson:"description,omitempty" json:"description,omitempty"`
	EstimatedCost *float64            `bson:"estimatedCost,omitempty" json:"estimatedCost,omitempty"`
	Status        TenderStatus        `bson:"status" json:"status"`
	AwardedTo     *primitive.ObjectID `bson:"awardedTo,omitempty" json:"awardedTo,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time           `bson:"updatedAt" json:"updatedAt"`
}
