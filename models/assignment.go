package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentType enum
type AssignmentType string

const (
	AssignAreaAdmin       AssignmentType = "area_admin"
	AssignDepartmentAdmin AssignmentType = "department_admin"
	AssignContractor      AssignmentType = "contractor"
)

// AssignmentStatus enum
type AssignmentStatus string

const (
	AssignmentActive     AssignmentStatus = "active"
	AssignmentCompleted  AssignmentStatus = "completed"
	AssignmentReassigned AssignmentStatus = "reassigned"
	AssignmentCancelled  AssignmentStatus = "cancelled"
)

// Assignment is one hand-off of responsibility for an issue. The ledger is
// append-only: reassignment flips the previous record to "reassigned" and
// appends a new one. At most one assignment per issue is "active" at a time.
type Assignment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IssueID     primitive.ObjectID `bson:"issue" json:"issue"`
	AssignedBy  primitive.ObjectID `bson:"assignedBy" json:"assignedBy"`
	AssignedTo  primitive.ObjectID `bson:"assignedTo" json:"assignedTo"`
	Type        AssignmentType     `bson:"type" json:"type"`
	Notes       string             `bson:"notes,omitempty" json:"notes,omitempty"`
	Status      AssignmentStatus   `bson:"status" json:"status"`
	AssignedAt  time.Time          `bson:"assignedAt" json:"assignedAt"`
	CompletedAt *time.Time         `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}
