package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueCategory enum
type IssueCategory string

const (
	Roads       IssueCategory = "roads"
	Utilities   IssueCategory = "utilities"
	Environment IssueCategory = "environment"
	Safety      IssueCategory = "safety"
	Parks       IssueCategory = "parks"
	Other       IssueCategory = "other"
)

// IssuePriority enum
type IssuePriority string

const (
	Low    IssuePriority = "low"
	Medium IssuePriority = "medium"
	High   IssuePriority = "high"
	Urgent IssuePriority = "urgent"
)

// IssueStatus enum
type IssueStatus string

const (
	Pending    IssueStatus = "pending"
	InProgress IssueStatus = "in_progress"
	Resolved   IssueStatus = "resolved"
)

// WorkflowStage enum: the issue's position in the resolution pipeline
type WorkflowStage string

const (
	StageReported           WorkflowStage = "reported"
	StageAreaReview         WorkflowStage = "area_review"
	StageDepartmentAssigned WorkflowStage = "department_assigned"
	StageContractorAssigned WorkflowStage = "contractor_assigned"
	StageInProgress         WorkflowStage = "in_progress"
	StageDepartmentReview   WorkflowStage = "department_review"
	StageAreaApproval       WorkflowStage = "area_approval"
	StageResolved           WorkflowStage = "resolved"
)

// Issue represents a civic issue reported by a citizen
type Issue struct {
	ID                   primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Title                string              `bson:"title" json:"title"`
	Description          string              `bson:"description" json:"description"`
	Category             IssueCategory       `bson:"category" json:"category"`
	Priority             IssuePriority       `bson:"priority" json:"priority"`
	Area                 string              `bson:"area" json:"area"`
	Ward                 string              `bson:"ward,omitempty" json:"ward,omitempty"`
	Address              string              `bson:"address,omitempty" json:"address,omitempty"`
	Latitude             *float64            `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude            *float64            `bson:"longitude,omitempty" json:"longitude,omitempty"`
	ImageURLs            []string            `bson:"imageUrls,omitempty" json:"imageUrls,omitempty"`
	Stage                WorkflowStage       `bson:"workflowStage" json:"workflowStage"`
	Status               IssueStatus         `bson:"status" json:"status"`
	ReportedBy           primitive.ObjectID  `bson:"reportedBy" json:"reportedBy"`
	AssignedAreaID       *primitive.ObjectID `bson:"assignedAreaId,omitempty" json:"assignedAreaId,omitempty"`
	AssignedDepartmentID *primitive.ObjectID `bson:"assignedDepartmentId,omitempty" json:"assignedDepartmentId,omitempty"`
	CurrentAssigneeID    *primitive.ObjectID `bson:"currentAssigneeId,omitempty" json:"currentAssigneeId,omitempty"`
	ResolutionNotes      string              `bson:"resolutionNotes,omitempty" json:"resolutionNotes,omitempty"`
	ResolutionImages     []string            `bson:"resolutionImages,omitempty" json:"resolutionImages,omitempty"`
	ResolvedAt           *time.Time          `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`
	CreatedAt            time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time           `bson:"updatedAt" json:"updatedAt"`
}
