package store

import (
	"context"
	"errors"
	"time"

	"nagarseva-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when a referenced document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleStage is returned by UpdateIssue when the issue's workflow
	// stage no longer matches the expected one (a concurrent transition won).
	ErrStaleStage = errors.New("stale workflow stage")
	// ErrDuplicate is returned on unique-constraint violations (department
	// code, one vote per user per issue).
	ErrDuplicate = errors.New("duplicate")
)

// IssueFilter narrows and pages issue listings.
type IssueFilter struct {
	Category string
	Status   string
	Stage    string
	Search   string
	Sort     string // "newest" (default) or "oldest"
	Page     int
	Limit    int
}

// IssueUpdate is a partial issue mutation. Nil fields are left untouched.
// Applied with a compare-and-swap on the expected workflow stage so that
// concurrent transitions on the same issue cannot both win.
type IssueUpdate struct {
	Stage                *models.WorkflowStage
	Status               *models.IssueStatus
	AssignedAreaID       *primitive.ObjectID
	AssignedDepartmentID *primitive.ObjectID
	CurrentAssigneeID    *primitive.ObjectID
	ResolutionNotes      *string
	ResolutionImages     []string
	ResolvedAt           *time.Time
}

// DailyCount is one day's issue intake, for the analytics endpoint.
type DailyCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// Analytics summarizes the issue pipeline.
type Analytics struct {
	TotalIssues    int64            `json:"totalIssues"`
	OpenIssues     int64            `json:"openIssues"`
	ResolvedIssues int64            `json:"resolvedIssues"`
	ByCategory     map[string]int64 `json:"issuesByCategory"`
	ByStage        map[string]int64 `json:"issuesByStage"`
	Last7Days      []DailyCount     `json:"last7Days"`
}

// Store is the persistence boundary shared by the Mongo-backed production
// store and the in-memory store used in tests.
type Store interface {
	// users
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	CountUsersByType(ctx context.Context, t models.UserType) (int64, error)
	DepartmentAdminFor(ctx context.Context, departmentID primitive.ObjectID) (*models.User, error)

	// administrative areas
	CreateArea(ctx context.Context, a *models.AdministrativeArea) error
	AreaByID(ctx context.Context, id primitive.ObjectID) (*models.AdministrativeArea, error)
	ActiveAreaByName(ctx context.Context, name string) (*models.AdministrativeArea, error)
	ListAreas(ctx context.Context) ([]models.AdministrativeArea, error)

	// departments
	CreateDepartment(ctx context.Context, d *models.Department) error
	DepartmentByID(ctx context.Context, id primitive.ObjectID) (*models.Department, error)
	ListDepartments(ctx context.Context) ([]models.Department, error)

	// issues
	CreateIssue(ctx context.Context, i *models.Issue) error
	IssueByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	ListIssues(ctx context.Context, f IssueFilter) ([]models.Issue, int64, error)
	IssuesByReporter(ctx context.Context, userID primitive.ObjectID) ([]models.Issue, error)
	UpdateIssue(ctx context.Context, id primitive.ObjectID, expected models.WorkflowStage, upd IssueUpdate) error
	IssueAnalytics(ctx context.Context) (*Analytics, error)

	// assignment ledger
	CreateAssignment(ctx context.Context, a *models.Assignment) error
	ActiveAssignment(ctx context.Context, issueID primitive.ObjectID) (*models.Assignment, error)
	SetAssignmentStatus(ctx context.Context, id primitive.ObjectID, status models.AssignmentStatus, completedAt *time.Time) error
	AssignmentsForIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Assignment, error)

	// work progress
	CreateWorkProgress(ctx context.Context, w *models.WorkProgressRecord) error
	WorkProgressByID(ctx context.Context, id primitive.ObjectID) (*models.WorkProgressRecord, error)
	WorkProgressForIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.WorkProgressRecord, error)
	SetWorkProgressReview(ctx context.Context, id primitive.ObjectID, status models.WorkStatus, reviewer primitive.ObjectID, notes string, at time.Time) error

	// tenders
	CreateTender(ctx context.Context, t *models.Tender) error
	TenderByID(ctx context.Context, id primitive.ObjectID) (*models.Tender, error)
	TendersForIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Tender, error)
	AwardTender(ctx context.Context, id primitive.ObjectID, contractorID primitive.ObjectID) error
	SetTenderStatus(ctx context.Context, id primitive.ObjectID, status models.TenderStatus) error

	// votes
	AddVote(ctx context.Context, v *models.Vote) error
	RemoveVote(ctx context.Context, issueID, userID primitive.ObjectID) error
	HasVoted(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error)
	CountVotes(ctx context.Context, issueID primitive.ObjectID) (int64, error)
}
