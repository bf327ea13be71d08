package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nagarseva-be/models"
	"nagarseva-be/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AssignmentLedger is the append-only history of responsibility hand-offs.
// It enforces the single-active-assignment invariant: before a new record
// goes in, any existing active one is flipped to "reassigned".
type AssignmentLedger struct {
	Store store.Store
}

// Record appends an assignment. Callers are expected to hold the per-issue
// lock (the workflow engine does), which is what makes the check-then-insert
// on the active record safe.
func (l *AssignmentLedger) Record(ctx context.Context, issueID, assignedBy, assignedTo primitive.ObjectID, typ models.AssignmentType, notes string) (*models.Assignment, error) {
	active, err := l.Store.ActiveAssignment(ctx, issueID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if active != nil {
		if err := l.Store.SetAssignmentStatus(ctx, active.ID, models.AssignmentReassigned, nil); err != nil {
			return nil, fmt.Errorf("reassign previous assignment: %w", err)
		}
	}

	assignment := &models.Assignment{
		IssueID:    issueID,
		AssignedBy: assignedBy,
		AssignedTo: assignedTo,
		Type:       typ,
		Notes:      notes,
		Status:     models.AssignmentActive,
		AssignedAt: time.Now(),
	}
	if err := l.Store.CreateAssignment(ctx, assignment); err != nil {
		return nil, err
	}
	return assignment, nil
}

// CompleteActive marks the issue's active assignment completed. Missing
// active assignment is not an error: resolution of a manually handled issue
// may have nothing to complete.
func (l *AssignmentLedger) CompleteActive(ctx context.Context, issueID primitive.ObjectID) error {
	active, err := l.Store.ActiveAssignment(ctx, issueID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}
	now := time.Now()
	return l.Store.SetAssignmentStatus(ctx, active.ID, models.AssignmentCompleted, &now)
}

// ListForIssue returns the issue's assignment history, newest first.
func (l *AssignmentLedger) ListForIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Assignment, error) {
	return l.Store.AssignmentsForIssue(ctx, issueID)
}
