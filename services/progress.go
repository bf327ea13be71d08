package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nagarseva-be/models"
	"nagarseva-be/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkProgressTracker collects completion evidence and gates resolution
// behind a two-step review: the department signs off first, then the area
// super admin approves and the issue resolves. Rejection at either gate
// returns the issue to in_progress so the assignee can resubmit.
type WorkProgressTracker struct {
	Store  store.Store
	Engine *WorkflowEngine
}

// SubmitInput is the completion evidence payload.
type SubmitInput struct {
	Title        string
	Description  string
	BeforeImages []string
	AfterImages  []string
	Materials    string
	Cost         *float64
}

// Submit records completion evidence for an in_progress issue and moves it
// to department_review. At least one after-image and a non-blank description
// are mandatory.
func (t *WorkProgressTracker) Submit(ctx context.Context, actor *models.User, issueID primitive.ObjectID, in SubmitInput) (*models.WorkProgressRecord, error) {
	if len(in.AfterImages) == 0 {
		return nil, fmt.Errorf("%w: at least one after-image is required", ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return nil, fmt.Errorf("%w: description must not be blank", ErrValidation)
	}

	mu := t.Engine.locks.forIssue(issueID)
	mu.Lock()
	defer mu.Unlock()

	issue, err := t.Store.IssueByID(ctx, issueID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if issue.Stage != models.StageInProgress {
		return nil, fmt.Errorf("%w: work can be submitted only from in_progress, issue is at %s", ErrInvalidTransition, issue.Stage)
	}
	if issue.CurrentAssigneeID == nil || *issue.CurrentAssigneeID != actor.ID {
		return nil, fmt.Errorf("%w: only the current assignee may submit work", ErrNotAuthorized)
	}

	record := &models.WorkProgressRecord{
		IssueID:      issueID,
		SubmittedBy:  actor.ID,
		Title:        in.Title,
		Description:  in.Description,
		BeforeImages: in.BeforeImages,
		AfterImages:  in.AfterImages,
		Materials:    in.Materials,
		Cost:         in.Cost,
		Status:       models.WorkSubmitted,
		CreatedAt:    time.Now(),
	}
	if err := t.Store.CreateWorkProgress(ctx, record); err != nil {
		return nil, err
	}

	stage := models.StageDepartmentReview
	if err := t.Store.UpdateIssue(ctx, issueID, issue.Stage, store.IssueUpdate{Stage: &stage}); err != nil {
		return nil, wrapStoreErr(err)
	}
	return record, nil
}

// Approve advances a record through the review gates. At department_review
// the department endorses the work and the issue moves to area_approval; at
// area_approval the area super admin's approval resolves the issue, copying
// the record's description and after-images into the resolution fields and
// completing the active assignment. Approving an already finalized record
// fails with ErrInvalidTransition.
func (t *WorkProgressTracker) Approve(ctx context.Context, actor *models.User, recordID primitive.ObjectID, notes string) (*models.WorkProgressRecord, error) {
	return t.review(ctx, actor, recordID, notes, true)
}

// Reject sends the record back: its status becomes rejected and the issue
// returns to in_progress with the submitting assignee unchanged.
func (t *WorkProgressTracker) Reject(ctx context.Context, actor *models.User, recordID primitive.ObjectID, notes string) (*models.WorkProgressRecord, error) {
	return t.review(ctx, actor, recordID, notes, false)
}

func (t *WorkProgressTracker) review(ctx context.Context, actor *models.User, recordID primitive.ObjectID, notes string, approve bool) (*models.WorkProgressRecord, error) {
	record, err := t.Store.WorkProgressByID(ctx, recordID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if record.Status == models.WorkApproved || record.Status == models.WorkRejected {
		return nil, fmt.Errorf("%w: record already %s", ErrInvalidTransition, record.Status)
	}

	mu := t.Engine.locks.forIssue(record.IssueID)
	mu.Lock()
	defer mu.Unlock()

	issue, err := t.Store.IssueByID(ctx, record.IssueID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	now := time.Now()
	switch issue.Stage {
	case models.StageDepartmentReview:
		if err := t.Engine.AuthorizeDepartmentActor(actor, issue); err != nil {
			return nil, err
		}
		if approve {
			if err := t.Store.SetWorkProgressReview(ctx, recordID, models.WorkUnderReview, actor.ID, notes, now); err != nil {
				return nil, wrapStoreErr(err)
			}
			stage := models.StageAreaApproval
			if err := t.Store.UpdateIssue(ctx, issue.ID, issue.Stage, store.IssueUpdate{Stage: &stage}); err != nil {
				return nil, wrapStoreErr(err)
			}
		} else {
			if err := t.rejectBack(ctx, issue, recordID, actor.ID, notes, now); err != nil {
				return nil, err
			}
		}

	case models.StageAreaApproval:
		if err := t.Engine.authorizeAreaActor(ctx, actor, issue); err != nil {
			return nil, err
		}
		if approve {
			if err := t.resolve(ctx, issue, record, actor.ID, notes, now); err != nil {
				return nil, err
			}
		} else {
			if err := t.rejectBack(ctx, issue, recordID, actor.ID, notes, now); err != nil {
				return nil, err
			}
		}

	default:
		return nil, fmt.Errorf("%w: issue is at %s, nothing to review", ErrInvalidTransition, issue.Stage)
	}

	return t.Store.WorkProgressByID(ctx, recordID)
}

// rejectBack marks the record rejected and returns the issue to in_progress
// for resubmission by the same assignee.
func (t *WorkProgressTracker) rejectBack(ctx context.Context, issue *models.Issue, recordID, reviewer primitive.ObjectID, notes string, now time.Time) error {
	if err := t.Store.SetWorkProgressReview(ctx, recordID, models.WorkRejected, reviewer, notes, now); err != nil {
		return wrapStoreErr(err)
	}
	stage := models.StageInProgress
	if err := t.Store.UpdateIssue(ctx, issue.ID, issue.Stage, store.IssueUpdate{Stage: &stage}); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// resolve closes the issue from an approved record: resolution fields copied
// from the record, active assignment completed, resolution and points events
// emitted.
func (t *WorkProgressTracker) resolve(ctx context.Context, issue *models.Issue, record *models.WorkProgressRecord, reviewer primitive.ObjectID, notes string, now time.Time) error {
	if err := t.Store.SetWorkProgressReview(ctx, record.ID, models.WorkApproved, reviewer, notes, now); err != nil {
		return wrapStoreErr(err)
	}

	stage := models.StageResolved
	status := models.Resolved
	resolutionNotes := record.Description
	if err := t.Store.UpdateIssue(ctx, issue.ID, issue.Stage, store.IssueUpdate{
		Stage:            &stage,
		Status:           &status,
		ResolutionNotes:  &resolutionNotes,
		ResolutionImages: record.AfterImages,
		ResolvedAt:       &now,
	}); err != nil {
		return wrapStoreErr(err)
	}

	if err := t.Engine.Ledger.CompleteActive(ctx, issue.ID); err != nil {
		return err
	}

	t.Engine.Emitter.Emit(ctx, Event{
		Type:      EventIssueResolved,
		IssueID:   issue.ID.Hex(),
		UserID:    issue.ReportedBy.Hex(),
		Notes:     resolutionNotes,
		CreatedAt: now,
	})
	t.Engine.Emitter.Emit(ctx, Event{
		Type:      EventPointsAwarded,
		IssueID:   issue.ID.Hex(),
		UserID:    issue.ReportedBy.Hex(),
		Points:    PointsIssueResolved,
		CreatedAt: now,
	})
	return nil
}
