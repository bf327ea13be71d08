package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"nagarseva-be/models"
	"nagarseva-be/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// issueLocks hands out one mutex per issue ID so that read-then-write
// transitions on the same issue are serialized in-process. Cross-process
// safety comes from the stage compare-and-swap in the store. Entries are
// never evicted, so the map grows with the set of issues this process has
// mutated; each entry is a single mutex.
type issueLocks struct {
	mu sync.Mutex
	m  map[string]*sync.Mutex
}

func (l *issueLocks) forIssue(id primitive.ObjectID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.m == nil {
		l.m = make(map[string]*sync.Mutex)
	}
	key := id.Hex()
	mu, ok := l.m[key]
	if !ok {
		mu = &sync.Mutex{}
		l.m[key] = mu
	}
	return mu
}

// WorkflowEngine is the single authority for an issue's workflow stage and
// current assignee. Every mutating operation takes the acting user
// explicitly and applies its stage change with a compare-and-swap, so a
// concurrent transition that lost the race surfaces as ErrConflict instead
// of silently overwriting.
type WorkflowEngine struct {
	Store    store.Store
	Resolver *AssignmentResolver
	Ledger   *AssignmentLedger
	Emitter  Emitter

	locks issueLocks
}

func NewWorkflowEngine(st store.Store, emitter Emitter) *WorkflowEngine {
	if emitter == nil {
		emitter = LogEmitter{}
	}
	return &WorkflowEngine{
		Store:    st,
		Resolver: &AssignmentResolver{Store: st},
		Ledger:   &AssignmentLedger{Store: st},
		Emitter:  emitter,
	}
}

func isAdmin(u *models.User) bool {
	return u.UserType == models.Admin
}

// wrapStoreErr translates storage sentinels into the service taxonomy.
func wrapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, store.ErrStaleStage):
		return fmt.Errorf("%w: concurrent transition won the race", ErrConflict)
	default:
		return err
	}
}

// Intake persists a freshly reported issue and attempts the one-shot
// automatic area match. On a match with a responsible admin the issue moves
// straight to area_review and the first assignment is recorded; otherwise it
// stays in reported for manual triage.
func (e *WorkflowEngine) Intake(ctx context.Context, issue *models.Issue) error {
	now := time.Now()
	issue.Stage = models.StageReported
	issue.Status = models.Pending
	issue.CreatedAt = now
	issue.UpdatedAt = now

	area, admin, err := e.Resolver.Resolve(ctx, issue.Area)
	if err != nil {
		return err
	}
	if area != nil {
		areaID := area.ID
		issue.AssignedAreaID = &areaID
	}
	if admin != nil {
		adminID := admin.ID
		issue.Stage = models.StageAreaReview
		issue.CurrentAssigneeID = &adminID
	}

	if err := e.Store.CreateIssue(ctx, issue); err != nil {
		return err
	}

	if admin != nil {
		// Auto-match has no human assigner; the record is booked against the
		// assignee themselves.
		if _, err := e.Ledger.Record(ctx, issue.ID, admin.ID, admin.ID, models.AssignAreaAdmin, "auto-assigned by area match"); err != nil {
			return err
		}
		e.Emitter.Emit(ctx, Event{
			Type:      EventIssueAssigned,
			IssueID:   issue.ID.Hex(),
			UserID:    admin.ID.Hex(),
			CreatedAt: time.Now(),
		})
	}
	return nil
}

// AssignArea is the manual triage path for issues the resolver could not
// place. Admin only. The target area must have a super admin to hand the
// issue to.
func (e *WorkflowEngine) AssignArea(ctx context.Context, actor *models.User, issueID, areaID primitive.ObjectID, notes string) (*models.Issue, error) {
	if !isAdmin(actor) {
		return nil, fmt.Errorf("%w: only admins can triage unmatched issues", ErrNotAuthorized)
	}

	mu := e.locks.forIssue(issueID)
	mu.Lock()
	defer mu.Unlock()

	issue, err := e.Store.IssueByID(ctx, issueID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if issue.Stage != models.StageReported {
		return nil, fmt.Errorf("%w: issue is at %s, manual triage applies to reported issues", ErrInvalidTransition, issue.Stage)
	}

	area, err := e.Store.AreaByID(ctx, areaID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if !area.Active {
		return nil, fmt.Errorf("%w: area %s is inactive", ErrValidation, area.Name)
	}
	if area.AreaSuperAdminID == nil {
		return nil, fmt.Errorf("%w: area %s has no super admin", ErrValidation, area.Name)
	}
	admin, err := e.Store.UserByID(ctx, *area.AreaSuperAdminID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	stage := models.StageAreaReview
	adminID := admin.ID
	if err := e.Store.UpdateIssue(ctx, issueID, issue.Stage, store.IssueUpdate{
		Stage:             &stage,
		AssignedAreaID:    &area.ID,
		CurrentAssigneeID: &adminID,
	}); err != nil {
		return nil, wrapStoreErr(err)
	}

	if _, err := e.Ledger.Record(ctx, issueID, actor.ID, admin.ID, models.AssignAreaAdmin, notes); err != nil {
		return nil, err
	}
	e.Emitter.Emit(ctx, Event{
		Type:      EventIssueAssigned,
		IssueID:   issueID.Hex(),
		UserID:    admin.ID.Hex(),
		CreatedAt: time.Now(),
	})
	return e.Store.IssueByID(ctx, issueID)
}

// AssignDepartment moves an issue from area_review to department_assigned.
// Authorization is the strict reading: the matched area's own super admin,
// or a global admin. assigneeID may be zero, in which case any department
// admin of the target department is picked.
func (e *WorkflowEngine) AssignDepartment(ctx context.Context, actor *models.User, issueID, departmentID primitive.ObjectID, assigneeID primitive.ObjectID, notes string) (*models.Issue, error) {
	mu := e.locks.forIssue(issueID)
	mu.Lock()
	defer mu.Unlock()

	issue, err := e.Store.IssueByID(ctx, issueID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if issue.Stage != models.StageAreaReview {
		return nil, fmt.Errorf("%w: cannot assign a department from %s", ErrInvalidTransition, issue.Stage)
	}

	if !isAdmin(actor) {
		if actor.UserType != models.AreaSuperAdmin || issue.AssignedAreaID == nil {
			return nil, fmt.Errorf("%w: only the area's super admin or an admin may assign a department", ErrNotAuthorized)
		}
		area, err := e.Store.AreaByID(ctx, *issue.AssignedAreaID)
		if err != nil {
			return nil, wrapStoreErr(err)
		}
		if area.AreaSuperAdminID == nil || *area.AreaSuperAdminID != actor.ID {
			return nil, fmt.Errorf("%w: issue belongs to another area's super admin", ErrNotAuthorized)
		}
	}

	department, err := e.Store.DepartmentByID(ctx, departmentID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if !department.Active {
		return nil, fmt.Errorf("%w: department %s is inactive", ErrValidation, department.Code)
	}

	var assignee *models.User
	if !assigneeID.IsZero() {
		assignee, err = e.Store.UserByID(ctx, assigneeID)
		if err != nil {
			return nil, wrapStoreErr(err)
		}
		if assignee.UserType != models.DepartmentAdmin || assignee.AssignedDepartmentID == nil || *assignee.AssignedDepartmentID != departmentID {
			return nil, fmt.Errorf("%w: assignee is not an admin of department %s", ErrValidation, department.Code)
		}
	} else {
		assignee, err = e.Store.DepartmentAdminFor(ctx, departmentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("%w: department %s has no admin to assign", ErrValidation, department.Code)
			}
			return nil, err
		}
	}

	stage := models.StageDepartmentAssigned
	adminID := assignee.ID
	if err := e.Store.UpdateIssue(ctx, issueID, issue.Stage, store.IssueUpdate{
		Stage:                &stage,
		AssignedDepartmentID: &department.ID,
		CurrentAssigneeID:    &adminID,
	}); err != nil {
		return nil, wrapStoreErr(err)
	}

	if _, err := e.Ledger.Record(ctx, issueID, actor.ID, assignee.ID, models.AssignDepartmentAdmin, notes); err != nil {
		return nil, err
	}
	e.Emitter.Emit(ctx, Event{
		Type:      EventIssueAssigned,
		IssueID:   issueID.Hex(),
		UserID:    assignee.ID.Hex(),
		CreatedAt: time.Now(),
	})
	return e.Store.IssueByID(ctx, issueID)
}

// AwardContract hands an issue from department_assigned to a contractor.
// Authorization: a department admin of the issue's department, or an admin.
func (e *WorkflowEngine) AwardContract(ctx context.Context, actor *models.User, issueID, contractorID primitive.ObjectID, notes string) (*models.Issue, error) {
	mu := e.locks.forIssue(issueID)
	mu.Lock()
	defer mu.Unlock()

	issue, err := e.Store.IssueByID(ctx, issueID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if issue.Stage != models.StageDepartmentAssigned {
		return nil, fmt.Errorf("%w: cannot award a contract from %s", ErrInvalidTransition, issue.Stage)
	}
	if err := e.AuthorizeDepartmentActor(actor, issue); err != nil {
		return nil, err
	}

	contractor, err := e.Store.UserByID(ctx, contractorID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if contractor.UserType != models.Contractor {
		return nil, fmt.Errorf("%w: awardee is not a contractor", ErrValidation)
	}

	stage := models.StageContractorAssigned
	cID := contractor.ID
	if err := e.Store.UpdateIssue(ctx, issueID, issue.Stage, store.IssueUpdate{
		Stage:             &stage,
		CurrentAssigneeID: &cID,
	}); err != nil {
		return nil, wrapStoreErr(err)
	}

	if _, err := e.Ledger.Record(ctx, issueID, actor.ID, contractor.ID, models.AssignContractor, notes); err != nil {
		return nil, err
	}
	e.Emitter.Emit(ctx, Event{
		Type:      EventIssueAssigned,
		IssueID:   issueID.Hex(),
		UserID:    contractor.ID.Hex(),
		CreatedAt: time.Now(),
	})
	return e.Store.IssueByID(ctx, issueID)
}

// StartWork moves an assigned issue to in_progress. Only the current
// assignee may begin work.
func (e *WorkflowEngine) StartWork(ctx context.Context, actor *models.User, issueID primitive.ObjectID) (*models.Issue, error) {
	mu := e.locks.forIssue(issueID)
	mu.Lock()
	defer mu.Unlock()

	issue, err := e.Store.IssueByID(ctx, issueID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if issue.Stage != models.StageDepartmentAssigned && issue.Stage != models.StageContractorAssigned {
		return nil, fmt.Errorf("%w: cannot start work from %s", ErrInvalidTransition, issue.Stage)
	}
	if issue.CurrentAssigneeID == nil || *issue.CurrentAssigneeID != actor.ID {
		return nil, fmt.Errorf("%w: only the current assignee may start work", ErrNotAuthorized)
	}

	stage := models.StageInProgress
	status := models.InProgress
	if err := e.Store.UpdateIssue(ctx, issueID, issue.Stage, store.IssueUpdate{
		Stage:  &stage,
		Status: &status,
	}); err != nil {
		return nil, wrapStoreErr(err)
	}
	return e.Store.IssueByID(ctx, issueID)
}

// AuthorizeDepartmentActor checks that the actor may act for the issue's
// assigned department: its own department admins or a global admin.
func (e *WorkflowEngine) AuthorizeDepartmentActor(actor *models.User, issue *models.Issue) error {
	if isAdmin(actor) {
		return nil
	}
	if actor.UserType != models.DepartmentAdmin {
		return fmt.Errorf("%w: only department admins or admins may act here", ErrNotAuthorized)
	}
	if issue.AssignedDepartmentID == nil || actor.AssignedDepartmentID == nil || *actor.AssignedDepartmentID != *issue.AssignedDepartmentID {
		return fmt.Errorf("%w: issue belongs to another department", ErrNotAuthorized)
	}
	return nil
}

// authorizeAreaActor checks that the actor may approve for the issue's
// assigned area: the area's own super admin or a global admin.
func (e *WorkflowEngine) authorizeAreaActor(ctx context.Context, actor *models.User, issue *models.Issue) error {
	if isAdmin(actor) {
		return nil
	}
	if actor.UserType != models.AreaSuperAdmin || issue.AssignedAreaID == nil {
		return fmt.Errorf("%w: only the area's super admin or an admin may approve", ErrNotAuthorized)
	}
	area, err := e.Store.AreaByID(ctx, *issue.AssignedAreaID)
	if err != nil {
		return wrapStoreErr(err)
	}
	if area.AreaSuperAdminID == nil || *area.AreaSuperAdminID != actor.ID {
		return fmt.Errorf("%w: issue belongs to another area's super admin", ErrNotAuthorized)
	}
	return nil
}
