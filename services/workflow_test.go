package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"nagarseva-be/models"
	"nagarseva-be/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// captureEmitter records emitted events for assertions.
type captureEmitter struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureEmitter) Emit(_ context.Context, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *captureEmitter) ofType(typ string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}

type fixture struct {
	store   *store.MemoryStore
	engine  *WorkflowEngine
	tracker *WorkProgressTracker
	emitter *captureEmitter

	citizen    *models.User
	areaAdmin  *models.User
	deptAdmin  *models.User
	contractor *models.User
	admin      *models.User

	area       *models.AdministrativeArea
	department *models.Department
}

func seedUser(t *testing.T, st *store.MemoryStore, name, email string, typ models.UserType) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, UserType: typ}
	require.NoError(t, st.CreateUser(context.Background(), u))
	return u
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	emitter := &captureEmitter{}
	engine := NewWorkflowEngine(st, emitter)

	ctx := context.Background()

	f := &fixture{
		store:   st,
		engine:  engine,
		tracker: &WorkProgressTracker{Store: st, Engine: engine},
		emitter: emitter,

		citizen:    seedUser(t, st, "Asha", "asha@example.com", models.Citizen),
		areaAdmin:  seedUser(t, st, "Ravi", "ravi@example.com", models.AreaSuperAdmin),
		contractor: seedUser(t, st, "Karan", "karan@example.com", models.Contractor),
		admin:      seedUser(t, st, "Root", "root@example.com", models.Admin),
	}

	f.area = &models.AdministrativeArea{
		Name:             "Karol Bagh",
		District:         "Central Delhi",
		State:            "Delhi",
		AreaSuperAdminID: &f.areaAdmin.ID,
		Active:           true,
	}
	require.NoError(t, st.CreateArea(ctx, f.area))

	f.department = &models.Department{
		Name:     "Public Works",
		Code:     "PWD",
		Category: models.Roads,
		Active:   true,
	}
	require.NoError(t, st.CreateDepartment(ctx, f.department))

	f.deptAdmin = &models.User{
		Name:                 "Meena",
		Email:                "meena@example.com",
		UserType:             models.DepartmentAdmin,
		AssignedDepartmentID: &f.department.ID,
	}
	require.NoError(t, st.CreateUser(ctx, f.deptAdmin))

	return f
}

func (f *fixture) reportIssue(t *testing.T, area string) *models.Issue {
	t.Helper()
	issue := &models.Issue{
		Title:       "Pothole near the market",
		Description: "Large pothole on the main road",
		Category:    models.Roads,
		Priority:    models.Medium,
		Area:        area,
		ReportedBy:  f.citizen.ID,
	}
	require.NoError(t, f.engine.Intake(context.Background(), issue))
	return issue
}

func TestIntakeAutoAssignsMatchedArea(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issue := f.reportIssue(t, "Karol Bagh")

	got, err := f.store.IssueByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageAreaReview, got.Stage)
	assert.Equal(t, models.Pending, got.Status)
	require.NotNil(t, got.AssignedAreaID)
	assert.Equal(t, f.area.ID, *got.AssignedAreaID)
	require.NotNil(t, got.CurrentAssigneeID)
	assert.Equal(t, f.areaAdmin.ID, *got.CurrentAssigneeID)

	active, err := f.store.ActiveAssignment(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignAreaAdmin, active.Type)
	assert.Equal(t, f.areaAdmin.ID, active.AssignedTo)

	assigned := f.emitter.ofType(EventIssueAssigned)
	require.Len(t, assigned, 1)
	assert.Equal(t, issue.ID.Hex(), assigned[0].IssueID)
}

func TestIntakeMatchesCaseInsensitively(t *testing.T) {
	f := newFixture(t)

	issue := f.reportIssue(t, "karol bagh")

	got, err := f.store.IssueByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageAreaReview, got.Stage)
}

func TestIntakeUnmatchedAreaStaysReported(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	issue := f.reportIssue(t, "Nonexistent Colony")

	got, err := f.store.IssueByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageReported, got.Stage)
	assert.Nil(t, got.CurrentAssigneeID)

	_, err = f.store.ActiveAssignment(ctx, issue.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, f.emitter.ofType(EventIssueAssigned))
}

func TestAssignAreaManualTriage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.reportIssue(t, "Nonexistent Colony")

	_, err := f.engine.AssignArea(ctx, f.citizen, issue.ID, f.area.ID, "")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	got, err := f.engine.AssignArea(ctx, f.admin, issue.ID, f.area.ID, "manual triage")
	require.NoError(t, err)
	assert.Equal(t, models.StageAreaReview, got.Stage)
	require.NotNil(t, got.CurrentAssigneeID)
	assert.Equal(t, f.areaAdmin.ID, *got.CurrentAssigneeID)

	// Second triage attempt hits the stage guard.
	_, err = f.engine.AssignArea(ctx, f.admin, issue.ID, f.area.ID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAssignDepartment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.reportIssue(t, "Karol Bagh")

	got, err := f.engine.AssignDepartment(ctx, f.areaAdmin, issue.ID, f.department.ID, primitive.NilObjectID, "roadwork")
	require.NoError(t, err)
	assert.Equal(t, models.StageDepartmentAssigned, got.Stage)
	require.NotNil(t, got.AssignedDepartmentID)
	assert.Equal(t, f.department.ID, *got.AssignedDepartmentID)
	require.NotNil(t, got.CurrentAssigneeID)
	assert.Equal(t, f.deptAdmin.ID, *got.CurrentAssigneeID)
}

func TestAssignDepartmentAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.reportIssue(t, "Karol Bagh")

	_, err := f.engine.AssignDepartment(ctx, f.citizen, issue.ID, f.department.ID, primitive.NilObjectID, "")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// A super admin of a different area may not hand off this issue.
	otherAdmin := seedUser(t, f.store, "Leela", "leela@example.com", models.AreaSuperAdmin)
	otherArea := &models.AdministrativeArea{
		Name: "Saket", District: "South Delhi", State: "Delhi",
		AreaSuperAdminID: &otherAdmin.ID, Active: true,
	}
	require.NoError(t, f.store.CreateArea(ctx, otherArea))

	_, err = f.engine.AssignDepartment(ctx, otherAdmin, issue.ID, f.department.ID, primitive.NilObjectID, "")
	assert.ErrorIs(t, err, ErrNotAuthorized)

	// Global admin is always allowed.
	_, err = f.engine.AssignDepartment(ctx, f.admin, issue.ID, f.department.ID, primitive.NilObjectID, "")
	assert.NoError(t, err)
}

func TestAssignDepartmentInvalidTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unmatched := f.reportIssue(t, "Nonexistent Colony")
	_, err := f.engine.AssignDepartment(ctx, f.admin, unmatched.ID, f.department.ID, primitive.NilObjectID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	issue := f.reportIssue(t, "Karol Bagh")
	_, err = f.engine.AssignDepartment(ctx, f.areaAdmin, issue.ID, f.department.ID, primitive.NilObjectID, "")
	require.NoError(t, err)

	// Repeating the hand-off from department_assigned is rejected.
	_, err = f.engine.AssignDepartment(ctx, f.areaAdmin, issue.ID, f.department.ID, primitive.NilObjectID, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAssignDepartmentRejectsWrongAssignee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.reportIssue(t, "Karol Bagh")

	_, err := f.engine.AssignDepartment(ctx, f.areaAdmin, issue.ID, f.department.ID, f.contractor.ID, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSingleActiveAssignmentInvariant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.reportIssue(t, "Karol Bagh")

	_, err := f.engine.AssignDepartment(ctx, f.areaAdmin, issue.ID, f.department.ID, primitive.NilObjectID, "")
	require.NoError(t, err)
	_, err = f.engine.AwardContract(ctx, f.deptAdmin, issue.ID, f.contractor.ID, "awarded")
	require.NoError(t, err)

	history, err := f.store.AssignmentsForIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)

	var active int
	for _, a := range history {
		if a.Status == models.AssignmentActive {
			active++
		}
	}
	assert.Equal(t, 1, active)

	current, err := f.store.ActiveAssignment(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AssignContractor, current.Type)
	assert.Equal(t, f.contractor.ID, current.AssignedTo)
}

func TestAwardContractRequiresContractor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.reportIssue(t, "Karol Bagh")
	_, err := f.engine.AssignDepartment(ctx, f.areaAdmin, issue.ID, f.department.ID, primitive.NilObjectID, "")
	require.NoError(t, err)

	_, err = f.engine.AwardContract(ctx, f.deptAdmin, issue.ID, f.citizen.ID, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.engine.AwardContract(ctx, f.areaAdmin, issue.ID, f.contractor.ID, "")
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestStartWork(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.reportIssue(t, "Karol Bagh")
	_, err := f.engine.AssignDepartment(ctx, f.areaAdmin, issue.ID, f.department.ID, primitive.NilObjectID, "")
	require.NoError(t, err)
	_, err = f.engine.AwardContract(ctx, f.deptAdmin, issue.ID, f.contractor.ID, "")
	require.NoError(t, err)

	// Only the current assignee may begin.
	_, err = f.engine.StartWork(ctx, f.deptAdmin, issue.ID)
	assert.ErrorIs(t, err, ErrNotAuthorized)

	got, err := f.engine.StartWork(ctx, f.contractor, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageInProgress, got.Stage)
	assert.Equal(t, models.InProgress, got.Status)

	_, err = f.engine.StartWork(ctx, f.contractor, issue.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStartWorkWithoutContractor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.reportIssue(t, "Karol Bagh")
	_, err := f.engine.AssignDepartment(ctx, f.areaAdmin, issue.ID, f.department.ID, primitive.NilObjectID, "")
	require.NoError(t, err)

	// Department admins may execute work themselves without a tender.
	got, err := f.engine.StartWork(ctx, f.deptAdmin, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageInProgress, got.Stage)
}

func TestStaleStageSurfacesAsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.reportIssue(t, "Karol Bagh") // now at area_review

	stage := models.StageDepartmentAssigned
	err := f.store.UpdateIssue(ctx, issue.ID, models.StageReported, store.IssueUpdate{Stage: &stage})
	require.ErrorIs(t, err, store.ErrStaleStage)
	assert.ErrorIs(t, wrapStoreErr(err), ErrConflict)

	// The losing swap must not have touched the issue.
	got, err := f.store.IssueByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageAreaReview, got.Stage)
}

func TestConcurrentAssignDepartmentOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	issue := f.reportIssue(t, "Karol Bagh")

	actors := []*models.User{f.areaAdmin, f.admin}
	errs := make(chan error, len(actors))
	var wg sync.WaitGroup
	for _, actor := range actors {
		wg.Add(1)
		go func(actor *models.User) {
			defer wg.Done()
			_, err := f.engine.AssignDepartment(ctx, actor, issue.ID, f.department.ID, primitive.NilObjectID, "")
			errs <- err
		}(actor)
	}
	wg.Wait()
	close(errs)

	var succeeded, lost int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		lost++
		// The loser reads the already-advanced stage under the issue lock,
		// or loses the stage swap itself in a multi-process setup.
		assert.True(t, errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrConflict), err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, lost)

	got, err := f.store.IssueByID(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageDepartmentAssigned, got.Stage)

	history, err := f.store.AssignmentsForIssue(ctx, issue.ID)
	require.NoError(t, err)
	require.Len(t, history, 2) // intake auto-assign plus the single winner
	var active int
	for _, a := range history {
		if a.Status == models.AssignmentActive {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestWorkflowNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.StartWork(ctx, f.contractor, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.engine.AssignArea(ctx, f.admin, primitive.NewObjectID(), f.area.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)
}
