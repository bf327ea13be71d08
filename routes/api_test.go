package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"nagarseva-be/models"
	"nagarseva-be/services"
	"nagarseva-be/store"
	authUtils "nagarseva-be/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type apiEnv struct {
	router *gin.Engine
	store  *store.MemoryStore

	citizen    *models.User
	areaAdmin  *models.User
	deptAdmin  *models.User
	contractor *models.User
	admin      *models.User

	area       *models.AdministrativeArea
	department *models.Department
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	st := store.NewMemoryStore()
	ctx := context.Background()

	env := &apiEnv{store: st}

	env.areaAdmin = seedAPIUser(t, st, "Ravi", "ravi@example.com", models.AreaSuperAdmin)
	env.contractor = seedAPIUser(t, st, "Karan", "karan@example.com", models.Contractor)
	env.admin = seedAPIUser(t, st, "Root", "root@example.com", models.Admin)
	env.citizen = seedAPIUser(t, st, "Asha", "asha@example.com", models.Citizen)

	env.area = &models.AdministrativeArea{
		Name: "Karol Bagh", District: "Central Delhi", State: "Delhi",
		AreaSuperAdminID: &env.areaAdmin.ID, Active: true,
	}
	require.NoError(t, st.CreateArea(ctx, env.area))

	env.department = &models.Department{
		Name: "Public Works", Code: "PWD", Category: models.Roads, Active: true,
	}
	require.NoError(t, st.CreateDepartment(ctx, env.department))

	env.deptAdmin = &models.User{
		Name: "Meena", Email: "meena@example.com",
		UserType:             models.DepartmentAdmin,
		AssignedDepartmentID: &env.department.ID,
	}
	require.NoError(t, st.CreateUser(ctx, env.deptAdmin))

	env.router = SetupRouter(st, services.LogEmitter{})
	return env
}

func seedAPIUser(t *testing.T, st *store.MemoryStore, name, email string, typ models.UserType) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, Password: "secret123", UserType: typ}
	require.NoError(t, u.HashPassword())
	require.NoError(t, st.CreateUser(context.Background(), u))
	return u
}

func bearerFor(t *testing.T, u *models.User) string {
	t.Helper()
	token, err := authUtils.GenerateToken(u)
	require.NoError(t, err)
	return "Bearer " + token
}

func (e *apiEnv) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeIssue(t *testing.T, w *httptest.ResponseRecorder) models.Issue {
	t.Helper()
	var issue models.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issue))
	return issue
}

func TestRegisterAndLogin(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"name":     "Sunil",
		"email":    "sunil@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "sunil@example.com",
		"password": "secret123",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Token)

	w = env.do(t, http.MethodGet, "/api/auth/me", "Bearer "+resp.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLoginRejectsBadPassword(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":    "asha@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateIssueRequiresAuth(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/issue/create", "", gin.H{
		"title": "x", "description": "y", "category": "roads", "area": "Karol Bagh",
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCitizenCannotReachStaffRoutes(t *testing.T) {
	env := newAPIEnv(t)
	bearer := bearerFor(t, env.citizen)

	w := env.do(t, http.MethodPost, "/api/issue/"+env.area.ID.Hex()+"/assign-department", bearer, gin.H{
		"departmentId": env.department.ID.Hex(),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/areas", bearer, gin.H{
		"name": "X", "district": "Y", "state": "Z",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIssueLifecycleOverHTTP(t *testing.T) {
	env := newAPIEnv(t)

	// Citizen reports an issue in a known area; it auto-routes to the
	// area super admin.
	w := env.do(t, http.MethodPost, "/api/issue/create", bearerFor(t, env.citizen), gin.H{
		"title":       "Pothole near the market",
		"description": "Large pothole on the main road",
		"category":    "roads",
		"area":        "Karol Bagh",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	issue := decodeIssue(t, w)
	assert.Equal(t, models.StageAreaReview, issue.Stage)
	issuePath := "/api/issue/" + issue.ID.Hex()

	// Area super admin hands the issue to the department.
	w = env.do(t, http.MethodPost, issuePath+"/assign-department", bearerFor(t, env.areaAdmin), gin.H{
		"departmentId": env.department.ID.Hex(),
		"notes":        "roadwork",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StageDepartmentAssigned, decodeIssue(t, w).Stage)

	// Department opens a tender and awards it to the contractor.
	w = env.do(t, http.MethodPost, issuePath+"/tender", bearerFor(t, env.deptAdmin), gin.H{
		"title": "Pothole repair contract",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tender models.Tender
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tender))

	w = env.do(t, http.MethodPost, issuePath+"/tender/"+tender.ID.Hex()+"/award", bearerFor(t, env.deptAdmin), gin.H{
		"contractorId": env.contractor.ID.Hex(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Contractor starts and submits the work.
	w = env.do(t, http.MethodPost, issuePath+"/start", bearerFor(t, env.contractor), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StageInProgress, decodeIssue(t, w).Stage)

	w = env.do(t, http.MethodPost, issuePath+"/work", bearerFor(t, env.contractor), gin.H{
		"title":       "Pothole filled",
		"description": "Filled and compacted",
		"afterImages": []string{"after.jpg"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var record models.WorkProgressRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	reviewPath := "/api/work/" + record.ID.Hex() + "/review"

	// Two-gate review: department first, then the area super admin.
	w = env.do(t, http.MethodPost, reviewPath, bearerFor(t, env.deptAdmin), gin.H{"action": "approve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, reviewPath, bearerFor(t, env.areaAdmin), gin.H{"action": "approve"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, issuePath, bearerFor(t, env.citizen), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var detail struct {
		Issue models.Issue `json:"issue"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, models.StageResolved, detail.Issue.Stage)
	assert.Equal(t, models.Resolved, detail.Issue.Status)

	// History endpoints reflect the hand-offs.
	w = env.do(t, http.MethodGet, issuePath+"/assignments", bearerFor(t, env.citizen), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var assignments []models.Assignment
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &assignments))
	assert.Len(t, assignments, 3)
}

func TestWorkflowErrorMapping(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/issue/create", bearerFor(t, env.citizen), gin.H{
		"title":       "Broken streetlight",
		"description": "Dark corner at night",
		"category":    "utilities",
		"area":        "Karol Bagh",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	issue := decodeIssue(t, w)
	issuePath := "/api/issue/" + issue.ID.Hex()

	// Starting work from area_review is an invalid transition.
	w = env.do(t, http.MethodPost, issuePath+"/start", bearerFor(t, env.contractor), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	// A department admin cannot do the area hand-off.
	w = env.do(t, http.MethodPost, issuePath+"/assign-department", bearerFor(t, env.deptAdmin), gin.H{
		"departmentId": env.department.ID.Hex(),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Unknown issue id maps to 404.
	w = env.do(t, http.MethodPost, "/api/issue/ffffffffffffffffffffffff/start", bearerFor(t, env.contractor), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminDirectory(t *testing.T) {
	env := newAPIEnv(t)
	bearer := bearerFor(t, env.admin)

	w := env.do(t, http.MethodPost, "/api/admin/areas", bearer, gin.H{
		"name": "Saket", "district": "South Delhi", "state": "Delhi",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Duplicate active area name is rejected.
	w = env.do(t, http.MethodPost, "/api/admin/areas", bearer, gin.H{
		"name": "saket", "district": "South Delhi", "state": "Delhi",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/departments", bearer, gin.H{
		"name": "Horticulture", "code": "HORT", "category": "parks",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/admin/departments", bearer, gin.H{
		"name": "Horticulture Two", "code": "HORT", "category": "parks",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/admin/users", bearer, gin.H{
		"name":     "New Contractor",
		"email":    "newcontractor@example.com",
		"password": "secret123",
		"userType": "contractor",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/admin/areas", bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var areas []models.AdministrativeArea
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &areas))
	assert.Len(t, areas, 2)
}

// awardFailStore fails the tender award write while everything else works,
// to exercise the cleanup path after a successful workflow hand-off.
type awardFailStore struct {
	*store.MemoryStore
}

func (s *awardFailStore) AwardTender(ctx context.Context, id, contractorID primitive.ObjectID) error {
	return errors.New("write failed")
}

func TestAwardWriteFailureCancelsTender(t *testing.T) {
	env := newAPIEnv(t)
	env.router = SetupRouter(&awardFailStore{env.store}, services.LogEmitter{})

	w := env.do(t, http.MethodPost, "/api/issue/create", bearerFor(t, env.citizen), gin.H{
		"title":       "Collapsed drain cover",
		"description": "Open drain on the footpath",
		"category":    "safety",
		"area":        "Karol Bagh",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	issue := decodeIssue(t, w)
	issuePath := "/api/issue/" + issue.ID.Hex()

	w = env.do(t, http.MethodPost, issuePath+"/assign-department", bearerFor(t, env.areaAdmin), gin.H{
		"departmentId": env.department.ID.Hex(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, issuePath+"/tender", bearerFor(t, env.deptAdmin), gin.H{
		"title": "Drain cover replacement",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var tender models.Tender
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tender))

	w = env.do(t, http.MethodPost, issuePath+"/tender/"+tender.ID.Hex()+"/award", bearerFor(t, env.deptAdmin), gin.H{
		"contractorId": env.contractor.ID.Hex(),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The hand-off stands; the tender must not stay open.
	got, err := env.store.IssueByID(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageContractorAssigned, got.Stage)

	updated, err := env.store.TenderByID(context.Background(), tender.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TenderCancelled, updated.Status)
}

func TestVoteToggle(t *testing.T) {
	env := newAPIEnv(t)

	w := env.do(t, http.MethodPost, "/api/issue/create", bearerFor(t, env.citizen), gin.H{
		"title":       "Overflowing garbage bin",
		"description": "Bin not cleared for a week",
		"category":    "environment",
		"area":        "Karol Bagh",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	issue := decodeIssue(t, w)
	votePath := "/api/issue/" + issue.ID.Hex() + "/vote"

	voter := seedAPIUser(t, env.store, "Voter", "voter@example.com", models.Citizen)
	bearer := bearerFor(t, voter)

	w = env.do(t, http.MethodPost, votePath, bearer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	count, err := env.store.CountVotes(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Voting again removes the vote.
	w = env.do(t, http.MethodPost, votePath, bearer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	count, err = env.store.CountVotes(context.Background(), issue.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
