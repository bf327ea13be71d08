package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"nagarseva-be/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the service and
// API tests so they run without a MongoDB instance.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[primitive.ObjectID]models.User
	areas        map[primitive.ObjectID]models.AdministrativeArea
	departments  map[primitive.ObjectID]models.Department
	issues       map[primitive.ObjectID]models.Issue
	assignments  map[primitive.ObjectID]models.Assignment
	workProgress map[primitive.ObjectID]models.WorkProgressRecord
	tenders      map[primitive.ObjectID]models.Tender
	votes        map[string]models.Vote // key: issueHex + ":" + userHex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[primitive.ObjectID]models.User),
		areas:        make(map[primitive.ObjectID]models.AdministrativeArea),
		departments:  make(map[primitive.ObjectID]models.Department),
		issues:       make(map[primitive.ObjectID]models.Issue),
		assignments:  make(map[primitive.ObjectID]models.Assignment),
		workProgress: make(map[primitive.ObjectID]models.WorkProgressRecord),
		tenders:      make(map[primitive.ObjectID]models.Tender),
		votes:        make(map[string]models.Vote),
	}
}

// ---- users ----

func (s *MemoryStore) CreateUser(ctx context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	s.users[u.ID] = *u
	return nil
}

func (s *MemoryStore) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *MemoryStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) CountUsersByType(ctx context.Context, t models.UserType) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, u := range s.users {
		if u.UserType == t {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) DepartmentAdminFor(ctx context.Context, departmentID primitive.ObjectID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.UserType == models.DepartmentAdmin && u.AssignedDepartmentID != nil && *u.AssignedDepartmentID == departmentID {
			u := u
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

// ---- administrative areas ----

func (s *MemoryStore) CreateArea(ctx context.Context, a *models.AdministrativeArea) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	if a.Active {
		for _, existing := range s.areas {
			if existing.Active && strings.EqualFold(existing.Name, a.Name) {
				return ErrDuplicate
			}
		}
	}
	s.areas[a.ID] = *a
	return nil
}

func (s *MemoryStore) AreaByID(ctx context.Context, id primitive.ObjectID) (*models.AdministrativeArea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.areas[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) ActiveAreaByName(ctx context.Context, name string) (*models.AdministrativeArea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.areas {
		if a.Active && strings.EqualFold(a.Name, name) {
			a := a
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListAreas(ctx context.Context) ([]models.AdministrativeArea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	areas := make([]models.AdministrativeArea, 0, len(s.areas))
	for _, a := range s.areas {
		areas = append(areas, a)
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Name < areas[j].Name })
	return areas, nil
}

// ---- departments ----

func (s *MemoryStore) CreateDepartment(ctx context.Context, d *models.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	for _, existing := range s.departments {
		if existing.Code == d.Code {
			return ErrDuplicate
		}
	}
	s.departments[d.ID] = *d
	return nil
}

func (s *MemoryStore) DepartmentByID(ctx context.Context, id primitive.ObjectID) (*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.departments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

func (s *MemoryStore) ListDepartments(ctx context.Context) ([]models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	departments := make([]models.Department, 0, len(s.departments))
	for _, d := range s.departments {
		departments = append(departments, d)
	}
	sort.Slice(departments, func(i, j int) bool { return departments[i].Name < departments[j].Name })
	return departments, nil
}

// ---- issues ----

func (s *MemoryStore) CreateIssue(ctx context.Context, i *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i.ID.IsZero() {
		i.ID = primitive.NewObjectID()
	}
	s.issues[i.ID] = *i
	return nil
}

func (s *MemoryStore) IssueByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &i, nil
}

func (s *MemoryStore) ListIssues(ctx context.Context, f IssueFilter) ([]models.Issue, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []models.Issue
	search := strings.ToLower(f.Search)
	for _, i := range s.issues {
		if f.Category != "" && f.Category != "all" && string(i.Category) != f.Category {
			continue
		}
		if f.Status != "" && f.Status != "all" && string(i.Status) != f.Status {
			continue
		}
		if f.Stage != "" && f.Stage != "all" && string(i.Stage) != f.Stage {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(i.Title), search) &&
			!strings.Contains(strings.ToLower(i.Description), search) {
			continue
		}
		matched = append(matched, i)
	}

	if f.Sort == "oldest" {
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	} else {
		sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	}

	total := int64(len(matched))
	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(matched) {
		return []models.Issue{}, total, nil
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *MemoryStore) IssuesByReporter(ctx context.Context, userID primitive.ObjectID) ([]models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var issues []models.Issue
	for _, i := range s.issues {
		if i.ReportedBy == userID {
			issues = append(issues, i)
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].CreatedAt.After(issues[j].CreatedAt) })
	return issues, nil
}

func (s *MemoryStore) UpdateIssue(ctx context.Context, id primitive.ObjectID, expected models.WorkflowStage, upd IssueUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.issues[id]
	if !ok {
		return ErrNotFound
	}
	if i.Stage != expected {
		return ErrStaleStage
	}
	if upd.Stage != nil {
		i.Stage = *upd.Stage
	}
	if upd.Status != nil {
		i.Status = *upd.Status
	}
	if upd.AssignedAreaID != nil {
		areaID := *upd.AssignedAreaID
		i.AssignedAreaID = &areaID
	}
	if upd.AssignedDepartmentID != nil {
		deptID := *upd.AssignedDepartmentID
		i.AssignedDepartmentID = &deptID
	}
	if upd.CurrentAssigneeID != nil {
		assigneeID := *upd.CurrentAssigneeID
		i.CurrentAssigneeID = &assigneeID
	}
	if upd.ResolutionNotes != nil {
		i.ResolutionNotes = *upd.ResolutionNotes
	}
	if upd.ResolutionImages != nil {
		i.ResolutionImages = append([]string(nil), upd.ResolutionImages...)
	}
	if upd.ResolvedAt != nil {
		resolvedAt := *upd.ResolvedAt
		i.ResolvedAt = &resolvedAt
	}
	i.UpdatedAt = time.Now()
	s.issues[id] = i
	return nil
}

func (s *MemoryStore) IssueAnalytics(ctx context.Context) (*Analytics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a := &Analytics{
		ByCategory: make(map[string]int64),
		ByStage:    make(map[string]int64),
	}
	for _, i := range s.issues {
		a.TotalIssues++
		a.ByCategory[string(i.Category)]++
		a.ByStage[string(i.Stage)]++
		if i.Status == models.Resolved {
			a.ResolvedIssues++
		} else {
			a.OpenIssues++
		}
	}
	for d := 6; d >= 0; d-- {
		date := time.Now().AddDate(0, 0, -d)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		nextDate := date.AddDate(0, 0, 1)
		var count int64
		for _, i := range s.issues {
			if !i.CreatedAt.Before(date) && i.CreatedAt.Before(nextDate) {
				count++
			}
		}
		a.Last7Days = append(a.Last7Days, DailyCount{Date: date.Format("2006-01-02"), Count: count})
	}
	return a, nil
}

// ---- assignment ledger ----

func (s *MemoryStore) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	s.assignments[a.ID] = *a
	return nil
}

func (s *MemoryStore) ActiveAssignment(ctx context.Context, issueID primitive.ObjectID) (*models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.assignments {
		if a.IssueID == issueID && a.Status == models.AssignmentActive {
			a := a
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SetAssignmentStatus(ctx context.Context, id primitive.ObjectID, status models.AssignmentStatus, completedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return ErrNotFound
	}
	a.Status = status
	if completedAt != nil {
		at := *completedAt
		a.CompletedAt = &at
	}
	s.assignments[id] = a
	return nil
}

func (s *MemoryStore) AssignmentsForIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var assignments []models.Assignment
	for _, a := range s.assignments {
		if a.IssueID == issueID {
			assignments = append(assignments, a)
		}
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].AssignedAt.After(assignments[j].AssignedAt) })
	return assignments, nil
}

// ---- work progress ----

func (s *MemoryStore) CreateWorkProgress(ctx context.Context, w *models.WorkProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	s.workProgress[w.ID] = *w
	return nil
}

func (s *MemoryStore) WorkProgressByID(ctx context.Context, id primitive.ObjectID) (*models.WorkProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workProgress[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (s *MemoryStore) WorkProgressForIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.WorkProgressRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var records []models.WorkProgressRecord
	for _, w := range s.workProgress {
		if w.IssueID == issueID {
			records = append(records, w)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt.After(records[j].CreatedAt) })
	return records, nil
}

func (s *MemoryStore) SetWorkProgressReview(ctx context.Context, id primitive.ObjectID, status models.WorkStatus, reviewer primitive.ObjectID, notes string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.workProgress[id]
	if !ok {
		return ErrNotFound
	}
	w.Status = status
	w.ReviewedBy = &reviewer
	w.ReviewNotes = notes
	reviewedAt := at
	w.ReviewedAt = &reviewedAt
	s.workProgress[id] = w
	return nil
}

// ---- tenders ----

func (s *MemoryStore) CreateTender(ctx context.Context, t *models.Tender) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	s.tenders[t.ID] = *t
	return nil
}

func (s *MemoryStore) TenderByID(ctx context.Context, id primitive.ObjectID) (*models.Tender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryStore) TendersForIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Tender, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var tenders []models.Tender
	for _, t := range s.tenders {
		if t.IssueID == issueID {
			tenders = append(tenders, t)
		}
	}
	sort.Slice(tenders, func(i, j int) bool { return tenders[i].CreatedAt.After(tenders[j].CreatedAt) })
	return tenders, nil
}

func (s *MemoryStore) AwardTender(ctx context.Context, id primitive.ObjectID, contractorID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenders[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status != models.TenderOpen {
		return ErrStaleStage
	}
	t.Status = models.TenderAwarded
	t.AwardedTo = &contractorID
	t.UpdatedAt = time.Now()
	s.tenders[id] = t
	return nil
}

func (s *MemoryStore) SetTenderStatus(ctx context.Context, id primitive.ObjectID, status models.TenderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tenders[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	s.tenders[id] = t
	return nil
}

// ---- votes ----

func voteKey(issueID, userID primitive.ObjectID) string {
	return issueID.Hex() + ":" + userID.Hex()
}

func (s *MemoryStore) AddVote(ctx context.Context, v *models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := voteKey(v.Issue, v.User)
	if _, ok := s.votes[key]; ok {
		return ErrDuplicate
	}
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	s.votes[key] = *v
	return nil
}

func (s *MemoryStore) RemoveVote(ctx context.Context, issueID, userID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.votes, voteKey(issueID, userID))
	return nil
}

func (s *MemoryStore) HasVoted(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.votes[voteKey(issueID, userID)]
	return ok, nil
}

func (s *MemoryStore) CountVotes(ctx context.Context, issueID primitive.ObjectID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var count int64
	for _, v := range s.votes {
		if v.Issue == issueID {
			count++
		}
	}
	return count, nil
}
