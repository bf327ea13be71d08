package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"nagarseva-be/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore is the production Store backed by MongoDB.
type MongoStore struct {
	users        *mongo.Collection
	areas        *mongo.Collection
	departments  *mongo.Collection
	issues       *mongo.Collection
	assignments  *mongo.Collection
	workProgress *mongo.Collection
	tenders      *mongo.Collection
	votes        *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		users:        db.Collection("users"),
		areas:        db.Collection("areas"),
		departments:  db.Collection("departments"),
		issues:       db.Collection("issues"),
		assignments:  db.Collection("assignments"),
		workProgress: db.Collection("workprogress"),
		tenders:      db.Collection("tenders"),
		votes:        db.Collection("votes"),
	}
}

// EnsureIndexes creates the unique and lookup indexes the workflow relies on:
// unique department code, unique vote per (issue, user), unique active area
// name (case-insensitive), and the assignment lookup by (issue, status).
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.departments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "code", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}

	if _, err := s.votes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "issue", Value: 1}, {Key: "user", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}

	if _, err := s.areas.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetCollation(&options.Collation{Locale: "en", Strength: 2}).
			SetPartialFilterExpression(bson.M{"active": true}),
	}); err != nil {
		return err
	}

	_, err := s.assignments.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "issue", Value: 1}, {Key: "status", Value: 1}},
	})
	return err
}

// ---- users ----

func (s *MongoStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.users.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) UserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *MongoStore) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (s *MongoStore) CountUsersByType(ctx context.Context, t models.UserType) (int64, error) {
	return s.users.CountDocuments(ctx, bson.M{"userType": t})
}

func (s *MongoStore) DepartmentAdminFor(ctx context.Context, departmentID primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{
		"userType":             models.DepartmentAdmin,
		"assignedDepartmentId": departmentID,
	}).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ---- administrative areas ----

func (s *MongoStore) CreateArea(ctx context.Context, a *models.AdministrativeArea) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := s.areas.InsertOne(ctx, a)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) AreaByID(ctx context.Context, id primitive.ObjectID) (*models.AdministrativeArea, error) {
	var a models.AdministrativeArea
	err := s.areas.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *MongoStore) ActiveAreaByName(ctx context.Context, name string) (*models.AdministrativeArea, error) {
	var a models.AdministrativeArea
	filter := bson.M{
		"active": true,
		"name":   bson.M{"$regex": "^" + regexp.QuoteMeta(name) + "$", "$options": "i"},
	}
	err := s.areas.FindOne(ctx, filter).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *MongoStore) ListAreas(ctx context.Context) ([]models.AdministrativeArea, error) {
	cursor, err := s.areas.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var areas []models.AdministrativeArea
	if err := cursor.All(ctx, &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

// ---- departments ----

func (s *MongoStore) CreateDepartment(ctx context.Context, d *models.Department) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	_, err := s.departments.InsertOne(ctx, d)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) DepartmentByID(ctx context.Context, id primitive.ObjectID) (*models.Department, error) {
	var d models.Department
	err := s.departments.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (s *MongoStore) ListDepartments(ctx context.Context) ([]models.Department, error) {
	cursor, err := s.departments.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var departments []models.Department
	if err := cursor.All(ctx, &departments); err != nil {
		return nil, err
	}
	return departments, nil
}

// ---- issues ----

func (s *MongoStore) CreateIssue(ctx context.Context, i *models.Issue) error {
	if i.ID.IsZero() {
		i.ID = primitive.NewObjectID()
	}
	_, err := s.issues.InsertOne(ctx, i)
	return err
}

func (s *MongoStore) IssueByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var i models.Issue
	err := s.issues.FindOne(ctx, bson.M{"_id": id}).Decode(&i)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (s *MongoStore) ListIssues(ctx context.Context, f IssueFilter) ([]models.Issue, int64, error) {
	filter := bson.M{}

	if f.Category != "" && f.Category != "all" {
		filter["category"] = f.Category
	}
	if f.Status != "" && f.Status != "all" {
		filter["status"] = f.Status
	}
	if f.Stage != "" && f.Stage != "all" {
		filter["workflowStage"] = f.Stage
	}
	if f.Search != "" {
		filter["$or"] = []bson.M{
			{"title": bson.M{"$regex": f.Search, "$options": "i"}},
			{"description": bson.M{"$regex": f.Search, "$options": "i"}},
		}
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 10
	}
	skip := (page - 1) * limit

	var sortOptions bson.D
	switch f.Sort {
	case "oldest":
		sortOptions = bson.D{{Key: "createdAt", Value: 1}}
	default:
		sortOptions = bson.D{{Key: "createdAt", Value: -1}}
	}

	totalCount, err := s.issues.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(sortOptions).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := s.issues.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, err
	}
	return issues, totalCount, nil
}

func (s *MongoStore) IssuesByReporter(ctx context.Context, userID primitive.ObjectID) ([]models.Issue, error) {
	cursor, err := s.issues.Find(ctx, bson.M{"reportedBy": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}

// UpdateIssue applies a partial update conditioned on the issue still being at
// the expected workflow stage. A matched count of zero with the issue present
// means a concurrent transition got there first.
func (s *MongoStore) UpdateIssue(ctx context.Context, id primitive.ObjectID, expected models.WorkflowStage, upd IssueUpdate) error {
	set := bson.M{"updatedAt": time.Now()}
	if upd.Stage != nil {
		set["workflowStage"] = *upd.Stage
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.AssignedAreaID != nil {
		set["assignedAreaId"] = *upd.AssignedAreaID
	}
	if upd.AssignedDepartmentID != nil {
		set["assignedDepartmentId"] = *upd.AssignedDepartmentID
	}
	if upd.CurrentAssigneeID != nil {
		set["currentAssigneeId"] = *upd.CurrentAssigneeID
	}
	if upd.ResolutionNotes != nil {
		set["resolutionNotes"] = *upd.ResolutionNotes
	}
	if upd.ResolutionImages != nil {
		set["resolutionImages"] = upd.ResolutionImages
	}
	if upd.ResolvedAt != nil {
		set["resolvedAt"] = *upd.ResolvedAt
	}

	res, err := s.issues.UpdateOne(ctx,
		bson.M{"_id": id, "workflowStage": expected},
		bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		count, err := s.issues.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrStaleStage
	}
	return nil
}

func (s *MongoStore) IssueAnalytics(ctx context.Context) (*Analytics, error) {
	a := &Analytics{
		ByCategory: make(map[string]int64),
		ByStage:    make(map[string]int64),
	}

	for _, group := range []struct {
		field string
		dest  map[string]int64
	}{
		{"$category", a.ByCategory},
		{"$workflowStage", a.ByStage},
	} {
		pipeline := []bson.M{
			{"$group": bson.M{"_id": group.field, "count": bson.M{"$sum": 1}}},
		}
		cursor, err := s.issues.Aggregate(ctx, pipeline)
		if err != nil {
			return nil, err
		}
		var rows []struct {
			ID    string `bson:"_id"`
			Count int64  `bson:"count"`
		}
		if err := cursor.All(ctx, &rows); err != nil {
			return nil, err
		}
		for _, row := range rows {
			group.dest[row.ID] = row.Count
		}
	}

	var err error
	if a.TotalIssues, err = s.issues.CountDocuments(ctx, bson.M{}); err != nil {
		return nil, err
	}
	if a.OpenIssues, err = s.issues.CountDocuments(ctx, bson.M{
		"status": bson.M{"$in": []models.IssueStatus{models.Pending, models.InProgress}},
	}); err != nil {
		return nil, err
	}
	if a.ResolvedIssues, err = s.issues.CountDocuments(ctx, bson.M{"status": models.Resolved}); err != nil {
		return nil, err
	}

	for i := 6; i >= 0; i-- {
		date := time.Now().AddDate(0, 0, -i)
		date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
		nextDate := date.AddDate(0, 0, 1)

		count, err := s.issues.CountDocuments(ctx, bson.M{
			"createdAt": bson.M{"$gte": date, "$lt": nextDate},
		})
		if err != nil {
			count = 0
		}
		a.Last7Days = append(a.Last7Days, DailyCount{Date: date.Format("2006-01-02"), Count: count})
	}

	return a, nil
}

// ---- assignment ledger ----

func (s *MongoStore) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := s.assignments.InsertOne(ctx, a)
	return err
}

func (s *MongoStore) ActiveAssignment(ctx context.Context, issueID primitive.ObjectID) (*models.Assignment, error) {
	var a models.Assignment
	err := s.assignments.FindOne(ctx, bson.M{
		"issue":  issueID,
		"status": models.AssignmentActive,
	}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (s *MongoStore) SetAssignmentStatus(ctx context.Context, id primitive.ObjectID, status models.AssignmentStatus, completedAt *time.Time) error {
	set := bson.M{"status": status}
	if completedAt != nil {
		set["completedAt"] = *completedAt
	}
	res, err := s.assignments.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) AssignmentsForIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Assignment, error) {
	cursor, err := s.assignments.Find(ctx, bson.M{"issue": issueID},
		options.Find().SetSort(bson.D{{Key: "assignedAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var assignments []models.Assignment
	if err := cursor.All(ctx, &assignments); err != nil {
		return nil, err
	}
	return assignments, nil
}

// ---- work progress ----

func (s *MongoStore) CreateWorkProgress(ctx context.Context, w *models.WorkProgressRecord) error {
	if w.ID.IsZero() {
		w.ID = primitive.NewObjectID()
	}
	_, err := s.workProgress.InsertOne(ctx, w)
	return err
}

func (s *MongoStore) WorkProgressByID(ctx context.Context, id primitive.ObjectID) (*models.WorkProgressRecord, error) {
	var w models.WorkProgressRecord
	err := s.workProgress.FindOne(ctx, bson.M{"_id": id}).Decode(&w)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &w, nil
}

func (s *MongoStore) WorkProgressForIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.WorkProgressRecord, error) {
	cursor, err := s.workProgress.Find(ctx, bson.M{"issue": issueID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []models.WorkProgressRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *MongoStore) SetWorkProgressReview(ctx context.Context, id primitive.ObjectID, status models.WorkStatus, reviewer primitive.ObjectID, notes string, at time.Time) error {
	res, err := s.workProgress.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"status":      status,
		"reviewedBy":  reviewer,
		"reviewNotes": notes,
		"reviewedAt":  at,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- tenders ----

func (s *MongoStore) CreateTender(ctx context.Context, t *models.Tender) error {
	if t.ID.IsZero() {
		t.ID = primitive.NewObjectID()
	}
	_, err := s.tenders.InsertOne(ctx, t)
	return err
}

func (s *MongoStore) TenderByID(ctx context.Context, id primitive.ObjectID) (*models.Tender, error) {
	var t models.Tender
	err := s.tenders.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *MongoStore) TendersForIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Tender, error) {
	cursor, err := s.tenders.Find(ctx, bson.M{"issue": issueID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var tenders []models.Tender
	if err := cursor.All(ctx, &tenders); err != nil {
		return nil, err
	}
	return tenders, nil
}

// AwardTender marks an open tender awarded. Conditioning on status "open"
// keeps a second award attempt from silently overwriting the first.
func (s *MongoStore) AwardTender(ctx context.Context, id primitive.ObjectID, contractorID primitive.ObjectID) error {
	res, err := s.tenders.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.TenderOpen},
		bson.M{"$set": bson.M{
			"status":    models.TenderAwarded,
			"awardedTo": contractorID,
			"updatedAt": time.Now(),
		}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		count, err := s.tenders.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotFound
		}
		return ErrStaleStage
	}
	return nil
}

func (s *MongoStore) SetTenderStatus(ctx context.Context, id primitive.ObjectID, status models.TenderStatus) error {
	res, err := s.tenders.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ---- votes ----

func (s *MongoStore) AddVote(ctx context.Context, v *models.Vote) error {
	if v.ID.IsZero() {
		v.ID = primitive.NewObjectID()
	}
	_, err := s.votes.InsertOne(ctx, v)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) RemoveVote(ctx context.Context, issueID, userID primitive.ObjectID) error {
	_, err := s.votes.DeleteOne(ctx, bson.M{"issue": issueID, "user": userID})
	return err
}

func (s *MongoStore) HasVoted(ctx context.Context, issueID, userID primitive.ObjectID) (bool, error) {
	count, err := s.votes.CountDocuments(ctx, bson.M{"issue": issueID, "user": userID})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *MongoStore) CountVotes(ctx context.Context, issueID primitive.ObjectID) (int64, error) {
	return s.votes.CountDocuments(ctx, bson.M{"issue": issueID})
}
