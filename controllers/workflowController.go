package controllers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"nagarseva-be/models"
	"nagarseva-be/services"
	"nagarseva-be/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WorkflowController exposes the workflow engine's transitions over HTTP.
// Every handler loads the acting profile explicitly and hands it to the
// engine; authorization decisions live in the services layer, not here.
type WorkflowController struct {
	Store   store.Store
	Engine  *services.WorkflowEngine
	Tracker *services.WorkProgressTracker
}

// AssignArea manually triages a reported issue into an area (admin only).
func (wc *WorkflowController) AssignArea(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := currentUser(c, wc.Store)
	if !ok {
		return
	}

	var input struct {
		AreaID string `json:"areaId" binding:"required"`
		Notes  string `json:"notes,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	areaID, err := primitive.ObjectIDFromHex(input.AreaID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid areaId"})
		return
	}

	issue, err := wc.Engine.AssignArea(c.Request.Context(), actor, issueID, areaID, input.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// AssignDepartment moves an issue from area review to a department.
func (wc *WorkflowController) AssignDepartment(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := currentUser(c, wc.Store)
	if !ok {
		return
	}

	var input struct {
		DepartmentID string `json:"departmentId" binding:"required"`
		AssigneeID   string `json:"assigneeId,omitempty"`
		Notes        string `json:"notes,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	departmentID, err := primitive.ObjectIDFromHex(input.DepartmentID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid departmentId"})
		return
	}
	assigneeID := primitive.NilObjectID
	if input.AssigneeID != "" {
		assigneeID, err = primitive.ObjectIDFromHex(input.AssigneeID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assigneeId"})
			return
		}
	}

	issue, err := wc.Engine.AssignDepartment(c.Request.Context(), actor, issueID, departmentID, assigneeID, input.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// CreateTender opens a work contract opportunity for a department-assigned issue.
func (wc *WorkflowController) CreateTender(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := currentUser(c, wc.Store)
	if !ok {
		return
	}

	var input struct {
		Title         string   `json:"title" binding:"required,max=200"`
		Description   string   `json:"description,omitempty"`
		EstimatedCost *float64 `json:"estimatedCost,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	issue, err := wc.Store.IssueByID(ctx, issueID)
	if err != nil {
		respondServiceError(c, services.ErrNotFound)
		return
	}
	if issue.Stage != models.StageDepartmentAssigned {
		c.JSON(http.StatusConflict, gin.H{"error": "Tenders can only be opened for department-assigned issues"})
		return
	}
	if err := wc.Engine.AuthorizeDepartmentActor(actor, issue); err != nil {
		respondServiceError(c, err)
		return
	}

	tender := models.Tender{
		IssueID:       issueID,
		DepartmentID:  *issue.AssignedDepartmentID,
		CreatedBy:     actor.ID,
		Title:         input.Title,
		Description:   input.Description,
		EstimatedCost: input.EstimatedCost,
		Status:        models.TenderOpen,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := wc.Store.CreateTender(ctx, &tender); err != nil {
		log.Println("Error creating tender:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tender"})
		return
	}
	c.JSON(http.StatusCreated, tender)
}

// AwardTender awards an open tender to a contractor and hands the issue off
// to them.
func (wc *WorkflowController) AwardTender(c *gin.Context) {
	tenderID, ok := objectIDParam(c, "tenderId")
	if !ok {
		return
	}
	actor, ok := currentUser(c, wc.Store)
	if !ok {
		return
	}

	var input struct {
		ContractorID string `json:"contractorId" binding:"required"`
		Notes        string `json:"notes,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	contractorID, err := primitive.ObjectIDFromHex(input.ContractorID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contractorId"})
		return
	}

	ctx := c.Request.Context()

	tender, err := wc.Store.TenderByID(ctx, tenderID)
	if err != nil {
		respondServiceError(c, services.ErrNotFound)
		return
	}
	if tender.Status != models.TenderOpen {
		c.JSON(http.StatusConflict, gin.H{"error": "Tender is not open"})
		return
	}

	issue, err := wc.Engine.AwardContract(ctx, actor, tender.IssueID, contractorID, input.Notes)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if err := wc.Store.AwardTender(ctx, tenderID, contractorID); err != nil {
		// The workflow hand-off already happened. A stale swap means the
		// tender was concurrently closed; any other failure leaves it
		// dangling open on a contractor-assigned issue, so cancel it.
		if !errors.Is(err, store.ErrStaleStage) {
			log.Println("Error marking tender awarded:", err)
			if err := wc.Store.SetTenderStatus(ctx, tenderID, models.TenderCancelled); err != nil {
				log.Println("Error cancelling tender after failed award:", err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"issue": issue, "tenderId": tenderID})
}

// ListTenders returns the tenders opened for an issue, newest first.
func (wc *WorkflowController) ListTenders(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	tenders, err := wc.Store.TendersForIssue(c.Request.Context(), issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve tenders"})
		return
	}
	c.JSON(http.StatusOK, tenders)
}

// StartWork marks the issue in progress; only its current assignee may call it.
func (wc *WorkflowController) StartWork(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := currentUser(c, wc.Store)
	if !ok {
		return
	}

	issue, err := wc.Engine.StartWork(c.Request.Context(), actor, issueID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, issue)
}

// SubmitWork records completion evidence and routes the issue to review.
func (wc *WorkflowController) SubmitWork(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := currentUser(c, wc.Store)
	if !ok {
		return
	}

	var input struct {
		Title        string   `json:"title" binding:"required,max=200"`
		Description  string   `json:"description" binding:"required,max=1000"`
		BeforeImages []string `json:"beforeImages,omitempty"`
		AfterImages  []string `json:"afterImages"`
		Materials    string   `json:"materials,omitempty"`
		Cost         *float64 `json:"cost,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := wc.Tracker.Submit(c.Request.Context(), actor, issueID, services.SubmitInput{
		Title:        input.Title,
		Description:  input.Description,
		BeforeImages: input.BeforeImages,
		AfterImages:  input.AfterImages,
		Materials:    input.Materials,
		Cost:         input.Cost,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// ReviewWork approves or rejects a work progress record. Approval at the
// department gate forwards the issue to area approval; approval at the area
// gate resolves it.
func (wc *WorkflowController) ReviewWork(c *gin.Context) {
	recordID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	actor, ok := currentUser(c, wc.Store)
	if !ok {
		return
	}

	var input struct {
		Action string `json:"action" binding:"required,oneof=approve reject"`
		Notes  string `json:"notes,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var record *models.WorkProgressRecord
	var err error
	if input.Action == "approve" {
		record, err = wc.Tracker.Approve(c.Request.Context(), actor, recordID, input.Notes)
	} else {
		record, err = wc.Tracker.Reject(c.Request.Context(), actor, recordID, input.Notes)
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

// ListAssignments returns the assignment ledger for an issue, newest first.
func (wc *WorkflowController) ListAssignments(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	assignments, err := wc.Engine.Ledger.ListForIssue(c.Request.Context(), issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve assignments"})
		return
	}
	c.JSON(http.StatusOK, assignments)
}

// ListWork returns the work progress records for an issue, newest first.
func (wc *WorkflowController) ListWork(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	records, err := wc.Store.WorkProgressForIssue(c.Request.Context(), issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve work progress"})
		return
	}
	c.JSON(http.StatusOK, records)
}
