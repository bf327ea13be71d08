package controllers

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"nagarseva-be/models"
	"nagarseva-be/services"
	"nagarseva-be/store"

	"github.com/gin-gonic/gin"
)

type IssueController struct {
	Store  store.Store
	Engine *services.WorkflowEngine
}

var validCategories = map[string]bool{
	"roads": true, "utilities": true, "environment": true,
	"safety": true, "parks": true, "other": true,
}

var validPriorities = map[string]bool{
	"low": true, "medium": true, "high": true, "urgent": true,
}

// CreateIssue handles the creation of a new issue. Intake runs the one-shot
// area match synchronously: a matched area with a super admin puts the issue
// straight into area_review with that admin as assignee.
func (ic *IssueController) CreateIssue(c *gin.Context) {
	user, ok := currentUser(c, ic.Store)
	if !ok {
		return
	}

	var input struct {
		Title       string   `json:"title" binding:"required,max=200"`
		Description string   `json:"description" binding:"required,max=1000"`
		Category    string   `json:"category" binding:"required"`
		Priority    string   `json:"priority,omitempty"`
		Area        string   `json:"area" binding:"required,max=200"`
		Ward        string   `json:"ward,omitempty"`
		Address     string   `json:"address,omitempty"`
		ImageURLs   []string `json:"imageUrls,omitempty"`
		Latitude    *float64 `json:"latitude,omitempty"`
		Longitude   *float64 `json:"longitude,omitempty"`
	}

	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !validCategories[input.Category] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	// Default priority if not provided
	priority := models.Medium
	if input.Priority != "" {
		if !validPriorities[input.Priority] {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return
		}
		priority = models.IssuePriority(input.Priority)
	}

	issue := models.Issue{
		Title:       input.Title,
		Description: input.Description,
		Category:    models.IssueCategory(input.Category),
		Priority:    priority,
		Area:        input.Area,
		Ward:        input.Ward,
		Address:     input.Address,
		ImageURLs:   input.ImageURLs,
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		ReportedBy:  user.ID,
	}

	if err := ic.Engine.Intake(c.Request.Context(), &issue); err != nil {
		log.Println("Error creating issue:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create issue"})
		return
	}

	c.JSON(http.StatusCreated, issue)
}

// GetAllIssues handles retrieving all issues with filtering, pagination, and vote counts
func (ic *IssueController) GetAllIssues(c *gin.Context) {
	ctx := c.Request.Context()

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))

	filter := store.IssueFilter{
		Category: c.Query("category"),
		Status:   c.Query("status"),
		Stage:    c.Query("stage"),
		Search:   c.Query("search"),
		Sort:     c.DefaultQuery("sort", "newest"),
		Page:     page,
		Limit:    limit,
	}

	issues, totalCount, err := ic.Store.ListIssues(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	issuesWithVotes := make([]gin.H, 0, len(issues))
	for _, issue := range issues {
		voteCount, err := ic.Store.CountVotes(ctx, issue.ID)
		if err != nil {
			voteCount = 0
		}
		issuesWithVotes = append(issuesWithVotes, gin.H{
			"issue": issue,
			"votes": voteCount,
		})
	}

	if limit < 1 || limit > 100 {
		limit = 10
	}
	totalPages := int((totalCount + int64(limit) - 1) / int64(limit))

	c.JSON(http.StatusOK, gin.H{
		"issues":      issuesWithVotes,
		"totalIssues": totalCount,
		"totalPages":  totalPages,
		"currentPage": filter.Page,
	})
}

// GetIssue retrieves an issue by its ID with its assignment history, work
// progress records and vote information.
func (ic *IssueController) GetIssue(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()

	issue, err := ic.Store.IssueByID(ctx, issueID)
	if err != nil {
		respondServiceError(c, services.ErrNotFound)
		return
	}

	assignments, err := ic.Engine.Ledger.ListForIssue(ctx, issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve assignments"})
		return
	}

	work, err := ic.Store.WorkProgressForIssue(ctx, issueID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve work progress"})
		return
	}

	voteCount, err := ic.Store.CountVotes(ctx, issueID)
	if err != nil {
		voteCount = 0
	}

	userHasVoted := false
	if userIDStr, exists := c.Get("user_id"); exists {
		if currentID, err := objectIDFromAny(userIDStr); err == nil {
			if voted, err := ic.Store.HasVoted(ctx, issueID, currentID); err == nil {
				userHasVoted = voted
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"issue":        issue,
		"assignments":  assignments,
		"workProgress": work,
		"votes":        voteCount,
		"userHasVoted": userHasVoted,
	})
}

// GetMyIssues retrieves all issues reported by the authenticated user
func (ic *IssueController) GetMyIssues(c *gin.Context) {
	user, ok := currentUser(c, ic.Store)
	if !ok {
		return
	}

	issues, err := ic.Store.IssuesByReporter(c.Request.Context(), user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve issues"})
		return
	}

	c.JSON(http.StatusOK, issues)
}

// HandleVoteOnIssue toggles the user's vote on an issue (vote if not voted, unvote if already voted)
func (ic *IssueController) HandleVoteOnIssue(c *gin.Context) {
	issueID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}

	user, ok := currentUser(c, ic.Store)
	if !ok {
		return
	}

	ctx := c.Request.Context()

	if _, err := ic.Store.IssueByID(ctx, issueID); err != nil {
		respondServiceError(c, services.ErrNotFound)
		return
	}

	voted, err := ic.Store.HasVoted(ctx, issueID, user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing votes"})
		return
	}

	if voted {
		if err := ic.Store.RemoveVote(ctx, issueID, user.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove vote"})
			return
		}
	} else {
		vote := models.Vote{Issue: issueID, User: user.ID, CreatedAt: time.Now()}
		if err := ic.Store.AddVote(ctx, &vote); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cast vote"})
			return
		}
	}

	voteCount, err := ic.Store.CountVotes(ctx, issueID)
	if err != nil {
		voteCount = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"voted":        !voted,
		"votes":        voteCount,
		"userHasVoted": !voted,
	})
}

// GetIssueAnalytics returns analytical data about the issue pipeline
func (ic *IssueController) GetIssueAnalytics(c *gin.Context) {
	analytics, err := ic.Store.IssueAnalytics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get analytics"})
		return
	}
	c.JSON(http.StatusOK, analytics)
}
