package controllers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"nagarseva-be/models"
	"nagarseva-be/store"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminController manages the administrative directory: areas, departments
// and staff profiles. All routes are admin-gated.
type AdminController struct {
	Store store.Store
}

var validUserTypes = map[string]bool{
	"area_super_admin": true, "department_admin": true,
	"contractor": true, "admin": true,
}

// CreateArea registers an administrative area. Names must be unique among
// active areas or the citizen-side auto-match becomes ambiguous.
func (ac *AdminController) CreateArea(c *gin.Context) {
	var input struct {
		Name             string `json:"name" binding:"required,max=100"`
		District         string `json:"district" binding:"required,max=100"`
		State            string `json:"state" binding:"required,max=100"`
		AreaSuperAdminID string `json:"areaSuperAdminId,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	area := models.AdministrativeArea{
		Name:      input.Name,
		District:  input.District,
		State:     input.State,
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	ctx := c.Request.Context()

	if input.AreaSuperAdminID != "" {
		adminID, err := primitive.ObjectIDFromHex(input.AreaSuperAdminID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid areaSuperAdminId"})
			return
		}
		admin, err := ac.Store.UserByID(ctx, adminID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Area super admin not found"})
			return
		}
		if admin.UserType != models.AreaSuperAdmin {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User is not an area super admin"})
			return
		}
		area.AreaSuperAdminID = &adminID
	}

	if err := ac.Store.CreateArea(ctx, &area); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "An active area with this name already exists"})
			return
		}
		log.Println("Error creating area:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create area"})
		return
	}
	c.JSON(http.StatusCreated, area)
}

// ListAreas returns all administrative areas
func (ac *AdminController) ListAreas(c *gin.Context) {
	areas, err := ac.Store.ListAreas(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve areas"})
		return
	}
	c.JSON(http.StatusOK, areas)
}

// CreateDepartment registers a department. Codes are globally unique.
func (ac *AdminController) CreateDepartment(c *gin.Context) {
	var input struct {
		Name     string `json:"name" binding:"required,max=100"`
		Code     string `json:"code" binding:"required,max=20"`
		Category string `json:"category" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validCategories[input.Category] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category"})
		return
	}

	department := models.Department{
		Name:      input.Name,
		Code:      input.Code,
		Category:  models.IssueCategory(input.Category),
		Active:    true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if err := ac.Store.CreateDepartment(c.Request.Context(), &department); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "A department with this code already exists"})
			return
		}
		log.Println("Error creating department:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create department"})
		return
	}
	c.JSON(http.StatusCreated, department)
}

// ListDepartments returns all departments
func (ac *AdminController) ListDepartments(c *gin.Context) {
	departments, err := ac.Store.ListDepartments(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve departments"})
		return
	}
	c.JSON(http.StatusOK, departments)
}

// CreateStaffUser creates a non-citizen profile: area super admin,
// department admin, contractor or admin, with its area/department link.
func (ac *AdminController) CreateStaffUser(c *gin.Context) {
	var input struct {
		Name         string `json:"name" binding:"required,max=50"`
		Email        string `json:"email" binding:"required,email"`
		Password     string `json:"password" binding:"required,min=6"`
		UserType     string `json:"userType" binding:"required"`
		AreaID       string `json:"areaId,omitempty"`
		DepartmentID string `json:"departmentId,omitempty"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validUserTypes[input.UserType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid userType"})
		return
	}

	ctx := c.Request.Context()

	user := models.User{
		Name:      input.Name,
		Email:     input.Email,
		Password:  input.Password,
		UserType:  models.UserType(input.UserType),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if input.AreaID != "" {
		areaID, err := primitive.ObjectIDFromHex(input.AreaID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid areaId"})
			return
		}
		if _, err := ac.Store.AreaByID(ctx, areaID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Area not found"})
			return
		}
		user.AssignedAreaID = &areaID
	}
	if input.DepartmentID != "" {
		departmentID, err := primitive.ObjectIDFromHex(input.DepartmentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid departmentId"})
			return
		}
		if _, err := ac.Store.DepartmentByID(ctx, departmentID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Department not found"})
			return
		}
		user.AssignedDepartmentID = &departmentID
	}

	if err := user.HashPassword(); err != nil {
		log.Println("Error hashing password:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	if err := ac.Store.CreateUser(ctx, &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User with this email already exists"})
			return
		}
		log.Println("Error creating staff user:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       user.ID,
		"name":     user.Name,
		"email":    user.Email,
		"userType": user.UserType,
	})
}
