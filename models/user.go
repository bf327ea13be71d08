package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// UserType enum
type UserType string

const (
	Citizen         UserType = "citizen"
	AreaSuperAdmin  UserType = "area_super_admin"
	DepartmentAdmin UserType = "department_admin"
	Contractor      UserType = "contractor"
	Admin           UserType = "admin"
)

// User is a profile of anyone acting on the platform: citizens reporting
// issues, area super admins triaging them, department admins, contractors
// and global admins. Staff profiles carry the area/department they serve.
type User struct {
	ID                   primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name                 string              `bson:"name" json:"name"`
	Email                string              `bson:"email" json:"email"`
	Password             string              `bson:"password,omitempty" json:"-"`
	UserType             UserType            `bson:"userType" json:"userType"`
	Phone                string              `bson:"phone,omitempty" json:"phone,omitempty"`
	AssignedAreaID       *primitive.ObjectID `bson:"assignedAreaId,omitempty" json:"assignedAreaId,omitempty"`
	AssignedDepartmentID *primitive.ObjectID `bson:"assignedDepartmentId,omitempty" json:"assignedDepartmentId,omitempty"`
	CreatedAt            time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time           `bson:"updatedAt" json:"updatedAt"`
}

func (u *User) HashPassword() error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashed)
	return nil
}

func (u *User) ComparePassword(candidate string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(candidate))
	return err == nil
}
