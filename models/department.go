package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Department is a government department handling one issue category.
// Code is globally unique (enforced by a unique index).
type Department struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name      string             `bson:"name" json:"name"`
	Code      string             `bson:"code" json:"code"`
	Category  IssueCategory      `bson:"category" json:"category"`
	Active    bool               `bson:"active" json:"active"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
