package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdministrativeArea is a named administrative unit (e.g. "Karol Bagh")
// inside a district and state. An area has at most one responsible super
// admin; issues whose free-text area matches an active area are routed to
// that admin automatically. Names must be unique among active areas for
// the auto-match to be deterministic.
type AdministrativeArea struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Name             string              `bson:"name" json:"name"`
	District         string              `bson:"district" json:"district"`
	State            string              `bson:"state" json:"state"`
	AreaSuperAdminID *primitive.ObjectID `bson:"areaSuperAdminId,omitempty" json:"areaSuperAdminId,omitempty"`
	Active           bool                `bson:"active" json:"active"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time           `bson:"updatedAt" json:"updatedAt"`
}
