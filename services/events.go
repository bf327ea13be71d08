package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types consumed by the external notification/points service.
const (
	EventIssueAssigned = "issue_assigned"
	EventIssueResolved = "issue_resolved"
	EventPointsAwarded = "points_awarded"
)

// Points credited to the reporting citizen when their issue is resolved.
const PointsIssueResolved = 50

// Event is a workflow side-effect notification. Delivery is fire-and-forget:
// a failed emit is logged and never fails the transition that produced it.
type Event struct {
	Type      string    `json:"type"`
	IssueID   string    `json:"issueId"`
	UserID    string    `json:"userId,omitempty"`
	Points    int       `json:"points,omitempty"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

// LogEmitter writes events to the process log. Used in development and tests.
type LogEmitter struct{}

func (LogEmitter) Emit(ctx context.Context, ev Event) {
	log.Printf("event %s issue=%s user=%s", ev.Type, ev.IssueID, ev.UserID)
}

// RedisEmitter publishes events as JSON on a Redis channel for the
// notification/points consumers.
type RedisEmitter struct {
	Client  *redis.Client
	Channel string
}

func (e *RedisEmitter) Emit(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("failed to marshal event %s: %v", ev.Type, err)
		return
	}
	if err := e.Client.Publish(ctx, e.Channel, payload).Err(); err != nil {
		log.Printf("failed to publish event %s: %v", ev.Type, err)
	}
}
