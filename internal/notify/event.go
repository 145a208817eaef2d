package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// EntityType names the kind of record an event is about
type EntityType string

const (
	EntityFamily      EntityType = "family"
	EntityUser        EntityType = "user"
	EntityJoinRequest EntityType = "join_request"
	EntityExpense     EntityType = "expense"
	EntitySavingsGoal EntityType = "savings_goal"
)

// Action is what happened to the entity
type Action string

const (
	ActionCreated  Action = "created"
	ActionUpdated  Action = "updated"
	ActionApproved Action = "approved"
	ActionDeclined Action = "declined"
	ActionReset    Action = "reset"
)

// Event tells subscribers that an entity changed. It carries ids only;
// consumers re-fetch what they need.
type Event struct {
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	FamilyID   string     `json:"family_id,omitempty"`
	// UserID is the user most affected, e.g. the requester of a join
	// request who is not yet a family member.
	UserID     string    `json:"user_id,omitempty"`
	Action     Action    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RoutingKey is the AMQP topic for the event: family.<id>.<entity>.<action>
func (e Event) RoutingKey() string {
	family := e.FamilyID
	if family == "" {
		family = "none"
	}
	return fmt.Sprintf("family.%s.%s.%s", family, e.EntityType, e.Action)
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event published by ToJSON
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if e.EntityType == "" || e.Action == "" {
		return Event{}, fmt.Errorf("incomplete event: %s", string(data))
	}
	return e, nil
}

// Notifier receives change events. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(ctx context.Context, event Event) error

func (f NotifierFunc) Notify(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Nop discards every event
var Nop Notifier = NotifierFunc(func(context.Context, Event) error { return nil })
