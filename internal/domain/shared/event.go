package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact raised by an aggregate and published after commit
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	Scope() Scope
}

// BaseDomainEvent carries the envelope shared by catalog events.
// Concrete events embed it and add their payload fields.
type BaseDomainEvent struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	At        time.Time `json:"occurred_at"`
	Aggregate struct {
		ID   uuid.UUID `json:"id"`
		Type string    `json:"type"`
	} `json:"aggregate"`
	Owner Scope `json:"scope"`
}

func NewBaseDomainEvent(eventType, aggregateType string, aggregateID uuid.UUID, scope Scope) BaseDomainEvent {
	e := BaseDomainEvent{ID: uuid.New(), Type: eventType, At: time.Now(), Owner: scope}
	e.Aggregate.ID = aggregateID
	e.Aggregate.Type = aggregateType
	return e
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate.ID }
func (e *BaseDomainEvent) AggregateType() string  { return e.Aggregate.Type }
func (e *BaseDomainEvent) Scope() Scope           { return e.Owner }
