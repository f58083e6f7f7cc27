package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseEntity holds the identity and timestamps of a persisted record
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Touch marks the entity as modified now
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}

func newBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// BaseAggregateRoot adds the optimistic lock version and the events raised
// since the aggregate was loaded. Version starts at 1 and is advanced by the
// store on every successful compare-and-swap.
type BaseAggregateRoot struct {
	BaseEntity
	Version      int
	domainEvents []DomainEvent
}

// AddDomainEvent records an event to publish after commit
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.domainEvents = append(a.domainEvents, event)
}

// GetDomainEvents returns the pending events
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.domainEvents
}

// ClearDomainEvents drops the pending events
func (a *BaseAggregateRoot) ClearDomainEvents() {
	a.domainEvents = nil
}

// PullDomainEvents returns the pending events and clears them
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.domainEvents
	a.domainEvents = nil
	return events
}

// ScopedAggregateRoot is an aggregate owned by one tenant and organization.
// Every store query against it filters on both keys.
type ScopedAggregateRoot struct {
	BaseAggregateRoot
	TenantID  uuid.UUID
	OrgID     uuid.UUID
	CreatedBy *uuid.UUID
}

// NewScopedAggregateRoot creates a version 1 aggregate with a fresh id in scope
func NewScopedAggregateRoot(scope Scope) ScopedAggregateRoot {
	return ScopedAggregateRoot{
		BaseAggregateRoot: BaseAggregateRoot{BaseEntity: newBaseEntity(), Version: 1},
		TenantID:          scope.TenantID,
		OrgID:             scope.OrgID,
	}
}

// Scope returns the pair owning the aggregate
func (s *ScopedAggregateRoot) Scope() Scope {
	return Scope{TenantID: s.TenantID, OrgID: s.OrgID}
}

// SetCreatedBy records the user that created the aggregate
func (s *ScopedAggregateRoot) SetCreatedBy(userID uuid.UUID) {
	s.CreatedBy = &userID
}
