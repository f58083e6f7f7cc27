package models

import (
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// AggregateModel extends BaseModel with the optimistic lock version
type AggregateModel struct {
	BaseModel
	Version int `gorm:"not null;default:1"`
}

// FromDomainAggregateRoot populates AggregateModel from domain BaseAggregateRoot
func (m *AggregateModel) FromDomainAggregateRoot(a shared.BaseAggregateRoot) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.Version = a.Version
}

// ScopedAggregateModel provides the persistence fields of tenant and organization
// scoped aggregate roots
type ScopedAggregateModel struct {
	AggregateModel
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index:,composite:scope,priority:1"`
	OrgID     uuid.UUID  `gorm:"type:uuid;not null;index:,composite:scope,priority:2"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
}

// FromDomainScopedAggregateRoot populates ScopedAggregateModel from the domain root
func (m *ScopedAggregateModel) FromDomainScopedAggregateRoot(s shared.ScopedAggregateRoot) {
	m.FromDomainAggregateRoot(s.BaseAggregateRoot)
	m.TenantID = s.TenantID
	m.OrgID = s.OrgID
	m.CreatedBy = s.CreatedBy
}

// ToDomainScopedAggregateRoot rebuilds the domain root without pending events
func (m *ScopedAggregateModel) ToDomainScopedAggregateRoot() shared.ScopedAggregateRoot {
	return shared.ScopedAggregateRoot{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: shared.BaseEntity{
				ID:        m.ID,
				CreatedAt: m.CreatedAt,
				UpdatedAt: m.UpdatedAt,
			},
			Version: m.Version,
		},
		TenantID:  m.TenantID,
		OrgID:     m.OrgID,
		CreatedBy: m.CreatedBy,
	}
}
