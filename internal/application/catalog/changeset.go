package catalog

import (
	"context"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/catalog"
	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
)

// changeSet collects the categories touched by one operation. Each category
// is tracked once with the version it was loaded at, so a node reached through
// two paths (old parent that is also an ancestor of the new parent) is written
// once and compared against its original version.
type changeSet struct {
	byID      map[uuid.UUID]*catalog.Category
	originals map[uuid.UUID]int
	dirty     map[uuid.UUID]bool
	order     []uuid.UUID
}

func newChangeSet() *changeSet {
	return &changeSet{
		byID:      make(map[uuid.UUID]*catalog.Category),
		originals: make(map[uuid.UUID]int),
		dirty:     make(map[uuid.UUID]bool),
	}
}

// track registers c and returns the canonical instance for its ID
func (cs *changeSet) track(c *catalog.Category) *catalog.Category {
	if existing, ok := cs.byID[c.ID]; ok {
		return existing
	}
	cs.byID[c.ID] = c
	cs.originals[c.ID] = c.Version
	cs.order = append(cs.order, c.ID)
	return c
}

// markDirty schedules c for a version-checked write. Writing an unchanged
// category still advances its version, which makes concurrent writers conflict.
func (cs *changeSet) markDirty(c *catalog.Category) *catalog.Category {
	c = cs.track(c)
	cs.dirty[c.ID] = true
	return c
}

// originalVersion returns the version c had when first tracked
func (cs *changeSet) originalVersion(id uuid.UUID) int {
	return cs.originals[id]
}

// dirtyCount returns how many categories will be written
func (cs *changeSet) dirtyCount() int {
	return len(cs.dirty)
}

// flush writes every dirty category in tracking order
func (cs *changeSet) flush(ctx context.Context, repo catalog.CategoryRepository) error {
	for _, id := range cs.order {
		if !cs.dirty[id] {
			continue
		}
		if err := repo.SaveWithLock(ctx, cs.byID[id], cs.originals[id]); err != nil {
			return err
		}
	}
	return nil
}

// events drains the pending domain events of every tracked category
func (cs *changeSet) events() []shared.DomainEvent {
	var events []shared.DomainEvent
	for _, id := range cs.order {
		c := cs.byID[id]
		events = append(events, c.PullDomainEvents()...)
	}
	return events
}
