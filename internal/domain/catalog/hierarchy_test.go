package catalog

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCategory(t *testing.T, scope Scope, name string, parent *Category) *Category {
	t.Helper()
	c, err := NewCategory(scope, "EXT-"+name, name, parent)
	require.NoError(t, err)
	return c
}

func TestHierarchyRules_ValidateDepth(t *testing.T) {
	rules := NewHierarchyRules(DefaultPolicy())
	scope := newTestScope()

	assert.NoError(t, rules.ValidateDepth(nil))

	parent := mustCategory(t, scope, "P", nil)
	parent.Depth = 3
	assert.NoError(t, rules.ValidateDepth(parent))

	parent.Depth = 4
	err := rules.ValidateDepth(parent)
	assert.ErrorIs(t, err, ErrDepthExceeded)
}

func TestHierarchyRules_ValidateSubtreeDepth(t *testing.T) {
	rules := NewHierarchyRules(DefaultPolicy())

	assert.NoError(t, rules.ValidateSubtreeDepth(2, 2))
	assert.ErrorIs(t, rules.ValidateSubtreeDepth(3, 2), ErrDepthExceeded)
	assert.NoError(t, rules.ValidateSubtreeDepth(0, 4))
}

func TestHierarchyRules_DetectCycle(t *testing.T) {
	rules := NewHierarchyRules(DefaultPolicy())
	candidate := uuid.New()
	other := uuid.New()

	t.Run("moving to root never cycles", func(t *testing.T) {
		assert.NoError(t, rules.DetectCycle(candidate, nil, nil))
	})

	t.Run("self as parent", func(t *testing.T) {
		err := rules.DetectCycle(candidate, &candidate, nil)
		assert.ErrorIs(t, err, ErrCycleDetected)
	})

	t.Run("candidate among ancestors of new parent", func(t *testing.T) {
		err := rules.DetectCycle(candidate, &other, []uuid.UUID{uuid.New(), candidate})
		assert.ErrorIs(t, err, ErrCycleDetected)
	})

	t.Run("unrelated parent", func(t *testing.T) {
		assert.NoError(t, rules.DetectCycle(candidate, &other, []uuid.UUID{uuid.New()}))
	})
}

func TestComputeDepth(t *testing.T) {
	scope := newTestScope()
	assert.Equal(t, 0, ComputeDepth(nil))

	a := mustCategory(t, scope, "A", nil)
	b := mustCategory(t, scope, "B", a)
	assert.Equal(t, 1, ComputeDepth(a))
	assert.Equal(t, 2, NewHierarchyRules(DefaultPolicy()).ComputeDepth(b))
}

func TestHierarchyRules_RecomputeChildFlag(t *testing.T) {
	rules := NewHierarchyRules(DefaultPolicy())
	scope := newTestScope()
	parent := mustCategory(t, scope, "P", nil)
	child := mustCategory(t, scope, "C", parent)
	unrelated := mustCategory(t, scope, "U", nil)

	assert.False(t, rules.RecomputeChildFlag(parent.ID, nil))
	assert.False(t, rules.RecomputeChildFlag(parent.ID, []*Category{unrelated}))
	assert.True(t, rules.RecomputeChildFlag(parent.ID, []*Category{unrelated, child}))

	child.IsDeleted = true
	assert.False(t, rules.RecomputeChildFlag(parent.ID, []*Category{child}))
}

func TestHierarchyRules_CheckNameUniqueness(t *testing.T) {
	scope := newTestScope()
	parent := mustCategory(t, scope, "P", nil)
	sibling := mustCategory(t, scope, "Science", parent)
	rootSibling := mustCategory(t, scope, "Arts", nil)

	rules := NewHierarchyRules(DefaultPolicy())

	t.Run("same name under same parent is rejected case-insensitively", func(t *testing.T) {
		err := rules.CheckNameUniqueness(&parent.ID, " science ", []*Category{sibling}, uuid.Nil)
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("same name among roots is rejected", func(t *testing.T) {
		err := rules.CheckNameUniqueness(nil, "ARTS", []*Category{rootSibling}, uuid.Nil)
		assert.ErrorIs(t, err, ErrDuplicateName)
	})

	t.Run("different parent is allowed", func(t *testing.T) {
		assert.NoError(t, rules.CheckNameUniqueness(nil, "Science", []*Category{sibling}, uuid.Nil))
	})

	t.Run("excluded id is ignored", func(t *testing.T) {
		assert.NoError(t, rules.CheckNameUniqueness(&parent.ID, "Science", []*Category{sibling}, sibling.ID))
	})

	t.Run("deleted sibling is ignored", func(t *testing.T) {
		deleted := mustCategory(t, scope, "Maths", parent)
		deleted.IsDeleted = true
		assert.NoError(t, rules.CheckNameUniqueness(&parent.ID, "Maths", []*Category{deleted}, uuid.Nil))
	})

	t.Run("policy allows duplicates", func(t *testing.T) {
		policy := DefaultPolicy()
		policy.AllowDuplicateNames = true
		lenient := NewHierarchyRules(policy)
		assert.NoError(t, lenient.CheckNameUniqueness(&parent.ID, "Science", []*Category{sibling}, uuid.Nil))
	})
}

func TestHierarchyRules_ValidateName(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxNameLength = 5
	rules := NewHierarchyRules(policy)

	assert.NoError(t, rules.ValidateName("abcde"))
	assert.NoError(t, rules.ValidateName("ééééé"))
	assert.Error(t, rules.ValidateName("abcdef"))
	assert.Error(t, rules.ValidateName("   "))
}

func TestSubtreeHeight(t *testing.T) {
	scope := newTestScope()
	a := mustCategory(t, scope, "A", nil)
	b := mustCategory(t, scope, "B", a)
	c := mustCategory(t, scope, "C", b)

	assert.Equal(t, 0, SubtreeHeight(a, nil))
	assert.Equal(t, 2, SubtreeHeight(a, []*Category{b, c}))
	assert.Equal(t, 1, SubtreeHeight(b, []*Category{c}))
}
