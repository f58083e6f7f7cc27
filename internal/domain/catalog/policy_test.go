package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	policy := DefaultPolicy()
	require.NoError(t, policy.Validate())

	assert.Equal(t, 4, policy.MaxHierarchyDepth)
	assert.Equal(t, 5, policy.MaxCategoriesPerTemplate)
	assert.Equal(t, QueryModeOR, policy.DefaultMode)
	assert.True(t, policy.LeafCategoriesOnly)
	assert.False(t, policy.IncludeInherited)
	assert.True(t, policy.SoftDelete)
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Policy)
	}{
		{"negative depth", func(p *Policy) { p.MaxHierarchyDepth = -1 }},
		{"zero name length", func(p *Policy) { p.MaxNameLength = 0 }},
		{"zero page size", func(p *Policy) { p.DefaultPageSize = 0 }},
		{"default above max page size", func(p *Policy) { p.DefaultPageSize = 200 }},
		{"zero timeout", func(p *Policy) { p.StoreTimeout = 0 }},
		{"zero categories per template", func(p *Policy) { p.MaxCategoriesPerTemplate = 0 }},
		{"unknown mode", func(p *Policy) { p.DefaultMode = "XOR" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := DefaultPolicy()
			tt.mutate(&policy)
			assert.Error(t, policy.Validate())
		})
	}
}

func TestPolicy_CategoryLimit(t *testing.T) {
	policy := DefaultPolicy()
	assert.Equal(t, 5, policy.CategoryLimit())

	policy.AllowMultipleCategories = false
	assert.Equal(t, 1, policy.CategoryLimit())
}

func TestParseQueryMode(t *testing.T) {
	mode, err := ParseQueryMode("and")
	require.NoError(t, err)
	assert.Equal(t, QueryModeAND, mode)

	mode, err = ParseQueryMode(" Path ")
	require.NoError(t, err)
	assert.Equal(t, QueryModePATH, mode)

	mode, err = ParseQueryMode("")
	require.NoError(t, err)
	assert.Equal(t, QueryMode(""), mode)

	_, err = ParseQueryMode("xor")
	assert.Error(t, err)
}
