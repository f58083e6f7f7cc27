package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
)

// Scope is the tenant/organization pair every catalog operation is filtered by
type Scope = shared.Scope

// QueryMode is the composition rule used when resolving templates by category
type QueryMode string

const (
	// QueryModeOR matches templates referencing any of the categories
	QueryModeOR QueryMode = "OR"
	// QueryModeAND matches templates referencing all of the categories
	QueryModeAND QueryMode = "AND"
	// QueryModePATH matches templates referencing the terminal category of a root-to-terminal path
	QueryModePATH QueryMode = "PATH"
)

// ParseQueryMode parses a mode case-insensitively. An empty string yields "".
func ParseQueryMode(s string) (QueryMode, error) {
	switch QueryMode(strings.ToUpper(strings.TrimSpace(s))) {
	case "":
		return "", nil
	case QueryModeOR:
		return QueryModeOR, nil
	case QueryModeAND:
		return QueryModeAND, nil
	case QueryModePATH:
		return QueryModePATH, nil
	}
	return "", shared.NewDomainError(shared.CodeInvalidInput, fmt.Sprintf("unknown query mode %q", s))
}

// Policy holds the hierarchy and template-association tunables.
// It is passed by value and never mutated after construction.
type Policy struct {
	MaxHierarchyDepth   int
	MaxNameLength       int
	AllowDuplicateNames bool
	SoftDelete          bool
	DefaultPageSize     int
	MaxPageSize         int
	StoreTimeout        time.Duration
	MaxBulkEntries      int

	AllowMultipleCategories  bool
	LeafCategoriesOnly       bool
	MaxCategoriesPerTemplate int
	DefaultMode              QueryMode
	IncludeInherited         bool
}

// DefaultPolicy returns the policy used when no configuration overrides it
func DefaultPolicy() Policy {
	return Policy{
		MaxHierarchyDepth:        4,
		MaxNameLength:            100,
		AllowDuplicateNames:      false,
		SoftDelete:               true,
		DefaultPageSize:          20,
		MaxPageSize:              100,
		StoreTimeout:             5 * time.Second,
		MaxBulkEntries:           500,
		AllowMultipleCategories:  true,
		LeafCategoriesOnly:       true,
		MaxCategoriesPerTemplate: 5,
		DefaultMode:              QueryModeOR,
		IncludeInherited:         false,
	}
}

// Validate checks the policy for values that would make the rules meaningless
func (p Policy) Validate() error {
	if p.MaxHierarchyDepth < 0 {
		return fmt.Errorf("max hierarchy depth must not be negative")
	}
	if p.MaxNameLength <= 0 {
		return fmt.Errorf("max name length must be positive")
	}
	if p.DefaultPageSize <= 0 || p.MaxPageSize <= 0 {
		return fmt.Errorf("page sizes must be positive")
	}
	if p.DefaultPageSize > p.MaxPageSize {
		return fmt.Errorf("default page size %d exceeds max page size %d", p.DefaultPageSize, p.MaxPageSize)
	}
	if p.StoreTimeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}
	if p.MaxBulkEntries <= 0 {
		return fmt.Errorf("max bulk entries must be positive")
	}
	if p.MaxCategoriesPerTemplate <= 0 {
		return fmt.Errorf("max categories per template must be positive")
	}
	switch p.DefaultMode {
	case QueryModeOR, QueryModeAND, QueryModePATH:
	default:
		return fmt.Errorf("unknown default query mode %q", p.DefaultMode)
	}
	return nil
}

// CategoryLimit returns the effective per-template category limit
func (p Policy) CategoryLimit() int {
	if !p.AllowMultipleCategories {
		return 1
	}
	return p.MaxCategoriesPerTemplate
}
