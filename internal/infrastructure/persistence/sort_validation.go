package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// CategorySortFields contains allowed sort fields for categories
var CategorySortFields = map[string]bool{
	"created_at":      true,
	"updated_at":      true,
	"external_id":     true,
	"name":            true,
	"depth":           true,
	"sequence_number": true,
}

// categorySortClause builds the ORDER BY of a category listing. Without a
// requested field the sibling order is used; id always breaks ties.
func categorySortClause(sortBy, sortOrder string) string {
	field := ValidateSortField(sortBy, CategorySortFields, "")
	if field == "" {
		return categoryOrder
	}
	return field + " " + ValidateSortOrder(sortOrder) + ", id ASC"
}
