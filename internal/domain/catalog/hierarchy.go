package catalog

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ELEVATE-Project/project-service-sub002/internal/domain/shared"
	"github.com/google/uuid"
)

// HierarchyRules validates and derives the structural invariants of the category tree.
// It performs no I/O; callers pass the snapshot the rule needs.
type HierarchyRules struct {
	policy Policy
}

// NewHierarchyRules creates the rule set for a policy
func NewHierarchyRules(policy Policy) HierarchyRules {
	return HierarchyRules{policy: policy}
}

// Policy returns the policy the rules enforce
func (r HierarchyRules) Policy() Policy {
	return r.policy
}

// ComputeDepth returns 0 for a root, else parent depth + 1
func ComputeDepth(parent *Category) int {
	if parent == nil {
		return 0
	}
	return parent.Depth + 1
}

// ComputeDepth returns the depth a child of parent would have
func (r HierarchyRules) ComputeDepth(parent *Category) int {
	return ComputeDepth(parent)
}

// ValidateDepth fails with DEPTH_EXCEEDED if a child of parent would be too deep
func (r HierarchyRules) ValidateDepth(parent *Category) error {
	if parent == nil {
		return nil
	}
	if parent.Depth+1 > r.policy.MaxHierarchyDepth {
		return shared.NewDomainError(CodeDepthExceeded,
			fmt.Sprintf("Category depth cannot exceed %d", r.policy.MaxHierarchyDepth))
	}
	return nil
}

// ValidateSubtreeDepth fails with DEPTH_EXCEEDED if a subtree of the given height,
// rooted at newDepth, would have any node deeper than the limit
func (r HierarchyRules) ValidateSubtreeDepth(newDepth, subtreeHeight int) error {
	if newDepth+subtreeHeight > r.policy.MaxHierarchyDepth {
		return shared.NewDomainError(CodeDepthExceeded,
			fmt.Sprintf("Moving the subtree would place categories at depth %d, limit is %d",
				newDepth+subtreeHeight, r.policy.MaxHierarchyDepth))
	}
	return nil
}

// DetectCycle fails with CYCLE_DETECTED when candidateID is the new parent itself
// or appears among the new parent's ancestors
func (r HierarchyRules) DetectCycle(candidateID uuid.UUID, newParentID *uuid.UUID, ancestorsOfNewParent []uuid.UUID) error {
	if newParentID == nil {
		return nil
	}
	if *newParentID == candidateID {
		return shared.NewDomainError(CodeCycleDetected, "Category cannot be its own parent")
	}
	for _, id := range ancestorsOfNewParent {
		if id == candidateID {
			return shared.NewDomainError(CodeCycleDetected, "Category cannot be moved under its own descendant")
		}
	}
	return nil
}

// RecomputeChildFlag returns whether any live category in children has parentID as parent
func (r HierarchyRules) RecomputeChildFlag(parentID uuid.UUID, children []*Category) bool {
	for _, c := range children {
		if c != nil && !c.IsDeleted && c.HasParent(parentID) {
			return true
		}
	}
	return false
}

// CheckNameUniqueness fails with DUPLICATE_NAME if a live sibling under parentID
// (other than excludeID) has the same name. Names compare trimmed and case-insensitively.
func (r HierarchyRules) CheckNameUniqueness(parentID *uuid.UUID, name string, siblings []*Category, excludeID uuid.UUID) error {
	if r.policy.AllowDuplicateNames {
		return nil
	}
	key := NormalizeName(name)
	for _, s := range siblings {
		if s == nil || s.IsDeleted || s.ID == excludeID {
			continue
		}
		if !sameParent(s.ParentID, parentID) {
			continue
		}
		if NormalizeName(s.Name) == key {
			return shared.NewDomainError(CodeDuplicateName,
				fmt.Sprintf("A sibling category named %q already exists", strings.TrimSpace(name)))
		}
	}
	return nil
}

// ValidateName checks presence and the configured maximum length
func (r HierarchyRules) ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return shared.NewDomainError(shared.CodeInvalidInput, "Category name cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > r.policy.MaxNameLength {
		return shared.NewDomainError(shared.CodeInvalidInput,
			fmt.Sprintf("Category name cannot exceed %d characters", r.policy.MaxNameLength))
	}
	return nil
}

// SubtreeHeight returns how many levels below root the deepest descendant sits
func SubtreeHeight(root *Category, descendants []*Category) int {
	height := 0
	for _, d := range descendants {
		if h := d.Depth - root.Depth; h > height {
			height = h
		}
	}
	return height
}

// NormalizeName returns the comparison key for sibling name uniqueness
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
