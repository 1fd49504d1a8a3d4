// Package policy decides how deep a viewer may browse the referral tree.
//
// Every expand, load-more and "view subtree" decision goes through a Policy
// so role semantics live in one place.
package policy

import "github.com/vanderheijden86/refnet/pkg/model"

const (
	// LimitedDepth is the deepest level a depth-limited viewer may see.
	LimitedDepth = 3
	// Unbounded is the sentinel max depth of the unrestricted role.
	Unbounded = 999
)

// Policy is the depth policy for one viewer model. The zero value is the
// depth-limited policy.
type Policy struct {
	unrestricted bool
}

// For returns the policy in effect for the viewer model.
func For(viewer model.ViewerModel) Policy {
	return Policy{unrestricted: viewer == model.ViewerB2B}
}

// Unrestricted reports whether the policy has no depth cap.
func (p Policy) Unrestricted() bool {
	return p.unrestricted
}

// EffectiveMaxDepth returns the maximum traversal depth.
func (p Policy) EffectiveMaxDepth() int {
	if p.unrestricted {
		return Unbounded
	}
	return LimitedDepth
}

// AllowsExpansion reports whether a node at authLevel may be expanded.
// It does not look at whether the node has descendants; see CanExpand.
func (p Policy) AllowsExpansion(authLevel int) bool {
	if p.unrestricted {
		return true
	}
	return authLevel < LimitedDepth
}

// CanExpand is the "view further" affordance for a materialized node.
func (p Policy) CanExpand(n model.TreeNode) bool {
	return n.HasDescendants && p.AllowsExpansion(n.AuthLevel)
}

// ChildAuthLevel is the authLevel assigned to a child of a parent at
// parentLevel.
func (p Policy) ChildAuthLevel(parentLevel int) int {
	if p.unrestricted {
		return parentLevel + 1
	}
	return min(parentLevel+1, LimitedDepth)
}

// ClampLevel clamps a server-reported level into [1, EffectiveMaxDepth].
func (p Policy) ClampLevel(level int) int {
	if level < 1 {
		return 1
	}
	return min(level, p.EffectiveMaxDepth())
}
