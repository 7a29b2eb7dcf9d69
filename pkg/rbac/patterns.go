package rbac

import (
	"sort"
	"strings"
)

// Pattern is a permission pattern: "resource.action", "resource.*",
// "*.action", or "*.*".
type Pattern string

// PermissionSet is a set of concrete "resource.action" permissions
type PermissionSet map[string]struct{}

// Has reports whether the set contains a permission
func (s PermissionSet) Has(permission string) bool {
	_, ok := s[permission]
	return ok
}

// Slice returns the permissions in sorted order
func (s PermissionSet) Slice() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Expand converts wildcard patterns into the concrete permission set they
// represent, against the given resource and action universes.
//
// "*.*" yields the full cross product; "resource.*" yields every action on
// that resource; "*.action" yields that action on every resource. Any other
// pattern passes through verbatim, including ones naming resources or
// actions outside the known universes. Tokens are case-sensitive and
// duplicates collapse, so expanding twice yields the same set.
func Expand(patterns []Pattern, resources, actions []string) PermissionSet {
	expanded := make(PermissionSet)
	for _, pattern := range patterns {
		p := string(pattern)
		switch {
		case p == "*.*":
			for _, resource := range resources {
				for _, action := range actions {
					expanded[resource+"."+action] = struct{}{}
				}
			}
		case strings.HasSuffix(p, ".*"):
			resource := strings.TrimSuffix(p, ".*")
			for _, action := range actions {
				expanded[resource+"."+action] = struct{}{}
			}
		case strings.HasPrefix(p, "*."):
			action := strings.TrimPrefix(p, "*.")
			for _, resource := range resources {
				expanded[resource+"."+action] = struct{}{}
			}
		default:
			expanded[p] = struct{}{}
		}
	}
	return expanded
}
