package rbac

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// AdminRoleName is the canonical privileged role name
const AdminRoleName = "Admin"

// adminVariants are accepted by the fuzzy check only. The misspelling is
// kept for compatibility with roles created before names were validated.
var adminVariants = []string{"admin", "administrator", "admininstrator"}

// IsExactlyAdmin reports whether name is the canonical Admin role,
// compared case-insensitively but otherwise exactly. This is the check
// used by fine-grained permission resolution.
func IsExactlyAdmin(name string) bool {
	return strings.EqualFold(name, AdminRoleName)
}

// IsAdminRoleNameFuzzy reports whether name should be treated as
// administrator-equivalent by the coarse role gate. It matches any role
// name containing an admin variant, so "Administrator" and the legacy
// misspelling pass here while failing IsExactlyAdmin. Never use this for
// permission-pattern lookup.
func IsAdminRoleNameFuzzy(name string) bool {
	lowered := strings.ToLower(name)
	for _, variant := range adminVariants {
		if strings.Contains(lowered, variant) {
			return true
		}
	}
	return false
}

const expansionCacheSize = 128

// Resolver answers whether a role grants a permission. It holds an
// immutable copy of its config, so it is reentrant and safe for
// concurrent use; the expansion cache is the only internal state.
type Resolver struct {
	config    Config
	expansion *lru.Cache[string, PermissionSet]
}

// NewResolver creates a resolver over the given config
func NewResolver(config Config) (*Resolver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	cache, err := lru.New[string, PermissionSet](expansionCacheSize)
	if err != nil {
		return nil, err
	}

	return &Resolver{
		config:    config.clone(),
		expansion: cache,
	}, nil
}

// Grants reports whether roleName grants the concrete permission.
//
// The canonical Admin role is granted everything without expansion. Any
// other role is looked up by exact name in the pattern table; an unknown
// or empty role name grants nothing.
func (r *Resolver) Grants(roleName, permission string) bool {
	if IsExactlyAdmin(roleName) {
		return true
	}
	return r.EffectivePermissions(roleName).Has(permission)
}

// EffectivePermissions returns the expanded permission set declared for a
// role. Unknown roles yield an empty set. Admin's declared patterns expand
// like any other role's here; the unconditional allow lives in Grants.
// Callers must not mutate the returned set.
func (r *Resolver) EffectivePermissions(roleName string) PermissionSet {
	if cached, ok := r.expansion.Get(roleName); ok {
		return cached
	}

	patterns, ok := r.config.Roles[roleName]
	if !ok {
		return nil
	}

	expanded := Expand(patterns, r.config.Resources, r.config.Actions)
	r.expansion.Add(roleName, expanded)
	return expanded
}

// Universe returns the full cross product of known resources and actions.
// This is what the canonical Admin role is effectively granted.
func (r *Resolver) Universe() PermissionSet {
	return Expand([]Pattern{"*.*"}, r.config.Resources, r.config.Actions)
}

// KnownRoles returns the role names present in the pattern table
func (r *Resolver) KnownRoles() []string {
	out := make([]string, 0, len(r.config.Roles))
	for name := range r.config.Roles {
		out = append(out, name)
	}
	return out
}
