package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T, config Config) *Resolver {
	t.Helper()
	resolver, err := NewResolver(config)
	require.NoError(t, err)
	return resolver
}

func TestExpandFullWildcard(t *testing.T) {
	resources := []string{"users", "orders"}
	actions := []string{"view", "edit"}

	expanded := Expand([]Pattern{"*.*"}, resources, actions)
	assert.Len(t, expanded, 4)
	for _, resource := range resources {
		for _, action := range actions {
			assert.True(t, expanded.Has(resource+"."+action))
		}
	}
}

func TestExpandResourceWildcard(t *testing.T) {
	expanded := Expand([]Pattern{"orders.*"}, []string{"users", "orders"}, []string{"view", "edit", "create", "delete"})
	assert.Equal(t, []string{"orders.create", "orders.delete", "orders.edit", "orders.view"}, expanded.Slice())
}

func TestExpandActionWildcard(t *testing.T) {
	expanded := Expand([]Pattern{"*.view"}, []string{"users", "orders", "invoices"}, []string{"view", "edit"})
	assert.Equal(t, []string{"invoices.view", "orders.view", "users.view"}, expanded.Slice())
}

func TestExpandLiteralPassthrough(t *testing.T) {
	// Literals outside the known universes are accepted verbatim
	expanded := Expand([]Pattern{"reports.export"}, []string{"users"}, []string{"view"})
	assert.True(t, expanded.Has("reports.export"))
	assert.Len(t, expanded, 1)
}

func TestExpandDeduplicatesAndIsIdempotent(t *testing.T) {
	resources := []string{"users", "orders"}
	actions := []string{"view", "edit"}
	patterns := []Pattern{"orders.*", "orders.view", "*.view", "orders.*"}

	once := Expand(patterns, resources, actions)

	var asPatterns []Pattern
	for _, p := range once.Slice() {
		asPatterns = append(asPatterns, Pattern(p))
	}
	twice := Expand(asPatterns, resources, actions)

	assert.Equal(t, once.Slice(), twice.Slice())
}

func TestExpandEmpty(t *testing.T) {
	assert.Empty(t, Expand(nil, []string{"users"}, []string{"view"}))
}

func TestExpandIsCaseSensitive(t *testing.T) {
	expanded := Expand([]Pattern{"Orders.*"}, []string{"orders"}, []string{"view"})
	assert.True(t, expanded.Has("Orders.view"))
	assert.False(t, expanded.Has("orders.view"))
}

func TestGrantsAdminShortCircuit(t *testing.T) {
	// Admin is granted everything even with no declared patterns
	resolver := newTestResolver(t, Config{
		Resources: []string{"users"},
		Actions:   []string{"view"},
		Roles:     map[string][]Pattern{},
	})

	assert.True(t, resolver.Grants("Admin", "users.view"))
	assert.True(t, resolver.Grants("admin", "anything.at-all"))
	assert.True(t, resolver.Grants("ADMIN", "users.delete"))
}

func TestGrantsUnknownRoleFailsClosed(t *testing.T) {
	resolver := newTestResolver(t, DefaultConfig())

	assert.False(t, resolver.Grants("NoSuchRole", "users.view"))
	assert.False(t, resolver.Grants("", "users.view"))
	assert.False(t, resolver.Grants("Administrator", "users.view"),
		"fuzzy admin names must not pass the fine-grained check")
}

func TestGrantsSalesScenario(t *testing.T) {
	resolver := newTestResolver(t, DefaultConfig())

	assert.True(t, resolver.Grants("Sales", "orders.create"))
	assert.True(t, resolver.Grants("Sales", "products.view"))
	assert.False(t, resolver.Grants("Sales", "products.edit"))
}

func TestGrantsOperationsAndAccounts(t *testing.T) {
	resolver := newTestResolver(t, DefaultConfig())

	assert.True(t, resolver.Grants("Operations", "inventory.delete"))
	assert.True(t, resolver.Grants("Operations", "orders.edit"))
	assert.False(t, resolver.Grants("Operations", "orders.delete"))

	assert.True(t, resolver.Grants("Accounts", "payments.create"))
	assert.True(t, resolver.Grants("Accounts", "orders.view"))
	assert.False(t, resolver.Grants("Accounts", "orders.edit"))
}

func TestEffectivePermissionsFullWildcardRole(t *testing.T) {
	config := DefaultConfig()
	config.Roles["Everything"] = []Pattern{"*.*"}
	resolver := newTestResolver(t, config)

	expanded := resolver.EffectivePermissions("Everything")
	assert.Len(t, expanded, len(config.Resources)*len(config.Actions))
	for _, resource := range config.Resources {
		for _, action := range config.Actions {
			p := resource + "." + action
			assert.True(t, resolver.Grants("Everything", p), p)
		}
	}
}

func TestEffectivePermissionsUnknownRole(t *testing.T) {
	resolver := newTestResolver(t, DefaultConfig())
	assert.Empty(t, resolver.EffectivePermissions("NoSuchRole"))
}

func TestEffectivePermissionsCached(t *testing.T) {
	resolver := newTestResolver(t, DefaultConfig())

	first := resolver.EffectivePermissions("Sales")
	second := resolver.EffectivePermissions("Sales")
	assert.Equal(t, first.Slice(), second.Slice())
}

func TestResolverConfigIsCopied(t *testing.T) {
	config := DefaultConfig()
	resolver := newTestResolver(t, config)

	// Mutating the caller's config must not affect the resolver
	config.Roles["Sales"] = nil
	assert.True(t, resolver.Grants("Sales", "orders.create"))
}

func TestIsExactlyAdmin(t *testing.T) {
	assert.True(t, IsExactlyAdmin("Admin"))
	assert.True(t, IsExactlyAdmin("admin"))
	assert.True(t, IsExactlyAdmin("ADMIN"))
	assert.False(t, IsExactlyAdmin("Administrator"))
	assert.False(t, IsExactlyAdmin("Admininstrator"))
	assert.False(t, IsExactlyAdmin("Sales"))
	assert.False(t, IsExactlyAdmin(""))
}

func TestIsAdminRoleNameFuzzy(t *testing.T) {
	assert.True(t, IsAdminRoleNameFuzzy("Admin"))
	assert.True(t, IsAdminRoleNameFuzzy("Administrator"))
	assert.True(t, IsAdminRoleNameFuzzy("Admininstrator"))
	assert.True(t, IsAdminRoleNameFuzzy("Site Admin"))
	assert.False(t, IsAdminRoleNameFuzzy("Sales"))
	assert.False(t, IsAdminRoleNameFuzzy(""))
}

func TestNewResolverRejectsBadConfig(t *testing.T) {
	_, err := NewResolver(Config{Actions: []string{"view"}})
	assert.Error(t, err)

	_, err = NewResolver(Config{Resources: []string{"users"}})
	assert.Error(t, err)
}
