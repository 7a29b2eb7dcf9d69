// Package rbac resolves role names to granted permissions.
//
// Permissions are "resource.action" strings. Roles carry wildcard patterns
// ("orders.*", "*.view", "*.*") that expand against a fixed universe of
// resources and actions. The Admin role bypasses expansion entirely.
//
// Two admin checks exist and must stay distinct:
//
//   - IsExactlyAdmin: case-insensitive exact match on "admin". Used by
//     Resolver.Grants to short-circuit fine-grained permission checks.
//   - IsAdminRoleNameFuzzy: lenient substring match covering legacy
//     misspellings. Used only by the coarse RequireRole gate.
//
// Collapsing them would change authorization behavior: the fuzzy check
// accepts names like "Administrator" that the permission path rejects.
package rbac
