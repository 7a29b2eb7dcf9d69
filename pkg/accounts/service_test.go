package accounts

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridianhq/meridian/pkg/apierror"
	"github.com/meridianhq/meridian/pkg/auth"
	"github.com/meridianhq/meridian/pkg/observability"
)

func setupService(t *testing.T) (*Service, *Store) {
	t.Helper()
	store := NewStore(setupTestDB(t))
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewService(store, hasher, "SGD", logger), store
}

func TestServiceCreateUser(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	account, err := svc.CreateUser(ctx, CreateUserInput{
		Email:    "gia@example.com",
		Name:     "Gia",
		Password: "s3cret",
	})
	require.NoError(t, err)
	assert.True(t, account.Active)
	assert.Equal(t, "SGD", account.CurrencyCode)
	assert.True(t, account.HasPassword())
	assert.NotEqual(t, "s3cret", account.PasswordHash)
}

func TestServiceCreateUserDuplicateEmail(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "gia@example.com", Name: "Gia"})
	require.NoError(t, err)

	_, err = svc.CreateUser(ctx, CreateUserInput{Email: "gia@example.com", Name: "Other"})
	assert.True(t, apierror.IsConflict(err))
}

func TestServiceCreateUserValidation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserInput{Name: "No Email"})
	assert.True(t, apierror.IsBadRequest(err))

	_, err = svc.CreateUser(ctx, CreateUserInput{Email: "x@example.com"})
	assert.True(t, apierror.IsBadRequest(err))
}

func TestServiceCreateUserWithRole(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	role := &Role{Name: "Sales"}
	require.NoError(t, store.CreateRole(ctx, role))

	account, err := svc.CreateUser(ctx, CreateUserInput{
		Email:  "hal@example.com",
		Name:   "Hal",
		RoleID: &role.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Sales", account.RoleName())

	bogus := int64(404)
	_, err = svc.CreateUser(ctx, CreateUserInput{Email: "ivy@example.com", Name: "Ivy", RoleID: &bogus})
	assert.True(t, apierror.IsNotFound(err))
}

func TestServiceUpdateUser(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	account, err := svc.CreateUser(ctx, CreateUserInput{Email: "jo@example.com", Name: "Jo"})
	require.NoError(t, err)

	role := &Role{Name: "Operations"}
	require.NoError(t, store.CreateRole(ctx, role))

	newName := "Joanna"
	inactive := false
	updated, err := svc.UpdateUser(ctx, account.ID, UpdateUserInput{
		Name:    &newName,
		Active:  &inactive,
		SetRole: true,
		RoleID:  &role.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Joanna", updated.Name)
	assert.False(t, updated.Active)
	assert.Equal(t, "Operations", updated.RoleName())

	// SetRole with nil RoleID clears the assignment
	cleared, err := svc.UpdateUser(ctx, account.ID, UpdateUserInput{SetRole: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.RoleID)
}

func TestServiceUpdateUserEmailConflict(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "first@example.com", Name: "First"})
	require.NoError(t, err)

	second, err := svc.CreateUser(ctx, CreateUserInput{Email: "second@example.com", Name: "Second"})
	require.NoError(t, err)

	taken := "first@example.com"
	_, err = svc.UpdateUser(ctx, second.ID, UpdateUserInput{Email: &taken})
	assert.True(t, apierror.IsConflict(err))
}

func TestServiceUpdateProfilePasswordRules(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	account, err := svc.CreateUser(ctx, CreateUserInput{Email: "kit@example.com", Name: "Kit", Password: "old-pass"})
	require.NoError(t, err)

	// Wrong current password
	_, err = svc.UpdateProfile(ctx, account.ID, ProfileInput{CurrentPassword: "wrong", NewPassword: "new-pass"})
	assert.True(t, apierror.IsBadRequest(err))

	// Missing current password
	_, err = svc.UpdateProfile(ctx, account.ID, ProfileInput{NewPassword: "new-pass"})
	assert.True(t, apierror.IsBadRequest(err))

	// Correct current password
	_, err = svc.UpdateProfile(ctx, account.ID, ProfileInput{CurrentPassword: "old-pass", NewPassword: "new-pass"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "kit@example.com", "new-pass")
	require.NoError(t, err)

	// SSO-only accounts cannot self-manage a password
	providerID := "google-sub-9"
	ssoOnly := &Account{Email: "lu@example.com", Name: "Lu", ProviderID: &providerID, Active: true, CurrencyCode: "SGD"}
	require.NoError(t, store.Insert(ctx, ssoOnly))

	_, err = svc.UpdateProfile(ctx, ssoOnly.ID, ProfileInput{NewPassword: "sneaky"})
	assert.True(t, apierror.IsForbidden(err))
}

func TestServiceAuthenticate(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.CreateUser(ctx, CreateUserInput{Email: "mia@example.com", Name: "Mia", Password: "pw"})
	require.NoError(t, err)

	account, err := svc.Authenticate(ctx, "mia@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, created.ID, account.ID)
	assert.NotNil(t, account.LastLoginAt)

	_, err = svc.Authenticate(ctx, "mia@example.com", "nope")
	assert.True(t, apierror.IsUnauthorized(err))

	_, err = svc.Authenticate(ctx, "ghost@example.com", "pw")
	assert.True(t, apierror.IsUnauthorized(err))
}

func TestServiceAuthenticateInactive(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	inactive := false
	_, err := svc.CreateUser(ctx, CreateUserInput{Email: "nia@example.com", Name: "Nia", Password: "pw", Active: &inactive})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "nia@example.com", "pw")
	assert.True(t, apierror.IsForbidden(err), "inactive accounts are rejected after the credential verifies")
}

func TestServiceAuthenticateSSOOnlyAccount(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	providerID := "google-sub-2"
	account := &Account{Email: "ox@example.com", Name: "Ox", ProviderID: &providerID, Active: true, CurrencyCode: "SGD"}
	require.NoError(t, store.Insert(ctx, account))

	_, err := svc.Authenticate(ctx, "ox@example.com", "")
	assert.True(t, apierror.IsUnauthorized(err), "an empty stored credential never verifies")
}

func TestServiceDeleteUser(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	admin, err := svc.CreateUser(ctx, CreateUserInput{Email: "root@example.com", Name: "Root"})
	require.NoError(t, err)
	target, err := svc.CreateUser(ctx, CreateUserInput{Email: "gone@example.com", Name: "Gone"})
	require.NoError(t, err)

	assert.True(t, apierror.IsForbidden(svc.DeleteUser(ctx, admin.ID, admin.ID)))
	require.NoError(t, svc.DeleteUser(ctx, admin.ID, target.ID))
	assert.True(t, apierror.IsNotFound(svc.DeleteUser(ctx, admin.ID, target.ID)))
}

func TestServiceDeleteLastAdmin(t *testing.T) {
	svc, store := setupService(t)
	ctx := context.Background()

	adminRole, err := store.GetOrCreateRole(ctx, "Admin")
	require.NoError(t, err)

	requester, err := svc.CreateUser(ctx, CreateUserInput{Email: "ops@example.com", Name: "Ops"})
	require.NoError(t, err)
	onlyAdmin, err := svc.CreateUser(ctx, CreateUserInput{
		Email:  "root@example.com",
		Name:   "Root",
		RoleID: &adminRole.ID,
	})
	require.NoError(t, err)

	err = svc.DeleteUser(ctx, requester.ID, onlyAdmin.ID)
	assert.True(t, apierror.IsForbidden(err))

	secondAdmin, err := svc.CreateUser(ctx, CreateUserInput{
		Email:  "root2@example.com",
		Name:   "Root Two",
		RoleID: &adminRole.ID,
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, secondAdmin.ID, onlyAdmin.ID))
}

func TestServiceRoleLifecycle(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, "Accounts")
	require.NoError(t, err)

	_, err = svc.CreateRole(ctx, "Accounts")
	assert.True(t, apierror.IsConflict(err))

	renamed, err := svc.RenameRole(ctx, role.ID, "Finance")
	require.NoError(t, err)
	assert.Equal(t, "Finance", renamed.Name)

	require.NoError(t, svc.DeleteRole(ctx, role.ID))
}

func TestServiceAdminRoleIsProtected(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	admin, err := svc.CreateRole(ctx, AdminRoleName)
	require.NoError(t, err)

	assert.True(t, apierror.IsForbidden(svc.DeleteRole(ctx, admin.ID)))

	_, err = svc.RenameRole(ctx, admin.ID, "Superuser")
	assert.True(t, apierror.IsForbidden(err))
}

func TestDefaultRoleProvider(t *testing.T) {
	_, store := setupService(t)
	provider := NewDefaultRoleProvider(store, "User")

	role, err := provider.GetOrCreateDefaultRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "User", role.Name)

	again, err := provider.GetOrCreateDefaultRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, role.ID, again.ID)
}
