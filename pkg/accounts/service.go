package accounts

import (
	"context"
	"time"

	"github.com/meridianhq/meridian/pkg/apierror"
	"github.com/meridianhq/meridian/pkg/auth"
	"github.com/meridianhq/meridian/pkg/observability"
)

// Service enforces account lifecycle rules on top of the store
type Service struct {
	store           *Store
	hasher          auth.PasswordHasher
	defaultCurrency string
	logger          *observability.Logger
}

// NewService creates an account service
func NewService(store *Store, hasher auth.PasswordHasher, defaultCurrency string, logger *observability.Logger) *Service {
	return &Service{
		store:           store,
		hasher:          hasher,
		defaultCurrency: defaultCurrency,
		logger:          logger,
	}
}

// Store exposes the underlying store for collaborators that need raw
// persistence (identity reconciliation, middleware account loading).
func (s *Service) Store() *Store {
	return s.store
}

// CreateUserInput holds admin-facing account creation fields
type CreateUserInput struct {
	Email        string
	Name         string
	Password     string
	RoleID       *int64
	Active       *bool
	CurrencyCode string
}

// CreateUser creates an account, failing on duplicate email
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*Account, error) {
	if input.Email == "" {
		return nil, apierror.BadRequest("email is required")
	}
	if input.Name == "" {
		return nil, apierror.BadRequest("name is required")
	}

	existing, err := s.store.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierror.Newf(apierror.KindConflict, "account with email %s already exists", input.Email)
	}

	account := &Account{
		Email:        input.Email,
		Name:         input.Name,
		Active:       true,
		CurrencyCode: s.defaultCurrency,
	}
	if input.Active != nil {
		account.Active = *input.Active
	}
	if input.CurrencyCode != "" {
		account.CurrencyCode = input.CurrencyCode
	}

	if input.Password != "" {
		hash, err := s.hasher.Hash(input.Password)
		if err != nil {
			return nil, err
		}
		account.PasswordHash = hash
	}

	if input.RoleID != nil {
		role, err := s.store.GetRoleByID(ctx, *input.RoleID)
		if err != nil {
			return nil, err
		}
		account.RoleID = &role.ID
		account.Role = role
	}

	if err := s.store.Insert(ctx, account); err != nil {
		if IsUniqueViolation(err) {
			return nil, apierror.Newf(apierror.KindConflict, "account with email %s already exists", input.Email)
		}
		return nil, err
	}

	s.logger.WithField("email", account.Email).Info("account created")
	return account, nil
}

// UpdateUserInput holds admin-facing account update fields. Nil pointers
// leave the field unchanged; RoleID distinguishes "unset role" (SetRole
// true, RoleID nil) from "leave alone" (SetRole false).
type UpdateUserInput struct {
	Email        *string
	Name         *string
	Active       *bool
	CurrencyCode *string
	Password     *string
	SetRole      bool
	RoleID       *int64
}

// UpdateUser applies an admin update to an account
func (s *Service) UpdateUser(ctx context.Context, id int64, input UpdateUserInput) (*Account, error) {
	account, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		account.Name = *input.Name
	}

	if input.Email != nil && *input.Email != account.Email {
		existing, err := s.store.FindByEmail(ctx, *input.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil && existing.ID != id {
			return nil, apierror.Newf(apierror.KindConflict, "email %s is already in use", *input.Email)
		}
		account.Email = *input.Email
	}

	if input.Active != nil {
		account.Active = *input.Active
	}
	if input.CurrencyCode != nil {
		account.CurrencyCode = *input.CurrencyCode
	}

	if input.SetRole {
		if input.RoleID == nil {
			account.RoleID = nil
			account.Role = nil
		} else {
			role, err := s.store.GetRoleByID(ctx, *input.RoleID)
			if err != nil {
				return nil, err
			}
			account.RoleID = &role.ID
			account.Role = role
		}
	}

	if input.Password != nil && *input.Password != "" {
		hash, err := s.hasher.Hash(*input.Password)
		if err != nil {
			return nil, err
		}
		account.PasswordHash = hash
	}

	if err := s.store.Update(ctx, account); err != nil {
		if IsUniqueViolation(err) {
			return nil, apierror.Conflict("email is already in use")
		}
		return nil, err
	}
	return account, nil
}

// ProfileInput holds self-service profile update fields
type ProfileInput struct {
	Name            *string
	CurrencyCode    *string
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile applies a self-service update. Password changes require the
// current password; accounts that signed up through SSO and never set a
// password cannot set one here.
func (s *Service) UpdateProfile(ctx context.Context, id int64, input ProfileInput) (*Account, error) {
	account, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		account.Name = *input.Name
	}
	if input.CurrencyCode != nil {
		account.CurrencyCode = *input.CurrencyCode
	}

	if input.NewPassword != "" {
		if account.SSOLinked() && !account.HasPassword() {
			return nil, apierror.Forbidden("password management is not available for accounts linked with Google SSO")
		}
		if account.HasPassword() {
			if input.CurrentPassword == "" {
				return nil, apierror.BadRequest("current password is required to set a new password")
			}
			if !s.hasher.Verify(account.PasswordHash, input.CurrentPassword) {
				return nil, apierror.BadRequest("incorrect current password")
			}
		}
		hash, err := s.hasher.Hash(input.NewPassword)
		if err != nil {
			return nil, err
		}
		account.PasswordHash = hash
	}

	if err := s.store.Update(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// Authenticate verifies local credentials. Unknown email and wrong password
// are indistinguishable to the caller; an inactive account is reported as
// forbidden only after the credential verifies.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if account == nil || !account.HasPassword() || !s.hasher.Verify(account.PasswordHash, password) {
		return nil, apierror.Unauthorized("invalid email or password")
	}
	if !account.Active {
		return nil, apierror.Forbidden("account is inactive")
	}

	now := time.Now()
	account.LastLoginAt = &now
	if err := s.store.Update(ctx, account); err != nil {
		// Login still succeeds when the timestamp write fails.
		s.logger.WithError(err).Warn("failed to record login time")
	}

	return account, nil
}

// DeleteUser removes an account. Self-deletion is rejected so the last
// admin cannot lock everyone out by removing their own account.
func (s *Service) DeleteUser(ctx context.Context, requesterID, targetID int64) error {
	if requesterID == targetID {
		return apierror.Forbidden("cannot delete your own account")
	}
	target, err := s.store.GetByID(ctx, targetID)
	if err != nil {
		return err
	}

	// The system must never lose its last administrator.
	if target.Active && target.Role != nil && target.Role.IsAdmin() {
		admins, err := s.store.CountAdmins(ctx)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return apierror.Forbidden("cannot delete the last admin account")
		}
	}
	return s.store.Delete(ctx, targetID)
}

// CreateRole creates a role, failing on duplicate name
func (s *Service) CreateRole(ctx context.Context, name string) (*Role, error) {
	if name == "" {
		return nil, apierror.BadRequest("role name is required")
	}

	existing, err := s.store.GetRoleByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apierror.Newf(apierror.KindConflict, "role %s already exists", name)
	}

	role := &Role{Name: name}
	if err := s.store.CreateRole(ctx, role); err != nil {
		if IsUniqueViolation(err) {
			return nil, apierror.Newf(apierror.KindConflict, "role %s already exists", name)
		}
		return nil, err
	}
	return role, nil
}

// RenameRole renames a role. The Admin role's name is load-bearing for
// authorization and cannot change.
func (s *Service) RenameRole(ctx context.Context, id int64, name string) (*Role, error) {
	if name == "" {
		return nil, apierror.BadRequest("role name is required")
	}

	role, err := s.store.GetRoleByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsAdmin() {
		return nil, apierror.Forbidden("the Admin role cannot be renamed")
	}

	existing, err := s.store.GetRoleByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.ID != id {
		return nil, apierror.Newf(apierror.KindConflict, "role %s already exists", name)
	}

	role.Name = name
	if err := s.store.UpdateRole(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// DeleteRole removes a role. The Admin role can never be deleted.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.store.GetRoleByID(ctx, id)
	if err != nil {
		return err
	}
	if role.IsAdmin() {
		return apierror.Forbidden("the Admin role cannot be deleted")
	}
	return s.store.DeleteRole(ctx, id)
}

// DefaultRoleProvider resolves the configured default role for new SSO
// accounts, creating it on first use.
type DefaultRoleProvider struct {
	store    *Store
	roleName string
}

// NewDefaultRoleProvider creates a provider for the given default role name
func NewDefaultRoleProvider(store *Store, roleName string) *DefaultRoleProvider {
	return &DefaultRoleProvider{store: store, roleName: roleName}
}

// GetOrCreateDefaultRole returns the default role, creating it when missing
func (p *DefaultRoleProvider) GetOrCreateDefaultRole(ctx context.Context) (*Role, error) {
	return p.store.GetOrCreateRole(ctx, p.roleName)
}
