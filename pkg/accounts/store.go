package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/meridianhq/meridian/pkg/apierror"
)

// Store handles account and role persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a new account store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const accountColumns = `
	a.id, a.email, a.name, a.password_hash, a.provider_id, a.role_id,
	a.is_active, a.currency_code, a.created_at, a.updated_at, a.last_login_at,
	r.id, r.name, r.created_at, r.updated_at
`

const accountFrom = `FROM accounts a LEFT JOIN roles r ON a.role_id = r.id`

// FindByEmail looks up an account by email. Returns (nil, nil) when no
// account matches; the reconciler depends on distinguishing a miss from a
// storage failure.
func (s *Store) FindByEmail(ctx context.Context, email string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` ` + accountFrom + ` WHERE a.email = $1`
	account, err := s.scanAccountRow(s.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account by email: %w", err)
	}
	return account, nil
}

// FindByProviderID looks up an account by its external provider subject id.
// Returns (nil, nil) when no account matches.
func (s *Store) FindByProviderID(ctx context.Context, providerID string) (*Account, error) {
	query := `SELECT ` + accountColumns + ` ` + accountFrom + ` WHERE a.provider_id = $1`
	account, err := s.scanAccountRow(s.db.QueryRowContext(ctx, query, providerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find account by provider id: %w", err)
	}
	return account, nil
}

// GetByID retrieves an account by ID
func (s *Store) GetByID(ctx context.Context, id int64) (*Account, error) {
	query := `SELECT ` + accountColumns + ` ` + accountFrom + ` WHERE a.id = $1`
	account, err := s.scanAccountRow(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apierror.Newf(apierror.KindNotFound, "account %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// Insert creates a new account and assigns its ID
func (s *Store) Insert(ctx context.Context, account *Account) error {
	query := `
		INSERT INTO accounts (email, name, password_hash, provider_id, role_id, is_active, currency_code, created_at, updated_at, last_login_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	now := time.Now()
	err := s.db.QueryRowContext(ctx, query,
		account.Email,
		account.Name,
		account.PasswordHash,
		account.ProviderID,
		account.RoleID,
		account.Active,
		account.CurrencyCode,
		now,
		now,
		account.LastLoginAt,
	).Scan(&account.ID)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	return nil
}

// Update persists all mutable account fields
func (s *Store) Update(ctx context.Context, account *Account) error {
	query := `
		UPDATE accounts
		SET email = $1, name = $2, password_hash = $3, provider_id = $4,
		    role_id = $5, is_active = $6, currency_code = $7, updated_at = $8,
		    last_login_at = $9
		WHERE id = $10
	`

	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		account.Email,
		account.Name,
		account.PasswordHash,
		account.ProviderID,
		account.RoleID,
		account.Active,
		account.CurrencyCode,
		now,
		account.LastLoginAt,
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return apierror.Newf(apierror.KindNotFound, "account %d not found", account.ID)
	}

	account.UpdatedAt = now
	return nil
}

// Delete removes an account
func (s *Store) Delete(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return apierror.Newf(apierror.KindNotFound, "account %d not found", id)
	}
	return nil
}

// List returns accounts ordered by creation time
func (s *Store) List(ctx context.Context, limit, offset int) ([]Account, error) {
	query := `SELECT ` + accountColumns + ` ` + accountFrom + `
		ORDER BY a.created_at DESC, a.id DESC
		LIMIT $1 OFFSET $2`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		account, err := s.scanAccountRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, *account)
	}
	return out, rows.Err()
}

// CountAdmins returns the number of active accounts holding the Admin role
func (s *Store) CountAdmins(ctx context.Context) (int, error) {
	query := `
		SELECT COUNT(*) FROM accounts a
		JOIN roles r ON a.role_id = r.id
		WHERE LOWER(r.name) = 'admin' AND a.is_active = $1`
	var count int
	if err := s.db.QueryRowContext(ctx, query, true).Scan(&count); err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return count, nil
}

// GetRoleByID retrieves a role by ID
func (s *Store) GetRoleByID(ctx context.Context, id int64) (*Role, error) {
	var role Role
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apierror.Newf(apierror.KindNotFound, "role %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get role: %w", err)
	}
	return &role, nil
}

// GetRoleByName retrieves a role by its exact name. Returns (nil, nil) when
// no role matches.
func (s *Store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM roles WHERE name = $1`, name,
	).Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get role by name: %w", err)
	}
	return &role, nil
}

// CreateRole creates a new role
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	now := time.Now()
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO roles (name, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		role.Name, now, now,
	).Scan(&role.ID)
	if err != nil {
		return fmt.Errorf("create role: %w", err)
	}
	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// UpdateRole renames a role
func (s *Store) UpdateRole(ctx context.Context, role *Role) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE roles SET name = $1, updated_at = $2 WHERE id = $3`,
		role.Name, now, role.ID,
	)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return apierror.Newf(apierror.KindNotFound, "role %d not found", role.ID)
	}
	role.UpdatedAt = now
	return nil
}

// DeleteRole removes a role. Accounts referencing it fall back to roleless,
// which permission checks treat as denied.
func (s *Store) DeleteRole(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return apierror.Newf(apierror.KindNotFound, "role %d not found", id)
	}
	return nil
}

// ListRoles returns all roles ordered by name
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, created_at, updated_at FROM roles ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var out []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		out = append(out, role)
	}
	return out, rows.Err()
}

// GetOrCreateRole finds a role by name, creating it when missing. A create
// that loses a race to a concurrent creator re-reads the winner's row.
func (s *Store) GetOrCreateRole(ctx context.Context, name string) (*Role, error) {
	role, err := s.GetRoleByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if role != nil {
		return role, nil
	}

	role = &Role{Name: name}
	if err := s.CreateRole(ctx, role); err != nil {
		if IsUniqueViolation(err) {
			return s.GetRoleByName(ctx, name)
		}
		return nil, err
	}
	return role, nil
}

// IsUniqueViolation reports whether err is a uniqueness-constraint failure.
// The reconciler converts insert races into re-resolution instead of hard
// failures based on this check.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	// sqlite (tests) has no typed error for this
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanner abstracts *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func (s *Store) scanAccountRow(row scanner) (*Account, error) {
	var account Account
	var passwordHash sql.NullString
	var providerID sql.NullString
	var roleID sql.NullInt64
	var lastLoginAt sql.NullTime
	var joinedRoleID sql.NullInt64
	var joinedRoleName sql.NullString
	var joinedRoleCreated, joinedRoleUpdated sql.NullTime

	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.Name,
		&passwordHash,
		&providerID,
		&roleID,
		&account.Active,
		&account.CurrencyCode,
		&account.CreatedAt,
		&account.UpdatedAt,
		&lastLoginAt,
		&joinedRoleID,
		&joinedRoleName,
		&joinedRoleCreated,
		&joinedRoleUpdated,
	)
	if err != nil {
		return nil, err
	}

	if passwordHash.Valid {
		account.PasswordHash = passwordHash.String
	}
	if providerID.Valid {
		id := providerID.String
		account.ProviderID = &id
	}
	if roleID.Valid {
		id := roleID.Int64
		account.RoleID = &id
	}
	if lastLoginAt.Valid {
		t := lastLoginAt.Time
		account.LastLoginAt = &t
	}
	if joinedRoleID.Valid {
		account.Role = &Role{
			ID:        joinedRoleID.Int64,
			Name:      joinedRoleName.String,
			CreatedAt: joinedRoleCreated.Time,
			UpdatedAt: joinedRoleUpdated.Time,
		}
	}

	return &account, nil
}
