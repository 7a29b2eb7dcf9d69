package currencies

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/meridianhq/meridian/pkg/apierror"
)

// Store handles currency catalog and assignment persistence
type Store struct {
	db *sql.DB
}

// NewStore creates a currency store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// List returns catalog currencies, optionally only active ones
func (s *Store) List(ctx context.Context, activeOnly bool) ([]Currency, error) {
	query := `SELECT code, name, symbol, is_active, created_at, updated_at FROM currencies`
	if activeOnly {
		query += ` WHERE is_active = $1`
	}
	query += ` ORDER BY code ASC`

	var rows *sql.Rows
	var err error
	if activeOnly {
		rows, err = s.db.QueryContext(ctx, query, true)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, fmt.Errorf("list currencies: %w", err)
	}
	defer rows.Close()

	var out []Currency
	for rows.Next() {
		var c Currency
		if err := rows.Scan(&c.Code, &c.Name, &c.Symbol, &c.Active, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan currency: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Get retrieves a catalog currency by code
func (s *Store) Get(ctx context.Context, code string) (*Currency, error) {
	var c Currency
	err := s.db.QueryRowContext(ctx,
		`SELECT code, name, symbol, is_active, created_at, updated_at FROM currencies WHERE code = $1`,
		code,
	).Scan(&c.Code, &c.Name, &c.Symbol, &c.Active, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, apierror.Newf(apierror.KindNotFound, "currency %s not found", code)
	}
	if err != nil {
		return nil, fmt.Errorf("get currency: %w", err)
	}
	return &c, nil
}

// Create adds a currency to the catalog
func (s *Store) Create(ctx context.Context, currency *Currency) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO currencies (code, name, symbol, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		currency.Code, currency.Name, currency.Symbol, currency.Active, now, now,
	)
	if err != nil {
		return fmt.Errorf("create currency: %w", err)
	}
	currency.CreatedAt = now
	currency.UpdatedAt = now
	return nil
}

// Update rewrites a catalog currency
func (s *Store) Update(ctx context.Context, currency *Currency) error {
	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		`UPDATE currencies SET name = $1, symbol = $2, is_active = $3, updated_at = $4 WHERE code = $5`,
		currency.Name, currency.Symbol, currency.Active, now, currency.Code,
	)
	if err != nil {
		return fmt.Errorf("update currency: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return apierror.Newf(apierror.KindNotFound, "currency %s not found", currency.Code)
	}
	currency.UpdatedAt = now
	return nil
}

// Delete removes a currency from the catalog. Assignments cascade.
func (s *Store) Delete(ctx context.Context, code string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM currencies WHERE code = $1`, code)
	if err != nil {
		return fmt.Errorf("delete currency: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return apierror.Newf(apierror.KindNotFound, "currency %s not found", code)
	}
	return nil
}

const assignmentColumns = `
	uc.id, uc.account_id, uc.currency_code, uc.is_default, uc.created_at, uc.updated_at,
	c.code, c.name, c.symbol, c.is_active, c.created_at, c.updated_at
`

// ListForAccount returns an account's currency assignments
func (s *Store) ListForAccount(ctx context.Context, accountID int64) ([]Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+`
		 FROM user_currencies uc
		 JOIN currencies c ON uc.currency_code = c.code
		 WHERE uc.account_id = $1
		 ORDER BY uc.currency_code ASC`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		assignment, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *assignment)
	}
	return out, rows.Err()
}

// Assign grants an account access to a currency
func (s *Store) Assign(ctx context.Context, accountID int64, code string) (*Assignment, error) {
	if _, err := s.Get(ctx, code); err != nil {
		return nil, err
	}

	now := time.Now()
	assignment := &Assignment{
		AccountID:    accountID,
		CurrencyCode: code,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO user_currencies (account_id, currency_code, is_default, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		accountID, code, false, now, now,
	).Scan(&assignment.ID)
	if err != nil {
		return nil, fmt.Errorf("assign currency: %w", err)
	}
	return assignment, nil
}

// Unassign revokes an account's access to a currency
func (s *Store) Unassign(ctx context.Context, accountID int64, code string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM user_currencies WHERE account_id = $1 AND currency_code = $2`,
		accountID, code,
	)
	if err != nil {
		return fmt.Errorf("unassign currency: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return apierror.Newf(apierror.KindNotFound, "currency %s is not assigned to account %d", code, accountID)
	}
	return nil
}

// SetDefault marks one assignment as the account's default. The previous
// default is cleared in the same transaction so exactly one assignment is
// ever the default.
func (s *Store) SetDefault(ctx context.Context, accountID int64, code string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set default currency: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	if _, err := tx.ExecContext(ctx,
		`UPDATE user_currencies SET is_default = $1, updated_at = $2 WHERE account_id = $3 AND is_default = $4`,
		false, now, accountID, true,
	); err != nil {
		return fmt.Errorf("clear default currency: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE user_currencies SET is_default = $1, updated_at = $2 WHERE account_id = $3 AND currency_code = $4`,
		true, now, accountID, code,
	)
	if err != nil {
		return fmt.Errorf("set default currency: %w", err)
	}
	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return apierror.Newf(apierror.KindNotFound, "currency %s is not assigned to account %d", code, accountID)
	}

	return tx.Commit()
}

// GetDefaultForAccount returns the account's default assignment, or
// (nil, nil) when none is set.
func (s *Store) GetDefaultForAccount(ctx context.Context, accountID int64) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+assignmentColumns+`
		 FROM user_currencies uc
		 JOIN currencies c ON uc.currency_code = c.code
		 WHERE uc.account_id = $1 AND uc.is_default = $2`,
		accountID, true,
	)
	assignment, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get default currency: %w", err)
	}
	return assignment, nil
}

// HasAccess reports whether the account holds an assignment for code
func (s *Store) HasAccess(ctx context.Context, accountID int64, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM user_currencies WHERE account_id = $1 AND currency_code = $2`,
		accountID, code,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check currency access: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAssignment(row rowScanner) (*Assignment, error) {
	var a Assignment
	var c Currency
	err := row.Scan(
		&a.ID, &a.AccountID, &a.CurrencyCode, &a.Default, &a.CreatedAt, &a.UpdatedAt,
		&c.Code, &c.Name, &c.Symbol, &c.Active, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Currency = &c
	return &a, nil
}
