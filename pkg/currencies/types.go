package currencies

import "time"

// Currency is an entry in the system currency catalog
type Currency struct {
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Symbol    string    `json:"symbol"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assignment grants an account access to a currency. At most one
// assignment per account is the default.
type Assignment struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"account_id"`
	CurrencyCode string    `json:"currency_code"`
	Default      bool      `json:"is_default"`
	Currency     *Currency `json:"currency,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
