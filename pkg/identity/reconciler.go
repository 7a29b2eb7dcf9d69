package identity

import (
	"context"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/apierror"
	"github.com/meridianhq/meridian/pkg/observability"
)

// Assertion is a federated identity claim presented after a successful
// third-party login. Email is required; ProviderID is expected but may be
// absent; Name is best effort.
type Assertion struct {
	Email      string
	ProviderID string
	Name       string
}

// AccountStore is the persistence surface the reconciler needs. Lookups
// return (nil, nil) on a miss so the reconciler can tell "not found" from
// a storage failure.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*accounts.Account, error)
	FindByProviderID(ctx context.Context, providerID string) (*accounts.Account, error)
	Insert(ctx context.Context, account *accounts.Account) error
	Update(ctx context.Context, account *accounts.Account) error
}

// RoleProvider resolves the default role assigned to accounts created by
// first SSO login.
type RoleProvider interface {
	GetOrCreateDefaultRole(ctx context.Context) (*accounts.Role, error)
}

// Outcome describes what a reconciliation did
type Outcome struct {
	Account        *accounts.Account
	Created        bool
	EmailUpdated   bool
	ProviderLinked bool
	Reactivated    bool
}

// Reconciler finds-or-creates a local account for an assertion
type Reconciler struct {
	store           AccountStore
	roles           RoleProvider
	defaultCurrency string
	logger          *observability.Logger
	metrics         *observability.Metrics
}

// NewReconciler creates a reconciler. metrics may be nil.
func NewReconciler(store AccountStore, roles RoleProvider, defaultCurrency string, logger *observability.Logger, metrics *observability.Metrics) *Reconciler {
	return &Reconciler{
		store:           store,
		roles:           roles,
		defaultCurrency: defaultCurrency,
		logger:          logger,
		metrics:         metrics,
	}
}

// Reconcile resolves an assertion to an active local account.
//
// Lookup is by email first, provider id second; when the two keys resolve
// to different accounts the call fails with a conflict rather than
// guessing which record wins. A miss on both creates a new active account
// with the default role. A hit takes the update path: email drift is
// propagated only if the provider was already linked, an unlinked
// provider id is linked, and an inactive account is reactivated. Storage
// errors pass through untranslated.
func (r *Reconciler) Reconcile(ctx context.Context, assertion Assertion) (*Outcome, error) {
	if assertion.Email == "" {
		return nil, apierror.BadRequest("assertion is missing an email address")
	}

	byEmail, err := r.store.FindByEmail(ctx, assertion.Email)
	if err != nil {
		return nil, err
	}

	var byProvider *accounts.Account
	if assertion.ProviderID != "" {
		byProvider, err = r.store.FindByProviderID(ctx, assertion.ProviderID)
		if err != nil {
			return nil, err
		}
	}

	if byEmail != nil && byProvider != nil && byEmail.ID != byProvider.ID {
		r.observe("conflict")
		return nil, apierror.Conflict("ambiguous identity: email and provider id match different accounts")
	}

	account := byEmail
	if account == nil {
		account = byProvider
	}

	var outcome *Outcome
	if account == nil {
		outcome, err = r.create(ctx, assertion)
	} else {
		outcome, err = r.update(ctx, account, assertion)
	}
	if err != nil {
		r.observe("error")
		return nil, err
	}

	// Reactivation above makes this unreachable today; it stays as the
	// invariant check guarding any future conditional-reactivation policy.
	if !outcome.Account.Active {
		r.observe("denied")
		return nil, apierror.Forbidden("account is inactive")
	}

	if outcome.Created {
		r.observe("created")
	} else {
		r.observe("updated")
	}
	return outcome, nil
}

func (r *Reconciler) create(ctx context.Context, assertion Assertion) (*Outcome, error) {
	account := &accounts.Account{
		Email:        assertion.Email,
		Name:         assertion.Name,
		Active:       true,
		CurrencyCode: r.defaultCurrency,
	}
	if assertion.ProviderID != "" {
		providerID := assertion.ProviderID
		account.ProviderID = &providerID
	}

	// A failed default-role resolution still creates the account; roleless
	// accounts are denied by every permission check, so this fails closed.
	role, err := r.roles.GetOrCreateDefaultRole(ctx)
	if err != nil {
		r.logger.WithError(err).WithField("email", assertion.Email).
			Error("could not assign default role to new account")
	} else if role != nil {
		account.RoleID = &role.ID
		account.Role = role
	}

	if err := r.store.Insert(ctx, account); err != nil {
		if accounts.IsUniqueViolation(err) {
			// Lost a creation race: someone else just made this account.
			// Re-read and reconcile against the winner instead.
			return r.recover(ctx, assertion)
		}
		return nil, err
	}

	r.logger.WithField("email", account.Email).Info("account created via federated login")
	return &Outcome{Account: account, Created: true}, nil
}

// recover re-resolves after an insert lost a uniqueness race
func (r *Reconciler) recover(ctx context.Context, assertion Assertion) (*Outcome, error) {
	account, err := r.store.FindByEmail(ctx, assertion.Email)
	if err != nil {
		return nil, err
	}
	if account == nil && assertion.ProviderID != "" {
		account, err = r.store.FindByProviderID(ctx, assertion.ProviderID)
		if err != nil {
			return nil, err
		}
	}
	if account == nil {
		return nil, apierror.New(apierror.KindInternal, "account vanished after uniqueness violation")
	}
	return r.update(ctx, account, assertion)
}

func (r *Reconciler) update(ctx context.Context, account *accounts.Account, assertion Assertion) (*Outcome, error) {
	outcome := &Outcome{Account: account}
	changed := false

	// Provider-side email changes propagate only to accounts that already
	// have the provider linked. An account found purely by email keeps its
	// human-entered address.
	if account.SSOLinked() && account.Email != assertion.Email {
		r.logger.WithFields(map[string]interface{}{
			"old_email": account.Email,
			"new_email": assertion.Email,
		}).Info("propagating provider-side email change")
		account.Email = assertion.Email
		outcome.EmailUpdated = true
		changed = true
	}

	if !account.SSOLinked() && assertion.ProviderID != "" {
		providerID := assertion.ProviderID
		account.ProviderID = &providerID
		outcome.ProviderLinked = true
		changed = true
	}

	if !account.Active {
		account.Active = true
		outcome.Reactivated = true
		changed = true
	}

	if changed {
		if err := r.store.Update(ctx, account); err != nil {
			return nil, err
		}
	}

	return outcome, nil
}

func (r *Reconciler) observe(outcome string) {
	if r.metrics != nil {
		r.metrics.ObserveReconciliation(outcome)
	}
}
