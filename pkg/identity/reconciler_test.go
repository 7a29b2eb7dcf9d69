package identity

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/meridian/pkg/accounts"
	"github.com/meridianhq/meridian/pkg/apierror"
	"github.com/meridianhq/meridian/pkg/observability"
)

// fakeStore is an in-memory AccountStore with fault injection.
// emailMisses makes the next N FindByEmail calls miss, which simulates a
// concurrent creator winning between lookup and insert.
type fakeStore struct {
	accounts    map[int64]*accounts.Account
	nextID      int64
	updates     int
	inserts     int
	insertErr   error
	findErr     error
	emailMisses int
}

func newFakeStore() *fakeStore {
	return &fakeStore{accounts: make(map[int64]*accounts.Account), nextID: 1}
}

func (s *fakeStore) add(account *accounts.Account) *accounts.Account {
	account.ID = s.nextID
	s.nextID++
	copied := *account
	s.accounts[copied.ID] = &copied
	return account
}

func (s *fakeStore) FindByEmail(_ context.Context, email string) (*accounts.Account, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.emailMisses > 0 {
		s.emailMisses--
		return nil, nil
	}
	for _, account := range s.accounts {
		if account.Email == email {
			copied := *account
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindByProviderID(_ context.Context, providerID string) (*accounts.Account, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, account := range s.accounts {
		if account.ProviderID != nil && *account.ProviderID == providerID {
			copied := *account
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Insert(_ context.Context, account *accounts.Account) error {
	s.inserts++
	if s.insertErr != nil {
		err := s.insertErr
		s.insertErr = nil
		return err
	}
	for _, existing := range s.accounts {
		if existing.Email == account.Email {
			return errors.New("UNIQUE constraint failed: accounts.email")
		}
	}
	s.add(account)
	return nil
}

func (s *fakeStore) Update(_ context.Context, account *accounts.Account) error {
	s.updates++
	copied := *account
	s.accounts[copied.ID] = &copied
	return nil
}

type fakeRoles struct {
	role *accounts.Role
	err  error
}

func (r *fakeRoles) GetOrCreateDefaultRole(context.Context) (*accounts.Role, error) {
	return r.role, r.err
}

func newTestReconciler(store *fakeStore, roles RoleProvider) *Reconciler {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewReconciler(store, roles, "SGD", logger, nil)
}

func defaultRoles() *fakeRoles {
	return &fakeRoles{role: &accounts.Role{ID: 7, Name: "User"}}
}

func TestReconcileRequiresEmail(t *testing.T) {
	reconciler := newTestReconciler(newFakeStore(), defaultRoles())

	_, err := reconciler.Reconcile(context.Background(), Assertion{ProviderID: "g-1", Name: "A"})
	assert.True(t, apierror.IsBadRequest(err))
}

func TestReconcileCreatesNewAccount(t *testing.T) {
	store := newFakeStore()
	reconciler := newTestReconciler(store, defaultRoles())

	outcome, err := reconciler.Reconcile(context.Background(), Assertion{
		Email:      "a@x.com",
		ProviderID: "g-1",
		Name:       "A",
	})
	require.NoError(t, err)

	assert.True(t, outcome.Created)
	account := outcome.Account
	assert.Equal(t, "a@x.com", account.Email)
	require.NotNil(t, account.ProviderID)
	assert.Equal(t, "g-1", *account.ProviderID)
	assert.True(t, account.Active)
	assert.Equal(t, "User", account.RoleName())
	assert.Equal(t, "SGD", account.CurrencyCode)
	assert.Len(t, store.accounts, 1)
}

func TestReconcileCreateWithFailedDefaultRole(t *testing.T) {
	// Role resolution failure still creates the account, roleless
	store := newFakeStore()
	reconciler := newTestReconciler(store, &fakeRoles{err: errors.New("role store down")})

	outcome, err := reconciler.Reconcile(context.Background(), Assertion{Email: "b@x.com", ProviderID: "g-2", Name: "B"})
	require.NoError(t, err)

	assert.True(t, outcome.Created)
	assert.Nil(t, outcome.Account.RoleID)
	assert.True(t, outcome.Account.Active)
}

func TestReconcileLinksProviderWithoutTouchingEmail(t *testing.T) {
	store := newFakeStore()
	store.add(&accounts.Account{Email: "human@x.com", Name: "Human", Active: true, CurrencyCode: "SGD"})

	reconciler := newTestReconciler(store, defaultRoles())
	outcome, err := reconciler.Reconcile(context.Background(), Assertion{
		Email:      "human@x.com",
		ProviderID: "g-3",
		Name:       "Human",
	})
	require.NoError(t, err)

	assert.False(t, outcome.Created)
	assert.True(t, outcome.ProviderLinked)
	assert.False(t, outcome.EmailUpdated)
	assert.Equal(t, "human@x.com", outcome.Account.Email)
	require.NotNil(t, outcome.Account.ProviderID)
	assert.Equal(t, "g-3", *outcome.Account.ProviderID)
	assert.Equal(t, 1, store.updates)
}

func TestReconcilePropagatesEmailDriftWhenLinked(t *testing.T) {
	store := newFakeStore()
	providerID := "g-4"
	store.add(&accounts.Account{Email: "old@x.com", Name: "C", ProviderID: &providerID, Active: true, CurrencyCode: "SGD"})

	reconciler := newTestReconciler(store, defaultRoles())
	outcome, err := reconciler.Reconcile(context.Background(), Assertion{
		Email:      "new@x.com",
		ProviderID: "g-4",
		Name:       "C",
	})
	require.NoError(t, err)

	assert.True(t, outcome.EmailUpdated)
	assert.Equal(t, "new@x.com", outcome.Account.Email)
}

func TestReconcileReactivatesInactiveAccount(t *testing.T) {
	store := newFakeStore()
	providerID := "g-5"
	store.add(&accounts.Account{Email: "d@x.com", Name: "D", ProviderID: &providerID, Active: false, CurrencyCode: "SGD"})

	reconciler := newTestReconciler(store, defaultRoles())
	outcome, err := reconciler.Reconcile(context.Background(), Assertion{
		Email:      "d@x.com",
		ProviderID: "g-5",
		Name:       "D",
	})
	require.NoError(t, err, "reactivation is the happy path, not a denial")

	assert.True(t, outcome.Reactivated)
	assert.True(t, outcome.Account.Active)
}

func TestReconcileNoOpWritesNothing(t *testing.T) {
	store := newFakeStore()
	providerID := "g-6"
	store.add(&accounts.Account{Email: "e@x.com", Name: "E", ProviderID: &providerID, Active: true, CurrencyCode: "SGD"})

	reconciler := newTestReconciler(store, defaultRoles())
	outcome, err := reconciler.Reconcile(context.Background(), Assertion{
		Email:      "e@x.com",
		ProviderID: "g-6",
		Name:       "E",
	})
	require.NoError(t, err)

	assert.False(t, outcome.Created)
	assert.False(t, outcome.EmailUpdated)
	assert.False(t, outcome.ProviderLinked)
	assert.False(t, outcome.Reactivated)
	assert.Equal(t, 0, store.updates)
}

func TestReconcileAmbiguousDualMatch(t *testing.T) {
	store := newFakeStore()
	store.add(&accounts.Account{Email: "f@x.com", Name: "F", Active: true, CurrencyCode: "SGD"})
	otherProvider := "g-7"
	store.add(&accounts.Account{Email: "other@x.com", Name: "G", ProviderID: &otherProvider, Active: true, CurrencyCode: "SGD"})

	reconciler := newTestReconciler(store, defaultRoles())
	_, err := reconciler.Reconcile(context.Background(), Assertion{
		Email:      "f@x.com",
		ProviderID: "g-7",
		Name:       "F",
	})
	assert.True(t, apierror.IsConflict(err))
}

func TestReconcileFindsByProviderWhenEmailMisses(t *testing.T) {
	store := newFakeStore()
	providerID := "g-8"
	store.add(&accounts.Account{Email: "before-drift@x.com", Name: "H", ProviderID: &providerID, Active: true, CurrencyCode: "SGD"})

	reconciler := newTestReconciler(store, defaultRoles())
	outcome, err := reconciler.Reconcile(context.Background(), Assertion{
		Email:      "after-drift@x.com",
		ProviderID: "g-8",
		Name:       "H",
	})
	require.NoError(t, err)

	assert.False(t, outcome.Created)
	assert.True(t, outcome.EmailUpdated)
	assert.Equal(t, "after-drift@x.com", outcome.Account.Email)
}

func TestReconcileInsertRaceRecovers(t *testing.T) {
	// An insert losing a uniqueness race re-reads and reconciles against
	// the winner instead of failing.
	store := newFakeStore()
	store.emailMisses = 1
	reconciler := newTestReconciler(store, defaultRoles())

	winner := store.add(&accounts.Account{Email: "race@x.com", Name: "W", Active: true, CurrencyCode: "SGD"})

	outcome, err := reconciler.Reconcile(context.Background(), Assertion{
		Email:      "race@x.com",
		ProviderID: "g-9",
		Name:       "R",
	})
	require.NoError(t, err)

	assert.False(t, outcome.Created)
	assert.Equal(t, winner.ID, outcome.Account.ID)
	assert.True(t, outcome.ProviderLinked, "the winner gets the provider id linked")
	assert.Equal(t, 1, store.inserts)
}

func TestReconcileStorageErrorPassesThrough(t *testing.T) {
	store := newFakeStore()
	storageErr := errors.New("connection reset")
	store.findErr = storageErr

	reconciler := newTestReconciler(store, defaultRoles())
	_, err := reconciler.Reconcile(context.Background(), Assertion{Email: "x@x.com", ProviderID: "g-10"})
	assert.ErrorIs(t, err, storageErr, "storage failures are propagated untranslated")
}

func TestReconcileWithoutProviderID(t *testing.T) {
	store := newFakeStore()
	reconciler := newTestReconciler(store, defaultRoles())

	outcome, err := reconciler.Reconcile(context.Background(), Assertion{Email: "solo@x.com", Name: "Solo"})
	require.NoError(t, err)

	assert.True(t, outcome.Created)
	assert.Nil(t, outcome.Account.ProviderID)
}
