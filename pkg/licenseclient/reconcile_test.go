package licenseclient

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedValidator struct {
	answers []func() (*ValidationResponse, error)
	calls   int
}

func (s *scriptedValidator) Validate(_ context.Context, _ string) (*ValidationResponse, error) {
	idx := s.calls
	if idx >= len(s.answers) {
		idx = len(s.answers) - 1
	}
	s.calls++
	return s.answers[idx]()
}

type memoryStore struct {
	cached  *CachedEntitlement
	saved   int
	loadErr error
}

func (m *memoryStore) Load() (*CachedEntitlement, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return m.cached, nil
}

func (m *memoryStore) Save(entitlement *CachedEntitlement) error {
	m.cached = entitlement
	m.saved++
	return nil
}

func transportFailure() (*ValidationResponse, error) {
	return nil, &TransportError{Op: "validate", Err: errors.New("connection refused")}
}

func newTestReconciler(t *testing.T, client validator, store cacheStore) *Reconciler {
	t.Helper()
	rec, err := NewReconciler(client, store, ReconcilerOptions{
		Deadline: 500 * time.Millisecond,
		Interval: 10 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewReconciler failed: %v", err)
	}
	return rec
}

func TestReconcileOnlineAnswerWins(t *testing.T) {
	expires := time.Now().AddDate(0, 0, 30)
	client := &scriptedValidator{answers: []func() (*ValidationResponse, error){
		func() (*ValidationResponse, error) {
			return &ValidationResponse{
				IsValid:   true,
				ExpiresAt: &expires,
				License:   &LicenseInfo{Key: "KOFI-AAAAA"},
			}, nil
		},
	}}
	store := &memoryStore{}
	rec := newTestReconciler(t, client, store)

	outcome, err := rec.Reconcile(context.Background(), "token")
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !outcome.Entitled || outcome.Source != "online" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if store.saved != 1 || store.cached.LicenseKey != "KOFI-AAAAA" {
		t.Fatalf("expected cache refresh, got %+v", store.cached)
	}
}

func TestReconcileRetriesTransportFailures(t *testing.T) {
	expires := time.Now().AddDate(0, 0, 30)
	client := &scriptedValidator{answers: []func() (*ValidationResponse, error){
		transportFailure,
		transportFailure,
		func() (*ValidationResponse, error) {
			return &ValidationResponse{IsValid: true, ExpiresAt: &expires}, nil
		},
	}}
	rec := newTestReconciler(t, client, &memoryStore{})

	outcome, err := rec.Reconcile(context.Background(), "token")
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !outcome.Entitled || outcome.Source != "online" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", client.calls)
	}
}

func TestReconcilePollsThroughNotEntitled(t *testing.T) {
	notFound := func() (*ValidationResponse, error) {
		return &ValidationResponse{IsValid: false, Error: "No active license found"}, nil
	}
	expires := time.Now().AddDate(0, 0, 30)
	client := &scriptedValidator{answers: []func() (*ValidationResponse, error){
		notFound,
		notFound,
		func() (*ValidationResponse, error) {
			return &ValidationResponse{IsValid: true, ExpiresAt: &expires}, nil
		},
	}}
	rec := newTestReconciler(t, client, &memoryStore{})

	outcome, err := rec.Reconcile(context.Background(), "token")
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if !outcome.Entitled || outcome.Source != "online" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if client.calls != 3 {
		t.Fatalf("linking may still be in flight; expected polling through 3 attempts, got %d", client.calls)
	}
}

func TestReconcileNotEntitledAtDeadlineIsDefinitive(t *testing.T) {
	client := &scriptedValidator{answers: []func() (*ValidationResponse, error){
		func() (*ValidationResponse, error) {
			return &ValidationResponse{IsValid: false, Error: "No active license found"}, nil
		},
	}}
	store := &memoryStore{cached: &CachedEntitlement{
		LicenseKey: "KOFI-AAAAA",
		ExpiresAt:  time.Now().Add(time.Hour),
	}}
	rec := newTestReconciler(t, client, store)

	outcome, err := rec.Reconcile(context.Background(), "token")
	if err != nil {
		t.Fatalf("a definitive server answer is a result, not an error: %v", err)
	}
	if outcome.Entitled || outcome.Source != "online" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.Cached != nil {
		t.Fatal("the cache must not override a definitive server answer")
	}
	if client.calls < 2 {
		t.Fatalf("expected polling until the deadline, got %d call(s)", client.calls)
	}
}

func TestReconcileUnauthorizedStopsImmediately(t *testing.T) {
	client := &scriptedValidator{answers: []func() (*ValidationResponse, error){
		func() (*ValidationResponse, error) { return nil, ErrUnauthorized },
	}}
	rec := newTestReconciler(t, client, &memoryStore{})

	_, err := rec.Reconcile(context.Background(), "token")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("a bad token must not be retried, got %d attempts", client.calls)
	}
}

func TestReconcileFallsBackToOfflineCache(t *testing.T) {
	client := &scriptedValidator{answers: []func() (*ValidationResponse, error){transportFailure}}
	store := &memoryStore{cached: &CachedEntitlement{
		LicenseKey: "KOFI-AAAAA",
		ExpiresAt:  time.Now().Add(time.Hour),
	}}
	rec := newTestReconciler(t, client, store)

	outcome, err := rec.Reconcile(context.Background(), "token")
	if err != nil {
		t.Fatalf("offline fallback must not surface the transport error, got %v", err)
	}
	if !outcome.Entitled || outcome.Source != "offline" || outcome.Cached == nil {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestReconcileExpiredCacheDenies(t *testing.T) {
	client := &scriptedValidator{answers: []func() (*ValidationResponse, error){transportFailure}}
	store := &memoryStore{cached: &CachedEntitlement{
		LicenseKey: "KOFI-AAAAA",
		ExpiresAt:  time.Now().Add(-time.Hour),
	}}
	rec := newTestReconciler(t, client, store)

	outcome, err := rec.Reconcile(context.Background(), "token")
	if err == nil {
		t.Fatal("expected the transport error to surface when the cache cannot help")
	}
	if outcome == nil || outcome.Entitled || outcome.Source != "none" {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
}

func TestReconcileHonorsCallerCancellation(t *testing.T) {
	client := &scriptedValidator{answers: []func() (*ValidationResponse, error){transportFailure}}
	rec := newTestReconciler(t, client, &memoryStore{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := rec.Reconcile(ctx, "token")
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if outcome != nil && outcome.Entitled {
		t.Fatalf("cancelled reconcile must not entitle, got %+v", outcome)
	}
}
