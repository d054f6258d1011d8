package licenseclient

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	defaultReconcileDeadline = 20 * time.Second
	defaultReconcileInterval = 2500 * time.Millisecond
)

type validator interface {
	Validate(ctx context.Context, accessToken string) (*ValidationResponse, error)
}

type cacheStore interface {
	Load() (*CachedEntitlement, error)
	Save(entitlement *CachedEntitlement) error
}

// ReconcilerOptions bounds the startup reconciliation loop.
type ReconcilerOptions struct {
	Deadline time.Duration
	Interval time.Duration
}

// Reconciler re-checks entitlement against the server at startup. It polls
// on a fixed interval until the server reports an entitlement or the
// deadline passes. A not-entitled answer keeps the loop going: activation
// may still be completing on the server, so only "not entitled at the
// deadline" counts as the definitive answer. The offline cache is consulted
// only when the server never answered at all. Unauthorized stops the loop
// immediately: a bad token will not get better by waiting.
type Reconciler struct {
	client   validator
	store    cacheStore
	deadline time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewReconciler builds a reconciler over the given client and cache.
func NewReconciler(client validator, store cacheStore, opts ReconcilerOptions) (*Reconciler, error) {
	if client == nil {
		return nil, errors.New("licenseclient: client required")
	}
	if store == nil {
		return nil, errors.New("licenseclient: offline store required")
	}

	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = defaultReconcileDeadline
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultReconcileInterval
	}

	return &Reconciler{
		client:   client,
		store:    store,
		deadline: deadline,
		interval: interval,
		now:      time.Now,
	}, nil
}

// Outcome reports how the entitlement decision was reached.
type Outcome struct {
	Entitled bool
	// Source is "online" when the server answered, "offline" when the cache
	// decided, "none" when neither could.
	Source   string
	Response *ValidationResponse
	Cached   *CachedEntitlement
}

// errNotEntitledYet marks a definitive server "no" inside the polling loop
// so retry.Do keeps going until the deadline.
var errNotEntitledYet = errors.New("licenseclient: not entitled yet")

// Reconcile polls the server until it grants the entitlement or the deadline
// passes, then decides: a server "no" at the deadline is definitive, and the
// offline cache only speaks when the server never answered. The caller's
// context cancels the loop early.
func (r *Reconciler) Reconcile(ctx context.Context, accessToken string) (*Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	var resp *ValidationResponse
	var denied *ValidationResponse
	backoff := retry.WithMaxDuration(r.deadline, retry.NewConstant(r.interval))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, validateErr := r.client.Validate(ctx, accessToken)
		if validateErr != nil {
			if IsTransportError(validateErr) {
				return retry.RetryableError(validateErr)
			}
			return validateErr
		}
		if !out.IsValid {
			denied = out
			return retry.RetryableError(errNotEntitledYet)
		}
		resp = out
		return nil
	})

	if err == nil {
		r.refreshCache(resp)
		return &Outcome{Entitled: true, Source: "online", Response: resp}, nil
	}

	if errors.Is(err, ErrUnauthorized) {
		return nil, err
	}

	if denied != nil {
		// the server did answer; its latest "no" stands
		return &Outcome{Entitled: false, Source: "online", Response: denied}, nil
	}

	// server never answered; the cache decides
	cached, loadErr := r.store.Load()
	if loadErr == nil && cached.IsValidAt(r.now()) {
		return &Outcome{Entitled: true, Source: "offline", Cached: cached}, nil
	}

	return &Outcome{Entitled: false, Source: "none"}, err
}

// refreshCache folds a fresh online answer into the snapshot, keeping the
// identity fields the embedding application stored earlier.
func (r *Reconciler) refreshCache(resp *ValidationResponse) {
	if resp == nil || !resp.IsValid || resp.ExpiresAt == nil {
		return
	}

	snapshot := &CachedEntitlement{}
	if existing, err := r.store.Load(); err == nil && existing != nil {
		snapshot = existing
	}
	snapshot.ExpiresAt = *resp.ExpiresAt
	snapshot.LastValidated = r.now()
	if resp.License != nil {
		snapshot.LicenseKey = resp.License.Key
	}
	_ = r.store.Save(snapshot)
}
