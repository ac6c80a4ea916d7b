// Package registry holds the known-domain registry: per-country memory of which
// domains deliver to the target country.
package registry

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/domain"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/core/port/out"
	"github.com/crficbm-ui/nightcrawler-ds-pipeline-sub000/pkg/apperr"

	"github.com/rs/zerolog"
)

const defaultLockTTL = time.Minute

// Options configure a Registry.
type Options struct {
	// KeysToSave filters entries on Add. Defaults to domain.DefaultKeysToSave.
	KeysToSave []string
	// Locker, when set, serializes Save across processes.
	Locker  out.SaveLocker
	LockTTL time.Duration
	Logger  zerolog.Logger
}

type pendingEntry struct {
	verdict domain.Verdict
	entry   domain.RegistryEntry
	gen     uint64
}

// Registry is the in-memory registry for one country. It is safe for
// concurrent use; the cascade and every shipping worker share one instance.
type Registry struct {
	country string
	store   out.RegistryStore
	locker  out.SaveLocker
	lockTTL time.Duration
	keys    []string
	log     zerolog.Logger

	mu      sync.RWMutex
	buckets domain.Buckets
	pending map[string]pendingEntry
	gen     uint64

	saveMu sync.Mutex
}

// New creates an empty registry. store may be nil for a purely in-memory registry.
func New(country string, store out.RegistryStore, opts Options) *Registry {
	keys := opts.KeysToSave
	if len(keys) == 0 {
		keys = domain.DefaultKeysToSave
	}
	ttl := opts.LockTTL
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &Registry{
		country: country,
		store:   store,
		locker:  opts.Locker,
		lockTTL: ttl,
		keys:    slices.Clone(keys),
		log:     opts.Logger.With().Str("country", country).Logger(),
		buckets: domain.NewBuckets(),
		pending: make(map[string]pendingEntry),
	}
}

// Load creates a registry and fills it from the store.
func Load(ctx context.Context, country string, store out.RegistryStore, opts Options) (*Registry, error) {
	r := New(country, store, opts)
	if err := r.Reload(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Country returns the country this registry belongs to.
func (r *Registry) Country() string {
	return r.country
}

// Reload replaces the in-memory state with the persisted one and keeps
// additions that were not saved yet.
func (r *Registry) Reload(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	b, err := r.store.Load(ctx, r.country)
	if err != nil {
		return apperr.StorageError("load registry", err)
	}
	b.Normalize()

	r.mu.Lock()
	defer r.mu.Unlock()
	for d, p := range r.pending {
		b.Put(d, p.verdict, p.entry)
	}
	r.buckets = b

	r.log.Debug().Int("domains", b.Len()).Msg("registry loaded")
	return nil
}

// Lookup returns the entry for domainName, searching positive, unknown, then negative.
func (r *Registry) Lookup(domainName string) (domain.RegistryEntry, domain.Verdict, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buckets.Lookup(domainName)
}

// Add records a classification, moving the domain out of any other bucket.
// Only the configured keys of e are kept.
func (r *Registry) Add(domainName string, v domain.Verdict, e domain.RegistryEntry) error {
	if domainName == "" {
		return apperr.InvalidInput("domain", "must not be empty")
	}
	if !v.Valid() {
		return apperr.InvalidInput("verdict", fmt.Sprintf("unexpected value %d", int(v)))
	}
	e.Result = v
	e = e.Keep(r.keys)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	r.buckets.Put(domainName, v, e)
	r.pending[domainName] = pendingEntry{verdict: v, entry: e, gen: r.gen}
	return nil
}

// Snapshot returns a copy of all buckets.
func (r *Registry) Snapshot() domain.Buckets {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buckets.Clone()
}

// Len returns the number of known domains.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.buckets.Len()
}

// Pending returns the number of additions not yet saved.
func (r *Registry) Pending() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pending)
}

// Save merges this pass's additions into the persisted registry and writes it.
// The persisted copy is re-read first so additions saved by other runs since
// Load are kept; for a domain classified by both, this registry wins.
func (r *Registry) Save(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, "registry:"+r.country, r.lockTTL)
		if err != nil {
			return apperr.StorageError("lock registry", err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				r.log.Warn().Err(err).Msg("failed to release registry lock")
			}
		}()
	}

	r.mu.RLock()
	savedGen := r.gen
	additions := make(map[string]pendingEntry, len(r.pending))
	for d, p := range r.pending {
		additions[d] = p
	}
	r.mu.RUnlock()

	merged, err := r.store.Load(ctx, r.country)
	if err != nil {
		return apperr.StorageError("load registry", err)
	}
	merged.Normalize()
	for d, p := range additions {
		merged.Put(d, p.verdict, p.entry)
	}

	if err := r.store.Save(ctx, r.country, merged); err != nil {
		return apperr.StorageError("save registry", err)
	}

	r.mu.Lock()
	for d, p := range r.pending {
		if p.gen <= savedGen {
			delete(r.pending, d)
			continue
		}
		merged.Put(d, p.verdict, p.entry)
	}
	r.buckets = merged
	r.mu.Unlock()

	r.log.Info().
		Int("added", len(additions)).
		Int("domains", merged.Len()).
		Msg("registry saved")
	return nil
}
