package store

import (
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// shardCount is the number of lock-striped buckets. Must be a power
	// of two so the shard index is a cheap mask of the key hash.
	shardCount = 16

	// reapInterval is how often the background reaper sweeps for expired
	// entries. The sweep is a memory-reclamation aid only; correctness is
	// guaranteed by the lazy expiry check on every read/write.
	reapInterval = time.Second
)

// shard is one lock-striped bucket of the key space.
type shard struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// Store is an in-memory key-value store with typed values and TTL support.
// Keys are distributed over a fixed set of shards, each guarded by its own
// RWMutex, so operations on unrelated keys never contend. It is safe for
// concurrent use by multiple goroutines.
type Store struct {
	shards  [shardCount]*shard
	stopGC  chan struct{}
	expired atomic.Int64
}

// New creates a new empty Store and starts the background reaper goroutine.
func New() *Store {
	s := &Store{stopGC: make(chan struct{})}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*Entry)}
	}
	go s.reapLoop()
	return s
}

// Close stops the background reaper goroutine.
func (s *Store) Close() {
	close(s.stopGC)
}

// ExpiredCount returns the number of expired entries removed so far, by
// either the reaper or lazy expiry.
func (s *Store) ExpiredCount() int64 {
	return s.expired.Load()
}

func (s *Store) shardFor(key string) *shard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()&(shardCount-1)]
}

// isExpired checks if an entry is expired (must hold the shard lock).
func isExpired(entry *Entry, now time.Time) bool {
	return entry.hasExpire && !now.Before(entry.expireAt)
}

// liveEntry returns the entry for key if it exists and has not expired,
// removing it lazily if it has. Must hold the shard write lock.
func (s *Store) liveEntry(sh *shard, key string) (*Entry, bool) {
	entry, ok := sh.entries[key]
	if !ok {
		return nil, false
	}
	if isExpired(entry, time.Now()) {
		delete(sh.entries, key)
		s.expired.Add(1)
		return nil, false
	}
	return entry, true
}

// ========================
// Scalar operations
// ========================

// Set stores key as a scalar with no expiration, replacing any prior value
// of any kind and clearing any prior expiry.
func (s *Store) Set(key, value string) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.entries[key] = &Entry{value: NewScalar(value)}
}

// SetWithTTL stores key as a scalar that expires after ttl, replacing any
// prior value of any kind.
func (s *Store) SetWithTTL(key, value string, ttl time.Duration) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.entries[key] = &Entry{
		value:     NewScalar(value),
		expireAt:  time.Now().Add(ttl),
		hasExpire: true,
	}
}

// Get retrieves the scalar value of a key. Returns ErrNotFound if the key
// is absent or expired, ErrWrongType if it holds a map or list.
func (s *Store) Get(key string) (string, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := s.liveEntry(sh, key)
	if !ok {
		return "", ErrNotFound
	}
	if entry.value.kind != KindScalar {
		return "", ErrWrongType
	}
	return entry.value.scalar, nil
}

// Delete removes a key of any kind. Returns whether it existed (post
// expiry check). Deleting an absent key is not an error.
func (s *Store) Delete(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, ok := s.liveEntry(sh, key); !ok {
		return false
	}
	delete(sh.entries, key)
	return true
}

// Exists checks if a key exists and is not expired.
func (s *Store) Exists(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	_, ok := s.liveEntry(sh, key)
	return ok
}

// ========================
// Expiration
// ========================

// Expire sets a TTL on an existing key. Returns true if the key existed.
func (s *Store) Expire(key string, ttl time.Duration) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, ok := s.liveEntry(sh, key)
	if !ok {
		return false
	}
	entry.expireAt = time.Now().Add(ttl)
	entry.hasExpire = true
	return true
}

// TTL returns the remaining time before key expires. ok is false when the
// key is absent or expired; hasExpire is false when the key never expires.
func (s *Store) TTL(key string) (remaining time.Duration, hasExpire, ok bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	entry, live := s.liveEntry(sh, key)
	if !live {
		return 0, false, false
	}
	if !entry.hasExpire {
		return 0, false, true
	}
	return time.Until(entry.expireAt), true, true
}

// ========================
// Map operations
// ========================

// mapEntry returns the live Hash for key, creating an empty Map entry if
// the key is absent and create is true. Must hold the shard write lock.
// The check-kind-then-create-then-mutate sequence stays inside one critical
// section so callers never observe an intermediate state.
func (s *Store) mapEntry(sh *shard, key string, create bool) (*Hash, error) {
	entry, ok := s.liveEntry(sh, key)
	if !ok {
		if !create {
			return nil, ErrNotFound
		}
		entry = &Entry{value: NewMap()}
		sh.entries[key] = entry
	}
	if entry.value.kind != KindMap {
		return nil, ErrWrongType
	}
	return entry.value.hash, nil
}

// HSet sets a field in the map at key, creating an empty map first if the
// key is absent. Returns true if the field is new.
func (s *Store) HSet(key, field, value string) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	h, err := s.mapEntry(sh, key, true)
	if err != nil {
		return false, err
	}
	return h.Set(field, value), nil
}

// HGet returns the value of a field. A missing key or field is reported
// via the bool, not an error.
func (s *Store) HGet(key, field string) (string, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	h, err := s.mapEntry(sh, key, false)
	if err == ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	val, exists := h.Get(field)
	return val, exists, nil
}

// HGetAll returns all field-value pairs of the map at key, sorted by field
// name. A missing key yields an empty slice.
func (s *Store) HGetAll(key string) ([]FieldValue, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	h, err := s.mapEntry(sh, key, false)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h.GetAll(), nil
}

// HDel removes a field from the map at key. Returns true if the field
// existed. Removing the last field leaves the key present with an empty
// map; the key is never implicitly deleted.
func (s *Store) HDel(key, field string) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	h, err := s.mapEntry(sh, key, false)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return h.Del(field), nil
}

// HExists returns whether a field exists in the map at key.
func (s *Store) HExists(key, field string) (bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	h, err := s.mapEntry(sh, key, false)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return h.Exists(field), nil
}

// HLen returns the number of fields in the map at key. A missing key
// yields zero.
func (s *Store) HLen(key string) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	h, err := s.mapEntry(sh, key, false)
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return h.Len(), nil
}

// ========================
// List operations
// ========================

// listEntry mirrors mapEntry for the list kind.
func (s *Store) listEntry(sh *shard, key string, create bool) (*List, error) {
	entry, ok := s.liveEntry(sh, key)
	if !ok {
		if !create {
			return nil, ErrNotFound
		}
		entry = &Entry{value: NewList()}
		sh.entries[key] = entry
	}
	if entry.value.kind != KindList {
		return nil, ErrWrongType
	}
	return entry.value.list, nil
}

// LPush prepends a value to the list at key, creating an empty list first
// if the key is absent. Returns the new length.
func (s *Store) LPush(key, value string) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, err := s.listEntry(sh, key, true)
	if err != nil {
		return 0, err
	}
	return l.PushLeft(value), nil
}

// RPush appends a value to the list at key. Returns the new length.
func (s *Store) RPush(key, value string) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, err := s.listEntry(sh, key, true)
	if err != nil {
		return 0, err
	}
	return l.PushRight(value), nil
}

// LPop removes and returns the first element of the list at key. Popping
// the last element leaves the key present with an empty list.
func (s *Store) LPop(key string) (string, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, err := s.listEntry(sh, key, false)
	if err == ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	val, ok := l.PopLeft()
	return val, ok, nil
}

// RPop removes and returns the last element of the list at key.
func (s *Store) RPop(key string) (string, bool, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, err := s.listEntry(sh, key, false)
	if err == ErrNotFound {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	val, ok := l.PopRight()
	return val, ok, nil
}

// LLen returns the length of the list at key. A missing key yields zero.
func (s *Store) LLen(key string) (int, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, err := s.listEntry(sh, key, false)
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return l.Len(), nil
}

// LRange returns elements of the list at key from start to stop inclusive,
// with negative indices counting from the tail. Out-of-bounds ranges are
// clamped; an empty or inverted range yields an empty slice.
func (s *Store) LRange(key string, start, stop int) ([]string, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	l, err := s.listEntry(sh, key, false)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l.Range(start, stop), nil
}

// ========================
// Key space operations
// ========================

// Keys returns all non-expired keys matching the glob pattern, sorted.
// `*` matches any run of characters; `?` matches a single character.
func (s *Store) Keys(pattern string) []string {
	re := compileGlob(pattern)
	now := time.Now()
	var keys []string
	for _, sh := range s.shards {
		sh.mu.RLock()
		for k, entry := range sh.entries {
			if !isExpired(entry, now) && re.MatchString(k) {
				keys = append(keys, k)
			}
		}
		sh.mu.RUnlock()
	}
	sort.Strings(keys)
	return keys
}

// Count returns the number of non-expired keys.
func (s *Store) Count() int {
	now := time.Now()
	count := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, entry := range sh.entries {
			if !isExpired(entry, now) {
				count++
			}
		}
		sh.mu.RUnlock()
	}
	return count
}

// Clear removes all entries.
func (s *Store) Clear() {
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.entries = make(map[string]*Entry)
		sh.mu.Unlock()
	}
}

// compileGlob converts a glob pattern to an anchored regexp.
func compileGlob(pattern string) *regexp.Regexp {
	var sb strings.Builder
	sb.WriteByte('^')
	for _, c := range pattern {
		switch c {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	sb.WriteByte('$')
	return regexp.MustCompile(sb.String())
}

// ========================
// Expiration reaper
// ========================

// reapLoop periodically removes expired entries.
func (s *Store) reapLoop() {
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			s.removeExpired()
		}
	}
}

// removeExpired sweeps each shard with the same locking discipline as
// client operations. Per shard it samples up to sampleSize entries and
// deletes expired ones, repeating while more than expiredRatio of the
// sample was expired, so a shard full of dead entries drains quickly
// without holding its lock for an unbounded scan.
func (s *Store) removeExpired() {
	const (
		sampleSize   = 20
		maxRounds    = 4
		expiredRatio = 0.25
	)

	for _, sh := range s.shards {
		for round := 0; round < maxRounds; round++ {
			sh.mu.Lock()

			now := time.Now()
			sampled := 0
			removed := 0
			// Map iteration order is pseudo-random in Go, which is the
			// randomness the sample needs.
			for key, entry := range sh.entries {
				if sampled >= sampleSize {
					break
				}
				sampled++
				if isExpired(entry, now) {
					delete(sh.entries, key)
					removed++
				}
			}

			sh.mu.Unlock()
			s.expired.Add(int64(removed))

			if sampled == 0 || float64(removed)/float64(sampled) < expiredRatio {
				break
			}
		}
	}
}
