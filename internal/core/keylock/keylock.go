// Package keylock provides per-key mutual exclusion.
// Writers touching the same product or document serialize on its key;
// writers on different keys proceed in parallel.
package keylock

import (
	"context"
	"sort"
	"sync"
)

type entry struct {
	ch   chan struct{} // buffered(1): holding the token means holding the lock
	refs int
}

// Locker hands out one lock per key. Entries are dropped once unused.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*entry
}

// New creates an empty Locker.
func New() *Locker {
	return &Locker{locks: make(map[string]*entry)}
}

func (l *Locker) acquireEntry(key string) *entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) releaseEntry(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
}

// Lock acquires key, waiting until it is free or ctx is done.
func (l *Locker) Lock(ctx context.Context, key string) (unlock func(), err error) {
	e := l.acquireEntry(key)
	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.releaseEntry(key, e)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.releaseEntry(key, e)
		})
	}, nil
}

// LockAll acquires every key in sorted order and returns one unlock for all.
// Sorting prevents lock-order deadlocks between callers with overlapping keys.
func (l *Locker) LockAll(ctx context.Context, keys ...string) (unlock func(), err error) {
	sorted := dedupeSorted(keys)
	unlocks := make([]func(), 0, len(sorted))
	release := func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}

	for _, k := range sorted {
		u, err := l.Lock(ctx, k)
		if err != nil {
			release()
			return nil, err
		}
		unlocks = append(unlocks, u)
	}
	return release, nil
}

func dedupeSorted(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type heldKey struct{ l *Locker }

func held(ctx context.Context, l *Locker) map[string]struct{} {
	m, _ := ctx.Value(heldKey{l}).(map[string]struct{})
	return m
}

// Hold is LockAll that remembers the held keys in the returned context.
// Keys already held by ctx are skipped, so a service holding a document
// lock can call another service that asks for the same key.
func (l *Locker) Hold(ctx context.Context, keys ...string) (context.Context, func(), error) {
	already := held(ctx, l)
	need := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := already[k]; !ok {
			need = append(need, k)
		}
	}
	if len(need) == 0 {
		return ctx, func() {}, nil
	}

	unlock, err := l.LockAll(ctx, need...)
	if err != nil {
		return ctx, nil, err
	}

	next := make(map[string]struct{}, len(already)+len(need))
	for k := range already {
		next[k] = struct{}{}
	}
	for _, k := range need {
		next[k] = struct{}{}
	}
	return context.WithValue(ctx, heldKey{l}, next), unlock, nil
}

// Holds reports whether ctx already holds key on l.
func (l *Locker) Holds(ctx context.Context, key string) bool {
	_, ok := held(ctx, l)[key]
	return ok
}
