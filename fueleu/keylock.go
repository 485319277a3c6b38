/*
keylock.go - Per-(ship, year) write serialization

PURPOSE:
  Banking and pooling both read a ledger value, validate, and write a new
  value. Two concurrent operations on the same (ship, year) key could
  otherwise double-spend a surplus or corrupt a pool's conservation
  invariant. KeyLocks gives each key a single-writer discipline on top of
  whatever isolation the storage backend provides.

ORDERING:
  LockAll sorts keys before acquiring, so two pools over overlapping ship
  sets always acquire in the same order and cannot deadlock each other.
*/
package fueleu

import (
	"sort"
	"sync"
)

type ledgerKey struct {
	ShipID ShipID
	Year   int
}

// KeyLocks serializes writers per (ship, year) ledger key.
type KeyLocks struct {
	mu    sync.Mutex
	locks map[ledgerKey]*sync.Mutex
}

func NewKeyLocks() *KeyLocks {
	return &KeyLocks{locks: make(map[ledgerKey]*sync.Mutex)}
}

func (kl *KeyLocks) get(k ledgerKey) *sync.Mutex {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	m, ok := kl.locks[k]
	if !ok {
		m = &sync.Mutex{}
		kl.locks[k] = m
	}
	return m
}

// Lock acquires the lock for one key. The returned func releases it.
func (kl *KeyLocks) Lock(shipID ShipID, year int) func() {
	m := kl.get(ledgerKey{ShipID: shipID, Year: year})
	m.Lock()
	return m.Unlock
}

// LockAll acquires locks for every (shipID, year) key in a canonical order.
// The returned func releases all of them.
func (kl *KeyLocks) LockAll(shipIDs []ShipID, year int) func() {
	sorted := make([]ShipID, len(shipIDs))
	copy(sorted, shipIDs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, id := range sorted {
		m := kl.get(ledgerKey{ShipID: id, Year: year})
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
