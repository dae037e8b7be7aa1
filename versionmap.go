package mvtree

import (
	"sync"
)

// versionMap retains superseded committed values so that read transactions
// whose snapshot predates the latest commit can still find the value that was
// current at their snapshot.
//
// Example:
//   - Header@3 is committed
//   - Reader@5 begins, the tree is not touched yet
//   - Header@8 is committed, Header@3 is tracked under version 3
//   - Reader@5 first touches the tree and loads Header@3 from here
//
// Entries are dropped by cleanup once no active reader can see them.
type versionMap[T any] struct {
	versions map[uint64]*T
	mu       sync.RWMutex
}

func newVersionMap[T any]() *versionMap[T] {
	return &versionMap[T]{
		versions: make(map[uint64]*T),
	}
}

// track records that v was the committed value as of version.
func (vm *versionMap[T]) track(version uint64, v *T) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.versions[version] = v
}

// latestVisible returns the value with the largest version <= maxVersion.
func (vm *versionMap[T]) latestVisible(maxVersion uint64) (*T, bool) {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	var (
		latest *T
		at     uint64
		found  bool
	)
	for version, v := range vm.versions {
		if version <= maxVersion && (!found || version > at) {
			latest, at, found = v, version, true
		}
	}
	return latest, found
}

// cleanup drops every entry that no reader at or after minReader can see.
// current is the version of the live committed value. The newest version
// <= minReader (tracked or current) stays visible; anything older goes.
func (vm *versionMap[T]) cleanup(minReader, current uint64) int {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	var floor uint64
	if current <= minReader {
		floor = current
	}
	for version := range vm.versions {
		if version <= minReader && version > floor {
			floor = version
		}
	}

	removed := 0
	for version := range vm.versions {
		if version < floor {
			delete(vm.versions, version)
			removed++
		}
	}
	return removed
}

// size returns the number of retained values.
func (vm *versionMap[T]) size() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()

	return len(vm.versions)
}
