// Package callctx boxes Go callback values behind address-sized tokens so
// they can cross the native boundary as C context pointers.
//
// A registered value goes through two levels of indirection: the interface
// box erases its concrete type behind a fixed-size header, and the registry
// cell turns that box into a plain address-sized token. Restore reverses
// the second step; the type assertion at the call site reverses the first.
//
// Tokens are allocated from a counter, never from Go pointers, so they are
// legal to hand to C and survive garbage collection and stack moves. The
// registry keeps the boxed value reachable until Free — which must run
// exactly once per token, and only after the native deregistration or
// delete call for the matching registration has returned.
package callctx

import (
	"fmt"
	"sync"
)

var (
	mu     sync.Mutex
	cells  = make(map[uintptr]any)
	nextID uintptr
)

// Register boxes v and returns its context token. The token is non-zero,
// so a zero context always means "no registration".
func Register(v any) uintptr {
	mu.Lock()
	defer mu.Unlock()
	nextID++
	cells[nextID] = v
	return nextID
}

// Restore returns the value registered under ctx, or nil if the token is
// zero or already freed. A nil result inside a trampoline means the
// delivery raced with removal and must be dropped.
func Restore(ctx uintptr) any {
	if ctx == 0 {
		return nil
	}
	mu.Lock()
	defer mu.Unlock()
	return cells[ctx]
}

// Free releases the value registered under ctx. Freeing a token twice is a
// double free: the second call panics rather than silently corrupting the
// ownership discipline. Zero is tolerated as a no-op so callers can funnel
// "take whatever the slot holds" through one path.
func Free(ctx uintptr) {
	if ctx == 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := cells[ctx]; !ok {
		panic(fmt.Sprintf("callctx: double free of context %#x", ctx))
	}
	delete(cells, ctx)
}

// Count returns the number of live registrations. Tests use it to prove
// that register/unregister cycles neither leak nor double-free.
func Count() int {
	mu.Lock()
	defer mu.Unlock()
	return len(cells)
}
