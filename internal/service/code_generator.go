package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

const (
	// codeSpace is the number of distinct room codes, [0, 10^9)
	codeSpace = 1_000_000_000

	// DefaultMaxCodeAttempts bounds the generator's retry loop. The code
	// space holds a billion values, so hitting the bound means the store
	// is effectively full or broken; either way the call must not spin
	// forever.
	DefaultMaxCodeAttempts = 1000
)

// ErrCodeSpaceExhausted is returned when every attempted code collided
// with an active room within the retry bound.
var ErrCodeSpaceExhausted = errors.New("room code space exhausted")

// ActiveCodeStore answers whether a code is held by a room that has not
// yet ended at the given instant.
type ActiveCodeStore interface {
	CodeActive(ctx context.Context, code string, now time.Time) (bool, error)
}

// CodeGenerator produces fixed-width numeric room codes that do not
// collide with any currently active room. "Now" is snapshotted once per
// Generate call, so a room expiring mid-loop cannot change the set of
// codes considered taken.
type CodeGenerator struct {
	store       ActiveCodeStore
	maxAttempts int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCodeGenerator creates a generator seeded from the wall clock
func NewCodeGenerator(store ActiveCodeStore) *CodeGenerator {
	return NewCodeGeneratorWithSource(store, rand.NewSource(time.Now().UnixNano()))
}

// NewCodeGeneratorWithSource creates a generator with an injected random
// source, used by tests to script the draw sequence.
func NewCodeGeneratorWithSource(store ActiveCodeStore, src rand.Source) *CodeGenerator {
	return &CodeGenerator{
		store:       store,
		maxAttempts: DefaultMaxCodeAttempts,
		rnd:         rand.New(src),
	}
}

// Generate draws random codes until one is free among active rooms.
// The check is best-effort: two concurrent calls can both see the same
// code as free before either room row commits. The 1-in-a-billion odds
// make that race acceptable here.
func (g *CodeGenerator) Generate(ctx context.Context) (string, error) {
	now := time.Now()

	for i := 0; i < g.maxAttempts; i++ {
		code := fmt.Sprintf("%09d", g.draw())

		active, err := g.store.CodeActive(ctx, code, now)
		if err != nil {
			return "", fmt.Errorf("failed to check room code: %w", err)
		}
		if !active {
			return code, nil
		}
	}

	return "", ErrCodeSpaceExhausted
}

// draw returns a uniform value in [0, codeSpace). rand.Rand is not
// goroutine-safe, so draws are serialized.
func (g *CodeGenerator) draw() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rnd.Int63n(codeSpace)
}
