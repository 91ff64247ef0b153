// Package seeders fills an empty document store with starter data.
//
//	func init() {
//	    seeders.Register("profiles", SeedProfiles)
//	}
//
// Run with `invictus seed`; `invictus serve` runs them too. Every seeder
// must be safe to run against a store that already holds data.
package seeders

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/docstore"
)

// Env is what a seeder may use.
type Env struct {
	Store    docstore.Store
	Hasher   auth.Hasher
	Password string
	Out      io.Writer
}

// SeederFunc is the signature for a seed function.
type SeederFunc func(ctx context.Context, env Env) error

type seederEntry struct {
	name string
	fn   SeederFunc
}

var (
	mu      sync.Mutex
	entries []seederEntry
)

// Register adds a seeder to the global registry.
func Register(name string, fn SeederFunc) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, seederEntry{name: name, fn: fn})
}

// RunAll executes every registered seeder in registration order and stops
// on the first error.
func RunAll(ctx context.Context, env Env) error {
	mu.Lock()
	current := append([]seederEntry(nil), entries...)
	mu.Unlock()

	out := env.Out
	if out == nil {
		out = io.Discard
	}
	for _, e := range current {
		fmt.Fprintf(out, "  • Running seeder: %s … ", e.name)
		if err := e.fn(ctx, env); err != nil {
			fmt.Fprintln(out, "FAILED")
			return fmt.Errorf("seeder %q: %w", e.name, err)
		}
		fmt.Fprintln(out, "done")
	}
	return nil
}
