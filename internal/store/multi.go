package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fortuna/almanac/internal/fixture"
)

// Multi loads from a primary store and saves to the primary plus mirrors.
type Multi struct {
	primary Store
	mirrors []Store
}

// NewMulti builds a Multi. Nil mirrors are ignored.
func NewMulti(primary Store, mirrors ...Store) *Multi {
	m := &Multi{primary: primary}
	for _, s := range mirrors {
		if s != nil {
			m.mirrors = append(m.mirrors, s)
		}
	}
	return m
}

// Location lists the primary first.
func (m *Multi) Location() string {
	locs := []string{m.primary.Location()}
	for _, s := range m.mirrors {
		locs = append(locs, s.Location())
	}
	return strings.Join(locs, ", ")
}

// Load reads the primary store only.
func (m *Multi) Load(ctx context.Context) (fixture.Dataset, error) {
	return m.primary.Load(ctx)
}

// Save writes every store, returning all failures joined. A failing mirror
// does not stop the others.
func (m *Multi) Save(ctx context.Context, ds fixture.Dataset) error {
	var errs []error
	for _, s := range append([]Store{m.primary}, m.mirrors...) {
		if err := s.Save(ctx, ds); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", s.Location(), err))
		}
	}
	return errors.Join(errs...)
}
