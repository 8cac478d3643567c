package market

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"lattice-pricer/internal/model"
)

// Tag identifies one registered version of a named object.
type Tag struct {
	Name    string `json:"name"`
	Version uint64 `json:"version"`
}

func (t Tag) String() string { return fmt.Sprintf("%s@%d", t.Name, t.Version) }

type entry[T any] struct {
	value   T
	version uint64
}

// Store is a name-keyed, versioned map of read-only market objects.
// Names are case-insensitive. Safe for concurrent use.
type Store[T any] struct {
	kind string

	mu    sync.RWMutex
	items map[string]entry[T]
	seq   map[string]uint64
}

func newStore[T any](kind string) *Store[T] {
	return &Store[T]{
		kind:  kind,
		items: make(map[string]entry[T]),
		seq:   make(map[string]uint64),
	}
}

func normalize(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Get returns the current object registered under name.
func (s *Store[T]) Get(name string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[normalize(name)]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%s %q: %w", s.kind, name, model.ErrNotFound)
	}
	return e.value, nil
}

// Lookup is Get plus the tag of the version returned.
func (s *Store[T]) Lookup(name string) (T, Tag, error) {
	key := normalize(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[key]
	if !ok {
		var zero T
		return zero, Tag{}, fmt.Errorf("%s %q: %w", s.kind, name, model.ErrNotFound)
	}
	return e.value, Tag{Name: key, Version: e.version}, nil
}

// Set registers or replaces name and returns the new version tag. Versions
// for a name keep increasing across replacements, deletes and clears.
func (s *Store[T]) Set(name string, v T) (Tag, error) {
	key := normalize(name)
	if key == "" {
		return Tag{}, model.Invalidf("%s name is empty", s.kind)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq[key]++
	ver := s.seq[key]
	s.items[key] = entry[T]{value: v, version: ver}
	return Tag{Name: key, Version: ver}, nil
}

// Version reports the current version of name.
func (s *Store[T]) Version(name string) (uint64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.items[normalize(name)]
	return e.version, ok
}

// Delete removes name and reports whether it was present.
func (s *Store[T]) Delete(name string) bool {
	key := normalize(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[key]
	delete(s.items, key)
	return ok
}

// List returns registered names, sorted.
func (s *Store[T]) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.items))
	for k := range s.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Clear removes every entry.
func (s *Store[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]entry[T])
}

// Registry holds the market objects of one session. Create one per CLI run
// or server and pass it to whatever needs curve lookups.
type Registry struct {
	yieldCurves  *Store[*YieldCurve]
	volatilities *Store[*VolatilityCurve]
}

func NewRegistry() *Registry {
	return &Registry{
		yieldCurves:  newStore[*YieldCurve]("yield curve"),
		volatilities: newStore[*VolatilityCurve]("volatility"),
	}
}

func (r *Registry) YieldCurves() *Store[*YieldCurve] { return r.yieldCurves }

func (r *Registry) Volatilities() *Store[*VolatilityCurve] { return r.volatilities }

// Contents lists the names held in a registry.
type Contents struct {
	YieldCurves  []string `json:"yield_curves"`
	Volatilities []string `json:"volatilities"`
}

func (r *Registry) List() Contents {
	return Contents{
		YieldCurves:  r.yieldCurves.List(),
		Volatilities: r.volatilities.List(),
	}
}

func (r *Registry) Clear() {
	r.yieldCurves.Clear()
	r.volatilities.Clear()
}

// Load builds every quoted curve in snap and registers it. Nothing is
// registered if any quote fails to build.
func (r *Registry) Load(snap *model.MarketSnapshot) ([]Tag, error) {
	if snap == nil {
		return nil, nil
	}
	ycs := make([]*YieldCurve, len(snap.YieldCurves))
	for i, q := range snap.YieldCurves {
		if normalize(q.Name) == "" {
			return nil, model.Invalidf("yield curve %d has no name", i)
		}
		it, err := ParseInputType(q.InputType)
		if err != nil {
			return nil, fmt.Errorf("yield curve %q: %w", q.Name, err)
		}
		if ycs[i], err = NewYieldCurve(q.Times, q.Values, it); err != nil {
			return nil, fmt.Errorf("yield curve %q: %w", q.Name, err)
		}
	}
	vols := make([]*VolatilityCurve, len(snap.Volatilities))
	for i, q := range snap.Volatilities {
		if normalize(q.Name) == "" {
			return nil, model.Invalidf("volatility %d has no name", i)
		}
		vt, err := ParseVolType(q.InputType)
		if err != nil {
			return nil, fmt.Errorf("volatility %q: %w", q.Name, err)
		}
		if vols[i], err = NewVolatilityCurve(q.Times, q.Values, vt); err != nil {
			return nil, fmt.Errorf("volatility %q: %w", q.Name, err)
		}
	}

	tags := make([]Tag, 0, len(ycs)+len(vols))
	for i, yc := range ycs {
		tag, err := r.yieldCurves.Set(snap.YieldCurves[i].Name, yc)
		if err != nil {
			return tags, err
		}
		tags = append(tags, tag)
	}
	for i, v := range vols {
		tag, err := r.volatilities.Set(snap.Volatilities[i].Name, v)
		if err != nil {
			return tags, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}
