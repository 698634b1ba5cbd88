package transform

import "math"

// Registry is an indexed, deduplicated list of transforms. Slots are
// 1-based so that slot 0 can mark fixed matrix entries; slot 1 always
// holds the identity transform.
type Registry struct {
	ts []Transform
}

// NewRegistry returns a registry seeded with the identity transform in
// slot 1.
func NewRegistry() *Registry {
	return &Registry{ts: []Transform{MustForBounds(math.Inf(-1), math.Inf(1))}}
}

// NewRegistryFrom returns a registry holding exactly the given transforms,
// in order, without deduplication. Used when accepting a caller-supplied
// index structure.
func NewRegistryFrom(ts []Transform) *Registry {
	cp := make([]Transform, len(ts))
	copy(cp, ts)
	return &Registry{ts: cp}
}

// Add returns the slot of t, registering it first if no extensionally
// equal transform is present.
func (r *Registry) Add(t Transform) int {
	for i, have := range r.ts {
		if have.Equal(t) {
			return i + 1
		}
	}
	r.ts = append(r.ts, t)
	return len(r.ts)
}

// At returns the transform in the given 1-based slot.
func (r *Registry) At(slot int) Transform {
	return r.ts[slot-1]
}

// Len returns the number of registered transforms.
func (r *Registry) Len() int {
	return len(r.ts)
}

// Clone returns an independent copy of the registry.
func (r *Registry) Clone() *Registry {
	return NewRegistryFrom(r.ts)
}

// Transforms returns a copy of the registered transforms in slot order.
func (r *Registry) Transforms() []Transform {
	cp := make([]Transform, len(r.ts))
	copy(cp, r.ts)
	return cp
}
