package ecs

// Registry tracks component stores and destroy listeners.
type Registry struct {
	stores    []Removable
	onDestroy []func(EntityID)
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make([]Removable, 0, 8),
	}
}

// Register adds a component store to the registry.
func (r *Registry) Register(store Removable) {
	r.stores = append(r.stores, store)
}

// OnDestroy adds a listener run for each entity as it is destroyed, after
// its components are removed.
func (r *Registry) OnDestroy(fn func(EntityID)) {
	r.onDestroy = append(r.onDestroy, fn)
}

// RemoveAll clears the given entity from every registered component store
// and notifies destroy listeners.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
	for _, fn := range r.onDestroy {
		fn(id)
	}
}
