package ecs

// Registry tracks all component stores of one world in a fixed order. The
// order is part of the snapshot layout.
type Registry struct {
	stores []Store
}

func NewRegistry(stores ...Store) *Registry {
	r := &Registry{stores: make([]Store, 0, len(stores))}
	for _, s := range stores {
		r.Register(s)
	}
	return r
}

// Register adds a component store to the registry.
func (r *Registry) Register(store Store) {
	r.stores = append(r.stores, store)
}

// RemoveAll clears the given entity from every registered component store.
func (r *Registry) RemoveAll(id EntityID) {
	for _, s := range r.stores {
		s.Remove(id)
	}
}

// Stores returns the registered stores in registration order.
func (r *Registry) Stores() []Store {
	return r.stores
}

// Len returns the total number of rows over all stores.
func (r *Registry) Len() int {
	n := 0
	for _, s := range r.stores {
		n += s.Len()
	}
	return n
}

// Encode writes every store in registration order.
func (r *Registry) Encode(w Writer) {
	w.WriteC(byte(len(r.stores)))
	for _, s := range r.stores {
		w.WriteC(byte(s.Bit()))
		s.Encode(w)
	}
}

// Decode reads stores written by Encode. The store set must match and every
// row must belong to one of the given number of arena slots.
func (r *Registry) Decode(rd Reader, slots int) error {
	n := int(rd.ReadC())
	if err := rd.Err(); err != nil {
		return err
	}
	if n != len(r.stores) {
		return &LayoutError{Want: len(r.stores), Got: n}
	}
	for _, s := range r.stores {
		bit := Bit(rd.ReadC())
		if err := rd.Err(); err != nil {
			return err
		}
		if bit != s.Bit() {
			return &LayoutError{Want: int(s.Bit()), Got: int(bit)}
		}
		if err := s.Decode(rd, slots); err != nil {
			return err
		}
	}
	return nil
}
