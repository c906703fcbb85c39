package vtobject

import "fmt"

// Pool is an indexed object collection: one client's parsed object pool,
// mapping object ID to object.
type Pool struct {
	objects map[uint16]*Object
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{objects: make(map[uint16]*Object)}
}

// Add inserts an object, rejecting the null ID and duplicates.
func (p *Pool) Add(o *Object) error {
	if o.ID == NullObjectID {
		return fmt.Errorf("vtobject: object may not use the null ID %#04X", NullObjectID)
	}
	if _, exists := p.objects[o.ID]; exists {
		return fmt.Errorf("vtobject: duplicate object ID %d", o.ID)
	}
	p.objects[o.ID] = o
	return nil
}

// Get returns the object with the given ID, or nil.
func (p *Pool) Get(id uint16) *Object {
	return p.objects[id]
}

// Len returns the number of objects in the pool.
func (p *Pool) Len() int {
	return len(p.objects)
}

// WorkingSetObject returns the pool's working set object, or nil if the
// pool has none.
func (p *Pool) WorkingSetObject() *Object {
	for _, o := range p.objects {
		if o.Type == ObjectTypeWorkingSet {
			return o
		}
	}
	return nil
}

// Validate walks every object's child references and reports the first
// object whose children violate the standard's permitted-child table, or
// reference an ID not present in the pool. The returned ID is the
// faulting parent object.
func (p *Pool) Validate() (faultingObjectID uint16, err error) {
	for id, o := range p.objects {
		for _, child := range o.Children {
			if child.ID == NullObjectID {
				continue
			}
			childObject := p.objects[child.ID]
			if childObject == nil {
				return id, fmt.Errorf("vtobject: object %d references missing child %d", id, child.ID)
			}
			if !ChildTypePermitted(o.Type, childObject.Type) {
				return id, fmt.Errorf("vtobject: object %d (type %d) may not contain child %d (type %d)",
					id, o.Type, child.ID, childObject.Type)
			}
		}
	}
	return NullObjectID, nil
}

// Parser turns raw object pool bytes into a typed pool. The binary
// format decoder is a collaborator outside this module; implementations
// return the ID of the object that failed to decode or validate.
type Parser interface {
	Parse(data []byte) (pool *Pool, faultingObjectID uint16, err error)
}
