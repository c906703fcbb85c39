package vtserver

// EventDispatcher fans one event type out to subscribed callbacks in
// insertion order. Firing iterates a snapshot, so a subscriber may
// unsubscribe itself (or others) during a fire; the removal takes effect
// on the next fire.
type EventDispatcher[T any] struct {
	nextID      int
	subscribers []subscriber[T]
}

type subscriber[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers a callback and returns a token for Unsubscribe.
func (d *EventDispatcher[T]) Subscribe(fn func(T)) int {
	d.nextID++
	d.subscribers = append(d.subscribers, subscriber[T]{id: d.nextID, fn: fn})
	return d.nextID
}

// Unsubscribe removes a previously subscribed callback.
func (d *EventDispatcher[T]) Unsubscribe(id int) {
	for i, sub := range d.subscribers {
		if sub.id == id {
			d.subscribers = append(d.subscribers[:i], d.subscribers[i+1:]...)
			return
		}
	}
}

// Fire invokes every subscriber registered at the time of the call.
func (d *EventDispatcher[T]) Fire(event T) {
	snapshot := append([]subscriber[T](nil), d.subscribers...)
	for _, sub := range snapshot {
		sub.fn(event)
	}
}

// RepaintEvent fires after every successful mutation of a working set's
// pool.
type RepaintEvent struct {
	WorkingSet *ManagedWorkingSet
}

// ActiveMaskChangedEvent fires when a change active mask command is
// applied.
type ActiveMaskChangedEvent struct {
	WorkingSet         *ManagedWorkingSet
	WorkingSetObjectID uint16
	NewMaskObjectID    uint16
}

// HideShowEvent fires when a container is hidden or shown.
type HideShowEvent struct {
	WorkingSet *ManagedWorkingSet
	ObjectID   uint16
	Shown      bool
}

// EnableDisableEvent fires when an input object or button changes its
// enabled state.
type EnableDisableEvent struct {
	WorkingSet *ManagedWorkingSet
	ObjectID   uint16
	Enabled    bool
}

// NumericValueChangedEvent fires when a change numeric value command is
// applied.
type NumericValueChangedEvent struct {
	WorkingSet *ManagedWorkingSet
	ObjectID   uint16
	Value      uint32
}

// StringValueChangedEvent fires when a change string value command is
// applied.
type StringValueChangedEvent struct {
	WorkingSet *ManagedWorkingSet
	ObjectID   uint16
	Value      string
}

// ChildLocationChangedEvent fires when a change child location command
// is applied; offsets are the decoded signed deltas.
type ChildLocationChangedEvent struct {
	WorkingSet     *ManagedWorkingSet
	ParentObjectID uint16
	ObjectID       uint16
	OffsetX        int8
	OffsetY        int8
}

// ChildPositionChangedEvent fires when a change child position command
// is applied.
type ChildPositionChangedEvent struct {
	WorkingSet     *ManagedWorkingSet
	ParentObjectID uint16
	ObjectID       uint16
	X              uint16
	Y              uint16
}

// SelectInputObjectEvent fires when user code notifies the server that
// an input object gained or lost focus.
type SelectInputObjectEvent struct {
	WorkingSet   *ManagedWorkingSet
	ObjectID     uint16
	Selected     bool
	OpenForInput bool
}
