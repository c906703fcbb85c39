package vtobject

// Child is a reference from a parent object to a child by ID, with the
// child's position relative to the parent.
type Child struct {
	ID uint16
	X  int16
	Y  int16
}

// FillType enumerates the fill attribute styles; values above
// FillWithPattern are invalid.
type FillType uint8

const (
	FillNone FillType = iota
	FillWithLineColour
	FillWithFillColour
	FillWithPattern
)

// FontSize enumerates font cell sizes; Size128x192 is the largest value
// a client may request.
type FontSize uint8

const (
	FontSize6x8 FontSize = iota
	FontSize8x8
	FontSize8x12
	FontSize12x16
	FontSize16x16
	FontSize16x24
	FontSize24x32
	FontSize32x32
	FontSize32x48
	FontSize48x64
	FontSize64x64
	FontSize64x96
	FontSize96x128
	FontSize128x128
	FontSize128x192
)

// Object is one node of a VT object pool: a tagged variant over the
// standard's object types. The Type tag selects which of the variant
// fields are meaningful; dispatch is by switch on Type.
type Object struct {
	ID               uint16
	Type             ObjectType
	Width            uint16
	Height           uint16
	BackgroundColour uint8

	Children []Child

	// Input/output value objects and NumberVariable.
	Value uint32

	// StringVariable, InputString, OutputString.
	StringValue string

	// InputBoolean, InputString, InputNumber, InputList, Button.
	Enabled bool

	// Container.
	Hidden bool

	// WorkingSet.
	ActiveMask uint16
	Selectable bool

	// DataMask, AlarmMask.
	SoftKeyMask uint16

	// FillAttributes.
	FillType    FillType
	FillPattern uint16

	// FontAttributes.
	FontColour uint8
	FontSize   FontSize
	FontType   uint8
	FontStyle  uint8

	// ExternalObjectPointer.
	ExternalReferenceNAMEID uint16
	ExternalObjectID        uint16

	// Key.
	KeyCode uint8
}

// NumChildren returns the number of child references.
func (o *Object) NumChildren() int {
	return len(o.Children)
}

// AddChild appends a child reference.
func (o *Object) AddChild(id uint16, x, y int16) {
	o.Children = append(o.Children, Child{ID: id, X: x, Y: y})
}

// PopChild removes the last child reference, if any.
func (o *Object) PopChild() {
	if len(o.Children) > 0 {
		o.Children = o.Children[:len(o.Children)-1]
	}
}

// OffsetChildrenWithID moves every child reference matching childID by
// the given deltas and reports whether any matched.
func (o *Object) OffsetChildrenWithID(childID uint16, dx, dy int8) bool {
	matched := false
	for i := range o.Children {
		if o.Children[i].ID == childID {
			matched = true
			o.Children[i].X += int16(dx)
			o.Children[i].Y += int16(dy)
		}
	}
	return matched
}

// PlaceChildrenWithID sets the absolute position of every child
// reference matching childID and reports whether any matched.
func (o *Object) PlaceChildrenWithID(childID uint16, x, y int16) bool {
	matched := false
	for i := range o.Children {
		if o.Children[i].ID == childID {
			matched = true
			o.Children[i].X = x
			o.Children[i].Y = y
		}
	}
	return matched
}

// ChangeListItem replaces the child reference at index with newID, used
// by input and output list objects where children are the list items.
// A NullObjectID entry is legal and renders as an empty slot.
func (o *Object) ChangeListItem(index uint8, newID uint16) bool {
	if int(index) >= len(o.Children) {
		return false
	}
	o.Children[index].ID = newID
	return true
}

// AttributeError is the error kind returned by SetAttribute, matching
// the change attribute response's error bit positions.
type AttributeError uint8

const (
	AttributeErrorInvalidObjectID    AttributeError = 0
	AttributeErrorInvalidAttributeID AttributeError = 1
	AttributeErrorInvalidValue       AttributeError = 2
	AttributeErrorValueInUse         AttributeError = 3
	AttributeErrorAnyOtherError      AttributeError = 4
)

// Attribute IDs shared by most object types. Attribute 0 is always the
// read-only type attribute.
const (
	attributeType             = 0
	attributeWidth            = 1
	attributeHeight           = 2
	attributeBackgroundColour = 3
)

// SetAttribute writes one attribute of the object by attribute ID,
// returning an AttributeError when the ID is unknown for this type, the
// value is out of range, or the attribute is read-only.
func (o *Object) SetAttribute(attributeID uint8, value uint32) (AttributeError, bool) {
	if attributeID == attributeType {
		// The type attribute is read-only on every object.
		return AttributeErrorInvalidAttributeID, false
	}

	switch o.Type {
	case ObjectTypeWorkingSet:
		switch attributeID {
		case 1:
			if value > 0xFF {
				return AttributeErrorInvalidValue, false
			}
			o.BackgroundColour = uint8(value)
		case 2:
			o.Selectable = value != 0
		case 3:
			if value > 0xFFFF {
				return AttributeErrorInvalidValue, false
			}
			o.ActiveMask = uint16(value)
		default:
			return AttributeErrorInvalidAttributeID, false
		}

	case ObjectTypeDataMask:
		switch attributeID {
		case 1:
			if value > 0xFF {
				return AttributeErrorInvalidValue, false
			}
			o.BackgroundColour = uint8(value)
		case 2:
			if value > 0xFFFF {
				return AttributeErrorInvalidValue, false
			}
			o.SoftKeyMask = uint16(value)
		default:
			return AttributeErrorInvalidAttributeID, false
		}

	case ObjectTypeContainer, ObjectTypeButton, ObjectTypeInputList,
		ObjectTypeOutputList, ObjectTypeOutputRectangle, ObjectTypeOutputEllipse,
		ObjectTypeOutputPolygon, ObjectTypeOutputLine, ObjectTypeOutputNumber,
		ObjectTypeOutputString:
		switch attributeID {
		case attributeWidth:
			if value > 0xFFFF {
				return AttributeErrorInvalidValue, false
			}
			o.Width = uint16(value)
		case attributeHeight:
			if value > 0xFFFF {
				return AttributeErrorInvalidValue, false
			}
			o.Height = uint16(value)
		case attributeBackgroundColour:
			if value > 0xFF {
				return AttributeErrorInvalidValue, false
			}
			o.BackgroundColour = uint8(value)
		default:
			return AttributeErrorInvalidAttributeID, false
		}

	case ObjectTypeNumberVariable:
		switch attributeID {
		case 1:
			o.Value = value
		default:
			return AttributeErrorInvalidAttributeID, false
		}

	case ObjectTypeFontAttributes:
		switch attributeID {
		case 1:
			if value > 0xFF {
				return AttributeErrorInvalidValue, false
			}
			o.FontColour = uint8(value)
		case 2:
			if value > uint32(FontSize128x192) {
				return AttributeErrorInvalidValue, false
			}
			o.FontSize = FontSize(value)
		case 3:
			if value > 0xFF {
				return AttributeErrorInvalidValue, false
			}
			o.FontType = uint8(value)
		case 4:
			if value > 0xFF {
				return AttributeErrorInvalidValue, false
			}
			o.FontStyle = uint8(value)
		default:
			return AttributeErrorInvalidAttributeID, false
		}

	case ObjectTypeFillAttributes:
		switch attributeID {
		case 1:
			if value > uint32(FillWithPattern) {
				return AttributeErrorInvalidValue, false
			}
			o.FillType = FillType(value)
		case 2:
			if value > 0xFF {
				return AttributeErrorInvalidValue, false
			}
			o.BackgroundColour = uint8(value)
		case 3:
			if value > 0xFFFF {
				return AttributeErrorInvalidValue, false
			}
			o.FillPattern = uint16(value)
		default:
			return AttributeErrorInvalidAttributeID, false
		}

	default:
		return AttributeErrorInvalidAttributeID, false
	}

	return 0, true
}
