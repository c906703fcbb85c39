// Package vtobject implements the ISO 11783-6 object model: the typed
// object tree a virtual terminal client uploads as its object pool, with
// the per-type child validation rules fixed by the standard.
package vtobject

// NullObjectID is the reserved "no object" ID (0xFFFF).
const NullObjectID uint16 = 0xFFFF

// ObjectType is the type tag of a VT object, with the numeric values
// assigned by ISO 11783-6.
type ObjectType uint8

const (
	ObjectTypeWorkingSet                      ObjectType = 0
	ObjectTypeDataMask                        ObjectType = 1
	ObjectTypeAlarmMask                       ObjectType = 2
	ObjectTypeContainer                       ObjectType = 3
	ObjectTypeSoftKeyMask                     ObjectType = 4
	ObjectTypeKey                             ObjectType = 5
	ObjectTypeButton                          ObjectType = 6
	ObjectTypeInputBoolean                    ObjectType = 7
	ObjectTypeInputString                     ObjectType = 8
	ObjectTypeInputNumber                     ObjectType = 9
	ObjectTypeInputList                       ObjectType = 10
	ObjectTypeOutputString                    ObjectType = 11
	ObjectTypeOutputNumber                    ObjectType = 12
	ObjectTypeOutputLine                      ObjectType = 13
	ObjectTypeOutputRectangle                 ObjectType = 14
	ObjectTypeOutputEllipse                   ObjectType = 15
	ObjectTypeOutputPolygon                   ObjectType = 16
	ObjectTypeOutputMeter                     ObjectType = 17
	ObjectTypeOutputLinearBarGraph            ObjectType = 18
	ObjectTypeOutputArchedBarGraph            ObjectType = 19
	ObjectTypePictureGraphic                  ObjectType = 20
	ObjectTypeNumberVariable                  ObjectType = 21
	ObjectTypeStringVariable                  ObjectType = 22
	ObjectTypeFontAttributes                  ObjectType = 23
	ObjectTypeLineAttributes                  ObjectType = 24
	ObjectTypeFillAttributes                  ObjectType = 25
	ObjectTypeInputAttributes                 ObjectType = 26
	ObjectTypeObjectPointer                   ObjectType = 27
	ObjectTypeMacro                           ObjectType = 28
	ObjectTypeAuxiliaryFunctionType1          ObjectType = 29
	ObjectTypeAuxiliaryInputType1             ObjectType = 30
	ObjectTypeAuxiliaryFunctionType2          ObjectType = 31
	ObjectTypeAuxiliaryInputType2             ObjectType = 32
	ObjectTypeAuxiliaryControlDesignatorType2 ObjectType = 33
	ObjectTypeWindowMask                      ObjectType = 34
	ObjectTypeKeyGroup                        ObjectType = 35
	ObjectTypeGraphicsContext                 ObjectType = 36
	ObjectTypeOutputList                      ObjectType = 37
	ObjectTypeExtendedInputAttributes         ObjectType = 38
	ObjectTypeColourMap                       ObjectType = 39
	ObjectTypeExternalObjectDefinition        ObjectType = 41
	ObjectTypeExternalReferenceNAME           ObjectType = 42
	ObjectTypeExternalObjectPointer           ObjectType = 43
	ObjectTypeAnimation                       ObjectType = 44
	ObjectTypeScaledGraphic                   ObjectType = 48
)

// permittedChildren enumerates, per parent type, the child object types
// the standard allows. A parent type absent from the map accepts no
// children.
var permittedChildren = map[ObjectType][]ObjectType{
	ObjectTypeWorkingSet: {
		ObjectTypeOutputList, ObjectTypeContainer, ObjectTypeOutputString,
		ObjectTypeOutputNumber, ObjectTypeOutputLine, ObjectTypeOutputRectangle,
		ObjectTypeOutputEllipse, ObjectTypeOutputPolygon, ObjectTypeOutputMeter,
		ObjectTypeOutputLinearBarGraph, ObjectTypeOutputArchedBarGraph,
		ObjectTypeGraphicsContext, ObjectTypePictureGraphic, ObjectTypeObjectPointer,
	},
	ObjectTypeDataMask: {
		ObjectTypeWorkingSet, ObjectTypeButton, ObjectTypeInputBoolean,
		ObjectTypeInputString, ObjectTypeInputNumber, ObjectTypeOutputString,
		ObjectTypeInputList, ObjectTypeOutputNumber, ObjectTypeOutputList,
		ObjectTypeOutputLine, ObjectTypeOutputRectangle, ObjectTypeOutputEllipse,
		ObjectTypeOutputPolygon, ObjectTypeOutputMeter, ObjectTypeOutputLinearBarGraph,
		ObjectTypeOutputArchedBarGraph, ObjectTypeGraphicsContext, ObjectTypeAnimation,
		ObjectTypePictureGraphic, ObjectTypeObjectPointer, ObjectTypeExternalObjectPointer,
		ObjectTypeAuxiliaryFunctionType2, ObjectTypeAuxiliaryInputType2,
		ObjectTypeAuxiliaryControlDesignatorType2,
	},
	ObjectTypeAlarmMask: {
		ObjectTypeWorkingSet, ObjectTypeButton, ObjectTypeInputBoolean,
		ObjectTypeInputString, ObjectTypeInputNumber, ObjectTypeOutputString,
		ObjectTypeInputList, ObjectTypeOutputNumber, ObjectTypeOutputList,
		ObjectTypeOutputLine, ObjectTypeOutputRectangle, ObjectTypeOutputEllipse,
		ObjectTypeOutputPolygon, ObjectTypeOutputMeter, ObjectTypeOutputLinearBarGraph,
		ObjectTypeOutputArchedBarGraph, ObjectTypeGraphicsContext, ObjectTypeAnimation,
		ObjectTypePictureGraphic, ObjectTypeObjectPointer, ObjectTypeExternalObjectPointer,
		ObjectTypeAuxiliaryFunctionType2, ObjectTypeAuxiliaryInputType2,
		ObjectTypeAuxiliaryControlDesignatorType2,
	},
	ObjectTypeContainer: {
		ObjectTypeWorkingSet, ObjectTypeContainer, ObjectTypeButton,
		ObjectTypeInputBoolean, ObjectTypeInputString, ObjectTypeInputNumber,
		ObjectTypeInputList, ObjectTypeOutputString, ObjectTypeOutputNumber,
		ObjectTypeOutputList, ObjectTypeOutputLine, ObjectTypeOutputRectangle,
		ObjectTypeOutputEllipse, ObjectTypeOutputPolygon, ObjectTypeOutputMeter,
		ObjectTypeGraphicsContext, ObjectTypeOutputArchedBarGraph,
		ObjectTypeOutputLinearBarGraph, ObjectTypeAnimation, ObjectTypePictureGraphic,
		ObjectTypeObjectPointer, ObjectTypeExternalObjectPointer,
		ObjectTypeAuxiliaryFunctionType2, ObjectTypeAuxiliaryInputType2,
		ObjectTypeAuxiliaryControlDesignatorType2,
	},
	ObjectTypeSoftKeyMask: {
		ObjectTypeObjectPointer, ObjectTypeExternalObjectPointer, ObjectTypeKey,
	},
	ObjectTypeKey: {
		ObjectTypeWorkingSet, ObjectTypeContainer, ObjectTypeOutputString,
		ObjectTypeOutputNumber, ObjectTypeOutputList, ObjectTypeOutputLine,
		ObjectTypeOutputRectangle, ObjectTypeOutputEllipse, ObjectTypeOutputPolygon,
		ObjectTypeOutputMeter, ObjectTypeGraphicsContext, ObjectTypeOutputArchedBarGraph,
		ObjectTypeOutputLinearBarGraph, ObjectTypeAnimation, ObjectTypePictureGraphic,
		ObjectTypeObjectPointer, ObjectTypeExternalObjectPointer,
	},
	ObjectTypeKeyGroup: {
		ObjectTypeKey, ObjectTypeObjectPointer,
	},
	ObjectTypeButton: {
		ObjectTypeWorkingSet, ObjectTypeOutputList, ObjectTypeContainer,
		ObjectTypeOutputString, ObjectTypeOutputNumber, ObjectTypeOutputLine,
		ObjectTypeOutputRectangle, ObjectTypeOutputEllipse, ObjectTypeOutputPolygon,
		ObjectTypeOutputMeter, ObjectTypeOutputLinearBarGraph,
		ObjectTypeOutputArchedBarGraph, ObjectTypeGraphicsContext,
		ObjectTypePictureGraphic, ObjectTypeObjectPointer, ObjectTypeAnimation,
	},
	ObjectTypeInputBoolean: {
		ObjectTypeNumberVariable,
	},
	ObjectTypeInputString: {
		ObjectTypeStringVariable, ObjectTypeFontAttributes, ObjectTypeInputAttributes,
	},
	ObjectTypeInputNumber: {
		ObjectTypeNumberVariable, ObjectTypeFontAttributes,
	},
	ObjectTypeInputList: {
		ObjectTypeNumberVariable, ObjectTypeOutputString,
	},
	ObjectTypeOutputString: {
		ObjectTypeStringVariable, ObjectTypeFontAttributes,
	},
	ObjectTypeOutputNumber: {
		ObjectTypeNumberVariable, ObjectTypeFontAttributes,
	},
	ObjectTypeOutputList: {
		ObjectTypeNumberVariable, ObjectTypeOutputString,
	},
	ObjectTypeOutputLine: {
		ObjectTypeLineAttributes,
	},
	ObjectTypeOutputRectangle: {
		ObjectTypeLineAttributes, ObjectTypeFillAttributes,
	},
	ObjectTypeOutputEllipse: {
		ObjectTypeLineAttributes, ObjectTypeFillAttributes,
	},
	ObjectTypeOutputPolygon: {
		ObjectTypeLineAttributes, ObjectTypeFillAttributes,
	},
	ObjectTypeOutputMeter: {
		ObjectTypeNumberVariable,
	},
	ObjectTypeOutputLinearBarGraph: {
		ObjectTypeNumberVariable,
	},
	ObjectTypeOutputArchedBarGraph: {
		ObjectTypeNumberVariable,
	},
	ObjectTypeWindowMask: {
		ObjectTypeOutputString, ObjectTypeContainer, ObjectTypeOutputNumber,
		ObjectTypeOutputList, ObjectTypeOutputLine, ObjectTypeOutputRectangle,
		ObjectTypeOutputEllipse, ObjectTypeOutputPolygon, ObjectTypeOutputMeter,
		ObjectTypeOutputLinearBarGraph, ObjectTypeOutputArchedBarGraph,
		ObjectTypeGraphicsContext, ObjectTypePictureGraphic, ObjectTypeObjectPointer,
		ObjectTypeScaledGraphic,
	},
}

// ChildTypePermitted reports whether the standard allows child as a
// direct child of parent.
func ChildTypePermitted(parent, child ObjectType) bool {
	for _, allowed := range permittedChildren[parent] {
		if allowed == child {
			return true
		}
	}
	return false
}
