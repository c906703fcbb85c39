// Package vtserver implements the ISO 11783-6 virtual terminal server
// state machine: client working set management, the VT command dispatch
// table with per-command validation and error-bit replies, object pool
// intake with background parsing, and the periodic status heartbeat.
package vtserver

import (
	"time"

	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canframe"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/canlog"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/controlfunction"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/network"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/transport"
	"github.com/Meisterschulen-am-Ostbahnhof-Munchen/AgIsoStack-plus-plus/vtobject"
)

// Dependencies are the collaborator interfaces a Server delegates to.
// Storage, Memory and WideChars may be nil; Parser is required.
type Dependencies struct {
	Storage   VersionStorage
	Memory    MemoryQuery
	WideChars WideCharQuery
	Parser    vtobject.Parser
}

// Server is a virtual terminal server bound to one internal control
// function. All state transitions happen inside Tick and the frame
// dispatch path, which the network manager serializes.
type Server struct {
	cfg Config
	net *network.Manager
	tp  *transport.Manager
	log canlog.Logger

	internal *controlfunction.ControlFunction

	storage   VersionStorage
	memory    MemoryQuery
	wideChars WideCharQuery
	parser    vtobject.Parser

	workingSets []*ManagedWorkingSet
	active      *ManagedWorkingSet

	clock          func() time.Time
	lastStatusTime time.Time
	activeCommand  Function
	busyCodes      uint8

	OnRepaint              EventDispatcher[RepaintEvent]
	OnActiveMaskChanged    EventDispatcher[ActiveMaskChangedEvent]
	OnHideShow             EventDispatcher[HideShowEvent]
	OnEnableDisable        EventDispatcher[EnableDisableEvent]
	OnNumericValueChanged  EventDispatcher[NumericValueChangedEvent]
	OnStringValueChanged   EventDispatcher[StringValueChangedEvent]
	OnChildLocationChanged EventDispatcher[ChildLocationChangedEvent]
	OnChildPositionChanged EventDispatcher[ChildPositionChangedEvent]
	OnSelectInputObject    EventDispatcher[SelectInputObjectEvent]
}

// NewServer creates a VT server and registers its frame and transport
// message handlers. The caller adds the server to the network manager's
// tick loop.
func NewServer(net *network.Manager, tp *transport.Manager, internal *controlfunction.ControlFunction, cfg Config, deps Dependencies, logger canlog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Parser == nil {
		return nil, newServerError("an object pool parser is required")
	}
	if logger == nil {
		logger = canlog.Discard{}
	}
	s := &Server{
		cfg:       cfg,
		net:       net,
		tp:        tp,
		log:       logger,
		internal:  internal,
		storage:   deps.Storage,
		memory:    deps.Memory,
		wideChars: deps.WideChars,
		parser:    deps.Parser,
		clock:     time.Now,
	}
	net.RegisterAnyControlFunctionHandler(PGNECUToVT, s.handleFrame)
	tp.RegisterMessageHandler(PGNECUToVT, s.handleTransportMessage)
	return s, nil
}

// ActiveWorkingSet returns the working set currently holding the active
// master role, or nil.
func (s *Server) ActiveWorkingSet() *ManagedWorkingSet {
	return s.active
}

// WorkingSets returns a snapshot of the attached working sets.
func (s *Server) WorkingSets() []*ManagedWorkingSet {
	return append([]*ManagedWorkingSet(nil), s.workingSets...)
}

func (s *Server) findWorkingSet(cf *controlfunction.ControlFunction) *ManagedWorkingSet {
	for _, ws := range s.workingSets {
		if ws.cf == cf {
			return ws
		}
	}
	return nil
}

func (s *Server) handleFrame(frame canframe.Frame) {
	// ChangeStringValue is legally as short as 6 bytes; everything else
	// must fill the full 8-byte frame.
	if len(frame.Data) < 8 &&
		!(len(frame.Data) > 5 && Function(frame.Data[0]) == FunctionChangeStringValue) {
		return
	}
	source := s.net.Registry().GetOrCreateExternal(frame.ID.Source)
	s.process(source, frame.Data)
}

func (s *Server) handleTransportMessage(msg transport.Message) {
	if len(msg.Data) == 0 {
		return
	}
	s.process(msg.Source, msg.Data)
}

// process runs the command dispatcher for one client message, attaching
// the client first if it is unknown.
func (s *Server) process(source *controlfunction.ControlFunction, data []byte) {
	ws := s.findWorkingSet(source)
	if ws == nil {
		s.tryAttach(source, data)
		return
	}

	s.activeCommand = Function(data[0])
	switch Function(data[0]) {
	case FunctionObjectPoolTransfer:
		s.log.Infof("[VT Server]: An ecu at address %d transferred %d bytes of object pool data to us", source.Address(), len(data)-1)
		ws.AddRawPoolData(data[1:])

	case FunctionGetMemory:
		s.processGetMemory(ws, data)

	case FunctionGetNumberOfSoftKeys:
		s.sendToClient(ws.cf, []byte{
			byte(FunctionGetNumberOfSoftKeys),
			s.cfg.NavigationSoftKeys,
			0xFF,
			0xFF,
			s.cfg.SoftKeyPixelsX,
			s.cfg.SoftKeyPixelsY,
			s.cfg.VirtualSoftKeys,
			s.cfg.PhysicalSoftKeys,
		})

	case FunctionGetTextFontData:
		s.sendToClient(ws.cf, []byte{
			byte(FunctionGetTextFontData),
			0xFF,
			0xFF,
			0xFF,
			0xFF,
			0xFF, // All small fonts supported
			0xFF, // All large fonts supported
			0x8F, // Normal, bold, italic, proportional
		})

	case FunctionGetHardware:
		s.sendToClient(ws.cf, []byte{
			byte(FunctionGetHardware),
			0xFF, // Powerup time not reported
			0x02, // 256 colour graphic mode
			0x0F, // Pointing event support
			byte(s.cfg.DataMaskPixelsX & 0xFF),
			byte(s.cfg.DataMaskPixelsX >> 8),
			byte(s.cfg.DataMaskPixelsY & 0xFF),
			byte(s.cfg.DataMaskPixelsY >> 8),
		})

	case FunctionGetSupportedWidechars:
		s.processGetSupportedWidechars(ws, data)

	case FunctionGetVersions:
		s.processGetVersions(ws)

	case FunctionLoadVersion:
		s.processLoadVersion(ws, data)

	case FunctionStoreVersion:
		s.processStoreVersion(ws, data)

	case FunctionEndOfObjectPool:
		if ws.HasRawPoolData() {
			s.busyCodes |= BusyParsingObjectPool
			ws.StartParsing(s.parser)
		} else {
			s.log.Warnf("[VT Server]: End of object pool message ignored - no object pools are loaded for the source control function")
		}

	case FunctionWorkingSetMaintenance:
		ws.touchMaintenance(s.clock())

	case FunctionChangeNumericValue:
		s.processChangeNumericValue(ws, data)

	case FunctionHideShowObject:
		s.processHideShowObject(ws, data)

	case FunctionEnableDisableObject:
		s.processEnableDisableObject(ws, data)

	case FunctionChangeChildLocation:
		s.processChangeChildLocation(ws, data)

	case FunctionChangeChildPosition:
		s.processChangeChildPosition(ws, data)

	case FunctionChangeActiveMask:
		s.processChangeActiveMask(ws, data)

	case FunctionChangeSoftKeyMask:
		s.processChangeSoftKeyMask(ws, data)

	case FunctionChangeStringValue:
		s.processChangeStringValue(ws, data)

	case FunctionChangeFillAttributes:
		s.processChangeFillAttributes(ws, data)

	case FunctionChangeAttribute:
		s.processChangeAttribute(ws, data)

	case FunctionChangeSize:
		s.processChangeSize(ws, data)

	case FunctionChangeListItem:
		s.processChangeListItem(ws, data)

	case FunctionChangeFontAttributes:
		s.processChangeFontAttributes(ws, data)

	case FunctionGetSupportedObjects:
		s.sendSupportedObjects(ws.cf)
		s.log.Debugf("[VT Server]: Sent supported object list to client %d", ws.cf.Address())

	case FunctionESC:
		// Soft-key driven ESC handling belongs to the pool design; reply
		// that no input field is selected.
		s.sendToClient(ws.cf, []byte{
			byte(FunctionESC),
			0xFF,
			0xFF,
			0x01,
			0xFF,
			0xFF,
			0xFF,
			0xFF,
		})

	case FunctionControlAudioSignal, FunctionSetAudioVolume:
		// Audio output is outside this stack's scope; acknowledge with a
		// deterministic error rather than dropping the command.
		s.sendToClient(ws.cf, []byte{
			data[0],
			1 << errorBitAnyOtherError,
			0xFF,
			0xFF,
			0xFF,
			0xFF,
			0xFF,
			0xFF,
		})

	default:
		s.log.Warnf("[VT Server]: Unimplemented command %#02X from client %d", data[0], ws.cf.Address())
	}
}

// tryAttach registers a new working set for a client whose first message
// is a working set maintenance message with the init bit set. Any other
// message from an unknown source is answered with a NACK.
func (s *Server) tryAttach(source *controlfunction.ControlFunction, data []byte) {
	if Function(data[0]) == FunctionWorkingSetMaintenance && len(data) >= 3 && data[1]&0x01 != 0 {
		ws := newManagedWorkingSet(source, data[2], s.clock())
		s.workingSets = append(s.workingSets, ws)
		s.log.Infof("[VT Server]: Client %d initiated working set maintenance messages with version %d", source.Address(), data[2])
		if data[2] > s.cfg.Version {
			s.log.Warnf("[VT Server]: Client %d version %d is not supported", source.Address(), data[2])
		}
		return
	}
	s.log.Warnf("[VT Server]: Received a non-status message from a client at address %d, but they are not connected to this VT", source.Address())
	s.sendNegativeAcknowledgement(PGNECUToVT, source)
}

func (s *Server) processGetMemory(ws *ManagedWorkingSet, data []byte) {
	required := le32(data[2], data[3], data[4], data[5])
	isEnough := true
	if s.memory != nil {
		isEnough = s.memory.IsEnoughMemory(required)
	}
	s.log.Infof("[VT Server]: An ecu requested %d bytes of memory", required)
	notEnough := byte(0)
	if !isEnough {
		notEnough = 1
		s.log.Warnf("[VT Server]: Callback indicated there is NOT enough memory")
	}
	s.sendToClient(ws.cf, []byte{
		byte(FunctionGetMemory),
		s.cfg.Version,
		notEnough,
		0xFF,
		0xFF,
		0xFF,
		0xFF,
		0xFF,
	})
}

func (s *Server) processGetSupportedWidechars(ws *ManagedWorkingSet, data []byte) {
	codePlane := data[1]
	first := le16(data[2], data[3])
	last := le16(data[4], data[5])

	var errorCode, numberOfRanges uint8
	var ranges []byte
	if s.wideChars != nil {
		errorCode, numberOfRanges, ranges = s.wideChars.SupportedWideChars(codePlane, first, last)
	}

	buffer := []byte{
		byte(FunctionGetSupportedWidechars),
		codePlane,
		byte(first & 0xFF),
		byte(first >> 8),
		byte(last & 0xFF),
		byte(last >> 8),
		errorCode,
		numberOfRanges,
	}
	buffer = append(buffer, ranges...)
	s.sendToClient(ws.cf, buffer)
}

func (s *Server) processGetVersions(ws *ManagedWorkingSet) {
	var labels [][]byte
	if s.storage != nil {
		labels = s.storage.ListVersions(ws.cf.Name())
	}
	s.log.Debugf("[VT Server]: Client %d requests stored versions", ws.cf.Address())
	if len(labels) > 255 {
		s.log.Warnf("[VT Server]: Version storage returned too many versions! This client should really delete some")
		labels = labels[:255]
	}

	buffer := []byte{byte(FunctionGetVersionsResponse), byte(len(labels))}
	for _, label := range labels {
		buffer = append(buffer, normalizeVersionLabel(label)...)
	}
	for len(buffer) < 8 {
		buffer = append(buffer, 0xFF)
	}
	s.sendToClient(ws.cf, buffer)
}

// normalizeVersionLabel pads or truncates a label to its fixed 7 bytes.
func normalizeVersionLabel(label []byte) []byte {
	out := make([]byte, VersionLabelLength)
	copy(out, label)
	for i := len(label); i < VersionLabelLength; i++ {
		out[i] = ' '
	}
	return out
}

func (s *Server) processLoadVersion(ws *ManagedWorkingSet, data []byte) {
	label := append([]byte(nil), data[1:1+VersionLabelLength]...)
	errorCodes := byte(0x01) // Version label incorrect
	if s.storage != nil {
		if loaded := s.storage.LoadVersion(label, ws.cf.Name()); len(loaded) > 0 {
			ws.AddRawPoolData(loaded)
			errorCodes = 0
		}
	}
	if ws.HasRawPoolData() {
		ws.StartParsing(s.parser)
		s.busyCodes |= BusyParsingObjectPool
		s.log.Debugf("[VT Server]: Starting parsing for loaded pool data")
	}
	s.sendToClient(ws.cf, []byte{
		byte(FunctionLoadVersion),
		0xFF,
		0xFF,
		0xFF,
		0xFF,
		errorCodes,
		0xFF,
		0xFF,
	})
}

func (s *Server) processStoreVersion(ws *ManagedWorkingSet, data []byte) {
	if !ws.HasRawPoolData() {
		s.sendNegativeAcknowledgement(PGNECUToVT, ws.cf)
		return
	}
	label := append([]byte(nil), data[1:1+VersionLabelLength]...)
	allPoolsSaved := s.storage != nil
	if s.storage != nil {
		for i, pool := range ws.RawPoolData() {
			if s.storage.SaveVersion(label, ws.cf.Name(), pool) {
				s.log.Infof("[VT Server]: Object pool %d for NAME %d was stored", i, ws.cf.Name())
			} else {
				s.log.Warnf("[VT Server]: Object pool %d for NAME %d could not be stored", i, ws.cf.Name())
				allPoolsSaved = false
				break
			}
		}
	}
	errorCodes := byte(0)
	if !allPoolsSaved {
		errorCodes = 0x04 // Any other error
	}
	s.sendToClient(ws.cf, []byte{
		byte(FunctionStoreVersion),
		0xFF,
		0xFF,
		0xFF,
		0xFF,
		errorCodes,
		0xFF,
		0xFF,
	})
}

func (s *Server) processChangeNumericValue(ws *ManagedWorkingSet, data []byte) {
	objectID := le16(data[1], data[2])
	value := le32(data[4], data[5], data[6], data[7])
	target := ws.Object(objectID)

	if target == nil {
		s.sendChangeNumericValueResponse(objectID, 1<<errorBitInvalidObjectID, value, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change numeric value invalid object ID of %d", ws.cf.Address(), objectID)
		return
	}

	switch target.Type {
	case vtobject.ObjectTypeInputBoolean, vtobject.ObjectTypeInputNumber,
		vtobject.ObjectTypeInputList, vtobject.ObjectTypeOutputNumber,
		vtobject.ObjectTypeOutputList, vtobject.ObjectTypeOutputMeter,
		vtobject.ObjectTypeOutputLinearBarGraph, vtobject.ObjectTypeOutputArchedBarGraph,
		vtobject.ObjectTypeNumberVariable:
		target.Value = value

	case vtobject.ObjectTypeObjectPointer:
		target.PopChild()
		target.AddChild(uint16(value&0xFFFF), 0, 0)

	case vtobject.ObjectTypeExternalObjectPointer:
		target.ExternalReferenceNAMEID = le16(data[4], data[5])
		target.ExternalObjectID = le16(data[6], data[7])

	default:
		s.sendChangeNumericValueResponse(objectID, 1<<errorBitInvalidObjectID, value, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change numeric value invalid object type. ID: %d", ws.cf.Address(), objectID)
		return
	}

	s.log.Debugf("[VT Server]: Client %d change numeric value command: change object ID %d to be %d", ws.cf.Address(), objectID, value)
	s.OnNumericValueChanged.Fire(NumericValueChangedEvent{WorkingSet: ws, ObjectID: objectID, Value: value})
	s.sendChangeNumericValueResponse(objectID, 0, value, ws.cf)
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

func (s *Server) processHideShowObject(ws *ManagedWorkingSet, data []byte) {
	objectID := le16(data[1], data[2])
	shown := data[3] != 0
	target := ws.Object(objectID)

	if target == nil || target.Type != vtobject.ObjectTypeContainer {
		s.sendHideShowObjectResponse(objectID, 1<<errorBitInvalidObjectID, shown, ws.cf)
		s.log.Warnf("[VT Server]: Client %d hide/show object command failed. It can only affect containers! ID: %d", ws.cf.Address(), objectID)
		return
	}
	target.Hidden = !shown
	s.sendHideShowObjectResponse(objectID, 0, shown, ws.cf)
	s.OnHideShow.Fire(HideShowEvent{WorkingSet: ws, ObjectID: objectID, Shown: shown})
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

func (s *Server) processEnableDisableObject(ws *ManagedWorkingSet, data []byte) {
	objectID := le16(data[1], data[2])
	enabled := data[3] != 0
	target := ws.Object(objectID)

	if target == nil {
		s.sendEnableDisableObjectResponse(objectID, 1<<errorBitEnableInvalidObjectID, enabled, ws.cf)
		return
	}
	if data[3] > 1 {
		s.sendEnableDisableObjectResponse(objectID, 1<<errorBitEnableInvalidValue, enabled, ws.cf)
		return
	}
	switch target.Type {
	case vtobject.ObjectTypeInputBoolean, vtobject.ObjectTypeInputList,
		vtobject.ObjectTypeInputString, vtobject.ObjectTypeInputNumber,
		vtobject.ObjectTypeButton:
		target.Enabled = enabled
	default:
		s.sendEnableDisableObjectResponse(objectID, 1<<errorBitEnableInvalidObjectID, enabled, ws.cf)
		return
	}
	s.sendEnableDisableObjectResponse(objectID, 0, enabled, ws.cf)
	s.OnEnableDisable.Fire(EnableDisableEvent{WorkingSet: ws, ObjectID: objectID, Enabled: enabled})
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

func (s *Server) processChangeChildLocation(ws *ManagedWorkingSet, data []byte) {
	parentObjectID := le16(data[1], data[2])
	objectID := le16(data[3], data[4])
	parent := ws.Object(parentObjectID)

	if parent == nil {
		s.sendChangeChildLocationResponse(parentObjectID, objectID, 1<<errorBitParentObjectMissing, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change child location failed because the parent object with ID %d doesn't exist", ws.cf.Address(), parentObjectID)
		return
	}
	if ws.Object(objectID) == nil {
		s.sendChangeChildLocationResponse(parentObjectID, objectID, 1<<errorBitTargetObjectMissing, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change child location failed because the target object with ID %d doesn't exist", ws.cf.Address(), objectID)
		return
	}

	// Offsets are encoded with a +127 bias.
	dx := int8(int16(data[5]) - 127)
	dy := int8(int16(data[6]) - 127)
	if !parent.OffsetChildrenWithID(objectID, dx, dy) {
		s.sendChangeChildLocationResponse(parentObjectID, objectID, 1<<errorBitTargetObjectMissing, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change child location failed because the target object with ID %d isn't applicable", ws.cf.Address(), objectID)
		return
	}
	s.sendChangeChildLocationResponse(parentObjectID, objectID, 0, ws.cf)
	s.OnChildLocationChanged.Fire(ChildLocationChangedEvent{
		WorkingSet: ws, ParentObjectID: parentObjectID, ObjectID: objectID, OffsetX: dx, OffsetY: dy,
	})
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

// changeChildPositionParentTypes are the parent object types the change
// child position command may target.
var changeChildPositionParentTypes = map[vtobject.ObjectType]bool{
	vtobject.ObjectTypeButton:              true,
	vtobject.ObjectTypeContainer:           true,
	vtobject.ObjectTypeAlarmMask:           true,
	vtobject.ObjectTypeDataMask:            true,
	vtobject.ObjectTypeKey:                 true,
	vtobject.ObjectTypeWorkingSet:          true,
	vtobject.ObjectTypeAuxiliaryInputType2: true,
	vtobject.ObjectTypeWindowMask:          true,
}

func (s *Server) processChangeChildPosition(ws *ManagedWorkingSet, data []byte) {
	parentObjectID := le16(data[1], data[2])
	objectID := le16(data[3], data[4])
	if len(data) <= 8 {
		// This command spans 9 bytes and always arrives over transport.
		s.sendChangeChildPositionResponse(parentObjectID, objectID, 1<<errorBitAnyOtherError, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change child position error. DLC must be 9 bytes for the message to be valid", ws.cf.Address())
		return
	}
	x := le16(data[5], data[6])
	y := le16(data[7], data[8])
	parent := ws.Object(parentObjectID)
	if parent == nil {
		s.sendChangeChildPositionResponse(parentObjectID, objectID, 1<<errorBitParentObjectMissing, ws.cf)
		return
	}
	if ws.Object(objectID) == nil {
		s.sendChangeChildPositionResponse(parentObjectID, objectID, 1<<errorBitTargetObjectMissing, ws.cf)
		return
	}
	if !changeChildPositionParentTypes[parent.Type] {
		s.sendChangeChildPositionResponse(parentObjectID, objectID, 1<<errorBitAnyOtherError, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change child position error. Parent object type cannot be targeted by this command", ws.cf.Address())
		return
	}
	if !parent.PlaceChildrenWithID(objectID, int16(x), int16(y)) {
		s.sendChangeChildPositionResponse(parentObjectID, objectID, 1<<errorBitTargetObjectMissing, ws.cf)
		return
	}
	s.sendChangeChildPositionResponse(parentObjectID, objectID, 0, ws.cf)
	s.OnChildPositionChanged.Fire(ChildPositionChangedEvent{
		WorkingSet: ws, ParentObjectID: parentObjectID, ObjectID: objectID, X: x, Y: y,
	})
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

func (s *Server) processChangeActiveMask(ws *ManagedWorkingSet, data []byte) {
	workingSetObjectID := le16(data[1], data[2])
	newMaskObjectID := le16(data[3], data[4])
	workingSetObject := ws.Object(workingSetObjectID)

	if workingSetObject == nil || workingSetObject.Type != vtobject.ObjectTypeWorkingSet {
		s.sendChangeActiveMaskResponse(newMaskObjectID, 1<<errorBitInvalidWorkingSetObjectID, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change active mask failed because the working set object ID %d was not valid", ws.cf.Address(), workingSetObjectID)
		return
	}
	if ws.Object(newMaskObjectID) == nil {
		s.sendChangeActiveMaskResponse(newMaskObjectID, 1<<errorBitInvalidMaskObjectID, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change active mask failed because the new mask object ID %d was not valid", ws.cf.Address(), newMaskObjectID)
		return
	}
	workingSetObject.ActiveMask = newMaskObjectID
	s.sendChangeActiveMaskResponse(newMaskObjectID, 0, ws.cf)
	s.OnActiveMaskChanged.Fire(ActiveMaskChangedEvent{
		WorkingSet: ws, WorkingSetObjectID: workingSetObjectID, NewMaskObjectID: newMaskObjectID,
	})
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

func (s *Server) processChangeSoftKeyMask(ws *ManagedWorkingSet, data []byte) {
	maskObjectID := le16(data[1], data[2])
	newSoftKeyMaskID := le16(data[3], data[4])
	target := ws.Object(maskObjectID)

	if target == nil {
		s.sendChangeSoftKeyMaskResponse(maskObjectID, newSoftKeyMaskID, 1<<errorBitInvalidMaskID, ws.cf)
		return
	}
	if target.Type != vtobject.ObjectTypeDataMask && target.Type != vtobject.ObjectTypeAlarmMask {
		s.sendChangeSoftKeyMaskResponse(maskObjectID, newSoftKeyMaskID, 1<<errorBitAnyOtherError, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change soft key mask command: invalid object type for object %d", ws.cf.Address(), maskObjectID)
		return
	}
	if newSoftKeyMaskID != vtobject.NullObjectID {
		newMask := ws.Object(newSoftKeyMaskID)
		if newMask == nil || newMask.Type != vtobject.ObjectTypeSoftKeyMask {
			s.sendChangeSoftKeyMaskResponse(maskObjectID, newSoftKeyMaskID, 1<<errorBitInvalidSoftKeyMaskID, ws.cf)
			return
		}
	}
	target.SoftKeyMask = newSoftKeyMaskID
	s.sendChangeSoftKeyMaskResponse(maskObjectID, newSoftKeyMaskID, 0, ws.cf)
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

func (s *Server) processChangeStringValue(ws *ManagedWorkingSet, data []byte) {
	objectID := le16(data[1], data[2])
	length := int(le16(data[3], data[4]))

	if len(data) < length+5 {
		s.sendChangeStringValueResponse(objectID, 1<<errorBitAnyOtherError, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change string value command for object %d failed because data length is not valid when compared to the amount sent", ws.cf.Address(), objectID)
		return
	}
	target := ws.Object(objectID)
	if target == nil {
		s.sendChangeStringValueResponse(objectID, 1<<errorBitInvalidObjectID, ws.cf)
		return
	}
	switch target.Type {
	case vtobject.ObjectTypeStringVariable, vtobject.ObjectTypeOutputString,
		vtobject.ObjectTypeInputString:
		value := string(data[5 : 5+length])
		target.StringValue = value
		s.sendChangeStringValueResponse(objectID, 0, ws.cf)
		s.OnStringValueChanged.Fire(StringValueChangedEvent{WorkingSet: ws, ObjectID: objectID, Value: value})
		s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
	default:
		s.sendChangeStringValueResponse(objectID, 1<<errorBitInvalidObjectID, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change string value command for object %d failed because the object ID was for an object that isn't a string", ws.cf.Address(), objectID)
	}
}

func (s *Server) processChangeFillAttributes(ws *ManagedWorkingSet, data []byte) {
	objectID := le16(data[1], data[2])
	fillPatternID := le16(data[5], data[6])
	target := ws.Object(objectID)

	if target == nil || target.Type != vtobject.ObjectTypeFillAttributes {
		s.sendChangeFillAttributesResponse(objectID, 1<<errorBitFillInvalidObjectID, ws.cf)
		return
	}
	if fillPatternID != vtobject.NullObjectID {
		pattern := ws.Object(fillPatternID)
		if pattern == nil || pattern.Type != vtobject.ObjectTypePictureGraphic {
			s.sendChangeFillAttributesResponse(objectID, 1<<errorBitFillInvalidPatternID, ws.cf)
			s.log.Warnf("[VT Server]: Client %d change fill attributes invalid pattern object ID of %d for object %d", ws.cf.Address(), fillPatternID, objectID)
			return
		}
	}
	if data[3] > byte(vtobject.FillWithPattern) {
		s.sendChangeFillAttributesResponse(objectID, 1<<errorBitFillInvalidType, ws.cf)
		return
	}
	target.FillPattern = fillPatternID
	target.FillType = vtobject.FillType(data[3])
	target.BackgroundColour = data[4]
	s.sendChangeFillAttributesResponse(objectID, 0, ws.cf)
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

func (s *Server) processChangeAttribute(ws *ManagedWorkingSet, data []byte) {
	objectID := le16(data[1], data[2])
	attributeID := data[3]
	value := le32(data[4], data[5], data[6], data[7])
	target := ws.Object(objectID)

	if objectID == vtobject.NullObjectID || target == nil {
		s.sendChangeAttributeResponse(objectID, 1<<uint8(vtobject.AttributeErrorInvalidObjectID), attributeID, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change attribute %d invalid object ID of %d", ws.cf.Address(), attributeID, objectID)
		return
	}
	if errKind, ok := target.SetAttribute(attributeID, value); !ok {
		s.sendChangeAttributeResponse(objectID, 1<<uint8(errKind), attributeID, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change object %d attribute %d to %d error %d", ws.cf.Address(), objectID, attributeID, value, errKind)
		return
	}
	s.sendChangeAttributeResponse(objectID, 0, attributeID, ws.cf)
	s.log.Debugf("[VT Server]: Client %d changed object %d attribute %d to %d", ws.cf.Address(), objectID, attributeID, value)
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

// changeSizeTypes are the object types whose size this command may
// change freely; OutputMeter is handled separately because it must stay
// square.
var changeSizeTypes = map[vtobject.ObjectType]bool{
	vtobject.ObjectTypeAnimation:            true,
	vtobject.ObjectTypeOutputArchedBarGraph: true,
	vtobject.ObjectTypeOutputLinearBarGraph: true,
	vtobject.ObjectTypeOutputPolygon:        true,
	vtobject.ObjectTypeOutputEllipse:        true,
	vtobject.ObjectTypeOutputRectangle:      true,
	vtobject.ObjectTypeOutputLine:           true,
	vtobject.ObjectTypeOutputNumber:         true,
	vtobject.ObjectTypeOutputList:           true,
	vtobject.ObjectTypeInputList:            true,
	vtobject.ObjectTypeButton:               true,
	vtobject.ObjectTypeContainer:            true,
}

func (s *Server) processChangeSize(ws *ManagedWorkingSet, data []byte) {
	objectID := le16(data[1], data[2])
	newWidth := le16(data[3], data[4])
	newHeight := le16(data[5], data[6])
	target := ws.Object(objectID)

	if target == nil {
		s.sendChangeSizeResponse(objectID, 1<<errorBitInvalidObjectID, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change size command: invalid object ID of %d", ws.cf.Address(), objectID)
		return
	}

	switch {
	case target.Type == vtobject.ObjectTypeOutputMeter:
		if newWidth != newHeight {
			// Output meters must stay square.
			s.sendChangeSizeResponse(objectID, 1<<errorBitAnyOtherError, ws.cf)
			s.log.Warnf("[VT Server]: Client %d change size command: invalid new size. Meter must be square! Object: %d", ws.cf.Address(), objectID)
			return
		}
	case changeSizeTypes[target.Type]:
	default:
		s.sendChangeSizeResponse(objectID, 1<<errorBitAnyOtherError, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change size command: invalid object type for object %d", ws.cf.Address(), objectID)
		return
	}

	target.Width = newWidth
	target.Height = newHeight
	s.sendChangeSizeResponse(objectID, 0, ws.cf)
	s.log.Debugf("[VT Server]: Client %d change size command: Object: %d, Width: %d, Height: %d", ws.cf.Address(), objectID, newWidth, newHeight)
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

func (s *Server) processChangeListItem(ws *ManagedWorkingSet, data []byte) {
	objectID := le16(data[1], data[2])
	listIndex := data[3]
	newObjectID := le16(data[4], data[5])
	target := ws.Object(objectID)

	if target == nil {
		s.sendChangeListItemResponse(objectID, newObjectID, 1<<errorBitListInvalidObjectID, listIndex, ws.cf)
		return
	}
	if newObjectID != vtobject.NullObjectID && ws.Object(newObjectID) == nil {
		s.sendChangeListItemResponse(objectID, newObjectID, 1<<errorBitInvalidListItemID, listIndex, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change list item command: invalid new object ID of %d", ws.cf.Address(), newObjectID)
		return
	}
	switch target.Type {
	case vtobject.ObjectTypeInputList, vtobject.ObjectTypeOutputList:
		if !target.ChangeListItem(listIndex, newObjectID) {
			s.sendChangeListItemResponse(objectID, newObjectID, 1<<errorBitAnyOtherError, listIndex, ws.cf)
			return
		}
	default:
		s.sendChangeListItemResponse(objectID, newObjectID, 1<<errorBitAnyOtherError, listIndex, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change list item command: invalid object type. Object: %d", ws.cf.Address(), objectID)
		return
	}
	s.sendChangeListItemResponse(objectID, newObjectID, 0, listIndex, ws.cf)
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

func (s *Server) processChangeFontAttributes(ws *ManagedWorkingSet, data []byte) {
	objectID := le16(data[1], data[2])
	target := ws.Object(objectID)

	if target == nil || target.Type != vtobject.ObjectTypeFontAttributes {
		s.sendChangeFontAttributesResponse(objectID, 1<<errorBitFontInvalidObjectID, ws.cf)
		return
	}
	if data[4] > byte(vtobject.FontSize128x192) {
		s.sendChangeFontAttributesResponse(objectID, 1<<errorBitFontInvalidSize, ws.cf)
		s.log.Warnf("[VT Server]: Client %d change font attributes command: invalid font size %d. ObjectID: %d", ws.cf.Address(), data[4], objectID)
		return
	}
	target.FontColour = data[3]
	target.FontSize = vtobject.FontSize(data[4])
	target.FontType = data[5]
	target.FontStyle = data[6]
	s.sendChangeFontAttributesResponse(objectID, 0, ws.cf)
	s.OnRepaint.Fire(RepaintEvent{WorkingSet: ws})
}

// supportedObjectTypes is the server's fixed capability table.
var supportedObjectTypes = []vtobject.ObjectType{
	vtobject.ObjectTypeWorkingSet,
	vtobject.ObjectTypeDataMask,
	vtobject.ObjectTypeAlarmMask,
	vtobject.ObjectTypeContainer,
	vtobject.ObjectTypeSoftKeyMask,
	vtobject.ObjectTypeKey,
	vtobject.ObjectTypeButton,
	vtobject.ObjectTypeInputBoolean,
	vtobject.ObjectTypeInputString,
	vtobject.ObjectTypeInputNumber,
	vtobject.ObjectTypeInputList,
	vtobject.ObjectTypeOutputString,
	vtobject.ObjectTypeOutputNumber,
	vtobject.ObjectTypeOutputList,
	vtobject.ObjectTypeOutputLine,
	vtobject.ObjectTypeOutputRectangle,
	vtobject.ObjectTypeOutputEllipse,
	vtobject.ObjectTypeOutputPolygon,
	vtobject.ObjectTypeOutputMeter,
	vtobject.ObjectTypeOutputLinearBarGraph,
	vtobject.ObjectTypeOutputArchedBarGraph,
	vtobject.ObjectTypePictureGraphic,
	vtobject.ObjectTypeNumberVariable,
	vtobject.ObjectTypeStringVariable,
	vtobject.ObjectTypeFontAttributes,
	vtobject.ObjectTypeLineAttributes,
	vtobject.ObjectTypeFillAttributes,
	vtobject.ObjectTypeInputAttributes,
	vtobject.ObjectTypeObjectPointer,
	vtobject.ObjectTypeExternalObjectPointer,
	vtobject.ObjectTypeMacro,
	vtobject.ObjectTypeColourMap,
	vtobject.ObjectTypeWindowMask,
}

func (s *Server) sendSupportedObjects(destination *controlfunction.ControlFunction) bool {
	buffer := []byte{byte(FunctionGetSupportedObjects), byte(len(supportedObjectTypes))}
	for _, objectType := range supportedObjectTypes {
		buffer = append(buffer, byte(objectType))
	}
	return s.sendToClient(destination, buffer)
}

// NotifySelectInputObject emits a VT select input object message to the
// owning client when user code changes input focus, and fires the
// matching event.
func (s *Server) NotifySelectInputObject(ws *ManagedWorkingSet, objectID uint16, selected, openForInput bool) bool {
	toByte := func(b bool) byte {
		if b {
			return 1
		}
		return 0
	}
	ok := s.sendToClient(ws.cf, []byte{
		byte(FunctionVTSelectInputObject),
		byte(objectID & 0xFF),
		byte(objectID >> 8),
		toByte(selected),
		toByte(openForInput),
		0xFF,
		0xFF,
		0xFF,
	})
	s.OnSelectInputObject.Fire(SelectInputObjectEvent{
		WorkingSet: ws, ObjectID: objectID, Selected: selected, OpenForInput: openForInput,
	})
	return ok
}

// Tick drives the server: the status heartbeat, parse completion
// handling, and working set lifetime management.
func (s *Server) Tick() {
	now := s.clock()

	// Scan working sets for completed parses and expired clients.
	kept := s.workingSets[:0]
	for _, ws := range s.workingSets {
		switch ws.ParseState() {
		case ParseSuccess:
			ws.joinParser()
			ws.acknowledgeParse()
			s.busyCodes &^= BusyParsingObjectPool
			s.sendEndOfObjectPoolResponse(true, vtobject.NullObjectID, ws.cf)
			if s.active == nil {
				s.active = ws
				s.log.Infof("[VT Server]: Client %d is now the active working set master", ws.cf.Address())
			}
		case ParseFail:
			ws.joinParser()
			ws.acknowledgeParse()
			s.busyCodes &^= BusyParsingObjectPool
			s.sendEndOfObjectPoolResponse(false, ws.FaultingObjectID(), ws.cf)
			s.log.Warnf("[VT Server]: Object pool for client %d failed to parse at object %d", ws.cf.Address(), ws.FaultingObjectID())
		}

		if !ws.cf.IsValid() || ws.maintenanceExpired(now, s.cfg.WorkingSetTimeout) {
			s.log.Warnf("[VT Server]: Removing working set for client %d", ws.cf.Address())
			if s.active == ws {
				s.active = nil
			}
			continue
		}
		kept = append(kept, ws)
	}
	s.workingSets = kept

	if now.Sub(s.lastStatusTime) >= s.cfg.StatusInterval {
		s.lastStatusTime = now
		s.sendStatusMessage()
	}
}

// sendStatusMessage broadcasts the periodic VT status heartbeat.
func (s *Server) sendStatusMessage() bool {
	activeMasterAddress := byte(0xFF)
	dataMaskID := vtobject.NullObjectID
	softKeyMaskID := vtobject.NullObjectID

	if s.active != nil {
		activeMasterAddress = s.active.cf.Address()
		if pool := s.active.Pool(); pool != nil {
			if wsObject := pool.WorkingSetObject(); wsObject != nil {
				dataMaskID = wsObject.ActiveMask
				if mask := pool.Get(dataMaskID); mask != nil {
					softKeyMaskID = mask.SoftKeyMask
				}
			}
		}
	}

	buffer := []byte{
		byte(FunctionVTStatus),
		activeMasterAddress,
		byte(dataMaskID & 0xFF),
		byte(dataMaskID >> 8),
		byte(softKeyMaskID & 0xFF),
		byte(softKeyMaskID >> 8),
		s.busyCodes,
		byte(s.activeCommand),
	}
	ok, err := s.net.SendFrame(PGNVTToECU, buffer, s.internal.Address(), canframe.AddressGlobal, priorityLowest)
	if err != nil {
		s.log.Errorf("[VT Server]: Failed to encode status frame: %v", err)
		return false
	}
	return ok
}
