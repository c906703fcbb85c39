package vtserver

// VersionLabelLength is the fixed length of a stored version label.
const VersionLabelLength = 7

// VersionStorage is the persistence collaborator for object pool
// versions. The server never stores pools itself; it delegates to this
// interface when a client issues store, load or get versions commands.
type VersionStorage interface {
	// SaveVersion persists one object pool under a label for the client
	// NAME, reporting success.
	SaveVersion(label []byte, name uint64, data []byte) bool
	// LoadVersion returns the pool bytes stored under a label for the
	// client NAME, or an empty slice when none exists.
	LoadVersion(label []byte, name uint64) []byte
	// ListVersions returns every stored label for the client NAME.
	ListVersions(name uint64) [][]byte
}

// MemoryQuery answers the GetMemory command: whether the terminal can
// hold a pool of the requested size.
type MemoryQuery interface {
	IsEnoughMemory(requiredBytes uint32) bool
}

// WideCharQuery answers the GetSupportedWidechars command for one code
// plane and inquiry range. The returned ranges slice is the raw
// first/last pair bytes appended to the reply.
type WideCharQuery interface {
	SupportedWideChars(codePlane uint8, first, last uint16) (errorCode uint8, numberOfRanges uint8, ranges []byte)
}
