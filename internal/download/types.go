package download

import (
	"time"
)

// Method identifies how an artifact was verified.
type Method int

const (
	// MethodNone means no signature was required.
	MethodNone Method = iota
	// MethodOpenPGP means an OpenPGP detached signature was checked.
	MethodOpenPGP
	// MethodMinisign means a minisign signature was checked.
	MethodMinisign
)

// String returns the string representation of the method
func (m Method) String() string {
	switch m {
	case MethodNone:
		return "none"
	case MethodOpenPGP:
		return "openpgp"
	case MethodMinisign:
		return "minisign"
	default:
		return "unknown"
	}
}

// Result describes one completed transfer.
type Result struct {
	URL      string
	Path     string
	Size     int64
	Duration time.Duration
}

// Artifact describes a fetched and possibly verified release file.
type Artifact struct {
	Path          string
	URL           string
	SignaturePath string
	Verified      Method
	Reused        bool // an existing file was kept without downloading
	Attempts      int
	OperationID   string
}
