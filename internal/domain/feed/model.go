package feed

import "time"

// RemoteFile is the cheap listing metadata of one file on the provider side.
// A zero ModifiedAt means the provider did not report a timestamp.
type RemoteFile struct {
	Name       string
	ModifiedAt time.Time
	Size       uint64
}

func (f RemoteFile) HasTimestamp() bool {
	return !f.ModifiedAt.IsZero()
}

// LedgerEntry records the last successfully applied version of a file.
type LedgerEntry struct {
	Filename         string
	RemoteModifiedAt time.Time
	AppliedAt        time.Time
	ContentHash      string
}
